// Package assemble turns a blueprint into a frozen filter graph.
//
// [Assemble] resolves every declared operation through the catalog, links
// the main chain between the Input and Output proxies, feeds side chains
// from Input, attaches the auxiliary links and checks the result for cycles.
// Each failure maps to one error code, and a failed assembly never exposes
// a partial graph.
//
// # Wiring Rules
//
//   - Every input port accepts at most one edge. A second aux link to the
//     same port fails with DUPLICATE_AUX_BINDING.
//   - An aux stream comes from a dedicated node: a node other than Input
//     feeds at most one auxiliary port.
//   - Every declared node sits on the main chain or a side chain, or feeds
//     an auxiliary port, and every side chain ends in an auxiliary port.
//     Anything else fails with UNWIRED_NODE.
//
// # Repair Stage
//
// A blueprint with Repair set gets a zero-radius lens blur, ID [RepairID],
// as the last stage before Output. It passes pixels through unchanged and
// resets per-stage property state at the composite boundary. The stage is
// sealed: its properties are fixed at assembly, and binding a public
// parameter to it fails.
package assemble
