// Package dag provides the filter graph a composite is assembled into: typed
// operation nodes, ports, edges and the two boundary proxies.
//
// # Overview
//
// A [Graph] holds operation nodes drawn from the catalog plus two
// distinguished proxies, Input and Output, that stand for the composite's
// external image ports. Every node has one main input port, one main output
// port and zero or more auxiliary input ports declared by its kind. An edge
// always leaves a node's main output and enters one named input port.
//
// Edges come in three kinds:
//
//   - [EdgeChain]: a link of the main chain, the single path from Input to Output
//   - [EdgeBranch]: feeds the main input of a side chain (noise, overlay)
//   - [EdgeAux]: feeds an auxiliary port (mask, overlay source, noise field)
//
// # Building
//
// Topology is created only through a [Builder]. [Builder.Connect] enforces the
// port rules as edges are added: each input port accepts at most one edge,
// aux edges must name a port the target kind declares, and the main chain
// never forks. [Builder.Build] rejects cyclic graphs and freezes the result:
//
//	b := dag.NewBuilder("bokeh")
//	b.AddNode(dag.Node{ID: "blur", Kind: catalog.KindLensBlur})
//	b.Connect(dag.Edge{From: dag.InputID, To: "blur", Port: catalog.PortInput})
//	b.Connect(dag.Edge{From: "blur", To: dag.OutputID, Port: catalog.PortInput})
//	g, err := b.Build()
//
// # Handles
//
// Each node carries a name-based UUID ([Handle]) derived from the graph name
// and node ID. Rebuilding a graph with the same name and IDs reproduces the
// same handles, which the host uses to address nodes.
//
// # Concurrency
//
// A built Graph's nodes and edges never change, so structural queries take no
// lock and may run from any number of goroutines. Property values are the
// only mutable state; they sit behind a read-write mutex, and
// [Graph.SetProperties] applies a batch atomically with respect to readers.
// Builders are not safe for concurrent use.
package dag
