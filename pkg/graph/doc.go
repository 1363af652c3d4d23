// Package graph serializes assembled filter graphs.
//
// [Graph] is the canonical JSON form of a [dag.Graph]: nodes sorted by ID,
// edges sorted by endpoints, property values rendered as strings that
// coerce back to the same value. It is used for the CLI's json output, for
// cache keys and for determinism checks:
//
//	data, err := graph.MarshalGraph(g)
//	fp, err := graph.Fingerprint(g) // sha256 of data
//
// [ToBlueprint] inverts the serialization, so a graph written to disk can be
// assembled again and yields the same fingerprint.
//
// [dag.Graph]: github.com/matzehuels/metaop/pkg/dag.Graph
package graph
