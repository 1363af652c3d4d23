package graph

import (
	"cmp"
	"slices"

	"github.com/zclconf/go-cty/cty"

	"github.com/matzehuels/metaop/pkg/blueprint"
	"github.com/matzehuels/metaop/pkg/catalog"
	"github.com/matzehuels/metaop/pkg/dag"
	errs "github.com/matzehuels/metaop/pkg/errors"
)

// Graph is the canonical serialization of an assembled graph. Nodes are
// sorted by ID and edges by (from, to, port), so two structurally identical
// graphs serialize to identical bytes.
type Graph struct {
	Name  string `json:"name" bson:"name"`
	Nodes []Node `json:"nodes" bson:"nodes"`
	Edges []Edge `json:"edges" bson:"edges"`
}

// Node is one serialized node. Property values are rendered with
// [catalog.Format]; each one coerces back to the same value.
type Node struct {
	ID         string            `json:"id" bson:"id"`
	Op         string            `json:"op" bson:"op"`
	Role       string            `json:"role,omitempty" bson:"role,omitempty"` // "proxy", "repair", or empty
	Handle     string            `json:"handle" bson:"handle"`
	Properties map[string]string `json:"properties,omitempty" bson:"properties,omitempty"`
}

// Edge is one serialized connection.
type Edge struct {
	From string `json:"from" bson:"from"`
	To   string `json:"to" bson:"to"`
	Port string `json:"port" bson:"port"`
	Kind string `json:"kind" bson:"kind"` // "chain", "branch" or "aux"
}

// FromDAG converts an assembled graph to its serialization format, using
// the current property values.
func FromDAG(g *dag.Graph) Graph {
	nodes := g.Nodes()
	slices.SortFunc(nodes, func(a, b dag.Node) int { return cmp.Compare(a.ID, b.ID) })

	out := Graph{Name: g.Name(), Nodes: make([]Node, len(nodes))}
	for i, n := range nodes {
		out.Nodes[i] = Node{
			ID:     n.ID,
			Op:     n.Kind.String(),
			Handle: n.Handle.String(),
		}
		if n.Role != dag.RoleOperation {
			out.Nodes[i].Role = n.Role.String()
		}
		if props := g.Properties(n.ID); len(props) > 0 {
			out.Nodes[i].Properties = make(map[string]string, len(props))
			for k, v := range props {
				out.Nodes[i].Properties[k] = catalog.Format(v)
			}
		}
	}

	edges := g.Edges()
	slices.SortFunc(edges, func(a, b dag.Edge) int {
		return cmp.Or(cmp.Compare(a.From, b.From), cmp.Compare(a.To, b.To), cmp.Compare(a.Port, b.Port))
	})
	out.Edges = make([]Edge, len(edges))
	for i, e := range edges {
		out.Edges[i] = Edge{From: e.From, To: e.To, Port: e.Port, Kind: e.Kind.String()}
	}
	return out
}

// ToBlueprint reconstructs the blueprint a serialized graph was assembled
// from. Every property becomes an explicit override, so assembling the
// result reproduces the graph's current values. Redirects are not part of
// the serialization and are not recovered.
func ToBlueprint(data Graph) (blueprint.Blueprint, error) {
	bp := blueprint.Blueprint{Name: data.Name}
	if data.Name == "" {
		return bp, errs.New(errs.ErrCodeInvalidFormat, "graph has no name")
	}

	for _, n := range data.Nodes {
		switch n.Role {
		case "proxy":
			continue
		case "repair":
			bp.Repair = true
			continue
		case "":
		default:
			return bp, errs.New(errs.ErrCodeInvalidFormat, "node %q: unknown role %q", n.ID, n.Role)
		}
		spec := blueprint.NodeSpec{ID: n.ID, Op: n.Op}
		if len(n.Properties) > 0 {
			spec.Properties = make(map[string]cty.Value, len(n.Properties))
			for k, v := range n.Properties {
				spec.Properties[k] = cty.StringVal(v)
			}
		}
		bp.Nodes = append(bp.Nodes, spec)
	}

	skip := map[string]bool{dag.InputID: true, dag.OutputID: true}
	for _, n := range data.Nodes {
		if n.Role == "repair" {
			skip[n.ID] = true
		}
	}

	next := make(map[string][]Edge)
	for _, e := range data.Edges {
		switch e.Kind {
		case "chain", "branch":
			next[e.From] = append(next[e.From], e)
		case "aux":
			bp.Aux = append(bp.Aux, blueprint.AuxLink{Source: e.From, Target: e.To, Port: e.Port})
		default:
			return bp, errs.New(errs.ErrCodeInvalidFormat, "edge %s -> %s: unknown kind %q", e.From, e.To, e.Kind)
		}
	}

	follow := func(start, kind string) []string {
		var ids []string
		seen := map[string]bool{}
		for cur := start; ; {
			var step *Edge
			for _, e := range next[cur] {
				if e.Kind == kind {
					step = &e
					break
				}
			}
			if step == nil || seen[step.To] {
				return ids
			}
			seen[step.To] = true
			if !skip[step.To] {
				ids = append(ids, step.To)
			}
			cur = step.To
		}
	}

	bp.Chain = follow(dag.InputID, "chain")
	for _, e := range next[dag.InputID] {
		if e.Kind == "branch" {
			bp.Branches = append(bp.Branches, append([]string{e.To}, follow(e.To, "branch")...))
		}
	}
	return bp, nil
}
