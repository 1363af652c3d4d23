package blueprint

import (
	"maps"
	"slices"

	"github.com/zclconf/go-cty/cty"

	errs "github.com/matzehuels/metaop/pkg/errors"
)

// Blueprint is a static description of a composite graph: the nodes to
// instantiate, the main-chain order, the side chains fed from Input and the
// auxiliary connections.
type Blueprint struct {
	Name     string
	Nodes    []NodeSpec
	Chain    []string   // Main-chain node IDs between Input and Output, in order
	Branches [][]string // Side chains, each fed from Input's main output
	Aux      []AuxLink
	Repair   bool // Append the sealed repair stage before Output
}

// NodeSpec declares one node. Op is a host operation name resolved through
// the catalog at assembly; Properties override catalog defaults.
type NodeSpec struct {
	ID         string
	Op         string
	Properties map[string]cty.Value
}

// AuxLink connects Source's main output to Target's auxiliary port Port.
// Source may be the Input proxy.
type AuxLink struct {
	Source string
	Target string
	Port   string
}

// Redirect binds one public parameter to one or more node properties.
// More than one target makes it a fan-out binding.
type Redirect struct {
	Param   string
	Targets []Target
}

// Target is one bound node property. Transform names a value transform
// applied on forward; empty means identity.
type Target struct {
	Node      string
	Property  string
	Transform string
}

// Variant pairs a blueprint with its redirect table. Each variant is a
// distinct configuration; parameters of the same name in two variants may
// target different nodes.
type Variant struct {
	Blueprint   Blueprint
	Redirects   []Redirect
	Description string
}

// Name returns the blueprint name.
func (v Variant) Name() string { return v.Blueprint.Name }

// Params returns the public parameter names in declaration order.
func (v Variant) Params() []string {
	names := make([]string, len(v.Redirects))
	for i, r := range v.Redirects {
		names[i] = r.Param
	}
	return names
}

// Node returns the declared node with the given ID.
func (b Blueprint) Node(id string) (NodeSpec, bool) {
	i := slices.IndexFunc(b.Nodes, func(n NodeSpec) bool { return n.ID == id })
	if i < 0 {
		return NodeSpec{}, false
	}
	return b.Nodes[i], true
}

// Validate checks identifiers only: the blueprint name, node IDs and
// redirect parameter names must be well-formed and node IDs unique.
// Structural rules are enforced by the assembler.
func (b Blueprint) Validate() error {
	if err := errs.ValidateIdentifier("blueprint name", b.Name); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidBlueprint, err, "blueprint %q", b.Name)
	}
	seen := make(map[string]bool, len(b.Nodes))
	for _, n := range b.Nodes {
		if err := errs.ValidateIdentifier("node ID", n.ID); err != nil {
			return errs.Wrap(errs.ErrCodeInvalidBlueprint, err, "blueprint %q", b.Name)
		}
		if seen[n.ID] {
			return errs.New(errs.ErrCodeInvalidBlueprint, "blueprint %q declares node %q twice", b.Name, n.ID)
		}
		seen[n.ID] = true
	}
	return nil
}

// Clone returns a deep copy of the blueprint. Property values are immutable
// and shared.
func (b Blueprint) Clone() Blueprint {
	out := b
	out.Nodes = slices.Clone(b.Nodes)
	for i := range out.Nodes {
		out.Nodes[i].Properties = maps.Clone(out.Nodes[i].Properties)
	}
	out.Chain = slices.Clone(b.Chain)
	out.Branches = slices.Clone(b.Branches)
	for i := range out.Branches {
		out.Branches[i] = slices.Clone(out.Branches[i])
	}
	out.Aux = slices.Clone(b.Aux)
	return out
}
