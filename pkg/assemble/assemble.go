package assemble

import (
	"context"
	"errors"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zclconf/go-cty/cty"

	"github.com/matzehuels/metaop/pkg/blueprint"
	"github.com/matzehuels/metaop/pkg/catalog"
	"github.com/matzehuels/metaop/pkg/dag"
	errs "github.com/matzehuels/metaop/pkg/errors"
	"github.com/matzehuels/metaop/pkg/observability"
)

// RepairID is the node ID of the sealed repair stage.
const RepairID = "repair"

// RepairKind is the operation kind of the repair stage: a lens blur with
// zero radius, which passes pixels through unchanged and resets per-stage
// property state at the composite boundary.
const RepairKind = catalog.KindLensBlur

// Options configures assembly.
type Options struct {
	// Policy applies to property overrides declared in the blueprint.
	Policy catalog.Policy
	// Logger receives debug output. Nil discards it.
	Logger *log.Logger
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Assemble builds the graph described by bp. It runs in four steps:
//
//  1. Instantiate every declared node from the catalog and apply its
//     property overrides (UNKNOWN_OPERATION_KIND, UNKNOWN_PROPERTY,
//     INVALID_VALUE, VALUE_OUT_OF_RANGE).
//  2. Link the main chain from Input through the declared order, the repair
//     stage if requested, to Output (BROKEN_MAIN_CHAIN), then feed each side
//     chain from Input.
//  3. Attach the auxiliary links (UNKNOWN_PORT, DUPLICATE_AUX_BINDING) and
//     check that every node is wired (UNWIRED_NODE).
//  4. Check acyclicity and freeze the graph (CYCLE_DETECTED).
//
// Assembly is all-or-nothing: on error no graph is returned.
func Assemble(ctx context.Context, bp blueprint.Blueprint, opts Options) (g *dag.Graph, err error) {
	opts.setDefaults()
	start := time.Now()
	observability.Assembly().OnAssembleStart(ctx, bp.Name, len(bp.Nodes))
	defer func() {
		nodes, edges := 0, 0
		if g != nil {
			nodes, edges = g.NodeCount(), g.EdgeCount()
		}
		observability.Assembly().OnAssembleComplete(ctx, bp.Name, nodes, edges, time.Since(start), err)
	}()

	if err := bp.Validate(); err != nil {
		return nil, err
	}
	a := &assembler{
		bp:     bp,
		opts:   opts,
		b:      dag.NewBuilder(bp.Name),
		placed: make(map[string]string),
		feeds:  make(map[string]bool),
	}
	for _, step := range []func() error{a.instantiate, a.linkChain, a.linkBranches, a.linkAux, a.checkWired} {
		if err := step(); err != nil {
			opts.Logger.Debug("assembly failed", "blueprint", bp.Name, "code", errs.GetCode(err), "err", err)
			return nil, err
		}
	}
	g, err = a.b.Build()
	if errors.Is(err, dag.ErrGraphHasCycle) {
		return nil, errs.Wrap(errs.ErrCodeCycleDetected, err, "blueprint %q", bp.Name)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "blueprint %q", bp.Name)
	}
	if !g.OutputReachableFromInput() {
		return nil, errs.New(errs.ErrCodeBrokenMainChain, "blueprint %q: main chain does not reach output", bp.Name)
	}
	opts.Logger.Debug("assembled graph", "blueprint", bp.Name, "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return g, nil
}

type assembler struct {
	bp     blueprint.Blueprint
	opts   Options
	b      *dag.Builder
	placed map[string]string // node ID -> "chain" or "branch"
	feeds  map[string]bool   // node IDs feeding an aux port
}

func (a *assembler) instantiate() error {
	for _, n := range a.bp.Nodes {
		if n.ID == dag.InputID || n.ID == dag.OutputID || (a.bp.Repair && n.ID == RepairID) {
			return errs.New(errs.ErrCodeInvalidBlueprint, "node ID %q is reserved", n.ID)
		}
		kind, err := catalog.Lookup(n.Op)
		if err != nil {
			return errs.Wrap(errs.ErrCodeUnknownOperationKind, err, "node %q", n.ID)
		}
		if err := a.b.AddNode(dag.Node{ID: n.ID, Kind: kind}); err != nil {
			return errs.Wrap(errs.ErrCodeInvalidBlueprint, err, "node %q", n.ID)
		}
		desc, _ := catalog.Describe(kind)
		for _, name := range slices.Sorted(maps.Keys(n.Properties)) {
			if err := a.override(desc, n.ID, name, n.Properties[name]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *assembler) override(desc catalog.Descriptor, id, name string, raw cty.Value) error {
	p, ok := desc.Property(name)
	if !ok {
		return errs.New(errs.ErrCodeUnknownProperty, "node %q (%s) has no property %q", id, desc.Name, name)
	}
	v, err := p.Coerce(raw, a.opts.Policy)
	if err != nil {
		return errs.Wrap(errs.GetCode(err), err, "node %q", id)
	}
	return a.b.SetProperty(id, name, v)
}

// chainNodes returns the declared chain without optional leading Input and
// trailing Output proxies.
func (a *assembler) chainNodes() ([]string, error) {
	chain := a.bp.Chain
	if len(chain) > 0 && chain[0] == dag.InputID {
		chain = chain[1:]
	}
	if len(chain) > 0 && chain[len(chain)-1] == dag.OutputID {
		chain = chain[:len(chain)-1]
	}
	if len(chain) == 0 {
		return nil, errs.New(errs.ErrCodeBrokenMainChain, "blueprint %q: main chain is empty", a.bp.Name)
	}
	for _, id := range chain {
		switch {
		case id == dag.OutputID:
			return nil, errs.New(errs.ErrCodeBrokenMainChain, "blueprint %q: main chain reaches output before its end", a.bp.Name)
		case id == dag.InputID:
			return nil, errs.New(errs.ErrCodeBrokenMainChain, "blueprint %q: input proxy inside the main chain", a.bp.Name)
		}
		if _, ok := a.b.Node(id); !ok {
			return nil, errs.New(errs.ErrCodeBrokenMainChain, "blueprint %q: main chain names undeclared node %q", a.bp.Name, id)
		}
	}
	return chain, nil
}

func (a *assembler) linkChain() error {
	chain, err := a.chainNodes()
	if err != nil {
		return err
	}
	tail := []string{dag.OutputID}
	if a.bp.Repair {
		if err := a.addRepair(); err != nil {
			return err
		}
		tail = []string{RepairID, dag.OutputID}
	}
	prev := dag.InputID
	for _, id := range slices.Concat(chain, tail) {
		if id != dag.OutputID {
			if _, dup := a.placed[id]; dup {
				return errs.New(errs.ErrCodeBrokenMainChain, "blueprint %q: node %q appears twice in the main chain", a.bp.Name, id)
			}
			a.placed[id] = "chain"
		}
		e := dag.Edge{From: prev, To: id, Port: catalog.PortInput, Kind: dag.EdgeChain}
		if err := a.b.Connect(e); err != nil {
			return errs.Wrap(errs.ErrCodeBrokenMainChain, err, "blueprint %q: link %s → %s", a.bp.Name, prev, id)
		}
		prev = id
	}
	return nil
}

func (a *assembler) addRepair() error {
	if err := a.b.AddNode(dag.Node{ID: RepairID, Kind: RepairKind, Role: dag.RoleRepair}); err != nil {
		return errs.Wrap(errs.ErrCodeInternal, err, "add repair stage")
	}
	return a.b.SetProperty(RepairID, "radius", cty.NumberIntVal(0))
}

func (a *assembler) linkBranches() error {
	for i, branch := range a.bp.Branches {
		if len(branch) == 0 {
			return errs.New(errs.ErrCodeInvalidBlueprint, "blueprint %q: branch %d is empty", a.bp.Name, i)
		}
		prev := dag.InputID
		for _, id := range branch {
			if _, ok := a.b.Node(id); !ok || id == dag.InputID || id == dag.OutputID {
				return errs.New(errs.ErrCodeInvalidBlueprint, "blueprint %q: branch %d names undeclared node %q", a.bp.Name, i, id)
			}
			if where, dup := a.placed[id]; dup {
				return errs.New(errs.ErrCodeInvalidBlueprint, "blueprint %q: branch node %q is already on a %s", a.bp.Name, id, where)
			}
			a.placed[id] = "branch"
			e := dag.Edge{From: prev, To: id, Port: catalog.PortInput, Kind: dag.EdgeBranch}
			if err := a.b.Connect(e); err != nil {
				return errs.Wrap(errs.ErrCodeInvalidBlueprint, err, "blueprint %q: link %s → %s", a.bp.Name, prev, id)
			}
			prev = id
		}
	}
	return nil
}

func (a *assembler) linkAux() error {
	for _, l := range a.bp.Aux {
		port := l.Port
		if port == "" {
			port = catalog.PortAux
		}
		if _, ok := a.b.Node(l.Source); !ok || l.Source == dag.OutputID {
			return errs.New(errs.ErrCodeInvalidBlueprint, "blueprint %q: aux source %q is not a declared node", a.bp.Name, l.Source)
		}
		if _, ok := a.b.Node(l.Target); !ok || l.Target == dag.InputID {
			return errs.New(errs.ErrCodeInvalidBlueprint, "blueprint %q: aux target %q is not a declared node", a.bp.Name, l.Target)
		}
		if a.bp.Repair && (l.Source == RepairID || l.Target == RepairID) {
			return errs.New(errs.ErrCodeInvalidBlueprint, "blueprint %q: the sealed %q stage takes no auxiliary links", a.bp.Name, RepairID)
		}
		if l.Source != dag.InputID && a.feeds[l.Source] {
			return errs.New(errs.ErrCodeDuplicateAuxBinding,
				"blueprint %q: %q already feeds an auxiliary port; each aux stream needs its own node", a.bp.Name, l.Source)
		}
		e := dag.Edge{From: l.Source, To: l.Target, Port: port, Kind: dag.EdgeAux}
		switch err := a.b.Connect(e); {
		case errors.Is(err, dag.ErrUnknownPort):
			return errs.Wrap(errs.ErrCodeUnknownPort, err, "blueprint %q: %s has no auxiliary port %q", a.bp.Name, l.Target, port)
		case errors.Is(err, dag.ErrPortOccupied):
			return errs.Wrap(errs.ErrCodeDuplicateAuxBinding, err, "blueprint %q: %s.%s", a.bp.Name, l.Target, port)
		case err != nil:
			return errs.Wrap(errs.ErrCodeInvalidBlueprint, err, "blueprint %q: aux %s → %s.%s", a.bp.Name, l.Source, l.Target, port)
		}
		a.feeds[l.Source] = true
	}
	return nil
}

// checkWired rejects nodes whose output goes nowhere: every node must sit
// on the main chain or feed an auxiliary port, and every side chain must
// end in an auxiliary port.
func (a *assembler) checkWired() error {
	for _, n := range a.bp.Nodes {
		if _, ok := a.placed[n.ID]; !ok && !a.feeds[n.ID] {
			return errs.New(errs.ErrCodeUnwiredNode, "blueprint %q: node %q is not connected", a.bp.Name, n.ID)
		}
	}
	for i, branch := range a.bp.Branches {
		if tail := branch[len(branch)-1]; !a.feeds[tail] {
			return errs.New(errs.ErrCodeUnwiredNode, "blueprint %q: branch %d ends at %q, which feeds no auxiliary port", a.bp.Name, i, tail)
		}
	}
	return nil
}
