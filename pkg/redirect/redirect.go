package redirect

import (
	"errors"
	"io"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/zclconf/go-cty/cty"

	"github.com/matzehuels/metaop/pkg/blueprint"
	"github.com/matzehuels/metaop/pkg/catalog"
	"github.com/matzehuels/metaop/pkg/dag"
	errs "github.com/matzehuels/metaop/pkg/errors"
	"github.com/matzehuels/metaop/pkg/observability"
)

// Target addresses one inner property fed by a public parameter.
type Target struct {
	Node      string
	Property  string
	Transform Transform
}

// Binding is one public parameter and the inner properties it forwards to.
type Binding struct {
	Param   string
	Targets []Target
	// Property is the catalog entry of the first target. It supplies the
	// parameter's type, default and range for introspection.
	Property catalog.Property

	props []catalog.Property // per target, parallel to Targets
}

// Options configures a Table.
type Options struct {
	// Policy applies to forwarded values outside a property's range.
	Policy catalog.Policy
	// Logger receives debug output. Nil discards it.
	Logger *log.Logger
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Table maps public parameter names to inner node properties of one graph.
// It is safe for concurrent use; writes are serialized.
type Table struct {
	g      *dag.Graph
	opts   Options
	mu     sync.RWMutex
	byName map[string]*Binding
	order  []string
}

// New returns an empty table over g.
func New(g *dag.Graph, opts Options) *Table {
	opts.setDefaults()
	return &Table{g: g, opts: opts, byName: make(map[string]*Binding)}
}

// Graph returns the graph the table forwards into.
func (t *Table) Graph() *dag.Graph { return t.g }

// Policy returns the table's range policy.
func (t *Table) Policy() catalog.Policy { return t.opts.Policy }

// Bind exposes one inner property under a public name.
//
// It fails with INVALID_INPUT for a malformed name, UNKNOWN_PROPERTY if the
// node does not exist, is a proxy or the sealed repair stage, or has no such
// property, and DUPLICATE_BINDING if the name is already bound. Binding two
// names to the same property is allowed.
func (t *Table) Bind(param, node, property string, tr Transform) error {
	return t.BindFanOut(param, Target{Node: node, Property: property, Transform: tr})
}

// BindFanOut exposes several inner properties under one public name. A
// write to the name updates every target or none.
func (t *Table) BindFanOut(param string, targets ...Target) (err error) {
	defer func() { observability.Parameter().OnBind(param, len(targets), err) }()

	if err := errs.ValidateIdentifier("parameter", param); err != nil {
		return err
	}
	if len(targets) == 0 {
		return errs.New(errs.ErrCodeInvalidInput, "parameter %q: no targets", param)
	}

	b := &Binding{Param: param, Targets: slices.Clone(targets), props: make([]catalog.Property, len(targets))}
	seen := make(map[[2]string]bool, len(targets))
	for i, tg := range targets {
		key := [2]string{tg.Node, tg.Property}
		if seen[key] {
			return errs.New(errs.ErrCodeInvalidInput, "parameter %q: target %s.%s listed twice", param, tg.Node, tg.Property)
		}
		seen[key] = true

		p, err := t.resolve(param, tg)
		if err != nil {
			return err
		}
		b.props[i] = p
	}
	b.Property = b.props[0]

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byName[param]; ok {
		return errs.New(errs.ErrCodeDuplicateBinding, "parameter %q is already bound", param)
	}
	t.byName[param] = b
	t.order = append(t.order, param)
	t.opts.Logger.Debug("bound parameter", "param", param, "targets", len(targets))
	return nil
}

func (t *Table) resolve(param string, tg Target) (catalog.Property, error) {
	n, ok := t.g.Node(tg.Node)
	switch {
	case !ok:
		return catalog.Property{}, errs.New(errs.ErrCodeUnknownProperty, "parameter %q: no node %q", param, tg.Node)
	case n.IsProxy():
		return catalog.Property{}, errs.New(errs.ErrCodeUnknownProperty, "parameter %q: %q is a boundary proxy", param, tg.Node)
	case n.IsSealed():
		return catalog.Property{}, errs.New(errs.ErrCodeUnknownProperty, "parameter %q: %q is sealed", param, tg.Node)
	}
	desc, err := catalog.Describe(n.Kind)
	if err != nil {
		return catalog.Property{}, err
	}
	p, ok := desc.Property(tg.Property)
	if !ok {
		return catalog.Property{}, errs.New(errs.ErrCodeUnknownProperty, "parameter %q: %s has no property %q", param, desc.Name, tg.Property)
	}
	return p, nil
}

// BindAll binds a blueprint's redirect declarations in order, stopping at
// the first error.
func (t *Table) BindAll(redirects []blueprint.Redirect) error {
	for _, r := range redirects {
		targets := make([]Target, len(r.Targets))
		for i, tg := range r.Targets {
			tr, err := ParseTransform(tg.Transform)
			if err != nil {
				return errs.Wrap(errs.GetCode(err), err, "parameter %q", r.Param)
			}
			targets[i] = Target{Node: tg.Node, Property: tg.Property, Transform: tr}
		}
		if err := t.BindFanOut(r.Param, targets...); err != nil {
			return err
		}
	}
	return nil
}

// Forward writes v to every target of param. Each target's transform runs
// first, then the value is coerced to the target property under the
// table's policy. Nothing is written unless every target accepts the value.
//
// It fails with UNBOUND_PARAMETER, INVALID_VALUE or VALUE_OUT_OF_RANGE.
func (t *Table) Forward(param string, v cty.Value) (err error) {
	defer func() { observability.Parameter().OnForward(param, err) }()

	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.byName[param]
	if !ok {
		return errs.New(errs.ErrCodeUnboundParameter, "parameter %q is not bound", param)
	}

	batch := make([]dag.Assignment, len(b.Targets))
	for i, tg := range b.Targets {
		tv, err := tg.Transform.Apply(v)
		if err != nil {
			return errs.Wrap(errs.GetCode(err), err, "parameter %q", param)
		}
		cv, err := b.props[i].Coerce(tv, t.opts.Policy)
		if err != nil {
			return errs.Wrap(errs.GetCode(err), err, "parameter %q -> %s", param, tg.Node)
		}
		batch[i] = dag.Assignment{Node: tg.Node, Property: tg.Property, Value: cv}
	}

	if err := t.g.SetProperties(batch...); err != nil {
		if errors.Is(err, dag.ErrSealedNode) || errors.Is(err, dag.ErrUnknownProperty) || errors.Is(err, dag.ErrUnknownNode) {
			return errs.Wrap(errs.ErrCodeUnknownProperty, err, "parameter %q", param)
		}
		return errs.Wrap(errs.ErrCodeInternal, err, "parameter %q", param)
	}
	t.opts.Logger.Debug("forwarded parameter", "param", param, "value", catalog.Format(v), "targets", len(batch))
	return nil
}

// Read returns the current value of param's first target.
func (t *Table) Read(param string) (cty.Value, error) {
	b, ok := t.Lookup(param)
	if !ok {
		return cty.NilVal, errs.New(errs.ErrCodeUnboundParameter, "parameter %q is not bound", param)
	}
	tg := b.Targets[0]
	v, ok := t.g.Property(tg.Node, tg.Property)
	if !ok {
		return cty.NilVal, errs.New(errs.ErrCodeInternal, "parameter %q: target %s.%s vanished", param, tg.Node, tg.Property)
	}
	return v, nil
}

// Lookup returns a copy of the binding for param.
func (t *Table) Lookup(param string) (Binding, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.byName[param]
	if !ok {
		return Binding{}, false
	}
	return b.clone(), true
}

// Bindings returns every binding in bind order.
func (t *Table) Bindings() []Binding {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Binding, len(t.order))
	for i, name := range t.order {
		out[i] = t.byName[name].clone()
	}
	return out
}

// Params returns the bound public names in bind order.
func (t *Table) Params() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.order)
}

// Len returns the number of bound names.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

func (b *Binding) clone() Binding {
	c := *b
	c.Targets = slices.Clone(b.Targets)
	c.props = slices.Clone(b.props)
	return c
}
