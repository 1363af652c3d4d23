package composite

import (
	"context"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/matzehuels/metaop/pkg/assemble"
	"github.com/matzehuels/metaop/pkg/blueprint"
	"github.com/matzehuels/metaop/pkg/catalog"
	"github.com/matzehuels/metaop/pkg/dag"
	errs "github.com/matzehuels/metaop/pkg/errors"
	"github.com/matzehuels/metaop/pkg/redirect"
)

// State is a composite's lifecycle stage.
type State int32

const (
	StateUnattached State = iota
	StateAssembling
	StateAttached
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateUnattached:
		return "unattached"
	case StateAssembling:
		return "assembling"
	case StateAttached:
		return "attached"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Option configures a Composite.
type Option func(*Composite)

// WithLogger sets the logger for assembly and parameter writes.
func WithLogger(l *log.Logger) Option {
	return func(c *Composite) { c.logger = l }
}

// WithRangePolicy selects how out-of-range values are handled, both for
// blueprint property overrides and for parameter writes.
func WithRangePolicy(p catalog.Policy) Option {
	return func(c *Composite) { c.policy = p }
}

// Param describes one public parameter. Type, default and range come from
// the catalog entry of the parameter's first target.
type Param struct {
	Name        string
	Type        catalog.PropertyType
	Default     cty.Value
	Range       *catalog.Range
	Enum        *catalog.Enum
	Description string
	Targets     []string // "node.property", in bind order
}

// Composite is a user-facing effect assembled from primitive operations.
// It owns one graph and one redirect table for its lifetime.
type Composite struct {
	id     uuid.UUID
	logger *log.Logger
	policy catalog.Policy

	state atomic.Int32
	name  string
	graph *dag.Graph
	table *redirect.Table

	wmu sync.Mutex // serializes parameter writes
}

// New returns an unattached composite.
func New(opts ...Option) *Composite {
	c := &Composite{id: uuid.New(), logger: log.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	return c
}

// Attach assembles a new composite from bp and binds redirects.
func Attach(ctx context.Context, bp blueprint.Blueprint, redirects []blueprint.Redirect, opts ...Option) (*Composite, error) {
	c := New(opts...)
	if err := c.Attach(ctx, bp, redirects); err != nil {
		return nil, err
	}
	return c, nil
}

// FromVariant attaches a composite to a variant's blueprint and redirects.
func FromVariant(ctx context.Context, v blueprint.Variant, opts ...Option) (*Composite, error) {
	return Attach(ctx, v.Blueprint, v.Redirects, opts...)
}

// Attach assembles the graph described by bp, then binds redirects
// against it. It runs once: calling it again, or after a failure, returns
// INVALID_STATE. Any assembly or bind error moves the composite to
// StateFailed.
func (c *Composite) Attach(ctx context.Context, bp blueprint.Blueprint, redirects []blueprint.Redirect) error {
	if !c.state.CompareAndSwap(int32(StateUnattached), int32(StateAssembling)) {
		return errs.New(errs.ErrCodeInvalidState, "composite %s is %s; create a new composite to rebuild", c.id, c.State())
	}

	g, err := assemble.Assemble(ctx, bp, assemble.Options{Policy: c.policy, Logger: c.logger})
	if err != nil {
		c.fail(bp.Name, err)
		return err
	}
	tbl := redirect.New(g, redirect.Options{Policy: c.policy, Logger: c.logger})
	if err := tbl.BindAll(redirects); err != nil {
		c.fail(bp.Name, err)
		return err
	}

	c.name, c.graph, c.table = bp.Name, g, tbl
	c.state.Store(int32(StateAttached))
	c.logger.Debug("attached composite", "name", bp.Name, "id", c.id, "params", tbl.Len())
	return nil
}

func (c *Composite) fail(name string, err error) {
	c.state.Store(int32(StateFailed))
	c.logger.Debug("attach failed", "name", name, "id", c.id, "code", errs.GetCode(err), "err", err)
}

// State returns the lifecycle stage.
func (c *Composite) State() State { return State(c.state.Load()) }

// ID returns the instance identifier. It is random per composite and not
// part of the graph structure.
func (c *Composite) ID() uuid.UUID { return c.id }

// Name returns the blueprint name, or "" before attachment.
func (c *Composite) Name() string {
	if c.State() != StateAttached {
		return ""
	}
	return c.name
}

// Policy returns the range policy.
func (c *Composite) Policy() catalog.Policy { return c.policy }

// Graph returns the assembled graph, or nil unless attached. Its topology
// is immutable and may be traversed concurrently without locking.
func (c *Composite) Graph() *dag.Graph {
	if c.State() != StateAttached {
		return nil
	}
	return c.graph
}

func (c *Composite) attached() error {
	if s := c.State(); s != StateAttached {
		return errs.New(errs.ErrCodeInvalidState, "composite %s is %s", c.id, s)
	}
	return nil
}

// SetParameter forwards value to every property bound to name. Go numbers,
// strings, color.Color and cty.Value are accepted.
func (c *Composite) SetParameter(name string, value any) error {
	if err := c.attached(); err != nil {
		return err
	}
	v, err := catalog.GoValue(value)
	if err != nil {
		return errs.Wrap(errs.GetCode(err), err, "parameter %q", name)
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.table.Forward(name, v); err != nil {
		c.logger.Debug("set parameter failed", "param", name, "code", errs.GetCode(err))
		return err
	}
	return nil
}

// Parameter returns the current value of name's first target.
func (c *Composite) Parameter(name string) (cty.Value, error) {
	if err := c.attached(); err != nil {
		return cty.NilVal, err
	}
	return c.table.Read(name)
}

// Params describes the public parameters in bind order.
func (c *Composite) Params() []Param {
	if c.attached() != nil {
		return nil
	}
	bindings := c.table.Bindings()
	out := make([]Param, len(bindings))
	for i, b := range bindings {
		targets := make([]string, len(b.Targets))
		for j, t := range b.Targets {
			targets[j] = t.Node + "." + t.Property
		}
		out[i] = Param{
			Name:        b.Param,
			Type:        b.Property.Type,
			Default:     b.Property.Default,
			Range:       b.Property.Range,
			Enum:        b.Property.Enum,
			Description: b.Property.Description,
			Targets:     targets,
		}
	}
	return out
}

// Bindings returns the redirect table's bindings in bind order.
func (c *Composite) Bindings() []redirect.Binding {
	if c.attached() != nil {
		return nil
	}
	return c.table.Bindings()
}

// Snapshot returns the current value of every public parameter. It does
// not interleave with parameter writes.
func (c *Composite) Snapshot() map[string]cty.Value {
	if c.attached() != nil {
		return nil
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	out := make(map[string]cty.Value, c.table.Len())
	for _, name := range c.table.Params() {
		if v, err := c.table.Read(name); err == nil {
			out[name] = v
		}
	}
	return out
}

// ApplyPreset sets several parameters as one update, in name order. If any
// value is rejected, every property touched so far is restored and the
// error is returned.
func (c *Composite) ApplyPreset(values map[string]cty.Value) error {
	if err := c.attached(); err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()

	names := slices.Sorted(maps.Keys(values))
	var saved []dag.Assignment
	for _, name := range names {
		b, ok := c.table.Lookup(name)
		if !ok {
			return errs.New(errs.ErrCodeUnboundParameter, "preset: parameter %q is not bound", name)
		}
		for _, t := range b.Targets {
			v, _ := c.graph.Property(t.Node, t.Property)
			saved = append(saved, dag.Assignment{Node: t.Node, Property: t.Property, Value: v})
		}
	}

	for _, name := range names {
		if err := c.table.Forward(name, values[name]); err != nil {
			if rerr := c.graph.SetProperties(saved...); rerr != nil {
				return errs.Wrap(errs.ErrCodeInternal, rerr, "restore after failed preset")
			}
			return err
		}
	}
	c.logger.Debug("applied preset", "name", c.name, "params", len(names))
	return nil
}
