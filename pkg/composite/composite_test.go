package composite

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zclconf/go-cty/cty"

	"github.com/matzehuels/metaop/pkg/blueprint"
	"github.com/matzehuels/metaop/pkg/catalog"
	"github.com/matzehuels/metaop/pkg/dag"
	errs "github.com/matzehuels/metaop/pkg/errors"
)

func variant(t *testing.T, name string) blueprint.Variant {
	t.Helper()
	v, err := blueprint.Builtin(name)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func attach(t *testing.T, name string, opts ...Option) *Composite {
	t.Helper()
	c, err := FromVariant(context.Background(), variant(t, name), opts...)
	if err != nil {
		t.Fatalf("FromVariant(%q): %v", name, err)
	}
	return c
}

func medianRadius(t *testing.T, c *Composite) int64 {
	t.Helper()
	v, ok := c.Graph().Property("median", "radius")
	if !ok {
		t.Fatal("no median.radius")
	}
	r, err := catalog.Int(v)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestAttachScenario(t *testing.T) {
	c := attach(t, blueprint.Bokeh)
	if c.State() != StateAttached {
		t.Fatalf("State() = %v", c.State())
	}
	if !c.Graph().OutputReachableFromInput() {
		t.Error("OutputReachableFromInput() = false")
	}
	want := []string{
		"shape", "overlayColor", "density", "sharpness", "seed", "blurRadius",
		"blurPercentile", "maskColor", "maskThreshold", "opacity", "softenRadius", "fillColor",
	}
	var got []string
	for _, p := range c.Params() {
		got = append(got, p.Name)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Params() mismatch (-want +got):\n%s", diff)
	}
}

func TestSetBlurRadius(t *testing.T) {
	tests := []struct {
		name   string
		policy catalog.Policy
		value  any
		want   int64
		code   errs.Code
	}{
		{"in range", catalog.Clamp, 25, 25, ""},
		{"in range reject", catalog.Reject, 25, 25, ""},
		{"lower bound", catalog.Reject, 1, 1, ""},
		{"upper bound", catalog.Reject, 80, 80, ""},
		{"clamp above", catalog.Clamp, 200, 80, ""},
		{"clamp below", catalog.Clamp, 0, 1, ""},
		{"reject above", catalog.Reject, 200, 0, errs.ErrCodeValueOutOfRange},
		{"reject below", catalog.Reject, 0, 0, errs.ErrCodeValueOutOfRange},
		{"rounded float", catalog.Reject, 12.4, 12, ""},
		{"wrong type", catalog.Clamp, "wide", 0, errs.ErrCodeInvalidValue},
		{"nil", catalog.Clamp, nil, 0, errs.ErrCodeInvalidValue},
		{"nan", catalog.Clamp, math.NaN(), 0, errs.ErrCodeInvalidValue},
		{"nan float32", catalog.Reject, float32(math.NaN()), 0, errs.ErrCodeInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := attach(t, blueprint.Bokeh, WithRangePolicy(tt.policy))
			before := medianRadius(t, c)
			err := c.SetParameter("blurRadius", tt.value)
			if tt.code != "" {
				if !errs.Is(err, tt.code) {
					t.Fatalf("SetParameter error = %v, want %s", err, tt.code)
				}
				if got := medianRadius(t, c); got != before {
					t.Errorf("rejected write changed radius %d -> %d", before, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetParameter: %v", err)
			}
			if got := medianRadius(t, c); got != tt.want {
				t.Errorf("median.radius = %d, want %d", got, tt.want)
			}
			v, err := c.Parameter("blurRadius")
			if err != nil {
				t.Fatal(err)
			}
			if got, _ := catalog.Int(v); got != tt.want {
				t.Errorf("Parameter(blurRadius) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSetParameterUnbound(t *testing.T) {
	c := attach(t, blueprint.BokehRepair)
	// bokeh-repair has no soften stage.
	if err := c.SetParameter("softenRadius", 3); !errs.Is(err, errs.ErrCodeUnboundParameter) {
		t.Fatalf("got %v, want UNBOUND_PARAMETER", err)
	}
	// The composite stays usable after a per-call error.
	if err := c.SetParameter("seed", 42); err != nil {
		t.Fatalf("SetParameter(seed) after error: %v", err)
	}
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	v := variant(t, blueprint.Bokeh)

	c := New()
	if c.State() != StateUnattached || c.Graph() != nil || c.Params() != nil || c.Name() != "" {
		t.Fatal("new composite should expose nothing")
	}
	if err := c.SetParameter("seed", 1); !errs.Is(err, errs.ErrCodeInvalidState) {
		t.Errorf("write before attach: got %v, want INVALID_STATE", err)
	}
	if _, err := c.Parameter("seed"); !errs.Is(err, errs.ErrCodeInvalidState) {
		t.Errorf("read before attach: got %v, want INVALID_STATE", err)
	}

	if err := c.Attach(ctx, v.Blueprint, v.Redirects); err != nil {
		t.Fatal(err)
	}
	if c.Name() != blueprint.Bokeh {
		t.Errorf("Name() = %q", c.Name())
	}
	g := c.Graph()
	if err := c.Attach(ctx, v.Blueprint, v.Redirects); !errs.Is(err, errs.ErrCodeInvalidState) {
		t.Errorf("re-attach: got %v, want INVALID_STATE", err)
	}
	if c.Graph() != g || c.State() != StateAttached {
		t.Error("re-attach changed the composite")
	}
}

func TestAttachFailure(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		mutate func(v *blueprint.Variant)
		want   errs.Code
	}{
		{
			"assembly error",
			func(v *blueprint.Variant) { v.Blueprint.Nodes[0].Op = "gegl:nonexistent" },
			errs.ErrCodeUnknownOperationKind,
		},
		{
			"duplicate aux",
			func(v *blueprint.Variant) {
				v.Blueprint.Aux = append(v.Blueprint.Aux, blueprint.AuxLink{Source: "overlay", Target: "divide", Port: "aux"})
			},
			errs.ErrCodeDuplicateAuxBinding,
		},
		{
			"duplicate binding",
			func(v *blueprint.Variant) { v.Redirects = append(v.Redirects, v.Redirects[0]) },
			errs.ErrCodeDuplicateBinding,
		},
		{
			"unknown property",
			func(v *blueprint.Variant) {
				v.Redirects = append(v.Redirects, blueprint.Redirect{
					Param:   "x",
					Targets: []blueprint.Target{{Node: "median", Property: "diameter"}},
				})
			},
			errs.ErrCodeUnknownProperty,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := variant(t, blueprint.Bokeh)
			v.Blueprint = v.Blueprint.Clone()
			tt.mutate(&v)

			c := New()
			err := c.Attach(ctx, v.Blueprint, v.Redirects)
			if !errs.Is(err, tt.want) {
				t.Fatalf("Attach error = %v, want %s", err, tt.want)
			}
			if c.State() != StateFailed || c.Graph() != nil {
				t.Fatalf("State() = %v, Graph() = %v; want failed, nil", c.State(), c.Graph())
			}
			if err := c.SetParameter("seed", 1); !errs.Is(err, errs.ErrCodeInvalidState) {
				t.Errorf("write after failure: got %v, want INVALID_STATE", err)
			}
			if err := c.Attach(ctx, v.Blueprint, v.Redirects); !errs.Is(err, errs.ErrCodeInvalidState) {
				t.Errorf("attach after failure: got %v, want INVALID_STATE", err)
			}

			if got, err := Attach(ctx, v.Blueprint, v.Redirects); got != nil || err == nil {
				t.Errorf("Attach() = %v, %v; want nil composite and error", got, err)
			}
		})
	}
}

func TestDeterministic(t *testing.T) {
	for _, name := range blueprint.BuiltinNames() {
		t.Run(name, func(t *testing.T) {
			a, b := attach(t, name), attach(t, name)
			if a.ID() == b.ID() {
				t.Error("instance IDs should differ")
			}
			ga, gb := a.Graph(), b.Graph()
			if diff := cmp.Diff(ga.Nodes(), gb.Nodes()); diff != "" {
				t.Errorf("Nodes differ (-a +b):\n%s", diff)
			}
			if diff := cmp.Diff(ga.Edges(), gb.Edges()); diff != "" {
				t.Errorf("Edges differ (-a +b):\n%s", diff)
			}
			if diff := cmp.Diff(a.Params(), b.Params(), ctyComparer); diff != "" {
				t.Errorf("Params differ (-a +b):\n%s", diff)
			}
		})
	}
}

var ctyComparer = cmp.Comparer(func(a, b cty.Value) bool { return a.RawEquals(b) })

func TestSnapshotAndPreset(t *testing.T) {
	c := attach(t, blueprint.Bokeh, WithRangePolicy(catalog.Reject))
	base := c.Snapshot()
	if len(base) != len(c.Params()) {
		t.Fatalf("Snapshot has %d entries, want %d", len(base), len(c.Params()))
	}

	preset := map[string]cty.Value{
		"blurRadius": cty.NumberIntVal(40),
		"seed":       cty.NumberIntVal(7),
		"shape":      cty.StringVal("diamond"),
	}
	if err := c.ApplyPreset(preset); err != nil {
		t.Fatalf("ApplyPreset: %v", err)
	}
	snap := c.Snapshot()
	for name, want := range map[string]string{"blurRadius": "40", "seed": "7", "shape": "diamond"} {
		if got := catalog.Format(snap[name]); got != want {
			t.Errorf("%s = %s, want %s", name, got, want)
		}
	}

	// opacity is out of range under Reject; nothing in the preset may stick.
	bad := map[string]cty.Value{
		"blurRadius": cty.NumberIntVal(10),
		"opacity":    cty.NumberIntVal(9),
		"seed":       cty.NumberIntVal(99),
	}
	if err := c.ApplyPreset(bad); !errs.Is(err, errs.ErrCodeValueOutOfRange) {
		t.Fatalf("got %v, want VALUE_OUT_OF_RANGE", err)
	}
	if diff := cmp.Diff(snap, c.Snapshot(), ctyComparer); diff != "" {
		t.Errorf("failed preset left changes (-want +got):\n%s", diff)
	}

	if err := c.ApplyPreset(map[string]cty.Value{"nope": cty.NumberIntVal(1)}); !errs.Is(err, errs.ErrCodeUnboundParameter) {
		t.Errorf("unbound preset: got %v, want UNBOUND_PARAMETER", err)
	}
}

func TestRepairStageNotExposed(t *testing.T) {
	c := attach(t, blueprint.BokehRepair)
	for _, p := range c.Params() {
		for _, target := range p.Targets {
			if target == "repair.radius" || target == "repair.highlight-factor" {
				t.Errorf("%s bound to sealed repair stage", p.Name)
			}
		}
	}
	chain := c.Graph().MainChain()
	if n := len(chain); chain[n-2] != "repair" {
		t.Errorf("repair is not last before output: %v", chain)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	c := attach(t, blueprint.Bokeh)
	g := c.Graph()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				order := g.TopologicalOrder()
				if len(order) != g.NodeCount() {
					t.Errorf("TopologicalOrder has %d nodes, want %d", len(order), g.NodeCount())
					return
				}
				for _, e := range g.InboundEdges("divide") {
					if e.Kind == dag.EdgeAux && e.From != "noise" {
						t.Errorf("divide.aux fed by %s", e.From)
						return
					}
				}
				_ = c.Snapshot()
			}
		}()
	}
	for w := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				if err := c.SetParameter("blurRadius", 1+(i+w)%80); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestSeparateCompositesIndependent(t *testing.T) {
	a, b := attach(t, blueprint.Bokeh), attach(t, blueprint.Bokeh)
	if err := a.SetParameter("blurRadius", 60); err != nil {
		t.Fatal(err)
	}
	if got := medianRadius(t, b); got != 25 {
		t.Errorf("write to a leaked into b: radius = %d", got)
	}
}
