package graph

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zclconf/go-cty/cty"

	"github.com/matzehuels/metaop/pkg/assemble"
	"github.com/matzehuels/metaop/pkg/blueprint"
	"github.com/matzehuels/metaop/pkg/catalog"
	"github.com/matzehuels/metaop/pkg/dag"
	errs "github.com/matzehuels/metaop/pkg/errors"
)

func assembled(t *testing.T, bp blueprint.Blueprint) *dag.Graph {
	t.Helper()
	g, err := assemble.Assemble(context.Background(), bp, assemble.Options{})
	if err != nil {
		t.Fatalf("Assemble(%q): %v", bp.Name, err)
	}
	return g
}

func builtin(t *testing.T, name string) *dag.Graph {
	t.Helper()
	v, err := blueprint.Builtin(name)
	if err != nil {
		t.Fatal(err)
	}
	return assembled(t, v.Blueprint)
}

func fingerprint(t *testing.T, g *dag.Graph) string {
	t.Helper()
	fp, err := Fingerprint(g)
	if err != nil {
		t.Fatal(err)
	}
	return fp
}

func TestFromDAGCanonical(t *testing.T) {
	data := FromDAG(builtin(t, blueprint.BokehRepair))
	for i := 1; i < len(data.Nodes); i++ {
		if data.Nodes[i-1].ID >= data.Nodes[i].ID {
			t.Fatalf("nodes not sorted: %s before %s", data.Nodes[i-1].ID, data.Nodes[i].ID)
		}
	}
	roles := map[string]string{}
	for _, n := range data.Nodes {
		roles[n.ID] = n.Role
	}
	want := map[string]string{"input": "proxy", "output": "proxy", "repair": "repair", "median": ""}
	for id, role := range want {
		if roles[id] != role {
			t.Errorf("node %s role = %q, want %q", id, roles[id], role)
		}
	}
	for _, n := range data.Nodes {
		if n.ID == "median" {
			if n.Op != "gegl:median-blur" || n.Properties["radius"] != "25" || n.Properties["neighborhood"] != "circle" {
				t.Errorf("median = %+v", n)
			}
		}
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	for _, name := range blueprint.BuiltinNames() {
		t.Run(name, func(t *testing.T) {
			a, b := builtin(t, name), builtin(t, name)
			if fingerprint(t, a) != fingerprint(t, b) {
				t.Error("identical blueprints have different fingerprints")
			}
		})
	}

	a, b := builtin(t, blueprint.Bokeh), builtin(t, blueprint.BokehStreak)
	if fingerprint(t, a) == fingerprint(t, b) {
		t.Error("different variants share a fingerprint")
	}
}

func TestFingerprintTracksProperties(t *testing.T) {
	g := builtin(t, blueprint.Bokeh)
	before := fingerprint(t, g)
	if err := g.SetProperty("noise", "seed", cty.NumberIntVal(9)); err != nil {
		t.Fatal(err)
	}
	if fingerprint(t, g) == before {
		t.Error("fingerprint ignored a property change")
	}
}

func TestHCLMatchesBuiltinFingerprint(t *testing.T) {
	variants, err := blueprint.LoadFile(filepath.Join("..", "blueprint", "testdata", "bokeh.hcl"))
	if err != nil {
		t.Fatal(err)
	}
	fromFile := assembled(t, variants[0].Blueprint)
	if got, want := fingerprint(t, fromFile), fingerprint(t, builtin(t, blueprint.Bokeh)); got != want {
		t.Errorf("HCL fingerprint %s, built-in %s", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, name := range blueprint.BuiltinNames() {
		t.Run(name, func(t *testing.T) {
			g := builtin(t, name)
			tint, err := catalog.ParseColor("#12345678")
			if err != nil {
				t.Fatal(err)
			}
			if err := g.SetProperty("overlay", "value", tint); err != nil {
				t.Fatal(err)
			}

			var buf bytes.Buffer
			if err := WriteGraph(g, &buf); err != nil {
				t.Fatal(err)
			}
			data, err := ReadGraph(&buf)
			if err != nil {
				t.Fatal(err)
			}
			bp, err := ToBlueprint(data)
			if err != nil {
				t.Fatal(err)
			}
			again := assembled(t, bp)
			if diff := cmp.Diff(FromDAG(g), FromDAG(again)); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteGraphFile(t *testing.T) {
	g := builtin(t, blueprint.Bokeh)
	path := filepath.Join(t.TempDir(), "bokeh.json")
	if err := WriteGraphFile(g, path); err != nil {
		t.Fatal(err)
	}
	data, err := ReadGraphFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(FromDAG(g), data); diff != "" {
		t.Errorf("file round trip mismatch (-want +got):\n%s", diff)
	}

	if _, err := ReadGraphFile(filepath.Join(t.TempDir(), "missing.json")); !errs.Is(err, errs.ErrCodeNotFound) {
		t.Errorf("missing file: got %v, want NOT_FOUND", err)
	}
}

func TestToBlueprintErrors(t *testing.T) {
	tests := []struct {
		name string
		data Graph
	}{
		{"no name", Graph{}},
		{"bad role", Graph{Name: "x", Nodes: []Node{{ID: "a", Op: "gegl:nop", Role: "boss"}}}},
		{"bad edge kind", Graph{Name: "x", Edges: []Edge{{From: "input", To: "output", Port: "input", Kind: "wormhole"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ToBlueprint(tt.data); !errs.Is(err, errs.ErrCodeInvalidFormat) {
				t.Errorf("got %v, want INVALID_FORMAT", err)
			}
		})
	}
}

func TestReadGraphMalformed(t *testing.T) {
	if _, err := ReadGraph(bytes.NewReader([]byte("{"))); !errs.Is(err, errs.ErrCodeInvalidFormat) {
		t.Errorf("got %v, want INVALID_FORMAT", err)
	}
}
