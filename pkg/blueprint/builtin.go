package blueprint

import errs "github.com/matzehuels/metaop/pkg/errors"

// Names of the built-in variants.
const (
	Bokeh       = "bokeh"
	BokehRepair = "bokeh-repair"
	BokehStreak = "bokeh-streak"
)

// Builtin returns a fresh copy of the named built-in variant.
// It fails with NOT_FOUND for unknown names.
func Builtin(name string) (Variant, error) {
	for _, mk := range builtins {
		if v := mk(); v.Name() == name {
			return v, nil
		}
	}
	return Variant{}, errs.New(errs.ErrCodeNotFound, "unknown variant %q (available: %v)", name, BuiltinNames())
}

// Builtins returns fresh copies of every built-in variant.
func Builtins() []Variant {
	out := make([]Variant, len(builtins))
	for i, mk := range builtins {
		out[i] = mk()
	}
	return out
}

// BuiltinNames returns the built-in variant names in a stable order.
func BuiltinNames() []string {
	names := make([]string, len(builtins))
	for i, mk := range builtins {
		names[i] = mk().Name()
	}
	return names
}

var builtins = []func() Variant{bokeh, bokehRepair, bokehStreak}

// bokehNodes are the nodes shared by every bokeh variant: a color fill
// divided by a cell-noise field, grown into shapes by a median blur, keyed
// out by color-to-alpha and tinted by a color overlay.
func bokehNodes() []NodeSpec {
	return []NodeSpec{
		{ID: "color", Op: "gegl:color"},
		{ID: "divide", Op: "gegl:divide"},
		{ID: "median", Op: "gegl:median-blur"},
		{ID: "c2a", Op: "gegl:color-to-alpha"},
		{ID: "multiply", Op: "gegl:multiply"},
		{ID: "opacity", Op: "gegl:opacity"},
		{ID: "noise", Op: "gegl:cell-noise"},
		{ID: "overlay", Op: "gegl:color-overlay"},
	}
}

func bokehAux() []AuxLink {
	return []AuxLink{
		{Source: "noise", Target: "divide", Port: "aux"},
		{Source: "overlay", Target: "multiply", Port: "aux"},
	}
}

func bokehBranches() [][]string { return [][]string{{"noise"}, {"overlay"}} }

// bokehRedirects are the parameters every variant exposes, excluding the
// final soften stage.
func bokehRedirects() []Redirect {
	return []Redirect{
		single("shape", "median", "neighborhood", ""),
		single("overlayColor", "overlay", "value", ""),
		single("density", "noise", "scale", ""),
		single("sharpness", "noise", "shape", ""),
		single("seed", "noise", "seed", ""),
		single("blurRadius", "median", "radius", "round"),
		single("blurPercentile", "median", "percentile", ""),
		single("maskColor", "c2a", "color", ""),
		single("maskThreshold", "c2a", "transparency-threshold", ""),
		single("opacity", "opacity", "value", ""),
	}
}

func single(param, node, property, transform string) Redirect {
	return Redirect{Param: param, Targets: []Target{{Node: node, Property: property, Transform: transform}}}
}

func bokeh() Variant {
	chain := []string{"color", "divide", "median", "c2a", "multiply", "opacity", "blur"}
	return Variant{
		Description: "Bokeh shapes softened by a final lens blur",
		Blueprint: Blueprint{
			Name:     Bokeh,
			Nodes:    append(bokehNodes(), NodeSpec{ID: "blur", Op: "gegl:lens-blur"}),
			Chain:    chain,
			Branches: bokehBranches(),
			Aux:      bokehAux(),
		},
		Redirects: append(bokehRedirects(),
			single("softenRadius", "blur", "radius", "round"),
			single("fillColor", "color", "value", ""),
		),
	}
}

func bokehRepair() Variant {
	return Variant{
		Description: "Bokeh shapes with opacity followed by a graph-repair stage",
		Blueprint: Blueprint{
			Name:     BokehRepair,
			Nodes:    bokehNodes(),
			Chain:    []string{"color", "divide", "median", "c2a", "multiply", "opacity"},
			Branches: bokehBranches(),
			Aux:      bokehAux(),
			Repair:   true,
		},
		Redirects: append(bokehRedirects(), single("fillColor", "color", "value", "")),
	}
}

func bokehStreak() Variant {
	nodes := append(bokehNodes(),
		NodeSpec{ID: "streak", Op: "gegl:motion-blur"},
		NodeSpec{ID: "crop", Op: "gegl:crop"},
	)
	return Variant{
		Description: "Bokeh shapes streaked by a directional blur, cropped to the input",
		Blueprint: Blueprint{
			Name:     BokehStreak,
			Nodes:    nodes,
			Chain:    []string{"color", "divide", "median", "c2a", "multiply", "opacity", "streak", "crop"},
			Branches: bokehBranches(),
			Aux:      append(bokehAux(), AuxLink{Source: "input", Target: "crop", Port: "aux"}),
		},
		Redirects: append(bokehRedirects(),
			single("softenRadius", "streak", "length", "round"),
			single("streakAngle", "streak", "angle", ""),
			single("fillColor", "color", "value", ""),
		),
	}
}
