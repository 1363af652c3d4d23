package catalog

import (
	"slices"

	"github.com/zclconf/go-cty/cty"

	errs "github.com/matzehuels/metaop/pkg/errors"
)

// Port names shared by every operation kind.
const (
	// PortInput is the main input port carrying the primary image stream.
	PortInput = "input"
	// PortOutput is the main output port.
	PortOutput = "output"
	// PortAux is the conventional name of an auxiliary input port.
	PortAux = "aux"
)

// Kind identifies a primitive operation. The set is closed: every value
// other than KindUnknown has a registered [Descriptor].
type Kind int

const (
	KindUnknown Kind = iota
	KindColor
	KindMultiply
	KindDivide
	KindColorToAlpha
	KindMedianBlur
	KindCellNoise
	KindColorOverlay
	KindLensBlur
	KindMotionBlur
	KindOpacity
	KindNop
	KindCrop
	KindSrc
)

// String returns the host operation name, or "unknown".
func (k Kind) String() string {
	if d, ok := registry[k]; ok {
		return d.Name
	}
	return "unknown"
}

// Descriptor describes one operation kind: its host name, auxiliary input
// ports and settable properties.
type Descriptor struct {
	Kind       Kind
	Name       string     // Host operation name, e.g. "gegl:median-blur"
	Title      string     // Human-readable title
	AuxPorts   []string   // Auxiliary input port names, in declaration order
	Properties []Property // Settable properties, in declaration order
}

// Property returns the named property and true, or false if the kind has
// no such property.
func (d Descriptor) Property(name string) (Property, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// PropertyMap returns the property table keyed by name.
func (d Descriptor) PropertyMap() map[string]Property {
	m := make(map[string]Property, len(d.Properties))
	for _, p := range d.Properties {
		m[p.Name] = p
	}
	return m
}

// HasAuxPort reports whether the kind accepts an auxiliary input named port.
func (d Descriptor) HasAuxPort(port string) bool {
	return slices.Contains(d.AuxPorts, port)
}

// Defaults returns a fresh map of every property's default value.
func (d Descriptor) Defaults() map[string]cty.Value {
	m := make(map[string]cty.Value, len(d.Properties))
	for _, p := range d.Properties {
		m[p.Name] = p.Default
	}
	return m
}

// Describe returns the descriptor registered for k.
// It fails with UNKNOWN_OPERATION_KIND if k is not registered.
// The returned descriptor is a copy; modifying it does not affect the catalog.
func Describe(k Kind) (Descriptor, error) {
	d, ok := registry[k]
	if !ok {
		return Descriptor{}, errs.New(errs.ErrCodeUnknownOperationKind, "operation kind %d is not registered", int(k))
	}
	d.AuxPorts = slices.Clone(d.AuxPorts)
	d.Properties = slices.Clone(d.Properties)
	return d, nil
}

// Lookup resolves a host operation name to its kind.
// It fails with UNKNOWN_OPERATION_KIND if the name is not registered.
func Lookup(name string) (Kind, error) {
	if k, ok := byName[name]; ok {
		return k, nil
	}
	return KindUnknown, errs.New(errs.ErrCodeUnknownOperationKind, "unknown operation %q", name)
}

// Kinds returns every registered kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(registry))
	for k := KindColor; k <= KindSrc; k++ {
		if _, ok := registry[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

var (
	neighborhoods = &Enum{Namespace: "median-blur.neighborhood", Values: []string{"square", "circle", "diamond"}}

	registry = map[Kind]Descriptor{
		KindColor: {
			Name:  "gegl:color",
			Title: "Color fill",
			Properties: []Property{
				colorProp("value", "#ff23cf", "Fill color"),
			},
		},
		KindMultiply: {
			Name:     "gegl:multiply",
			Title:    "Multiply",
			AuxPorts: []string{PortAux},
		},
		KindDivide: {
			Name:     "gegl:divide",
			Title:    "Divide",
			AuxPorts: []string{PortAux},
		},
		KindColorToAlpha: {
			Name:  "gegl:color-to-alpha",
			Title: "Color to alpha",
			Properties: []Property{
				colorProp("color", "#ff23cf", "The color to make transparent"),
				doubleProp("transparency-threshold", 0.5, 0, 1, "The limit below which colors become transparent"),
				doubleProp("opacity-threshold", 1, 0, 1, "The limit above which colors remain opaque"),
			},
		},
		KindMedianBlur: {
			Name:  "gegl:median-blur",
			Title: "Median blur",
			Properties: []Property{
				intProp("radius", 25, 1, 80, "Neighborhood radius"),
				doubleProp("percentile", 100, 31, 100, "Neighborhood color percentile"),
				enumProp("neighborhood", neighborhoods, "circle", "Neighborhood type"),
				doubleProp("alpha-percentile", 50, 0, 100, "Neighborhood alpha percentile"),
			},
		},
		KindCellNoise: {
			Name:  "gegl:cell-noise",
			Title: "Cell noise",
			Properties: []Property{
				doubleProp("scale", 0.12, 0.05, 0.35, "The scale of the noise function"),
				doubleProp("shape", 3, 0, 4, "Interpolate between Manhattan and Euclidean distance"),
				intProp("seed", 0, 0, 2147483647, "The random seed for the noise function"),
				intProp("rank", 1, 1, 3, "Select the n-th closest point"),
			},
		},
		KindColorOverlay: {
			Name:  "gegl:color-overlay",
			Title: "Color overlay",
			Properties: []Property{
				colorProp("value", "#ffffff", "Overlay color"),
			},
		},
		KindLensBlur: {
			Name:     "gegl:lens-blur",
			Title:    "Lens blur",
			AuxPorts: []string{PortAux},
			Properties: []Property{
				doubleProp("radius", 2, 0, 12, "Blur radius"),
				doubleProp("highlight-factor", 0, 0, 0.999, "Relative highlight strength"),
			},
		},
		KindMotionBlur: {
			Name:  "gegl:motion-blur",
			Title: "Directional blur",
			Properties: []Property{
				doubleProp("length", 2, 0, 12, "Length of blur in pixels"),
				doubleProp("angle", 0, -180, 180, "Angle of blur in degrees"),
			},
		},
		KindOpacity: {
			Name:     "gegl:opacity",
			Title:    "Opacity",
			AuxPorts: []string{PortAux},
			Properties: []Property{
				doubleProp("value", 0.6, 0.1, 1.3, "Global opacity value"),
			},
		},
		KindNop: {
			Name:  "gegl:nop",
			Title: "Pass-through",
		},
		KindCrop: {
			Name:     "gegl:crop",
			Title:    "Crop",
			AuxPorts: []string{PortAux},
			Properties: []Property{
				doubleProp("x", 0, -1e6, 1e6, "Left edge"),
				doubleProp("y", 0, -1e6, 1e6, "Top edge"),
				doubleProp("width", 0, 0, 1e6, "Width, 0 takes the aux extent"),
				doubleProp("height", 0, 0, 1e6, "Height, 0 takes the aux extent"),
			},
		},
		KindSrc: {
			Name:     "gegl:src",
			Title:    "Source replace",
			AuxPorts: []string{PortAux},
		},
	}

	byName = indexByName()
)

func indexByName() map[string]Kind {
	m := make(map[string]Kind, len(registry))
	for k, d := range registry {
		d.Kind = k
		registry[k] = d
		m[d.Name] = k
	}
	return m
}

func intProp(name string, def, lo, hi int64, desc string) Property {
	return Property{
		Name:        name,
		Type:        TypeInt,
		Default:     cty.NumberIntVal(def),
		Range:       &Range{Min: float64(lo), Max: float64(hi)},
		Description: desc,
	}
}

func doubleProp(name string, def, lo, hi float64, desc string) Property {
	return Property{
		Name:        name,
		Type:        TypeDouble,
		Default:     cty.NumberFloatVal(def),
		Range:       &Range{Min: lo, Max: hi},
		Description: desc,
	}
}

func colorProp(name, def, desc string) Property {
	v, err := ParseColor(def)
	if err != nil {
		panic("catalog: bad default color " + def)
	}
	return Property{
		Name:        name,
		Type:        TypeColor,
		Default:     v,
		Range:       &Range{Min: 0, Max: 1},
		Description: desc,
	}
}

func enumProp(name string, e *Enum, def, desc string) Property {
	return Property{
		Name:        name,
		Type:        TypeEnum,
		Default:     cty.StringVal(def),
		Enum:        e,
		Description: desc,
	}
}
