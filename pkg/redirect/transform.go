package redirect

import (
	"math"
	"slices"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	errs "github.com/matzehuels/metaop/pkg/errors"
)

// Transform maps a public parameter value to the value written into a bound
// property. The zero Transform is the identity.
type Transform struct {
	Name string
	fn   func(cty.Value) (cty.Value, error)
}

// Apply runs the transform.
func (t Transform) Apply(v cty.Value) (cty.Value, error) {
	if t.fn == nil {
		return v, nil
	}
	return t.fn(v)
}

// String returns the transform name, "identity" for the zero value.
func (t Transform) String() string {
	if t.Name == "" {
		return "identity"
	}
	return t.Name
}

// Func returns a custom transform.
func Func(name string, fn func(cty.Value) (cty.Value, error)) Transform {
	return Transform{Name: name, fn: fn}
}

// Built-in transforms, addressable by name from blueprint files.
var (
	Identity = Transform{}
	// Round rounds a number half away from zero, for int properties driven
	// by fractional input.
	Round = numeric("round", math.Round)
	// Percent divides by 100.
	Percent = numeric("percent", func(x float64) float64 { return x / 100 })
	// Negate flips the sign.
	Negate = numeric("negate", func(x float64) float64 { return -x })
	// Degrees converts radians to degrees.
	Degrees = numeric("degrees", func(x float64) float64 { return x * 180 / math.Pi })
)

var transforms = map[string]Transform{
	"identity": Identity,
	"round":    Round,
	"percent":  Percent,
	"negate":   Negate,
	"degrees":  Degrees,
}

// ParseTransform resolves a transform name. The empty name is the identity.
func ParseTransform(name string) (Transform, error) {
	if name == "" {
		return Identity, nil
	}
	t, ok := transforms[name]
	if !ok {
		return Transform{}, errs.New(errs.ErrCodeInvalidInput, "unknown transform %q (available: %v)", name, TransformNames())
	}
	return t, nil
}

// TransformNames lists the built-in transform names in sorted order.
func TransformNames() []string {
	names := make([]string, 0, len(transforms))
	for n := range transforms {
		names = append(names, n)
	}
	sort.Strings(names)
	return slices.Clip(names)
}

func numeric(name string, f func(float64) float64) Transform {
	return Func(name, func(v cty.Value) (cty.Value, error) {
		n, err := convert.Convert(v, cty.Number)
		if err != nil || n.IsNull() || !n.IsKnown() {
			return cty.NilVal, errs.New(errs.ErrCodeInvalidValue, "transform %s: want a number, got %s", name, v.Type().FriendlyName())
		}
		x, _ := n.AsBigFloat().Float64()
		y := f(x)
		if math.IsNaN(y) {
			return cty.NilVal, errs.New(errs.ErrCodeInvalidValue, "transform %s: %s yields NaN", name, n.AsBigFloat().Text('g', -1))
		}
		return cty.NumberFloatVal(y), nil
	})
}
