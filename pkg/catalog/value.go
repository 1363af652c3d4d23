package catalog

import (
	"fmt"
	"image/color"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
	"golang.org/x/image/colornames"

	errs "github.com/matzehuels/metaop/pkg/errors"
)

// PropertyType is the value type of a property.
type PropertyType int

const (
	TypeInt PropertyType = iota
	TypeDouble
	TypeColor
	TypeEnum
)

// String returns the lowercase type name.
func (t PropertyType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeDouble:
		return "double"
	case TypeColor:
		return "color"
	case TypeEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// ColorType is the cty type of color values: RGBA components in [0,1].
var ColorType = cty.Object(map[string]cty.Type{
	"r": cty.Number,
	"g": cty.Number,
	"b": cty.Number,
	"a": cty.Number,
})

var colorComponents = []string{"r", "g", "b", "a"}

// Range is an inclusive numeric interval.
type Range struct {
	Min, Max float64
}

// Contains reports whether x lies within the range.
func (r Range) Contains(x float64) bool { return x >= r.Min && x <= r.Max }

// Clamp pins x to the range.
func (r Range) Clamp(x float64) float64 { return math.Min(math.Max(x, r.Min), r.Max) }

// String formats the range as "[min,max]".
func (r Range) String() string {
	return "[" + strconv.FormatFloat(r.Min, 'g', -1, 64) + "," + strconv.FormatFloat(r.Max, 'g', -1, 64) + "]"
}

// Enum is a namespaced set of enumeration values.
type Enum struct {
	Namespace string
	Values    []string
}

// Has reports whether v is a member of the set.
func (e *Enum) Has(v string) bool { return slices.Contains(e.Values, v) }

// Qualify returns v prefixed with the enum's namespace.
func (e *Enum) Qualify(v string) string { return e.Namespace + ":" + v }

// resolve strips the enum's own namespace from v. A value qualified with a
// different namespace is reported as not found.
func (e *Enum) resolve(v string) (string, bool) {
	if ns, bare, ok := strings.Cut(v, ":"); ok {
		if ns != e.Namespace {
			return "", false
		}
		v = bare
	}
	return v, e.Has(v)
}

// Policy selects what happens to numeric values outside a property's range.
type Policy int

const (
	// Clamp pins out-of-range values to the nearest bound.
	Clamp Policy = iota
	// Reject fails with VALUE_OUT_OF_RANGE.
	Reject
)

// String returns "clamp" or "reject".
func (p Policy) String() string {
	if p == Reject {
		return "reject"
	}
	return "clamp"
}

// ParsePolicy parses "clamp" or "reject". An empty string selects Clamp.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "clamp":
		return Clamp, nil
	case "reject":
		return Reject, nil
	default:
		return Clamp, errs.New(errs.ErrCodeInvalidInput, "invalid range policy %q (want clamp or reject)", s)
	}
}

// Property describes one settable property of an operation kind.
type Property struct {
	Name        string
	Type        PropertyType
	Default     cty.Value
	Range       *Range // Valid range for numbers and color components; nil if unbounded
	Enum        *Enum  // Value set for TypeEnum
	Description string
}

// Coerce converts v to the property's type and applies its valid range
// under policy. Numeric strings are converted; non-integral values for int
// properties and values outside an enumeration fail with INVALID_VALUE
// regardless of policy.
func (p Property) Coerce(v cty.Value, policy Policy) (cty.Value, error) {
	if v.IsNull() || !v.IsWhollyKnown() {
		return cty.NilVal, errs.New(errs.ErrCodeInvalidValue, "%s: value must be known and non-null", p.Name)
	}
	switch p.Type {
	case TypeInt, TypeDouble:
		return p.coerceNumber(v, policy)
	case TypeEnum:
		return p.coerceEnum(v)
	case TypeColor:
		return p.coerceColor(v, policy)
	default:
		return cty.NilVal, errs.New(errs.ErrCodeInternal, "%s: unsupported property type %v", p.Name, p.Type)
	}
}

func (p Property) coerceNumber(v cty.Value, policy Policy) (cty.Value, error) {
	n, err := convert.Convert(v, cty.Number)
	if err != nil {
		return cty.NilVal, errs.Wrap(errs.ErrCodeInvalidValue, err, "%s: want %s", p.Name, p.Type)
	}
	bf := n.AsBigFloat()
	if p.Type == TypeInt && !bf.IsInt() {
		return cty.NilVal, errs.New(errs.ErrCodeInvalidValue, "%s: %s is not an integer", p.Name, bf.Text('g', -1))
	}
	f, _ := bf.Float64()
	if f, err = p.applyRange(f, policy); err != nil {
		return cty.NilVal, err
	}
	if p.Type == TypeInt {
		return cty.NumberIntVal(int64(f)), nil
	}
	return cty.NumberFloatVal(f), nil
}

func (p Property) applyRange(f float64, policy Policy) (float64, error) {
	if p.Range == nil || p.Range.Contains(f) {
		return f, nil
	}
	if policy == Reject {
		return 0, errs.New(errs.ErrCodeValueOutOfRange, "%s: %s outside valid range %s",
			p.Name, strconv.FormatFloat(f, 'g', -1, 64), p.Range)
	}
	return p.Range.Clamp(f), nil
}

func (p Property) coerceEnum(v cty.Value) (cty.Value, error) {
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		return cty.NilVal, errs.Wrap(errs.ErrCodeInvalidValue, err, "%s: want enum", p.Name)
	}
	val, ok := p.Enum.resolve(s.AsString())
	if !ok {
		return cty.NilVal, errs.New(errs.ErrCodeInvalidValue, "%s: %q is not one of %s %v",
			p.Name, s.AsString(), p.Enum.Namespace, p.Enum.Values)
	}
	return cty.StringVal(val), nil
}

func (p Property) coerceColor(v cty.Value, policy Policy) (cty.Value, error) {
	if v.Type() == cty.String {
		c, err := ParseColor(v.AsString())
		if err != nil {
			return cty.NilVal, errs.Wrap(errs.ErrCodeInvalidValue, err, "%s", p.Name)
		}
		return c, nil
	}
	obj, err := convert.Convert(v, ColorType)
	if err != nil {
		return cty.NilVal, errs.Wrap(errs.ErrCodeInvalidValue, err, "%s: want color", p.Name)
	}
	out := make(map[string]cty.Value, len(colorComponents))
	for _, name := range colorComponents {
		comp := obj.GetAttr(name)
		if comp.IsNull() {
			return cty.NilVal, errs.New(errs.ErrCodeInvalidValue, "%s: color component %q is null", p.Name, name)
		}
		f, _ := comp.AsBigFloat().Float64()
		if f, err = p.applyRange(f, policy); err != nil {
			return cty.NilVal, err
		}
		out[name] = cty.NumberFloatVal(f)
	}
	return cty.ObjectVal(out), nil
}

// ParseColor parses "#rgb", "#rrggbb", "#rrggbbaa" or a CSS color name.
func ParseColor(s string) (cty.Value, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := colornames.Map[s]; ok {
		return ColorVal(c), nil
	}
	if !strings.HasPrefix(s, "#") {
		return cty.NilVal, fmt.Errorf("invalid color %q", s)
	}

	alpha := 1.0
	hex := s
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return cty.NilVal, fmt.Errorf("invalid color alpha %q: %w", s, err)
		}
		alpha = float64(a) / 255
		hex = s[:7]
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return cty.NilVal, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return rgbaVal(c.R, c.G, c.B, alpha), nil
}

// ColorVal converts a Go color to a color value with non-premultiplied
// components in [0,1].
func ColorVal(c color.Color) cty.Value {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return rgbaVal(float64(n.R)/255, float64(n.G)/255, float64(n.B)/255, float64(n.A)/255)
}

func rgbaVal(r, g, b, a float64) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"r": cty.NumberFloatVal(r),
		"g": cty.NumberFloatVal(g),
		"b": cty.NumberFloatVal(b),
		"a": cty.NumberFloatVal(a),
	})
}

// ToColor converts a color value back to a Go color.
func ToColor(v cty.Value) (color.NRGBA, error) {
	obj, err := convert.Convert(v, ColorType)
	if err != nil {
		return color.NRGBA{}, err
	}
	var comps [4]uint8
	for i, name := range colorComponents {
		var f float64
		if err := gocty.FromCtyValue(obj.GetAttr(name), &f); err != nil {
			return color.NRGBA{}, fmt.Errorf("color component %s: %w", name, err)
		}
		comps[i] = uint8(math.Round(math.Min(math.Max(f, 0), 1) * 255))
	}
	return color.NRGBA{R: comps[0], G: comps[1], B: comps[2], A: comps[3]}, nil
}

// GoValue converts a Go value to a cty value. cty.Value passes through,
// color.Color becomes a color value, everything else goes through gocty's
// implied type (ints and floats become numbers, strings stay strings).
// NaN fails with INVALID_VALUE.
func GoValue(v any) (cty.Value, error) {
	switch x := v.(type) {
	case nil:
		return cty.NilVal, errs.New(errs.ErrCodeInvalidValue, "value is nil")
	case cty.Value:
		return x, nil
	case color.Color:
		return ColorVal(x), nil
	case float64:
		if math.IsNaN(x) {
			return cty.NilVal, errs.New(errs.ErrCodeInvalidValue, "value is NaN")
		}
	case float32:
		if math.IsNaN(float64(x)) {
			return cty.NilVal, errs.New(errs.ErrCodeInvalidValue, "value is NaN")
		}
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, errs.Wrap(errs.ErrCodeInvalidValue, err, "unsupported value %T", v)
	}
	out, err := gocty.ToCtyValue(v, ty)
	if err != nil {
		return cty.NilVal, errs.Wrap(errs.ErrCodeInvalidValue, err, "convert %T", v)
	}
	return out, nil
}

// Float returns a number value as float64.
func Float(v cty.Value) (float64, error) {
	var f float64
	if err := gocty.FromCtyValue(v, &f); err != nil {
		return 0, err
	}
	return f, nil
}

// Int returns an integral number value as int64.
func Int(v cty.Value) (int64, error) {
	var i int64
	if err := gocty.FromCtyValue(v, &i); err != nil {
		return 0, err
	}
	return i, nil
}

// Format renders a property value for display: numbers in shortest form,
// enums as their bare value, colors as "#rrggbbaa".
func Format(v cty.Value) string {
	switch {
	case v.IsNull():
		return "null"
	case !v.IsWhollyKnown():
		return "(unknown)"
	case v.Type() == cty.Number:
		return v.AsBigFloat().Text('g', 10)
	case v.Type() == cty.String:
		return v.AsString()
	case v.Type().IsObjectType():
		if c, err := ToColor(v); err == nil {
			return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
		}
	}
	return v.GoString()
}
