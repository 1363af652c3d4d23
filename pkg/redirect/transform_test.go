package redirect

import (
	"math"
	"testing"

	"github.com/zclconf/go-cty/cty"

	"github.com/matzehuels/metaop/pkg/catalog"
	errs "github.com/matzehuels/metaop/pkg/errors"
)

func TestTransforms(t *testing.T) {
	tests := []struct {
		name string
		in   cty.Value
		want float64
	}{
		{"identity", cty.NumberFloatVal(2.5), 2.5},
		{"round", cty.NumberFloatVal(2.5), 3},
		{"round", cty.NumberFloatVal(-2.5), -3},
		{"round", cty.StringVal("7.2"), 7},
		{"percent", cty.NumberIntVal(45), 0.45},
		{"negate", cty.NumberIntVal(30), -30},
		{"degrees", cty.NumberFloatVal(math.Pi / 2), 90},
		{"", cty.NumberIntVal(4), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := ParseTransform(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			out, err := tr.Apply(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			got, err := catalog.Float(out)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("%s(%s) = %v, want %v", tr, catalog.Format(tt.in), got, tt.want)
			}
		})
	}
}

func TestParseTransformUnknown(t *testing.T) {
	if _, err := ParseTransform("cube"); !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Fatalf("got %v, want INVALID_INPUT", err)
	}
}

func TestFunc(t *testing.T) {
	double := Func("double", func(v cty.Value) (cty.Value, error) {
		return v.Multiply(cty.NumberIntVal(2)), nil
	})
	out, err := double.Apply(cty.NumberIntVal(21))
	if err != nil {
		t.Fatal(err)
	}
	if f, _ := catalog.Float(out); f != 42 {
		t.Errorf("double(21) = %v", f)
	}
	if double.String() != "double" || Identity.String() != "identity" {
		t.Errorf("names: %q %q", double, Identity)
	}
}

func TestNumericRejectsNaN(t *testing.T) {
	scale := numeric("scale", func(x float64) float64 { return x * 0 })
	if _, err := scale.Apply(cty.PositiveInfinity); !errs.Is(err, errs.ErrCodeInvalidValue) {
		t.Errorf("scale(+Inf) error = %v, want INVALID_VALUE", err)
	}
	if _, err := scale.Apply(cty.NumberIntVal(3)); err != nil {
		t.Errorf("scale(3): %v", err)
	}
}
