package redirect_test

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/matzehuels/metaop/pkg/assemble"
	"github.com/matzehuels/metaop/pkg/blueprint"
	"github.com/matzehuels/metaop/pkg/catalog"
	"github.com/matzehuels/metaop/pkg/redirect"
)

func ExampleTable_Forward() {
	v, _ := blueprint.Builtin(blueprint.Bokeh)
	g, _ := assemble.Assemble(context.Background(), v.Blueprint, assemble.Options{})

	tbl := redirect.New(g, redirect.Options{Policy: catalog.Clamp})
	_ = tbl.Bind("blurRadius", "median", "radius", redirect.Round)

	_ = tbl.Forward("blurRadius", cty.NumberFloatVal(24.6))
	r, _ := g.Property("median", "radius")
	fmt.Println(catalog.Format(r))

	err := tbl.Bind("blurRadius", "noise", "seed", redirect.Identity)
	fmt.Println(err)
	// Output:
	// 25
	// DUPLICATE_BINDING: parameter "blurRadius" is already bound
}
