package assemble_test

import (
	"context"
	"fmt"

	"github.com/matzehuels/metaop/pkg/assemble"
	"github.com/matzehuels/metaop/pkg/blueprint"
	errs "github.com/matzehuels/metaop/pkg/errors"
)

func ExampleAssemble() {
	bp := blueprint.Blueprint{
		Name: "soft-mask",
		Nodes: []blueprint.NodeSpec{
			{ID: "median", Op: "gegl:median-blur"},
			{ID: "mask", Op: "gegl:opacity"},
			{ID: "noise", Op: "gegl:cell-noise"},
		},
		Chain:    []string{"median", "mask"},
		Branches: [][]string{{"noise"}},
		Aux:      []blueprint.AuxLink{{Source: "noise", Target: "mask", Port: "aux"}},
	}
	g, err := assemble.Assemble(context.Background(), bp, assemble.Options{})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(g.MainChain())
	// Output:
	// [input median mask output]
}

func ExampleAssemble_unknownKind() {
	bp := blueprint.Blueprint{
		Name:  "broken",
		Nodes: []blueprint.NodeSpec{{ID: "x", Op: "gegl:nonexistent"}},
		Chain: []string{"x"},
	}
	_, err := assemble.Assemble(context.Background(), bp, assemble.Options{})
	fmt.Println(errs.GetCode(err))
	// Output:
	// UNKNOWN_OPERATION_KIND
}
