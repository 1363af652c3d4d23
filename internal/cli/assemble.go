package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zclconf/go-cty/cty"

	"github.com/matzehuels/metaop/pkg/catalog"
	"github.com/matzehuels/metaop/pkg/composite"
	"github.com/matzehuels/metaop/pkg/dag"
	"github.com/matzehuels/metaop/pkg/graph"
	"github.com/matzehuels/metaop/pkg/pipeline"
)

// assembleCommand assembles one composite and prints its structure.
func (c *CLI) assembleCommand() *cobra.Command {
	var src sourceOpts

	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Assemble a composite and print its graph and parameters",
		Example: `  metaop assemble --variant bokeh-streak
  metaop assemble --file effects.hcl --composite vignette`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := c.attach(cmd.Context(), src, nil)
			if err != nil {
				return err
			}
			return printComposite(comp)
		},
	}
	src.register(cmd)
	return cmd
}

// attach loads the selected variant, assembles it and applies values as
// one preset.
func (c *CLI) attach(ctx context.Context, src sourceOpts, values map[string]cty.Value) (*composite.Composite, error) {
	opts, err := c.pipelineOptions(ctx, src)
	if err != nil {
		return nil, err
	}
	opts.Values = values
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	prog := newProgress(opts.Logger)
	v, err := pipeline.Load(opts)
	if err != nil {
		return nil, err
	}
	comp, err := pipeline.NewRunner(nil, nil, opts.Logger).Attach(ctx, v, opts)
	if err != nil {
		return nil, err
	}
	prog.done("Assembled " + v.Name())
	return comp, nil
}

func printComposite(comp *composite.Composite) error {
	g := comp.Graph()
	fp, err := graph.Fingerprint(g)
	if err != nil {
		return err
	}

	printTitle("%s", comp.Name())
	printStats(g.NodeCount(), g.EdgeCount(), len(comp.Params()), false)
	printNewline()

	printTitle("Main chain")
	printChain(g.MainChain())

	var aux, branches []dag.Edge
	for _, e := range g.Edges() {
		switch e.Kind {
		case dag.EdgeAux:
			aux = append(aux, e)
		case dag.EdgeBranch:
			branches = append(branches, e)
		}
	}
	if len(branches) > 0 {
		printTitle("Branches")
		for _, e := range branches {
			printChain([]string{e.From, e.To})
		}
	}
	if len(aux) > 0 {
		printTitle("Aux inputs")
		for _, e := range aux {
			printChain([]string{e.From, e.To + "." + e.Port})
		}
	}
	printNewline()

	printParams(comp)
	printNewline()
	printKeyValue("fingerprint", fp)
	return nil
}

// printParams prints each public parameter with its current value and
// targets.
func printParams(comp *composite.Composite) {
	printTitle("Parameters")
	for _, p := range comp.Params() {
		v, err := comp.Parameter(p.Name)
		value := "?"
		if err == nil {
			value = catalog.Format(v)
		}
		printKeyValue(p.Name, value)
		printDetail("%s %s", p.Type, strings.Join(p.Targets, ", "))
	}
}
