package cli

import (
	"context"
	"maps"

	"github.com/spf13/cobra"
	"github.com/zclconf/go-cty/cty"

	errs "github.com/matzehuels/metaop/pkg/errors"
	"github.com/matzehuels/metaop/pkg/preset"
)

// setOpts holds the flags of the set command.
type setOpts struct {
	src    sourceOpts
	preset string // preset to start from
	save   string // preset to save the resulting values to
}

// setCommand assembles a composite, applies parameter values and prints
// the resulting parameters.
func (c *CLI) setCommand() *cobra.Command {
	var opts setOpts

	cmd := &cobra.Command{
		Use:   "set [name=value ...]",
		Short: "Set public parameters and print the resulting values",
		Long: `Set assembles a composite, applies an optional preset and then the given
assignments as one update, and prints every public parameter. Values are
converted to the bound property's type: numbers, colors ("#ff8800",
"white") or enumeration values ("circle").`,
		Example: `  metaop set blurRadius=40 shape=diamond
  metaop set --variant bokeh-streak streakAngle=45 --save diagonal
  metaop set --preset diagonal opacity=0.9`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSet(cmd.Context(), opts, args)
		},
	}

	opts.src.register(cmd)
	cmd.Flags().StringVar(&opts.preset, "preset", "", "start from a saved preset")
	cmd.Flags().StringVar(&opts.save, "save", "", "save the applied values as a preset")

	return cmd
}

func (c *CLI) runSet(ctx context.Context, opts setOpts, args []string) error {
	assignments, err := parseAssignments(args)
	if err != nil {
		return err
	}

	var store preset.Store
	if opts.preset != "" || opts.save != "" {
		if store, err = c.openPresets(ctx); err != nil {
			return err
		}
		defer store.Close()
	}

	values := make(map[string]cty.Value)
	if opts.preset != "" {
		p, err := store.Get(ctx, opts.preset)
		if err != nil {
			return err
		}
		if err := usePresetVariant(&opts.src, p); err != nil {
			return err
		}
		maps.Copy(values, p.CtyValues())
		loggerFromContext(ctx).Debug("loaded preset", "name", p.Name, "params", len(p.Values))
	}
	maps.Copy(values, assignments)

	comp, err := c.attach(ctx, opts.src, values)
	if err != nil {
		return err
	}
	printTitle("%s", comp.Name())
	printParams(comp)

	if opts.save != "" {
		p, err := preset.New(opts.save, comp.Name(), values)
		if err != nil {
			return err
		}
		if err := store.Save(ctx, p); err != nil {
			return err
		}
		printNewline()
		printSuccess("Saved preset %s (%d values)", p.Name, len(p.Values))
	}
	return nil
}

// usePresetVariant selects the preset's variant unless a source was given
// explicitly. An explicit variant must match the preset's.
func usePresetVariant(src *sourceOpts, p *preset.Preset) error {
	switch {
	case p.Variant == "" || src.file != "":
		return nil
	case src.variant == "":
		src.variant = p.Variant
		return nil
	case src.variant != p.Variant:
		return errs.New(errs.ErrCodeInvalidInput, "preset %q belongs to variant %q, not %q", p.Name, p.Variant, src.variant)
	}
	return nil
}
