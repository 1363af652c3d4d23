package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/metaop/pkg/blueprint"
	errs "github.com/matzehuels/metaop/pkg/errors"
	"github.com/matzehuels/metaop/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	src      sourceOpts
	output   string // output file (single variant and format) or base path
	formats  string // comma-separated: dot, svg, png, json
	all      bool   // every built-in variant, or every composite in --file
	detailed bool   // property values in node labels
	rankdir  string // Graphviz rank direction
	noCache  bool
	refresh  bool
}

// renderCommand renders assembled graphs.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render assembled graphs as DOT, SVG, PNG or JSON",
		Example: `  metaop render --variant bokeh -f svg,png -o bokeh
  metaop render --all -f dot
  metaop render --file effects.hcl --all --detailed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), opts)
		},
	}

	opts.src.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single variant and format) or base path")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): svg (default), dot, png, json (comma-separated)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "render every built-in variant, or every composite in --file")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show property values in node labels")
	cmd.Flags().StringVar(&opts.rankdir, "rankdir", "", "graph direction: LR (default), TB, RL, BT")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the render cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-render even if cached")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, ro renderOpts) error {
	if ro.all && ro.src.variant != "" {
		return errs.New(errs.ErrCodeInvalidInput, "--all and --variant are mutually exclusive")
	}

	opts, err := c.pipelineOptions(ctx, ro.src)
	if err != nil {
		return err
	}
	opts.Formats = parseFormats(ro.formats)
	opts.Detailed = ro.detailed
	opts.Rankdir = strings.ToUpper(ro.rankdir)
	opts.Refresh = ro.refresh
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}
	if ro.output != "" {
		if err := errs.ValidatePath(ro.output); err != nil {
			return err
		}
	}

	runner, err := c.newRunner(ctx, ro.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(opts.Logger)
	var results []*pipeline.Result
	if ro.all {
		variants, err := allVariants(ro.src.file)
		if err != nil {
			return err
		}
		if results, err = runner.ExecuteAll(ctx, variants, opts); err != nil {
			return err
		}
	} else {
		res, err := runner.Execute(ctx, opts)
		if err != nil {
			return err
		}
		results = []*pipeline.Result{res}
	}

	multi := len(results) > 1
	for _, res := range results {
		printSuccess("%s", res.Variant.Name())
		printStats(res.Stats.NodeCount, res.Stats.EdgeCount, res.Stats.ParamCount, res.CacheInfo.RenderHit)
		for _, format := range opts.Formats {
			path := outputPath(ro.output, res.Variant.Name(), format, len(opts.Formats) > 1, multi)
			if err := os.WriteFile(path, res.Artifacts[format], 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			printFile(path)
		}
	}
	prog.done(fmt.Sprintf("Rendered %d variant(s)", len(results)))
	return nil
}

// allVariants returns every composite of file, or every built-in variant.
func allVariants(file string) ([]blueprint.Variant, error) {
	if file != "" {
		return pipeline.LoadFile(file)
	}
	return blueprint.Builtins(), nil
}

// outputPath derives the file for one variant and format. A lone artifact
// goes to output as given; otherwise output is a base path that receives
// the variant name (when several variants render) and the format
// extension. An empty output uses the variant name.
func outputPath(output, variant, format string, multiFormat, multiVariant bool) string {
	if output != "" && !multiFormat && !multiVariant {
		return output
	}
	base := variant
	if output != "" {
		base = strings.TrimSuffix(output, filepath.Ext(output))
		if multiVariant {
			base += "-" + variant
		}
	}
	return base + "." + format
}
