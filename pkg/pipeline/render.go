package pipeline

import (
	"context"

	"github.com/matzehuels/metaop/pkg/dag"
	errs "github.com/matzehuels/metaop/pkg/errors"
	"github.com/matzehuels/metaop/pkg/graph"
	"github.com/matzehuels/metaop/pkg/render/nodelink"
)

// Render produces one artifact per requested format. The DOT source is
// built once; svg and png each run their own Graphviz layout over it.
func Render(ctx context.Context, g *dag.Graph, opts Options) (map[string][]byte, error) {
	dot := nodelink.ToDOT(g, opts.NodelinkOptions())
	artifacts := make(map[string][]byte, len(opts.Formats))

	for _, format := range opts.Formats {
		var data []byte
		var err error

		switch format {
		case FormatDOT:
			data = []byte(dot)
		case FormatSVG:
			data, err = nodelink.RenderSVG(ctx, dot)
		case FormatPNG:
			data, err = nodelink.RenderPNG(ctx, dot)
		case FormatJSON:
			data, err = graph.MarshalGraph(g)
		default:
			return nil, errs.New(errs.ErrCodeInvalidFormat, "unsupported format %q", format)
		}

		if err != nil {
			return nil, errs.Wrap(errs.GetCode(err), err, "render %s", format)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}
