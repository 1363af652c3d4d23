package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/metaop/pkg/catalog"
	"github.com/matzehuels/metaop/pkg/dag"
	errs "github.com/matzehuels/metaop/pkg/errors"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds each node's current property values to its label.
	Detailed bool
	// Rankdir is the Graphviz layout direction: LR (default), TB, RL or BT.
	Rankdir string
}

// ValidRankdirs lists the accepted layout directions.
var ValidRankdirs = []string{"LR", "TB", "RL", "BT"}

// Validate checks the options and fills in defaults.
func (o *Options) Validate() error {
	if o.Rankdir == "" {
		o.Rankdir = "LR"
	}
	if !slices.Contains(ValidRankdirs, o.Rankdir) {
		return errs.New(errs.ErrCodeInvalidInput, "invalid rankdir %q (want one of %v)", o.Rankdir, ValidRankdirs)
	}
	return nil
}

// ToDOT converts an assembled graph to Graphviz DOT. Main-chain edges are
// bold, side-chain edges plain and auxiliary edges dashed with the target
// port as head label. Proxies are drawn as ellipses, the repair stage with
// a dashed outline. Output is deterministic for a given graph.
func ToDOT(g *dag.Graph, opts Options) string {
	if opts.Rankdir == "" {
		opts.Rankdir = "LR"
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %q {\n", g.Name())
	fmt.Fprintf(&buf, "  rankdir=%s;\n", opts.Rankdir)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\", fontsize=14];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		label := fmtLabel(g, n, opts.Detailed)
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(fmtAttrs(n, label), ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.From, e.To, strings.Join(edgeAttrs(e), ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(g *dag.Graph, n dag.Node, detailed bool) string {
	if n.IsProxy() {
		return n.ID
	}
	lines := []string{n.ID, n.Kind.String()}
	if detailed {
		props := g.Properties(n.ID)
		for _, k := range slices.Sorted(maps.Keys(props)) {
			lines = append(lines, fmt.Sprintf("%s: %s", k, catalog.Format(props[k])))
		}
	}
	return strings.Join(lines, "\n")
}

func fmtAttrs(n dag.Node, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch n.Role {
	case dag.RoleProxy:
		attrs = append(attrs, "shape=ellipse", "fillcolor=lightgrey")
	case dag.RoleRepair:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey", "fontcolor=black")
	}
	return attrs
}

func edgeAttrs(e dag.Edge) []string {
	switch e.Kind {
	case dag.EdgeAux:
		return []string{"style=dashed", fmt.Sprintf("headlabel=%q", e.Port)}
	case dag.EdgeBranch:
		return []string{"color=grey40"}
	default:
		return []string{"penwidth=2"}
	}
}

// RenderSVG lays out a DOT graph with Graphviz and returns SVG bytes with a
// normalized viewBox.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	data, err := render(ctx, dot, graphviz.SVG)
	if err != nil {
		return nil, err
	}
	return normalizeViewBox(data), nil
}

// RenderPNG lays out a DOT graph with Graphviz and returns PNG bytes.
func RenderPNG(ctx context.Context, dot string) ([]byte, error) {
	return render(ctx, dot, graphviz.PNG)
}

func render(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "render %s", format)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's <svg> tag with one whose viewBox
// starts at the origin and whose size matches it.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
