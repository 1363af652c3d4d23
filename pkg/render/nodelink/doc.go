// Package nodelink draws assembled filter graphs as node-link diagrams.
//
// [ToDOT] produces Graphviz DOT source; [RenderSVG] and [RenderPNG] lay it
// out in-process with go-graphviz, so no Graphviz installation is needed:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// The main chain runs left to right by default. Side chains fed from the
// input proxy are drawn in grey and auxiliary links are dashed, labelled
// with the port they feed.
package nodelink
