// Package blueprint describes composite graphs statically: which nodes to
// instantiate, in what main-chain order, which side chains hang off the
// Input proxy, which auxiliary ports they feed, and which public parameters
// redirect to which node properties.
//
// # Variants
//
// A [Variant] pairs a [Blueprint] with its [Redirect] table. Three variants
// are built in ([Builtin], [Builtins]):
//
//   - bokeh: color → divide → median → color-to-alpha → multiply → opacity →
//     lens blur, with a cell-noise field on divide.aux and a color overlay on
//     multiply.aux
//   - bokeh-repair: the same chain ending at opacity, followed by the sealed
//     repair stage, and without the soften parameter
//   - bokeh-streak: the soften stage is a directional motion blur followed by
//     a crop to the input extent
//
// Variants are independent configurations. A parameter name such as
// "softenRadius" may target a different node in each.
//
// # Blueprint Files
//
// [Parse] and [LoadFile] read HCL files holding one or more composite blocks.
// Node properties are HCL expressions and arrive as go-cty values, so
// numbers, strings and color names are checked against the catalog only
// when the blueprint is assembled.
package blueprint
