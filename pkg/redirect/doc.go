// Package redirect maps public parameter names of a composite to properties
// of its inner nodes.
//
// A [Table] is created over an assembled graph. [Table.Bind] exposes one
// inner property under a public name; [Table.BindFanOut] exposes several
// under one name. Each target may carry a [Transform] that reshapes the
// public value before it is coerced to the target property's type and
// range:
//
//	tbl := redirect.New(g, redirect.Options{Policy: catalog.Clamp})
//	tbl.Bind("blurRadius", "median", "radius", redirect.Round)
//	tbl.Forward("blurRadius", cty.NumberFloatVal(24.6)) // median.radius = 25
//
// Names are unique within a table: binding a name twice fails with
// DUPLICATE_BINDING. Proxies and the sealed repair stage cannot be bound.
//
// Forward is all-or-nothing across fan-out targets: every transformed value
// is coerced before any is written, and the batch is applied to the graph in
// one step, so concurrent readers never see a partial update.
package redirect
