// Package composite exposes an assembled effect graph through a small set of
// named public parameters.
//
// A [Composite] is created unattached and attached exactly once:
//
//	c := composite.New(composite.WithRangePolicy(catalog.Reject))
//	if err := c.Attach(ctx, v.Blueprint, v.Redirects); err != nil { ... }
//	err := c.SetParameter("blurRadius", 25)
//
// Attach runs the assembler and then binds the redirect table against the
// finished graph, so binding errors always refer to real nodes. The
// lifecycle is Unattached, Assembling, then Attached or Failed. Both final
// states are terminal; rebuilding with a different blueprint needs a new
// Composite.
//
// After attachment the topology never changes and [Composite.Graph] may be
// walked from any number of goroutines. Parameter writes are serialized per
// composite; writes to different composites never interfere.
package composite
