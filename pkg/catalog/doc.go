// Package catalog enumerates the primitive operations a composite graph can
// be built from, together with the typed properties each operation exposes.
//
// # Overview
//
// The catalog is a closed set of [Kind] values. Each kind maps to one host
// operation name ("gegl:median-blur", "gegl:cell-noise", ...) and a
// [Descriptor] listing its auxiliary input ports and its [Property] table.
// The table is populated at package initialization and never changes, so
// every lookup is side-effect free and safe for concurrent use.
//
//	kind, err := catalog.Lookup("gegl:median-blur")
//	desc, err := catalog.Describe(kind)
//	radius, _ := desc.Property("radius") // int, default 25, range [1,80]
//
// Unknown operation names and unregistered kinds fail with
// UNKNOWN_OPERATION_KIND, which is the single place invalid kinds surface.
//
// # Property Values
//
// Property values are go-cty values: numbers for int and double
// properties, strings for enumerations, and a {r,g,b,a} object of numbers
// in [0,1] for colors ([ColorType]). [Property.Coerce] converts an incoming
// value to the property's type and applies the declared valid range under
// a [Policy]: [Clamp] pins out-of-range numbers to the nearest bound,
// [Reject] fails with VALUE_OUT_OF_RANGE.
//
// # Enumerations
//
// Enumerations are scoped per kind and property. The median blur's
// neighborhood set lives in the "median-blur.neighborhood" namespace; a
// value may be given bare ("circle") or qualified
// ("median-blur.neighborhood:circle"), and a value qualified with another
// namespace is rejected. Two kinds can therefore reuse the same value name
// without colliding.
package catalog
