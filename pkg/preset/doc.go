// Package preset persists named sets of public parameter values.
//
// A [Preset] belongs to one variant and maps parameter names to values in
// their display form. Three [Store] backends are provided:
//   - [FileStore]: one TOML file per preset, for the CLI
//   - [RedisStore]: JSON strings under the "metaop:preset:" prefix
//   - [MongoStore]: documents keyed by preset name
//
// [Open] picks a backend from a [Config]. Applying a preset goes through
// the composite, so every value is coerced and range-checked exactly like
// a single parameter write:
//
//	p, err := store.Get(ctx, "dreamy")
//	err = c.ApplyPreset(p.CtyValues())
package preset
