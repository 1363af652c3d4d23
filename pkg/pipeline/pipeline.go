// Package pipeline runs the load → attach → render sequence shared by the
// CLI commands.
//
// # Stages
//
//  1. Load: resolve a built-in variant, an HCL blueprint file, or a
//     serialized graph (.json) into a [blueprint.Variant].
//  2. Attach: assemble a [composite.Composite] and apply parameter values.
//  3. Render: produce DOT, SVG, PNG or JSON, cached by graph fingerprint.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Variant: "bokeh",
//	    Formats: []string{"svg"},
//	})
//	svg := result.Artifacts["svg"]
//
// [Runner.ExecuteAll] renders several variants concurrently.
//
// [blueprint.Variant]: github.com/matzehuels/metaop/pkg/blueprint.Variant
// [composite.Composite]: github.com/matzehuels/metaop/pkg/composite.Composite
package pipeline

import (
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zclconf/go-cty/cty"

	"github.com/matzehuels/metaop/pkg/blueprint"
	"github.com/matzehuels/metaop/pkg/cache"
	"github.com/matzehuels/metaop/pkg/catalog"
	"github.com/matzehuels/metaop/pkg/composite"
	"github.com/matzehuels/metaop/pkg/dag"
	errs "github.com/matzehuels/metaop/pkg/errors"
	"github.com/matzehuels/metaop/pkg/render/nodelink"
)

// DefaultVariant is the built-in variant used when neither a variant nor a
// file is given.
const DefaultVariant = blueprint.Bokeh

// DefaultConcurrency bounds ExecuteAll.
const DefaultConcurrency = 4

// Output formats.
const (
	FormatDOT  = "dot"
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatJSON = "json"
)

// ValidFormats lists the supported output formats.
var ValidFormats = []string{FormatDOT, FormatSVG, FormatPNG, FormatJSON}

// Options configures a pipeline run.
type Options struct {
	// Load options
	Variant   string // Built-in variant name
	File      string // .hcl blueprint file or .json serialized graph
	Composite string // Composite to select from File; the first if empty

	// Attach options
	Policy catalog.Policy
	Values map[string]cty.Value // Parameter values applied as one preset

	// Render options
	Formats  []string
	Detailed bool
	Rankdir  string
	Refresh  bool // Skip cache reads

	Logger *log.Logger `json:"-"`
}

// Result is the output of one pipeline run.
type Result struct {
	Variant     blueprint.Variant
	Composite   *composite.Composite
	Graph       *dag.Graph
	Fingerprint string
	Artifacts   map[string][]byte
	Stats       Stats
	CacheInfo   CacheInfo
}

// Stats holds timing and size information.
type Stats struct {
	NodeCount  int
	EdgeCount  int
	ParamCount int
	LoadTime   time.Duration
	AttachTime time.Duration
	RenderTime time.Duration
}

// CacheInfo reports which formats came from the cache.
type CacheInfo struct {
	RenderHit bool     // Every requested format was cached
	Hits      []string // Formats served from cache
}

// ValidateFormat checks a single format name.
func ValidateFormat(format string) error {
	if !slices.Contains(ValidFormats, format) {
		return errs.New(errs.ErrCodeInvalidFormat, "invalid format %q (must be one of: dot, svg, png, json)", format)
	}
	return nil
}

// ValidateFormats checks every format name.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAndSetDefaults checks the options and fills in defaults. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Variant != "" && o.File != "" {
		return errs.New(errs.ErrCodeInvalidInput, "variant and file are mutually exclusive")
	}
	if o.Variant == "" && o.File == "" {
		o.Variant = DefaultVariant
	}
	if o.File != "" {
		if err := errs.ValidatePath(o.File); err != nil {
			return err
		}
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	nl := o.NodelinkOptions()
	if err := nl.Validate(); err != nil {
		return err
	}
	o.Rankdir = nl.Rankdir
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// NodelinkOptions returns the diagram options.
func (o *Options) NodelinkOptions() nodelink.Options {
	return nodelink.Options{Detailed: o.Detailed, Rankdir: o.Rankdir}
}

// ArtifactKeyOpts returns the cache key options for one format.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{Format: format, Detailed: o.Detailed, Rankdir: o.Rankdir}
}
