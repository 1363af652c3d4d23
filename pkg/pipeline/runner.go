package pipeline

import (
	"context"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/metaop/pkg/blueprint"
	"github.com/matzehuels/metaop/pkg/cache"
	"github.com/matzehuels/metaop/pkg/composite"
	"github.com/matzehuels/metaop/pkg/dag"
	errs "github.com/matzehuels/metaop/pkg/errors"
	"github.com/matzehuels/metaop/pkg/graph"
	"github.com/matzehuels/metaop/pkg/observability"
)

// Runner executes the pipeline with caching. It holds no per-run state and
// is safe for concurrent use.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner returns a runner. A nil cache disables caching, a nil keyer
// selects the default keyer and a nil logger selects log.Default().
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Execute runs load → attach → render.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	loadStart := time.Now()
	v, err := Load(opts)
	if err != nil {
		return nil, err
	}
	result := &Result{Variant: v}
	result.Stats.LoadTime = time.Since(loadStart)
	return r.execute(ctx, result, opts)
}

// ExecuteVariant runs attach → render for an already loaded variant.
func (r *Runner) ExecuteVariant(ctx context.Context, v blueprint.Variant, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return r.execute(ctx, &Result{Variant: v}, opts)
}

func (r *Runner) execute(ctx context.Context, result *Result, opts Options) (*Result, error) {
	attachStart := time.Now()
	c, err := r.Attach(ctx, result.Variant, opts)
	if err != nil {
		return nil, err
	}
	g := c.Graph()
	result.Composite, result.Graph = c, g
	result.Stats.AttachTime = time.Since(attachStart)
	result.Stats.NodeCount = g.NodeCount()
	result.Stats.EdgeCount = g.EdgeCount()
	result.Stats.ParamCount = len(c.Params())

	fp, err := graph.Fingerprint(g)
	if err != nil {
		return nil, err
	}
	result.Fingerprint = fp

	opts.Logger.Info("attached composite",
		"name", result.Variant.Name(),
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"params", result.Stats.ParamCount)

	renderStart := time.Now()
	artifacts, hits, err := r.RenderWithCacheInfo(ctx, g, fp, opts)
	if err != nil {
		return nil, err
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo = CacheInfo{Hits: hits, RenderHit: len(hits) == len(opts.Formats)}

	opts.Logger.Debug("rendered outputs",
		"name", result.Variant.Name(),
		"formats", opts.Formats,
		"cached", hits,
		"duration", result.Stats.RenderTime)
	return result, nil
}

// Attach assembles a composite for v and applies opts.Values.
func (r *Runner) Attach(ctx context.Context, v blueprint.Variant, opts Options) (*composite.Composite, error) {
	r.applyLogger(&opts)
	c, err := composite.FromVariant(ctx, v,
		composite.WithLogger(opts.Logger),
		composite.WithRangePolicy(opts.Policy))
	if err != nil {
		return nil, err
	}
	if len(opts.Values) > 0 {
		if err := c.ApplyPreset(opts.Values); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RenderWithCacheInfo renders g, serving each format from the cache when
// possible, and returns the formats that were cache hits.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, g *dag.Graph, fingerprint string, opts Options) (map[string][]byte, []string, error) {
	start := time.Now()
	observability.Render().OnRenderStart(ctx, g.Name(), opts.Formats)

	artifacts := make(map[string][]byte, len(opts.Formats))
	var hits, missing []string
	for _, format := range opts.Formats {
		key := r.Keyer.ArtifactKey(fingerprint, opts.ArtifactKeyOpts(format))
		if !opts.Refresh {
			if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
				observability.Cache().OnCacheHit(ctx, format)
				artifacts[format] = data
				hits = append(hits, format)
				continue
			}
			observability.Cache().OnCacheMiss(ctx, format)
		}
		missing = append(missing, format)
	}

	var err error
	if len(missing) > 0 {
		sub := opts
		sub.Formats = missing
		var rendered map[string][]byte
		if rendered, err = Render(ctx, g, sub); err == nil {
			for format, data := range rendered {
				artifacts[format] = data
				key := r.Keyer.ArtifactKey(fingerprint, opts.ArtifactKeyOpts(format))
				if serr := r.Cache.Set(ctx, key, data, cache.TTLArtifact); serr != nil {
					opts.Logger.Warn("cache write failed", "format", format, "err", serr)
					continue
				}
				observability.Cache().OnCacheSet(ctx, format, len(data))
			}
		}
	}

	observability.Render().OnRenderComplete(ctx, g.Name(), opts.Formats, time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}
	return artifacts, hits, nil
}

// ExecuteAll runs the pipeline for several variants concurrently, at most
// DefaultConcurrency at a time. Results are in input order. The first
// failure cancels the remaining runs.
func (r *Runner) ExecuteAll(ctx context.Context, variants []blueprint.Variant, opts Options) ([]*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	names := make([]string, len(variants))
	for i, v := range variants {
		names[i] = v.Name()
	}
	for i, name := range names {
		if slices.Contains(names[:i], name) {
			return nil, errs.New(errs.ErrCodeInvalidInput, "variant %q listed twice", name)
		}
	}

	results := make([]*Result, len(variants))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(DefaultConcurrency)
	for i, v := range variants {
		eg.Go(func() error {
			res, err := r.execute(egCtx, &Result{Variant: v}, opts)
			if err != nil {
				return errs.Wrap(errs.GetCode(err), err, "variant %q", v.Name())
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
