package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/zclconf/go-cty/cty"

	"github.com/matzehuels/metaop/pkg/blueprint"
	"github.com/matzehuels/metaop/pkg/buildinfo"
	"github.com/matzehuels/metaop/pkg/cache"
	"github.com/matzehuels/metaop/pkg/catalog"
	errs "github.com/matzehuels/metaop/pkg/errors"
	"github.com/matzehuels/metaop/pkg/pipeline"
	"github.com/matzehuels/metaop/pkg/preset"
)

// appName is the application name used for directories and display.
const appName = "metaop"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config Config

	configPath string
	verbose    bool
}

// New creates a CLI whose logger writes to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "metaop assembles composite image effects from primitive operations",
		Long: `metaop assembles composite effects (bokeh, bokeh-repair, bokeh-streak or
your own HCL blueprints) into filter graphs, exposes their public parameters
and renders the assembled graphs.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/metaop/config.toml)")

	root.AddCommand(c.catalogCommand())
	root.AddCommand(c.variantsCommand())
	root.AddCommand(c.assembleCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.setCommand())
	root.AddCommand(c.presetCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads the config, applies the log level and attaches the logger
// to the command context.
func (c *CLI) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}
	c.Config = cfg

	level, _ := cfg.logLevel()
	if c.verbose {
		level = log.DebugLevel
	}
	c.SetLogLevel(level)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(withLogger(ctx, c.Logger))
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner whose cache keys are scoped by the
// build version.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	ch, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	keyer := cache.NewScopedKeyer(nil, buildinfo.CacheScope()+":")
	return pipeline.NewRunner(ch, keyer, c.Logger), nil
}

func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	cfg := c.Config.Cache
	if noCache || cfg.Disabled {
		return cache.NewNullCache(), nil
	}
	if cfg.Backend == cacheBackendRedis {
		return cache.NewRedisCache(ctx, cache.RedisConfig{Addr: cfg.RedisAddr})
	}
	dir := cfg.Dir
	if dir == "" {
		d, err := cacheDir()
		if err != nil {
			c.Logger.Warn("cache disabled", "err", err)
			return cache.NewNullCache(), nil
		}
		dir = d
	}
	return cache.NewFileCache(dir)
}

// openPresets opens the configured preset store.
func (c *CLI) openPresets(ctx context.Context) (preset.Store, error) {
	return preset.Open(ctx, c.Config.presetConfig())
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using the XDG standard
// (~/.cache/metaop/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// sourceOpts selects the composite a command works on.
type sourceOpts struct {
	variant   string
	file      string
	composite string
	policy    string
}

func (s *sourceOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.variant, "variant", "", "built-in variant: "+strings.Join(blueprint.BuiltinNames(), ", "))
	cmd.Flags().StringVar(&s.file, "file", "", "HCL blueprint or serialized JSON graph")
	cmd.Flags().StringVar(&s.composite, "composite", "", "composite to pick from --file (default: the first)")
	cmd.Flags().StringVar(&s.policy, "policy", "", "out-of-range values: clamp (default) or reject")

	_ = cmd.RegisterFlagCompletionFunc("variant", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return blueprint.BuiltinNames(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("policy", cobra.FixedCompletions([]string{"clamp", "reject"}, cobra.ShellCompDirectiveNoFileComp))
}

// pipelineOptions merges the source flags with the config.
func (c *CLI) pipelineOptions(ctx context.Context, s sourceOpts) (pipeline.Options, error) {
	opts := pipeline.Options{
		Variant:   s.variant,
		File:      s.file,
		Composite: s.composite,
		Logger:    loggerFromContext(ctx),
	}
	if opts.Variant == "" && opts.File == "" {
		opts.Variant = c.Config.Variant
	}

	policyName := s.policy
	if policyName == "" {
		policyName = c.Config.RangePolicy
	}
	policy, err := catalog.ParsePolicy(policyName)
	if err != nil {
		return opts, err
	}
	opts.Policy = policy
	return opts, nil
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatSVG}
	}
	var formats []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			formats = append(formats, strings.ToLower(f))
		}
	}
	return formats
}

// parseAssignments parses "name=value" arguments. Values stay strings;
// property coercion converts them to the bound property's type.
func parseAssignments(args []string) (map[string]cty.Value, error) {
	values := make(map[string]cty.Value, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, errs.New(errs.ErrCodeInvalidInput, "invalid assignment %q (want name=value)", arg)
		}
		if _, dup := values[name]; dup {
			return nil, errs.New(errs.ErrCodeInvalidInput, "parameter %q assigned twice", name)
		}
		values[name] = cty.StringVal(value)
	}
	return values, nil
}
