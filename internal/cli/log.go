// Package cli implements the metaop command-line interface.
//
// The CLI assembles built-in or HCL-defined composites, renders their
// graphs, sets public parameters and manages saved presets. It is built
// with cobra and logs through charmbracelet/log.
//
// # Commands
//
//   - catalog: list operation kinds or describe one kind's properties
//   - variants: list built-in composites
//   - assemble: assemble a composite and print its structure
//   - render: render graphs as DOT, SVG, PNG or JSON
//   - set: set public parameters, optionally from or into a preset
//   - preset: list, show and delete saved presets
//   - cache: manage the render cache
//
// # Configuration
//
// Defaults are read from $XDG_CONFIG_HOME/metaop/config.toml (see [Config]);
// --config names another file. Flags override configured values.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger
// travels through context.Context.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger with "HH:MM:SS.ms" timestamps that writes to
// w at the given level.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs completion of an operation with the elapsed duration.
// It is not safe for concurrent use.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time rounded to the millisecond,
// e.g. "Rendered 3 variants (12ms)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a context carrying l.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached to ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
