// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup to
// receive events about graph assembly, parameter writes, rendering and cache
// operations.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, so no package in the
// module imports a metrics or tracing backend.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetAssemblyHooks(&myAssemblyHooks{})
//	    observability.SetParameterHooks(&myParameterHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Assembly().OnAssembleStart(ctx, name, nodeCount)
//	// ... assemble ...
//	observability.Assembly().OnAssembleComplete(ctx, name, nodes, edges, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Assembly Hooks
// =============================================================================

// AssemblyHooks receives events from the graph assembler.
type AssemblyHooks interface {
	OnAssembleStart(ctx context.Context, blueprint string, nodeCount int)
	OnAssembleComplete(ctx context.Context, blueprint string, nodes, edges int, duration time.Duration, err error)
}

// =============================================================================
// Parameter Hooks
// =============================================================================

// ParameterHooks receives events from redirect tables. Binding and
// forwarding never block, so these events carry no context.
type ParameterHooks interface {
	// OnBind records a bind attempt for a public parameter.
	OnBind(param string, targets int, err error)

	// OnForward records a parameter write forwarded to its targets.
	OnForward(param string, err error)
}

// =============================================================================
// Render Hooks
// =============================================================================

// RenderHooks receives events from diagram rendering.
type RenderHooks interface {
	OnRenderStart(ctx context.Context, blueprint string, formats []string)
	OnRenderComplete(ctx context.Context, blueprint string, formats []string, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopAssemblyHooks is a no-op implementation of AssemblyHooks.
type NoopAssemblyHooks struct{}

func (NoopAssemblyHooks) OnAssembleStart(context.Context, string, int) {}
func (NoopAssemblyHooks) OnAssembleComplete(context.Context, string, int, int, time.Duration, error) {
}

// NoopParameterHooks is a no-op implementation of ParameterHooks.
type NoopParameterHooks struct{}

func (NoopParameterHooks) OnBind(string, int, error) {}
func (NoopParameterHooks) OnForward(string, error)   {}

// NoopRenderHooks is a no-op implementation of RenderHooks.
type NoopRenderHooks struct{}

func (NoopRenderHooks) OnRenderStart(context.Context, string, []string) {}
func (NoopRenderHooks) OnRenderComplete(context.Context, string, []string, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	assemblyHooks  AssemblyHooks  = NoopAssemblyHooks{}
	parameterHooks ParameterHooks = NoopParameterHooks{}
	renderHooks    RenderHooks    = NoopRenderHooks{}
	cacheHooks     CacheHooks     = NoopCacheHooks{}
	hooksMu        sync.RWMutex
)

// SetAssemblyHooks registers custom assembly hooks.
// This should be called once at application startup before any assembly.
func SetAssemblyHooks(h AssemblyHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		assemblyHooks = h
	}
}

// SetParameterHooks registers custom parameter hooks.
// This should be called once at application startup before any composite
// is attached.
func SetParameterHooks(h ParameterHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		parameterHooks = h
	}
}

// SetRenderHooks registers custom render hooks.
func SetRenderHooks(h RenderHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		renderHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Assembly returns the registered assembly hooks.
func Assembly() AssemblyHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return assemblyHooks
}

// Parameter returns the registered parameter hooks.
func Parameter() ParameterHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return parameterHooks
}

// Render returns the registered render hooks.
func Render() RenderHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return renderHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	assemblyHooks = NoopAssemblyHooks{}
	parameterHooks = NoopParameterHooks{}
	renderHooks = NoopRenderHooks{}
	cacheHooks = NoopCacheHooks{}
}
