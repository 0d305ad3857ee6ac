// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers can register
// hooks at startup to receive events about graph mutations, read queries,
// and storage transactions.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the engine dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetEngineHooks(&myEngineHooks{})
//	    observability.SetStoreHooks(&myStoreHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Engine().OnAddEdge(ctx, child, parent, created, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Engine Hooks
// =============================================================================

// EngineHooks receives events from graph mutations and read queries.
type EngineHooks interface {
	// OnAddEdge records an edge insertion: how many link records the
	// branch/extend step wrote, how long the transaction took, and
	// whether it failed.
	OnAddEdge(ctx context.Context, child, parent int64, created int, duration time.Duration, err error)

	// OnRemoveEdge records an edge removal: the number of invalidated
	// paths and of links written during the rebuild step.
	OnRemoveEdge(ctx context.Context, child, parent int64, invalidated, rebuilt int, duration time.Duration, err error)

	// OnQuery records a read-side query ("parents", "children", "paths",
	// "hierarchy") against an entity.
	OnQuery(ctx context.Context, kind string, entity int64, duration time.Duration, err error)
}

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives events from storage backends.
type StoreHooks interface {
	// OnCommit records a committed read-write transaction.
	OnCommit(ctx context.Context, backend string, duration time.Duration)

	// OnConflict records a transaction aborted by the backend's conflict
	// detection. The whole operation is retryable.
	OnConflict(ctx context.Context, backend string)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopEngineHooks is a no-op implementation of EngineHooks.
type NoopEngineHooks struct{}

func (NoopEngineHooks) OnAddEdge(context.Context, int64, int64, int, time.Duration, error) {}
func (NoopEngineHooks) OnRemoveEdge(context.Context, int64, int64, int, int, time.Duration, error) {
}
func (NoopEngineHooks) OnQuery(context.Context, string, int64, time.Duration, error) {}

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnCommit(context.Context, string, time.Duration) {}
func (NoopStoreHooks) OnConflict(context.Context, string)              {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	engineHooks EngineHooks = NoopEngineHooks{}
	storeHooks  StoreHooks  = NoopStoreHooks{}
	hooksMu     sync.RWMutex
)

// SetEngineHooks registers custom engine hooks.
// This should be called once at application startup before any mutations.
func SetEngineHooks(h EngineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		engineHooks = h
	}
}

// SetStoreHooks registers custom store hooks.
// This should be called once at application startup before opening stores.
func SetStoreHooks(h StoreHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		storeHooks = h
	}
}

// Engine returns the registered engine hooks.
func Engine() EngineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return engineHooks
}

// Store returns the registered store hooks.
func Store() StoreHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return storeHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	engineHooks = NoopEngineHooks{}
	storeHooks = NoopStoreHooks{}
}
