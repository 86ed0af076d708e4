// Package plugins hosts the in-process plugin handler registry.
//
// Handlers execute in-process with no kernel-level isolation; the trust
// mode and disclosure machinery upstream are the only gates.
package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Handler is the callable surface of a loaded plugin.
type Handler interface {
	// Invoke dispatches one tool call into the plugin.
	Invoke(ctx context.Context, action string, payload map[string]any) (map[string]any, error)
}

// Factory constructs a plugin handler. Factories are registered at
// startup for builtins and at install time for third-party plugins.
type Factory func(ctx context.Context) (Handler, error)

// Registry implements ports.HandlerLoader and ports.CrashGuard. Loads
// are deduplicated: concurrent hot-load attempts for one plugin share a
// single factory invocation.
type Registry struct {
	factories map[string]Factory
	loaded    map[string]Handler
	crashes   map[string]int
	mu        sync.RWMutex
	group     singleflight.Group
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factories: make(map[string]Factory),
		loaded:    make(map[string]Handler),
		crashes:   make(map[string]int),
		logger:    logger,
	}
}

// Register makes a handler factory available for a plugin ID.
func (r *Registry) Register(pluginID string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[pluginID] = factory
}

// Load hot-loads the plugin's handler. Idempotent: an already-loaded
// handler is kept. A missing factory or a factory failure is an error
// for the caller to log; persisted plugin state is unaffected and a
// process restart may retry.
func (r *Registry) Load(ctx context.Context, pluginID string) error {
	_, err, _ := r.group.Do(pluginID, func() (any, error) {
		r.mu.RLock()
		_, already := r.loaded[pluginID]
		factory, ok := r.factories[pluginID]
		r.mu.RUnlock()

		if already {
			return nil, nil
		}
		if !ok {
			return nil, fmt.Errorf("no handler factory registered for plugin %s", pluginID)
		}

		handler, err := factory(ctx)
		if err != nil {
			return nil, fmt.Errorf("handler factory for plugin %s failed: %w", pluginID, err)
		}

		r.mu.Lock()
		r.loaded[pluginID] = handler
		r.mu.Unlock()
		r.logger.Debug("plugin handler loaded", "plugin", pluginID)
		return nil, nil
	})
	return err
}

// Handler returns the loaded handler for a plugin, if any.
func (r *Registry) Handler(pluginID string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.loaded[pluginID]
	return h, ok
}

// Unload drops a loaded handler (used on disable).
func (r *Registry) Unload(pluginID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.loaded, pluginID)
}

// Reset clears the crash counter for a plugin. Called on enable so a
// previously crash-guarded plugin gets a fresh budget.
func (r *Registry) Reset(pluginID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.crashes[pluginID] = 0
}

// RecordCrash increments and returns the plugin's crash counter.
func (r *Registry) RecordCrash(pluginID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.crashes[pluginID]++
	return r.crashes[pluginID]
}
