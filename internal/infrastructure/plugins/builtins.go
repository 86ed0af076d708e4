package plugins

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentgate-dev/agentgate/internal/application/ports"
)

// Ensure interface compliance.
var (
	_ ports.HandlerLoader = (*Registry)(nil)
	_ ports.CrashGuard    = (*Registry)(nil)
)

// builtinHandler is the in-process handler for first-party plugins.
// Builtins carry no external code, so the handler only routes actions
// to callbacks wired at startup.
type builtinHandler struct {
	pluginID string
	actions  map[string]func(ctx context.Context, payload map[string]any) (map[string]any, error)
	mu       sync.RWMutex
}

func (h *builtinHandler) Invoke(ctx context.Context, action string, payload map[string]any) (map[string]any, error) {
	h.mu.RLock()
	fn, ok := h.actions[action]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("plugin %s has no action %q", h.pluginID, action)
	}
	return fn(ctx, payload)
}

// BuiltinFactory returns a Factory for a first-party plugin with a
// fixed action table.
func BuiltinFactory(pluginID string, actions map[string]func(ctx context.Context, payload map[string]any) (map[string]any, error)) Factory {
	return func(ctx context.Context) (Handler, error) {
		if actions == nil {
			actions = make(map[string]func(ctx context.Context, payload map[string]any) (map[string]any, error))
		}
		return &builtinHandler{pluginID: pluginID, actions: actions}, nil
	}
}

// RegisterBuiltins registers factories for the first-party plugin set.
// Action tables are supplied by the caller so the registry stays free
// of wiring concerns.
func RegisterBuiltins(r *Registry, tables map[string]map[string]func(ctx context.Context, payload map[string]any) (map[string]any, error)) {
	for pluginID, actions := range tables {
		r.Register(pluginID, BuiltinFactory(pluginID, actions))
	}
}
