package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/agentgate-dev/agentgate/internal/application/errors"
	"github.com/agentgate-dev/agentgate/internal/application/ports"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
)

// Ensure interface compliance
var (
	_ ports.PluginRepository     = (*PluginRepository)(nil)
	_ ports.DisclosureRepository = (*DisclosureRepository)(nil)
	_ ports.EventRepository      = (*EventRepository)(nil)
)

// PluginRepository is an in-memory implementation of ports.PluginRepository.
// Saves are last-write-wins point updates; concurrent enables on one
// plugin need no stronger isolation.
type PluginRepository struct {
	plugins map[string]*entities.Plugin
	mu      sync.RWMutex
}

// NewPluginRepository creates a new in-memory repository.
func NewPluginRepository() *PluginRepository {
	return &PluginRepository{plugins: make(map[string]*entities.Plugin)}
}

// Save persists a plugin (insert or overwrite).
func (r *PluginRepository) Save(_ context.Context, plugin *entities.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *plugin
	r.plugins[plugin.ID] = &copied
	return nil
}

// FindByID retrieves a plugin by ID.
func (r *PluginRepository) FindByID(_ context.Context, id string) (*entities.Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	plugin, ok := r.plugins[id]
	if !ok {
		return nil, apperrors.NewNotFound("plugin", id)
	}
	copied := *plugin
	return &copied, nil
}

// List returns all plugins sorted by ID.
func (r *PluginRepository) List(_ context.Context) ([]*entities.Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entities.Plugin, 0, len(r.plugins))
	for _, plugin := range r.plugins {
		copied := *plugin
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DisclosureRepository is an in-memory implementation of
// ports.DisclosureRepository. Rows are keyed by
// (plugin, permission, scope); Ensure never overwrites existing state.
type DisclosureRepository struct {
	rows map[string]entities.DisclosureAck
	mu   sync.RWMutex
}

// NewDisclosureRepository creates a new in-memory repository.
func NewDisclosureRepository() *DisclosureRepository {
	return &DisclosureRepository{rows: make(map[string]entities.DisclosureAck)}
}

// Ensure inserts the row if absent. An existing row — acknowledged or
// not — is left untouched.
func (r *DisclosureRepository) Ensure(_ context.Context, row entities.DisclosureAck) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := row.Key()
	if _, ok := r.rows[key]; ok {
		return nil
	}
	r.rows[key] = row
	return nil
}

// ListByPlugin returns every row for a plugin.
func (r *DisclosureRepository) ListByPlugin(_ context.Context, pluginID string) ([]entities.DisclosureAck, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entities.DisclosureAck
	for _, row := range r.rows {
		if row.PluginID == pluginID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Capability.String() < out[j].Capability.String()
	})
	return out, nil
}

// AcknowledgeAll stamps every unacknowledged row for the plugin.
func (r *DisclosureRepository) AcknowledgeAll(_ context.Context, pluginID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamped := 0
	for key, row := range r.rows {
		if row.PluginID == pluginID && !row.Acknowledged {
			row.Acknowledged = true
			row.AcknowledgedAt = &at
			r.rows[key] = row
			stamped++
		}
	}
	return stamped, nil
}

// EventRepository is an in-memory implementation of ports.EventRepository.
// The event list is append-only.
type EventRepository struct {
	events []entities.PluginEvent
	mu     sync.RWMutex
}

// NewEventRepository creates a new in-memory repository.
func NewEventRepository() *EventRepository {
	return &EventRepository{}
}

// Append adds a lifecycle event.
func (r *EventRepository) Append(_ context.Context, event entities.PluginEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// ListByPlugin returns the most recent events for a plugin, newest
// first, up to limit (0 means no limit).
func (r *EventRepository) ListByPlugin(_ context.Context, pluginID string, limit int) ([]entities.PluginEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entities.PluginEvent
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].PluginID == pluginID {
			out = append(out, r.events[i])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
