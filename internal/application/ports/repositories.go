// Package ports defines interfaces for infrastructure dependencies.
// These are the abstractions the application layer depends on but does
// not implement.
package ports

import (
	"context"
	"time"

	"github.com/agentgate-dev/agentgate/internal/domain/capabilities"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
	"github.com/agentgate-dev/agentgate/internal/domain/values"
)

// CredentialRepository persists credentials and their agent assignments.
type CredentialRepository interface {
	Create(ctx context.Context, cred *entities.Credential) error
	Update(ctx context.Context, cred *entities.Credential) error

	// Delete removes the credential and cascades over its assignments,
	// returning how many assignment rows were dropped.
	Delete(ctx context.Context, id string) (removedAssignments int, err error)

	FindByID(ctx context.Context, id string) (*entities.Credential, error)
	FindByAlias(ctx context.Context, alias values.Alias) (*entities.Credential, error)
	List(ctx context.Context) ([]*entities.Credential, error)

	Assign(ctx context.Context, assignment entities.Assignment) error
	Unassign(ctx context.Context, credentialID, agentID string) error
	FindAssignment(ctx context.Context, credentialID, agentID string) (*entities.Assignment, error)
}

// PluginRepository persists installed plugins.
type PluginRepository interface {
	Save(ctx context.Context, plugin *entities.Plugin) error
	FindByID(ctx context.Context, id string) (*entities.Plugin, error)
	List(ctx context.Context) ([]*entities.Plugin, error)
}

// DisclosureRepository persists acknowledgment rows. Ensure is
// insert-if-absent: it never overwrites an existing row's state.
type DisclosureRepository interface {
	Ensure(ctx context.Context, row entities.DisclosureAck) error
	ListByPlugin(ctx context.Context, pluginID string) ([]entities.DisclosureAck, error)

	// AcknowledgeAll stamps every row for the plugin and returns how
	// many rows were newly acknowledged.
	AcknowledgeAll(ctx context.Context, pluginID string, at time.Time) (int, error)
}

// EventRepository appends and reads plugin lifecycle events.
type EventRepository interface {
	Append(ctx context.Context, event entities.PluginEvent) error
	ListByPlugin(ctx context.Context, pluginID string, limit int) ([]entities.PluginEvent, error)
}

// AuditRepository appends and reads audit entries. The log is
// append-only; there is no update or delete.
type AuditRepository interface {
	Append(ctx context.Context, entry entities.AuditEntry) error
	List(ctx context.Context) ([]entities.AuditEntry, error)
}

// GrantRepository reads the human-assigned capability grants.
type GrantRepository interface {
	Find(ctx context.Context, agentID, resourceID string) (*capabilities.Grant, error)
	Save(ctx context.Context, grant capabilities.Grant) error
}
