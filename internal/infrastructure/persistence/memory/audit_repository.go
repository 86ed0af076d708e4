package memory

import (
	"context"
	"sync"

	apperrors "github.com/agentgate-dev/agentgate/internal/application/errors"
	"github.com/agentgate-dev/agentgate/internal/application/ports"
	"github.com/agentgate-dev/agentgate/internal/domain/capabilities"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
)

// Ensure interface compliance
var (
	_ ports.AuditRepository = (*AuditRepository)(nil)
	_ ports.GrantRepository = (*GrantRepository)(nil)
)

// AuditRepository is an in-memory, append-only implementation of
// ports.AuditRepository.
type AuditRepository struct {
	entries []entities.AuditEntry
	mu      sync.RWMutex
}

// NewAuditRepository creates a new in-memory repository.
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Append adds an audit entry.
func (r *AuditRepository) Append(_ context.Context, entry entities.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// List returns all entries in insertion order.
func (r *AuditRepository) List(_ context.Context) ([]entities.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entities.AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out, nil
}

// GrantRepository is an in-memory implementation of ports.GrantRepository.
type GrantRepository struct {
	grants map[string]capabilities.Grant // key: agentID|resourceID
	mu     sync.RWMutex
}

// NewGrantRepository creates a new in-memory repository.
func NewGrantRepository() *GrantRepository {
	return &GrantRepository{grants: make(map[string]capabilities.Grant)}
}

func grantKey(agentID, resourceID string) string {
	return agentID + "|" + resourceID
}

// Find retrieves the grant an agent holds over a resource.
func (r *GrantRepository) Find(_ context.Context, agentID, resourceID string) (*capabilities.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	grant, ok := r.grants[grantKey(agentID, resourceID)]
	if !ok {
		return nil, apperrors.NewNotFound("capability grant", grantKey(agentID, resourceID))
	}
	copied := grant
	copied.Capabilities = append([]capabilities.RepoCapability(nil), grant.Capabilities...)
	return &copied, nil
}

// Save stores a grant (upsert).
func (r *GrantRepository) Save(_ context.Context, grant capabilities.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[grantKey(grant.AgentID, grant.ResourceID)] = grant
	return nil
}
