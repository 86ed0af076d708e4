// Package memory provides in-memory implementations of the repository
// ports. Useful for testing and single-node deployments; the broker
// treats the persistence engine as an external collaborator offering
// keyed CRUD.
package memory

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/agentgate-dev/agentgate/internal/application/errors"
	"github.com/agentgate-dev/agentgate/internal/application/ports"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
	"github.com/agentgate-dev/agentgate/internal/domain/values"
	"github.com/agentgate-dev/agentgate/internal/infrastructure/sensitivedata"
)

// Ensure interface compliance
var _ ports.CredentialRepository = (*CredentialRepository)(nil)

// CredentialRepository is an in-memory implementation of
// ports.CredentialRepository. Secret values live apart from the rows
// in zeroing holders; stored rows carry an empty secret column and the
// value is materialized only on read. Rotation and delete zero the
// retired secret's backing memory.
type CredentialRepository struct {
	credentials map[string]*entities.Credential
	secrets     map[string]*sensitivedata.SecureString
	assignments map[string]entities.Assignment // key: credentialID|agentID
	mu          sync.RWMutex
}

// NewCredentialRepository creates a new in-memory repository.
func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{
		credentials: make(map[string]*entities.Credential),
		secrets:     make(map[string]*sensitivedata.SecureString),
		assignments: make(map[string]entities.Assignment),
	}
}

func assignmentKey(credentialID, agentID string) string {
	return credentialID + "|" + agentID
}

// store splits the row from its secret: the secret moves into a
// zeroing holder and the stored row keeps an empty column. Callers
// hold the write lock.
func (r *CredentialRepository) store(cred *entities.Credential) {
	if prior, ok := r.secrets[cred.ID]; ok {
		prior.Zero()
	}
	copied := *cred
	r.secrets[cred.ID] = sensitivedata.NewSecureString(copied.Secret)
	copied.Secret = ""
	r.credentials[cred.ID] = &copied
}

// materialize returns a row copy with the secret value restored from
// its holder. Callers hold at least the read lock.
func (r *CredentialRepository) materialize(cred *entities.Credential) *entities.Credential {
	copied := *cred
	if holder, ok := r.secrets[cred.ID]; ok {
		copied.Secret = holder.Expose()
	}
	return &copied
}

// Create persists a new credential.
func (r *CredentialRepository) Create(_ context.Context, cred *entities.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store(cred)
	return nil
}

// Update overwrites an existing credential. A rotated secret's old
// backing memory is zeroed.
func (r *CredentialRepository) Update(_ context.Context, cred *entities.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.credentials[cred.ID]; !ok {
		return apperrors.NewNotFound("credential", cred.ID)
	}
	r.store(cred)
	return nil
}

// Delete removes a credential, zeroes its secret, and cascades over
// its assignments.
func (r *CredentialRepository) Delete(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.credentials[id]; !ok {
		return 0, apperrors.NewNotFound("credential", id)
	}
	if holder, ok := r.secrets[id]; ok {
		holder.Zero()
		delete(r.secrets, id)
	}
	delete(r.credentials, id)

	removed := 0
	for key, a := range r.assignments {
		if a.CredentialID == id {
			delete(r.assignments, key)
			removed++
		}
	}
	return removed, nil
}

// FindByID retrieves a credential by its unique ID.
func (r *CredentialRepository) FindByID(_ context.Context, id string) (*entities.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cred, ok := r.credentials[id]
	if !ok {
		return nil, apperrors.NewNotFound("credential", id)
	}
	return r.materialize(cred), nil
}

// FindByAlias retrieves a credential by alias.
func (r *CredentialRepository) FindByAlias(_ context.Context, alias values.Alias) (*entities.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cred := range r.credentials {
		if cred.Alias.Equals(alias) {
			return r.materialize(cred), nil
		}
	}
	return nil, apperrors.NewNotFound("credential", alias.String())
}

// List returns all credentials sorted by alias.
func (r *CredentialRepository) List(_ context.Context) ([]*entities.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entities.Credential, 0, len(r.credentials))
	for _, cred := range r.credentials {
		out = append(out, r.materialize(cred))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Alias.String() < out[j].Alias.String()
	})
	return out, nil
}

// Assign links a credential to an agent (idempotent upsert).
func (r *CredentialRepository) Assign(_ context.Context, assignment entities.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.credentials[assignment.CredentialID]; !ok {
		return apperrors.NewNotFound("credential", assignment.CredentialID)
	}
	r.assignments[assignmentKey(assignment.CredentialID, assignment.AgentID)] = assignment
	return nil
}

// Unassign removes an agent's link to a credential.
func (r *CredentialRepository) Unassign(_ context.Context, credentialID, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := assignmentKey(credentialID, agentID)
	if _, ok := r.assignments[key]; !ok {
		return apperrors.NewNotFound("assignment", key)
	}
	delete(r.assignments, key)
	return nil
}

// FindAssignment retrieves the assignment linking a credential to an agent.
func (r *CredentialRepository) FindAssignment(_ context.Context, credentialID, agentID string) (*entities.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assignments[assignmentKey(credentialID, agentID)]
	if !ok {
		return nil, apperrors.NewNotFound("assignment", assignmentKey(credentialID, agentID))
	}
	return &a, nil
}
