package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/agentgate-dev/agentgate/internal/application/dto"
	apperrors "github.com/agentgate-dev/agentgate/internal/application/errors"
	"github.com/agentgate-dev/agentgate/internal/application/ports"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
	"github.com/agentgate-dev/agentgate/internal/domain/values"
)

// CredentialService implements the operator management surface for
// credentials and their agent assignments. The secret is write-only:
// no method ever returns it, and an update carrying the redacted marker
// keeps the stored secret unchanged.
type CredentialService struct {
	repo    ports.CredentialRepository
	audit   *AuditTrail
	secrets ports.SensitiveValueProvider
	logger  *slog.Logger
}

// NewCredentialService creates a credential service.
func NewCredentialService(repo ports.CredentialRepository, audit *AuditTrail, secrets ports.SensitiveValueProvider, logger *slog.Logger) *CredentialService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialService{repo: repo, audit: audit, secrets: secrets, logger: logger}
}

// Create registers a new credential.
func (s *CredentialService) Create(ctx context.Context, input dto.CredentialInput) (*entities.Credential, error) {
	alias, err := values.NewAlias(input.Alias)
	if err != nil {
		return nil, apperrors.NewValidationError("alias", err.Error())
	}
	if input.Secret == "" || input.Secret == dto.RedactedSecretMarker {
		return nil, apperrors.NewValidationError("secret", "a literal secret value is required on create")
	}
	if len(input.AllowedHosts) == 0 {
		return nil, apperrors.NewValidationError("allowedHosts", "at least one host pattern is required")
	}
	if existing, err := s.repo.FindByAlias(ctx, alias); err == nil && existing != nil {
		return nil, apperrors.NewValidationError("alias", fmt.Sprintf("alias %q is already in use", alias))
	}

	now := time.Now().UTC()
	cred := &entities.Credential{
		ID:              uuid.NewString(),
		Alias:           alias,
		Provider:        input.Provider,
		Secret:          input.Secret,
		AllowedHosts:    append([]string(nil), input.AllowedHosts...),
		AllowedInHeader: input.AllowedInHeader,
		AllowedInQuery:  input.AllowedInQuery,
		AllowedInBody:   input.AllowedInBody,
		Enabled:         input.Enabled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, cred); err != nil {
		return nil, err
	}

	s.secrets.Track(cred.Secret)
	s.audit.Record(ctx, entities.AuditEntry{
		EventType: "credential_created",
		ActorType: entities.ActorOperator,
		Result:    entities.AuditAllowed,
		Metadata:  map[string]string{"alias": alias.String(), "provider": cred.Provider},
	})
	s.logger.Info("credential created", "alias", alias, "provider", cred.Provider)
	return cred, nil
}

// Update mutates an existing credential. A secret equal to the redacted
// marker (or empty) means "keep the existing secret".
func (s *CredentialService) Update(ctx context.Context, id string, input dto.CredentialInput) (*entities.Credential, error) {
	cred, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Alias != "" && input.Alias != cred.Alias.String() {
		alias, err := values.NewAlias(input.Alias)
		if err != nil {
			return nil, apperrors.NewValidationError("alias", err.Error())
		}
		if existing, err := s.repo.FindByAlias(ctx, alias); err == nil && existing.ID != id {
			return nil, apperrors.NewValidationError("alias", fmt.Sprintf("alias %q is already in use", alias))
		}
		cred.Alias = alias
	}

	if input.Secret != "" && input.Secret != dto.RedactedSecretMarker {
		cred.Secret = input.Secret
		s.secrets.Track(cred.Secret)
	}
	if input.Provider != "" {
		cred.Provider = input.Provider
	}
	if len(input.AllowedHosts) > 0 {
		cred.AllowedHosts = append([]string(nil), input.AllowedHosts...)
	}
	cred.AllowedInHeader = input.AllowedInHeader
	cred.AllowedInQuery = input.AllowedInQuery
	cred.AllowedInBody = input.AllowedInBody
	cred.Enabled = input.Enabled
	cred.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, cred); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, entities.AuditEntry{
		EventType: "credential_updated",
		ActorType: entities.ActorOperator,
		Result:    entities.AuditAllowed,
		Metadata:  map[string]string{"alias": cred.Alias.String()},
	})
	return cred, nil
}

// Delete removes a credential, cascading over its assignments.
func (s *CredentialService) Delete(ctx context.Context, id string) error {
	cred, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.audit.Record(ctx, entities.AuditEntry{
		EventType: "credential_deleted",
		ActorType: entities.ActorOperator,
		Result:    entities.AuditAllowed,
		Metadata: map[string]string{
			"alias":               cred.Alias.String(),
			"assignments_removed": strconv.Itoa(removed),
		},
	})
	s.logger.Info("credential deleted", "alias", cred.Alias, "assignments_removed", removed)
	return nil
}

// Assign grants an agent the right to invoke a credential.
func (s *CredentialService) Assign(ctx context.Context, credentialID, agentID string) error {
	if agentID == "" {
		return apperrors.NewValidationError("agent_id", "is required")
	}
	cred, err := s.repo.FindByID(ctx, credentialID)
	if err != nil {
		return err
	}

	err = s.repo.Assign(ctx, entities.Assignment{
		CredentialID: credentialID,
		AgentID:      agentID,
		Enabled:      true,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, entities.AuditEntry{
		EventType: "credential_assigned",
		AgentID:   agentID,
		ActorType: entities.ActorOperator,
		Result:    entities.AuditAllowed,
		Metadata:  map[string]string{"alias": cred.Alias.String()},
	})
	return nil
}

// Unassign revokes an agent's right to invoke a credential.
func (s *CredentialService) Unassign(ctx context.Context, credentialID, agentID string) error {
	if err := s.repo.Unassign(ctx, credentialID, agentID); err != nil {
		return err
	}
	s.audit.Record(ctx, entities.AuditEntry{
		EventType: "credential_unassigned",
		AgentID:   agentID,
		ActorType: entities.ActorOperator,
		Result:    entities.AuditAllowed,
		Metadata:  map[string]string{"credential_id": credentialID},
	})
	return nil
}

// List returns the secret-free projection of every credential, for the
// list_credentials tool call.
func (s *CredentialService) List(ctx context.Context) ([]dto.CredentialSummary, error) {
	creds, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.CredentialSummary, 0, len(creds))
	for _, c := range creds {
		out = append(out, dto.NewCredentialSummary(c))
	}
	return out, nil
}

// Get returns one credential's secret-free projection.
func (s *CredentialService) Get(ctx context.Context, id string) (dto.CredentialSummary, error) {
	cred, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.CredentialSummary{}, err
	}
	return dto.NewCredentialSummary(cred), nil
}
