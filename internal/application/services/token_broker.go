package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/agentgate-dev/agentgate/internal/application/errors"
	"github.com/agentgate-dev/agentgate/internal/application/ports"
	"github.com/agentgate-dev/agentgate/internal/domain/capabilities"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
)

// EventScopedTokenMint is the audit event type for token minting.
const EventScopedTokenMint = "scoped_token_mint"

// TokenBroker mints short-lived provider tokens scoped to exactly the
// resources and permissions an agent's capability grants resolve to.
// Before minting it re-verifies the grants still exist — defense in
// depth against callers holding stale capability state.
type TokenBroker struct {
	grants ports.GrantRepository
	source ports.InstallationTokenSource
	audit  *AuditTrail

	// defaultPreset names the deployment's configured permission
	// preset, referenced in mint-failure diagnostics so an operator
	// can correct missing scopes.
	defaultPreset string
	logger        *slog.Logger
}

// NewTokenBroker creates a token broker.
func NewTokenBroker(grants ports.GrantRepository, source ports.InstallationTokenSource, audit *AuditTrail, defaultPreset string, logger *slog.Logger) *TokenBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenBroker{
		grants:        grants,
		source:        source,
		audit:         audit,
		defaultPreset: defaultPreset,
		logger:        logger,
	}
}

// MintScopedToken resolves the agent's capabilities over the target
// resources into a permission map and mints a token restricted to
// exactly that resource set and map. Every attempt is audited.
func (b *TokenBroker) MintScopedToken(ctx context.Context, agentID, installationID string, resourceIDs []string) (*entities.ScopedToken, error) {
	if agentID == "" {
		return nil, apperrors.NewValidationError("agent_id", "is required")
	}
	if installationID == "" {
		return nil, apperrors.NewValidationError("installation_id", "is required")
	}
	if len(resourceIDs) == 0 {
		return nil, apperrors.NewValidationError("resources", "at least one target resource is required")
	}
	if b.source == nil {
		return nil, fmt.Errorf("no installation token source configured; set github.app_id and github.private_key_path")
	}

	var combined []capabilities.RepoCapability
	for _, resource := range resourceIDs {
		grant, err := b.grants.Find(ctx, agentID, resource)
		if err != nil || grant.IsEmpty() {
			denial := apperrors.NewPolicyDenied(apperrors.ReasonGrantMissing,
				fmt.Sprintf("agent %q holds no capability grant for resource %q", agentID, resource))
			b.audit.Record(ctx, entities.AuditEntry{
				EventType: EventScopedTokenMint,
				AgentID:   agentID,
				ActorType: entities.ActorAgent,
				Result:    entities.AuditDenied,
				Metadata: map[string]string{
					"resource": resource,
					"reason":   apperrors.ReasonGrantMissing,
				},
			})
			return nil, denial
		}
		combined = append(combined, grant.Capabilities...)
	}

	permissions := capabilities.ResolvePermissions(combined)
	meta := map[string]string{
		"installation": installationID,
		"resources":    strings.Join(resourceIDs, ","),
		"permissions":  formatPermissions(permissions),
	}

	token, err := b.source.Mint(ctx, installationID, resourceIDs, permissions)
	if err != nil {
		failure := cloneMeta(meta)
		failure["reason"] = err.Error()
		b.audit.Record(ctx, entities.AuditEntry{
			EventType: EventScopedTokenMint,
			AgentID:   agentID,
			ActorType: entities.ActorAgent,
			Result:    entities.AuditError,
			Metadata:  failure,
		})
		// Reference the configured preset so the operator knows where
		// to correct missing scopes; the provider error contributes
		// only its message text.
		return nil, fmt.Errorf("minting scoped token failed (verify the %q permission preset covers the resolved scopes): %s",
			b.defaultPreset, err.Error())
	}

	b.audit.Record(ctx, entities.AuditEntry{
		EventType: EventScopedTokenMint,
		AgentID:   agentID,
		ActorType: entities.ActorAgent,
		Result:    entities.AuditAllowed,
		Metadata:  meta,
	})
	b.logger.Debug("scoped token minted", "agent", agentID, "resources", len(resourceIDs))
	return token, nil
}

func formatPermissions(m capabilities.PermissionMap) string {
	parts := make([]string, 0, len(m))
	for scope, level := range m {
		parts = append(parts, string(scope)+":"+level.String())
	}
	// Deterministic ordering is not required here; audit consumers
	// treat the field as an unordered set.
	return strings.Join(parts, ",")
}
