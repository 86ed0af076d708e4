package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/agentgate-dev/agentgate/internal/application/errors"
	"github.com/agentgate-dev/agentgate/internal/domain/capabilities"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
	"github.com/agentgate-dev/agentgate/internal/domain/values"
	"github.com/agentgate-dev/agentgate/internal/infrastructure/persistence/memory"
)

type stubTokenSource struct {
	minted *entities.ScopedToken
	err    error

	gotInstallation string
	gotRepositories []string
	gotPermissions  capabilities.PermissionMap
}

func (s *stubTokenSource) Mint(_ context.Context, installationID string, repositories []string, permissions capabilities.PermissionMap) (*entities.ScopedToken, error) {
	s.gotInstallation = installationID
	s.gotRepositories = repositories
	s.gotPermissions = permissions
	if s.err != nil {
		return nil, s.err
	}
	return s.minted, nil
}

type brokerFixture struct {
	broker    *TokenBroker
	grants    *memory.GrantRepository
	auditRepo *memory.AuditRepository
	source    *stubTokenSource
}

func newBrokerFixture(t *testing.T, source *stubTokenSource) *brokerFixture {
	t.Helper()
	grants := memory.NewGrantRepository()
	auditRepo := memory.NewAuditRepository()
	broker := NewTokenBroker(grants, source, NewAuditTrail(auditRepo, nil, nil), "repo-collaborator", nil)
	return &brokerFixture{broker: broker, grants: grants, auditRepo: auditRepo, source: source}
}

func TestTokenBroker_Mint(t *testing.T) {
	source := &stubTokenSource{minted: &entities.ScopedToken{
		Token:        "ghs_abc",
		ExpiresAt:    time.Now().Add(time.Hour),
		Repositories: []string{"acme/widgets"},
	}}
	f := newBrokerFixture(t, source)
	ctx := context.Background()
	require.NoError(t, f.grants.Save(ctx, capabilities.Grant{
		AgentID:      "reviewer-bot",
		ResourceID:   "acme/widgets",
		Capabilities: []capabilities.RepoCapability{capabilities.CapReadRepo, capabilities.CapOpenPR},
	}))

	token, err := f.broker.MintScopedToken(ctx, "reviewer-bot", "12345", []string{"acme/widgets"})

	require.NoError(t, err)
	assert.Equal(t, "ghs_abc", token.Token)
	assert.Equal(t, "12345", source.gotInstallation)
	assert.Equal(t, []string{"acme/widgets"}, source.gotRepositories)
	assert.Equal(t, values.PermRead, source.gotPermissions[capabilities.ScopeContents])
	assert.Equal(t, values.PermWrite, source.gotPermissions[capabilities.ScopePullRequests])

	entries, err := f.auditRepo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EventScopedTokenMint, entries[0].EventType)
	assert.Equal(t, entities.AuditAllowed, entries[0].Result)
	assert.NotEmpty(t, entries[0].Metadata["permissions"])
}

func TestTokenBroker_Mint_MissingGrantDenied(t *testing.T) {
	f := newBrokerFixture(t, &stubTokenSource{})

	_, err := f.broker.MintScopedToken(context.Background(), "reviewer-bot", "12345", []string{"acme/widgets"})

	var denied *apperrors.PolicyDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, apperrors.ReasonGrantMissing, denied.Reason)

	entries, err := f.auditRepo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entities.AuditDenied, entries[0].Result)
	assert.Equal(t, "acme/widgets", entries[0].Metadata["resource"])
}

func TestTokenBroker_Mint_AnyMissingResourceDeniesAll(t *testing.T) {
	f := newBrokerFixture(t, &stubTokenSource{})
	ctx := context.Background()
	require.NoError(t, f.grants.Save(ctx, capabilities.Grant{
		AgentID:      "reviewer-bot",
		ResourceID:   "acme/widgets",
		Capabilities: []capabilities.RepoCapability{capabilities.CapReadRepo},
	}))

	_, err := f.broker.MintScopedToken(ctx, "reviewer-bot", "12345", []string{"acme/widgets", "acme/gadgets"})

	var denied *apperrors.PolicyDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Empty(t, f.source.gotInstallation, "provider must not be called on denial")
}

func TestTokenBroker_Mint_ProviderFailure(t *testing.T) {
	f := newBrokerFixture(t, &stubTokenSource{err: errors.New("installation suspended")})
	ctx := context.Background()
	require.NoError(t, f.grants.Save(ctx, capabilities.Grant{
		AgentID:      "reviewer-bot",
		ResourceID:   "acme/widgets",
		Capabilities: []capabilities.RepoCapability{capabilities.CapReadRepo},
	}))

	_, err := f.broker.MintScopedToken(ctx, "reviewer-bot", "12345", []string{"acme/widgets"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "repo-collaborator")
	assert.Contains(t, err.Error(), "installation suspended")

	entries, listErr := f.auditRepo.List(ctx)
	require.NoError(t, listErr)
	require.Len(t, entries, 1)
	assert.Equal(t, entities.AuditError, entries[0].Result)
}

func TestTokenBroker_Mint_ValidatesInput(t *testing.T) {
	f := newBrokerFixture(t, &stubTokenSource{})
	ctx := context.Background()

	tests := []struct {
		name         string
		agentID      string
		installation string
		resources    []string
	}{
		{"missing agent", "", "12345", []string{"acme/widgets"}},
		{"missing installation", "bot", "", []string{"acme/widgets"}},
		{"no resources", "bot", "12345", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.broker.MintScopedToken(ctx, tt.agentID, tt.installation, tt.resources)
			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}
