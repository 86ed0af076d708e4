package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentgate-dev/agentgate/internal/application/dto"
	apperrors "github.com/agentgate-dev/agentgate/internal/application/errors"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
	"github.com/agentgate-dev/agentgate/internal/infrastructure/persistence/memory"
)

type credentialFixture struct {
	service   *CredentialService
	repo      *memory.CredentialRepository
	auditRepo *memory.AuditRepository
	secrets   *trackingProvider
}

func newCredentialFixture(t *testing.T) *credentialFixture {
	t.Helper()
	repo := memory.NewCredentialRepository()
	auditRepo := memory.NewAuditRepository()
	secrets := &trackingProvider{}
	service := NewCredentialService(repo, NewAuditTrail(auditRepo, nil, nil), secrets, nil)
	return &credentialFixture{service: service, repo: repo, auditRepo: auditRepo, secrets: secrets}
}

func validInput() dto.CredentialInput {
	return dto.CredentialInput{
		Alias:           "stripe_api",
		Provider:        "stripe",
		Secret:          "sk_live_abc",
		AllowedHosts:    []string{"api.stripe.com"},
		AllowedInHeader: true,
		Enabled:         true,
	}
}

func TestCredentialService_Create(t *testing.T) {
	f := newCredentialFixture(t)

	cred, err := f.service.Create(context.Background(), validInput())

	require.NoError(t, err)
	assert.NotEmpty(t, cred.ID)
	assert.Equal(t, "stripe_api", cred.Alias.String())
	assert.Equal(t, "sk_live_abc", cred.Secret)
	assert.Contains(t, f.secrets.AllValues(), "sk_live_abc")

	entries, err := f.auditRepo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "credential_created", entries[0].EventType)
	assert.Equal(t, entities.ActorOperator, entries[0].ActorType)
	// The secret never lands in audit metadata.
	for _, v := range entries[0].Metadata {
		assert.NotContains(t, v, "sk_live_abc")
	}
}

func TestCredentialService_Create_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*dto.CredentialInput)
	}{
		{"bad alias", func(in *dto.CredentialInput) { in.Alias = "Stripe API" }},
		{"empty secret", func(in *dto.CredentialInput) { in.Secret = "" }},
		{"marker as secret", func(in *dto.CredentialInput) { in.Secret = dto.RedactedSecretMarker }},
		{"no hosts", func(in *dto.CredentialInput) { in.AllowedHosts = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCredentialFixture(t)
			input := validInput()
			tt.mutate(&input)

			_, err := f.service.Create(context.Background(), input)

			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestCredentialService_Create_DuplicateAlias(t *testing.T) {
	f := newCredentialFixture(t)
	_, err := f.service.Create(context.Background(), validInput())
	require.NoError(t, err)

	_, err = f.service.Create(context.Background(), validInput())

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "already in use")
}

func TestCredentialService_Update_MarkerKeepsSecret(t *testing.T) {
	f := newCredentialFixture(t)
	cred, err := f.service.Create(context.Background(), validInput())
	require.NoError(t, err)

	input := validInput()
	input.Secret = dto.RedactedSecretMarker
	input.AllowedInQuery = true

	updated, err := f.service.Update(context.Background(), cred.ID, input)

	require.NoError(t, err)
	assert.Equal(t, "sk_live_abc", updated.Secret)
	assert.True(t, updated.AllowedInQuery)
}

func TestCredentialService_Update_RotatesSecret(t *testing.T) {
	f := newCredentialFixture(t)
	cred, err := f.service.Create(context.Background(), validInput())
	require.NoError(t, err)

	input := validInput()
	input.Secret = "sk_live_rotated"

	updated, err := f.service.Update(context.Background(), cred.ID, input)

	require.NoError(t, err)
	assert.Equal(t, "sk_live_rotated", updated.Secret)
	assert.Contains(t, f.secrets.AllValues(), "sk_live_rotated")
}

func TestCredentialService_Delete_CascadesAssignments(t *testing.T) {
	f := newCredentialFixture(t)
	ctx := context.Background()
	cred, err := f.service.Create(ctx, validInput())
	require.NoError(t, err)
	require.NoError(t, f.service.Assign(ctx, cred.ID, "bot-1"))
	require.NoError(t, f.service.Assign(ctx, cred.ID, "bot-2"))

	require.NoError(t, f.service.Delete(ctx, cred.ID))

	_, err = f.repo.FindByID(ctx, cred.ID)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = f.repo.FindAssignment(ctx, cred.ID, "bot-1")
	assert.Error(t, err)

	entries, err := f.auditRepo.List(ctx)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, "credential_deleted", last.EventType)
	assert.Equal(t, "2", last.Metadata["assignments_removed"])
}

func TestCredentialService_Delete_Missing(t *testing.T) {
	f := newCredentialFixture(t)
	err := f.service.Delete(context.Background(), "nope")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCredentialService_AssignRequiresAgent(t *testing.T) {
	f := newCredentialFixture(t)
	cred, err := f.service.Create(context.Background(), validInput())
	require.NoError(t, err)

	err = f.service.Assign(context.Background(), cred.ID, "")

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCredentialService_List_NeverExposesSecret(t *testing.T) {
	f := newCredentialFixture(t)
	_, err := f.service.Create(context.Background(), validInput())
	require.NoError(t, err)

	summaries, err := f.service.List(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	assert.Equal(t, "{stripe_api}", summaries[0].Placeholder)

	raw, err := json.Marshal(summaries)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk_live_abc")
}

func TestCredentialEntity_SecretExcludedFromJSON(t *testing.T) {
	f := newCredentialFixture(t)
	cred, err := f.service.Create(context.Background(), validInput())
	require.NoError(t, err)

	raw, err := json.Marshal(cred)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk_live_abc")
}
