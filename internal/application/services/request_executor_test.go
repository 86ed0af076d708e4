package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentgate-dev/agentgate/internal/application/dto"
	apperrors "github.com/agentgate-dev/agentgate/internal/application/errors"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
	"github.com/agentgate-dev/agentgate/internal/domain/values"
	"github.com/agentgate-dev/agentgate/internal/infrastructure/persistence/memory"
)

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

// hostRewritingDoer sends every request to the test server regardless of
// the requested host, so policy checks see realistic hostnames.
func hostRewritingDoer(t *testing.T, server *httptest.Server) doerFunc {
	t.Helper()
	return func(r *http.Request) (*http.Response, error) {
		target := strings.TrimPrefix(server.URL, "http://")
		r.URL.Scheme = "http"
		r.URL.Host = target
		r.Host = target
		return server.Client().Do(r)
	}
}

type trackingProvider struct {
	values []string
}

func (p *trackingProvider) Track(value string) { p.values = append(p.values, value) }
func (p *trackingProvider) AllValues() []string {
	return append([]string(nil), p.values...)
}

type executorFixture struct {
	executor  *RequestExecutor
	auditRepo *memory.AuditRepository
	creds     *memory.CredentialRepository
}

func newExecutorFixture(t *testing.T, client doerFunc, opts ExecutorOptions) *executorFixture {
	t.Helper()

	creds := memory.NewCredentialRepository()
	auditRepo := memory.NewAuditRepository()
	trail := NewAuditTrail(auditRepo, nil, nil)

	executor := NewRequestExecutor(creds, trail, client, &trackingProvider{}, nil, opts, nil)
	return &executorFixture{executor: executor, auditRepo: auditRepo, creds: creds}
}

func (f *executorFixture) seedCredential(t *testing.T, cred entities.Credential, agentID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.creds.Create(ctx, &cred))
	require.NoError(t, f.creds.Assign(ctx, entities.Assignment{
		CredentialID: cred.ID,
		AgentID:      agentID,
		Enabled:      true,
		CreatedAt:    time.Now(),
	}))
}

func (f *executorFixture) auditEntries(t *testing.T) []entities.AuditEntry {
	t.Helper()
	entries, err := f.auditRepo.List(context.Background())
	require.NoError(t, err)
	return entries
}

func instagramCredential() entities.Credential {
	return entities.Credential{
		ID:              "cred-1",
		Alias:           values.MustNewAlias("instagram_token"),
		Provider:        "instagram_graph_api",
		Secret:          "IGQVJsupersecret",
		AllowedHosts:    []string{"graph.facebook.com"},
		AllowedInHeader: true,
		Enabled:         true,
	}
}

func TestRequestExecutor_HeaderInterpolation_Dispatches(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer server.Close()

	f := newExecutorFixture(t, hostRewritingDoer(t, server), ExecutorOptions{})
	f.seedCredential(t, instagramCredential(), "social-bot")

	resp, err := f.executor.Execute(context.Background(), dto.SecureRequest{
		AgentID:         "social-bot",
		CredentialAlias: "instagram_token",
		Method:          "GET",
		URL:             "https://graph.facebook.com/v19.0/me/media",
		Headers:         map[string]string{"Authorization": "Bearer {instagram_token}"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Bearer IGQVJsupersecret", gotAuth)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, resp.HTTPOk)

	entries := f.auditEntries(t)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, EventSecureHTTPRequest, e.EventType)
		assert.Equal(t, entities.AuditAllowed, e.Result)
		assert.Equal(t, "graph.facebook.com", e.Metadata["host"])
		assert.Equal(t, "social-bot", e.AgentID)
	}
	assert.Equal(t, "200", entries[1].Metadata["status"])
	assert.NotEmpty(t, entries[1].Metadata["duration_ms"])
}

func TestRequestExecutor_QueryLocationDenied(t *testing.T) {
	dispatched := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		dispatched = true
	}))
	defer server.Close()

	f := newExecutorFixture(t, hostRewritingDoer(t, server), ExecutorOptions{})
	f.seedCredential(t, instagramCredential(), "social-bot")

	_, err := f.executor.Execute(context.Background(), dto.SecureRequest{
		AgentID:         "social-bot",
		CredentialAlias: "instagram_token",
		URL:             "https://graph.facebook.com/v19.0/me/media",
		Query:           map[string]string{"access_token": "{instagram_token}"},
	})

	require.Error(t, err)
	var denied *apperrors.PolicyDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, apperrors.ReasonLocationNotAllowed, denied.Reason)
	assert.Contains(t, denied.Message, "query parameters")
	assert.False(t, dispatched)

	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, entities.AuditDenied, entries[0].Result)
	assert.Equal(t, apperrors.ReasonLocationNotAllowed, entries[0].Metadata["reason"])
}

func TestRequestExecutor_UnknownCredential(t *testing.T) {
	f := newExecutorFixture(t, nil, ExecutorOptions{})

	_, err := f.executor.Execute(context.Background(), dto.SecureRequest{
		AgentID:         "social-bot",
		CredentialAlias: "nope",
		URL:             "https://graph.facebook.com/v19.0/me",
		Headers:         map[string]string{"Authorization": "Bearer {nope}"},
	})

	var denied *apperrors.PolicyDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, apperrors.ReasonCredentialUnavailable, denied.Reason)
}

func TestRequestExecutor_DisabledCredential(t *testing.T) {
	f := newExecutorFixture(t, nil, ExecutorOptions{})
	cred := instagramCredential()
	cred.Enabled = false
	f.seedCredential(t, cred, "social-bot")

	_, err := f.executor.Execute(context.Background(), dto.SecureRequest{
		AgentID:         "social-bot",
		CredentialAlias: "instagram_token",
		URL:             "https://graph.facebook.com/v19.0/me",
		Headers:         map[string]string{"Authorization": "Bearer {instagram_token}"},
	})

	var denied *apperrors.PolicyDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, apperrors.ReasonCredentialUnavailable, denied.Reason)
}

func TestRequestExecutor_UnassignedAgent(t *testing.T) {
	f := newExecutorFixture(t, nil, ExecutorOptions{})
	f.seedCredential(t, instagramCredential(), "social-bot")

	_, err := f.executor.Execute(context.Background(), dto.SecureRequest{
		AgentID:         "other-bot",
		CredentialAlias: "instagram_token",
		URL:             "https://graph.facebook.com/v19.0/me",
		Headers:         map[string]string{"Authorization": "Bearer {instagram_token}"},
	})

	var denied *apperrors.PolicyDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, apperrors.ReasonCredentialUnavailable, denied.Reason)
}

func TestRequestExecutor_HostNotAllowed(t *testing.T) {
	f := newExecutorFixture(t, nil, ExecutorOptions{})
	f.seedCredential(t, instagramCredential(), "social-bot")

	_, err := f.executor.Execute(context.Background(), dto.SecureRequest{
		AgentID:         "social-bot",
		CredentialAlias: "instagram_token",
		URL:             "https://evil.example.com/exfil",
		Headers:         map[string]string{"Authorization": "Bearer {instagram_token}"},
	})

	var denied *apperrors.PolicyDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, apperrors.ReasonHostNotAllowed, denied.Reason)

	entries := f.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "evil.example.com", entries[0].Metadata["host"])
}

func TestRequestExecutor_PlaceholderUnused(t *testing.T) {
	f := newExecutorFixture(t, nil, ExecutorOptions{})
	f.seedCredential(t, instagramCredential(), "social-bot")

	_, err := f.executor.Execute(context.Background(), dto.SecureRequest{
		AgentID:         "social-bot",
		CredentialAlias: "instagram_token",
		URL:             "https://graph.facebook.com/v19.0/me",
		Headers:         map[string]string{"Accept": "application/json"},
	})

	var denied *apperrors.PolicyDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, apperrors.ReasonPlaceholderUnused, denied.Reason)
	assert.Contains(t, denied.Message, "{instagram_token}")
}

func TestRequestExecutor_RedactsSecretFromResponse(t *testing.T) {
	const secret = "IGQVJsupersecret"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Echo", "token "+secret)
		fmt.Fprintf(w, `{"echoed":"%s","ok":true}`, secret)
	}))
	defer server.Close()

	f := newExecutorFixture(t, hostRewritingDoer(t, server), ExecutorOptions{})
	f.seedCredential(t, instagramCredential(), "social-bot")

	resp, err := f.executor.Execute(context.Background(), dto.SecureRequest{
		AgentID:         "social-bot",
		CredentialAlias: "instagram_token",
		URL:             "https://graph.facebook.com/v19.0/me",
		Headers:         map[string]string{"Authorization": "Bearer {instagram_token}"},
	})

	require.NoError(t, err)
	assert.NotContains(t, resp.Body, secret)
	assert.Contains(t, resp.Body, "[REDACTED]")
	for _, v := range resp.Headers {
		assert.NotContains(t, v, secret)
	}
	assert.NotContains(t, resp.URL, secret)
}

func TestRequestExecutor_TruncatesLongBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 500))
	}))
	defer server.Close()

	f := newExecutorFixture(t, hostRewritingDoer(t, server), ExecutorOptions{MaxBodyChars: 100})
	f.seedCredential(t, instagramCredential(), "social-bot")

	resp, err := f.executor.Execute(context.Background(), dto.SecureRequest{
		AgentID:         "social-bot",
		CredentialAlias: "instagram_token",
		URL:             "https://graph.facebook.com/v19.0/me",
		Headers:         map[string]string{"Authorization": "Bearer {instagram_token}"},
	})

	require.NoError(t, err)
	assert.True(t, resp.Truncated)
	assert.Len(t, resp.Body, 100)
	assert.Equal(t, 400, resp.OmittedBytes)
}

func TestRequestExecutor_TruncatesOnRuneBoundary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("é", 200))
	}))
	defer server.Close()

	// 101 lands in the middle of a two-byte rune; the cut must back up.
	f := newExecutorFixture(t, hostRewritingDoer(t, server), ExecutorOptions{MaxBodyChars: 101})
	f.seedCredential(t, instagramCredential(), "social-bot")

	resp, err := f.executor.Execute(context.Background(), dto.SecureRequest{
		AgentID:         "social-bot",
		CredentialAlias: "instagram_token",
		URL:             "https://graph.facebook.com/v19.0/me",
		Headers:         map[string]string{"Authorization": "Bearer {instagram_token}"},
	})

	require.NoError(t, err)
	assert.True(t, resp.Truncated)
	assert.True(t, utf8.ValidString(resp.Body))
	assert.Len(t, resp.Body, 100)
	assert.Equal(t, 300, resp.OmittedBytes)
}

func TestRequestExecutor_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	f := newExecutorFixture(t, hostRewritingDoer(t, server), ExecutorOptions{})
	f.seedCredential(t, instagramCredential(), "social-bot")

	_, err := f.executor.Execute(context.Background(), dto.SecureRequest{
		AgentID:         "social-bot",
		CredentialAlias: "instagram_token",
		URL:             "https://graph.facebook.com/v19.0/me",
		Headers:         map[string]string{"Authorization": "Bearer {instagram_token}"},
		TimeoutMs:       50,
	})

	var timeout *apperrors.TimeoutError
	require.ErrorAs(t, err, &timeout)

	// Pre-dispatch allow plus a post-dispatch error entry.
	entries := f.auditEntries(t)
	require.Len(t, entries, 2)
	assert.Equal(t, entities.AuditAllowed, entries[0].Result)
	assert.Equal(t, entities.AuditError, entries[1].Result)
}

func TestRequestExecutor_ValidationRejectsBeforeLookup(t *testing.T) {
	f := newExecutorFixture(t, nil, ExecutorOptions{})

	tests := []struct {
		name string
		req  dto.SecureRequest
	}{
		{"missing agent", dto.SecureRequest{CredentialAlias: "a", URL: "https://x.com"}},
		{"missing alias", dto.SecureRequest{AgentID: "bot", URL: "https://x.com"}},
		{"bad method", dto.SecureRequest{AgentID: "bot", CredentialAlias: "a", Method: "TRACE", URL: "https://x.com"}},
		{"relative url", dto.SecureRequest{AgentID: "bot", CredentialAlias: "a", URL: "/v1/me"}},
		{"bad scheme", dto.SecureRequest{AgentID: "bot", CredentialAlias: "a", URL: "ftp://x.com"}},
		{
			"both bodies",
			dto.SecureRequest{
				AgentID: "bot", CredentialAlias: "a", URL: "https://x.com",
				BodyJSON: map[string]any{"k": "v"}, BodyText: "text",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.executor.Execute(context.Background(), tt.req)
			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}

	// Validation failures never reach the audit log.
	assert.Empty(t, f.auditEntries(t))
}

func TestRequestExecutor_JSONBodySetsContentType(t *testing.T) {
	var gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
	}))
	defer server.Close()

	cred := instagramCredential()
	cred.AllowedInBody = true

	f := newExecutorFixture(t, hostRewritingDoer(t, server), ExecutorOptions{})
	f.seedCredential(t, cred, "social-bot")

	_, err := f.executor.Execute(context.Background(), dto.SecureRequest{
		AgentID:         "social-bot",
		CredentialAlias: "instagram_token",
		Method:          "POST",
		URL:             "https://graph.facebook.com/v19.0/me/media",
		BodyJSON:        map[string]any{"access_token": "{instagram_token}"},
	})

	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
	assert.Contains(t, gotBody, "IGQVJsupersecret")
}
