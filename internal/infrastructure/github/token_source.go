// Package github mints installation tokens against a GitHub-compatible
// provider API.
package github

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentgate-dev/agentgate/internal/application/ports"
	"github.com/agentgate-dev/agentgate/internal/domain/capabilities"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
)

// appJWTLifetime bounds the app-level JWT used to call the installation
// token endpoint. The issued-at claim is backdated to absorb clock skew.
const (
	appJWTLifetime = 10 * time.Minute
	clockSkew      = 60 * time.Second
)

// TokenSource implements ports.InstallationTokenSource against the
// provider's installation-token endpoint.
type TokenSource struct {
	appID   string
	key     *rsa.PrivateKey
	baseURL string
	client  ports.Doer
}

// NewTokenSource creates a token source. baseURL is the provider API
// root, e.g. "https://api.github.com".
func NewTokenSource(appID string, key *rsa.PrivateKey, baseURL string, client ports.Doer) *TokenSource {
	return &TokenSource{appID: appID, key: key, baseURL: baseURL, client: client}
}

// appJWT signs the short-lived app authentication token.
func (s *TokenSource) appJWT(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    s.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-clockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign app JWT: %w", err)
	}
	return signed, nil
}

type mintRequest struct {
	Repositories []string          `json:"repositories,omitempty"`
	Permissions  map[string]string `json:"permissions,omitempty"`
}

type mintResponse struct {
	Token       string            `json:"token"`
	ExpiresAt   time.Time         `json:"expires_at"`
	Permissions map[string]string `json:"permissions"`
}

type providerError struct {
	Message string `json:"message"`
}

// Mint exchanges the app JWT for an installation token restricted to
// exactly the given repositories and permission map.
func (s *TokenSource) Mint(ctx context.Context, installationID string, repositories []string, permissions capabilities.PermissionMap) (*entities.ScopedToken, error) {
	appToken, err := s.appJWT(time.Now())
	if err != nil {
		return nil, err
	}

	body := mintRequest{
		Repositories: repositories,
		Permissions:  make(map[string]string, len(permissions)),
	}
	for scope, level := range permissions {
		body.Permissions[string(scope)] = level.String()
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/app/installations/%s/access_tokens", s.baseURL, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+appToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		// Surface only the provider's message text, not the raw body.
		var perr providerError
		_ = json.Unmarshal(raw, &perr)
		if perr.Message == "" {
			perr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("provider refused token mint (%d): %s", resp.StatusCode, perr.Message)
	}

	var minted mintResponse
	if err := json.Unmarshal(raw, &minted); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &entities.ScopedToken{
		Token:        minted.Token,
		ExpiresAt:    minted.ExpiresAt,
		Repositories: append([]string(nil), repositories...),
		Permissions:  permissions.Clone(),
	}, nil
}
