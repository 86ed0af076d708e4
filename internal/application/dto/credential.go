package dto

import "github.com/agentgate-dev/agentgate/internal/domain/entities"

// RedactedSecretMarker is the sentinel an admin layer may echo back on
// update. It means "keep the existing secret", never a literal value.
const RedactedSecretMarker = "__REDACTED__"

// CredentialSummary is the read projection of a credential. It never
// includes the secret; Placeholder tells the agent how to reference it.
type CredentialSummary struct {
	ID              string   `json:"id"`
	Alias           string   `json:"alias"`
	Provider        string   `json:"provider"`
	Placeholder     string   `json:"placeholder"`
	AllowedHosts    []string `json:"allowedHosts"`
	AllowedInHeader bool     `json:"allowedInHeader"`
	AllowedInQuery  bool     `json:"allowedInQuery"`
	AllowedInBody   bool     `json:"allowedInBody"`
	Enabled         bool     `json:"enabled"`
}

// NewCredentialSummary projects a credential entity.
func NewCredentialSummary(c *entities.Credential) CredentialSummary {
	return CredentialSummary{
		ID:              c.ID,
		Alias:           c.Alias.String(),
		Provider:        c.Provider,
		Placeholder:     c.Alias.Placeholder(),
		AllowedHosts:    append([]string(nil), c.AllowedHosts...),
		AllowedInHeader: c.AllowedInHeader,
		AllowedInQuery:  c.AllowedInQuery,
		AllowedInBody:   c.AllowedInBody,
		Enabled:         c.Enabled,
	}
}

// CredentialInput carries management-surface create/update fields.
// On update, a Secret equal to RedactedSecretMarker keeps the existing
// secret.
type CredentialInput struct {
	Alias           string   `json:"alias"`
	Provider        string   `json:"provider"`
	Secret          string   `json:"secret"`
	AllowedHosts    []string `json:"allowedHosts"`
	AllowedInHeader bool     `json:"allowedInHeader"`
	AllowedInQuery  bool     `json:"allowedInQuery"`
	AllowedInBody   bool     `json:"allowedInBody"`
	Enabled         bool     `json:"enabled"`
}
