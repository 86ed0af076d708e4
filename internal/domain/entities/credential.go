// Package entities defines the persisted aggregates of the broker.
package entities

import (
	"time"

	"github.com/agentgate-dev/agentgate/internal/domain/values"
)

// Credential is a named, alias-addressable secret plus the host and
// location rules governing where it may be injected. The secret itself
// is write-only from the outside: it is never serialized and never
// returned by read APIs.
type Credential struct {
	ID       string       `json:"id"`
	Alias    values.Alias `json:"alias"`
	Provider string       `json:"provider"`

	// Secret is the raw credential material. Excluded from every
	// serialization path; read APIs project this entity through DTOs
	// that do not carry it.
	Secret string `json:"-"`

	AllowedHosts    []string `json:"allowed_hosts"`
	AllowedInHeader bool     `json:"allowed_in_header"`
	AllowedInQuery  bool     `json:"allowed_in_query"`
	AllowedInBody   bool     `json:"allowed_in_body"`
	Enabled         bool     `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AllowsLocation reports whether the credential may be interpolated into
// the given request location.
func (c Credential) AllowsLocation(loc Location) bool {
	switch loc {
	case LocationHeader:
		return c.AllowedInHeader
	case LocationQuery:
		return c.AllowedInQuery
	case LocationBody:
		return c.AllowedInBody
	default:
		return false
	}
}

// Location identifies a request position a secret may be injected into.
type Location string

// Request locations.
const (
	LocationHeader Location = "header"
	LocationQuery  Location = "query"
	LocationBody   Location = "body"
)

// Human returns the operator-facing name of the location, used in
// denial messages.
func (l Location) Human() string {
	switch l {
	case LocationHeader:
		return "headers"
	case LocationQuery:
		return "query parameters"
	case LocationBody:
		return "the request body"
	default:
		return string(l)
	}
}

// Assignment links a credential to an agent that may invoke it.
type Assignment struct {
	CredentialID string    `json:"credential_id"`
	AgentID      string    `json:"agent_id"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
}
