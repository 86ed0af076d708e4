package entities

import (
	"time"

	"github.com/agentgate-dev/agentgate/internal/domain/capabilities"
)

// ScopedToken is a short-lived external provider token minted on demand,
// restricted to one resource set and one resolved permission map.
// It is ephemeral and never persisted.
type ScopedToken struct {
	Token        string                     `json:"token"`
	ExpiresAt    time.Time                  `json:"expires_at"`
	Repositories []string                   `json:"repositories"`
	Permissions  capabilities.PermissionMap `json:"permissions"`
}
