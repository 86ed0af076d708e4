package dto

import "github.com/agentgate-dev/agentgate/internal/domain/entities"

// CapabilityStatus pairs a declared capability with its acknowledgment
// state.
type CapabilityStatus struct {
	Permission   string `json:"permission"`
	Scope        string `json:"scope,omitempty"`
	Description  string `json:"description"`
	Acknowledged bool   `json:"acknowledged"`
}

// PluginDetail is the read projection of a plugin, its disclosures, and
// recent lifecycle events.
type PluginDetail struct {
	ID                          string                 `json:"id"`
	Name                        string                 `json:"name"`
	SourceKind                  string                 `json:"sourceKind"`
	Version                     string                 `json:"version"`
	Enabled                     bool                   `json:"enabled"`
	DeclaredCapabilities        []CapabilityStatus     `json:"declaredCapabilities"`
	DeclaredCapabilityCount     int                    `json:"declaredCapabilityCount"`
	AcknowledgedDisclosureCount int                    `json:"acknowledgedDisclosureCount"`
	RecentEvents                []entities.PluginEvent `json:"recentEvents,omitempty"`
}
