package entities

import (
	"time"

	"github.com/agentgate-dev/agentgate/internal/domain/capabilities"
)

// SourceKind distinguishes first-party plugins shipped with the platform
// from third-party code.
type SourceKind string

// Plugin source kinds.
const (
	SourceBuiltin  SourceKind = "builtin"
	SourceExternal SourceKind = "external"
)

// Plugin is an installed extension and its declared permission surface.
type Plugin struct {
	ID             string                  `json:"id"`
	Name           string                  `json:"name"`
	SourceKind     SourceKind              `json:"source_kind"`
	TrustLevel     string                  `json:"trust_level,omitempty"`
	Manifest       capabilities.Manifest   `json:"manifest"`
	Declared       []capabilities.Declared `json:"declared_capabilities"`
	CurrentVersion string                  `json:"current_version"`
	Checksum       string                  `json:"checksum,omitempty"`
	InstallPath    string                  `json:"install_path,omitempty"`
	Enabled        bool                    `json:"enabled"`
	InstalledAt    time.Time               `json:"installed_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

// IsBuiltin reports whether the plugin is first-party.
func (p Plugin) IsBuiltin() bool {
	return p.SourceKind == SourceBuiltin
}

// EventStatus classifies a lifecycle event outcome.
type EventStatus string

// Lifecycle event statuses.
const (
	EventOK      EventStatus = "ok"
	EventBlocked EventStatus = "blocked"
	EventError   EventStatus = "error"
)

// PluginEvent is an append-only lifecycle record.
type PluginEvent struct {
	ID        string      `json:"id"`
	PluginID  string      `json:"plugin_id"`
	Action    string      `json:"action"` // install, enable, disable
	Status    EventStatus `json:"status"`
	Detail    string      `json:"detail,omitempty"`
	Tag       string      `json:"tag,omitempty"` // e.g. trust_mode_locked
	Timestamp time.Time   `json:"timestamp"`
}

// DisclosureAck tracks human acknowledgment of one declared capability.
// Rows are monotonic: once acknowledged, re-registration never resets
// the state.
type DisclosureAck struct {
	PluginID       string                  `json:"plugin_id"`
	Capability     capabilities.Declared   `json:"capability"`
	Acknowledged   bool                    `json:"acknowledged"`
	AcknowledgedAt *time.Time              `json:"acknowledged_at,omitempty"`
}

// Key returns the unique (plugin, permission, scope) identity of the row.
func (d DisclosureAck) Key() string {
	return d.PluginID + "|" + d.Capability.String()
}
