package ports

import (
	"context"
	"net/http"

	"github.com/agentgate-dev/agentgate/internal/domain/capabilities"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
)

// Doer dispatches an outbound HTTP request. The request's context
// carries the abort timer; implementations must honor cancellation.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// InstallationTokenSource mints short-lived provider tokens restricted
// to a resource set and a resolved permission map.
type InstallationTokenSource interface {
	Mint(ctx context.Context, installationID string, repositories []string, permissions capabilities.PermissionMap) (*entities.ScopedToken, error)
}

// ManifestParser turns raw manifest bytes into a validated manifest.
// Implementations fail closed: malformed input yields an error and an
// empty permission set, never a partially-parsed one.
type ManifestParser interface {
	Parse(data []byte) (capabilities.Manifest, error)
}

// HandlerLoader hot-loads a plugin's handler into the process and
// evicts it again. Loading is best-effort: callers fire it in the
// background and a failure never rolls back persisted install/enable
// state. Unload must take effect immediately so a disabled plugin's
// handler cannot be invoked.
type HandlerLoader interface {
	Load(ctx context.Context, pluginID string) error
	Unload(pluginID string)
}

// CrashGuard tracks per-plugin crash counters. RecordCrash returns the
// running count so callers can trip a budget; Reset grants a fresh one.
type CrashGuard interface {
	Reset(pluginID string)
	RecordCrash(pluginID string) int
}

// SensitiveValueProvider tracks secret values for redaction.
type SensitiveValueProvider interface {
	Track(value string)
	AllValues() []string
}

// Scrubber removes secret material from free-form text before it leaves
// the broker (response bodies, audit metadata).
type Scrubber interface {
	Scrub(input string) string
}
