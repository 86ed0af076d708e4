package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/agentgate-dev/agentgate/internal/application/dto"
	apperrors "github.com/agentgate-dev/agentgate/internal/application/errors"
	"github.com/agentgate-dev/agentgate/internal/application/ports"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
	"github.com/agentgate-dev/agentgate/internal/domain/values"
)

// builtinPluginIDs is the fixed set of first-party plugin IDs. An
// install request declaring sourceKind=builtin for any other ID is
// rejected outright.
var builtinPluginIDs = map[string]bool{
	"core.http":  true,
	"core.files": true,
	"core.shell": true,
}

// PluginService orchestrates the plugin lifecycle: manifest
// registration, disclosure tracking, trust-mode gating, and the
// best-effort handler hot-load. The deployment trust mode is injected
// at construction so every decision within one service instance reads
// one consistent posture value.
type PluginService struct {
	plugins   ports.PluginRepository
	events    ports.EventRepository
	ledger    *DisclosureLedger
	parser    ports.ManifestParser
	loader    ports.HandlerLoader
	guard     ports.CrashGuard
	audit     *AuditTrail
	trustMode values.TrustMode
	logger    *slog.Logger
}

// NewPluginService creates a plugin service.
func NewPluginService(
	plugins ports.PluginRepository,
	events ports.EventRepository,
	ledger *DisclosureLedger,
	parser ports.ManifestParser,
	loader ports.HandlerLoader,
	guard ports.CrashGuard,
	audit *AuditTrail,
	trustMode values.TrustMode,
	logger *slog.Logger,
) *PluginService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PluginService{
		plugins:   plugins,
		events:    events,
		ledger:    ledger,
		parser:    parser,
		loader:    loader,
		guard:     guard,
		audit:     audit,
		trustMode: trustMode,
		logger:    logger,
	}
}

// Install registers a plugin and its declared capabilities. Manifest
// parsing is fail-closed: malformed input installs nothing. Installing
// an already-present ID updates the manifest and re-runs disclosure
// row insertion without resetting acknowledgments.
func (s *PluginService) Install(ctx context.Context, id string, kind entities.SourceKind, manifestRaw []byte) (*entities.Plugin, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.NewValidationError("plugin_id", "is required")
	}
	if kind != entities.SourceBuiltin && kind != entities.SourceExternal {
		return nil, apperrors.NewValidationError("source_kind", fmt.Sprintf("%q is not builtin or external", kind))
	}
	if kind == entities.SourceBuiltin && !builtinPluginIDs[id] {
		return nil, &apperrors.ForbiddenError{
			Message: fmt.Sprintf("plugin %s is not a recognized builtin; builtin source kind is reserved", id),
		}
	}
	if kind == entities.SourceExternal && s.trustMode.Locked() {
		s.recordBlocked(ctx, id, "install")
		return nil, &apperrors.TrustModeBlockedError{PluginID: id}
	}

	manifest, err := s.parser.Parse(manifestRaw)
	if err != nil {
		return nil, apperrors.NewValidationError("manifest", err.Error())
	}
	if manifest.Version != "" {
		if _, err := semver.NewVersion(manifest.Version); err != nil {
			return nil, apperrors.NewValidationError("manifest.version",
				fmt.Sprintf("%q is not a valid semantic version", manifest.Version))
		}
	}

	now := time.Now().UTC()
	plugin, err := s.plugins.FindByID(ctx, id)
	if err != nil {
		plugin = &entities.Plugin{
			ID:          id,
			SourceKind:  kind,
			InstalledAt: now,
			// Builtins are trusted at registration; third-party code
			// stays disabled until an explicit, consented enable.
			Enabled: kind == entities.SourceBuiltin,
		}
	}
	plugin.Name = manifest.Name
	plugin.Manifest = manifest
	plugin.Declared = manifest.Declared()
	plugin.CurrentVersion = manifest.Version
	plugin.UpdatedAt = now

	if err := s.plugins.Save(ctx, plugin); err != nil {
		return nil, err
	}
	if err := s.ledger.EnsureRows(ctx, id, plugin.Declared); err != nil {
		return nil, err
	}
	if plugin.IsBuiltin() {
		if _, err := s.ledger.Acknowledge(ctx, id); err != nil {
			return nil, err
		}
	}

	s.appendEvent(ctx, entities.PluginEvent{
		PluginID: id,
		Action:   "install",
		Status:   entities.EventOK,
		Detail:   fmt.Sprintf("version %s, %d declared capabilities", plugin.CurrentVersion, len(plugin.Declared)),
	})
	s.audit.Record(ctx, entities.AuditEntry{
		EventType: "plugin_install",
		ActorType: entities.ActorOperator,
		Result:    entities.AuditAllowed,
		Metadata:  map[string]string{"plugin": id, "source_kind": string(kind)},
	})

	if plugin.Enabled {
		s.hotLoad(ctx, id)
	}
	return plugin, nil
}

// Enable turns a plugin on. Builtins always succeed and are
// auto-acknowledged. Third-party plugins are gated by the deployment
// trust mode and the explicit consent flag; a locked deployment denies
// unconditionally regardless of consent or disclosure state.
func (s *PluginService) Enable(ctx context.Context, id string, consentAccepted bool) (*entities.Plugin, error) {
	plugin, err := s.plugins.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("plugin", id)
	}

	if plugin.IsBuiltin() {
		return s.enableBuiltin(ctx, plugin)
	}

	if s.trustMode.Locked() {
		s.recordBlocked(ctx, id, "enable")
		s.audit.Record(ctx, entities.AuditEntry{
			EventType: "plugin_enable",
			ActorType: entities.ActorOperator,
			Result:    entities.AuditDenied,
			Metadata:  map[string]string{"plugin": id, "reason": "trust_mode_locked"},
		})
		return nil, &apperrors.TrustModeBlockedError{PluginID: id}
	}

	if !consentAccepted {
		return nil, &apperrors.ConsentRequiredError{PluginID: id}
	}

	// Capture which disclosures were unacknowledged immediately prior,
	// so the lifecycle event records what this consent covered.
	missing, err := s.ledger.Unacknowledged(ctx, id, plugin.Declared)
	if err != nil {
		return nil, err
	}

	plugin.Enabled = true
	plugin.UpdatedAt = time.Now().UTC()
	if err := s.plugins.Save(ctx, plugin); err != nil {
		return nil, err
	}
	if _, err := s.ledger.Acknowledge(ctx, id); err != nil {
		return nil, err
	}

	detail := "all disclosures previously acknowledged"
	if len(missing) > 0 {
		names := make([]string, len(missing))
		for i, c := range missing {
			names[i] = c.String()
		}
		detail = "acknowledged on enable: " + strings.Join(names, ", ")
	}
	s.appendEvent(ctx, entities.PluginEvent{
		PluginID: id,
		Action:   "enable",
		Status:   entities.EventOK,
		Detail:   detail,
	})
	s.audit.Record(ctx, entities.AuditEntry{
		EventType: "plugin_enable",
		ActorType: entities.ActorOperator,
		Result:    entities.AuditAllowed,
		Metadata:  map[string]string{"plugin": id},
	})

	s.guard.Reset(id)
	s.hotLoad(ctx, id)
	s.logger.Info("plugin enabled", "plugin", id, "notice", s.trustMode.IsolationNotice())
	return plugin, nil
}

func (s *PluginService) enableBuiltin(ctx context.Context, plugin *entities.Plugin) (*entities.Plugin, error) {
	plugin.Enabled = true
	plugin.UpdatedAt = time.Now().UTC()
	if err := s.plugins.Save(ctx, plugin); err != nil {
		return nil, err
	}
	if _, err := s.ledger.Acknowledge(ctx, plugin.ID); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, entities.PluginEvent{
		PluginID: plugin.ID,
		Action:   "enable",
		Status:   entities.EventOK,
		Detail:   "builtin plugin, auto-acknowledged",
	})
	s.guard.Reset(plugin.ID)
	s.hotLoad(ctx, plugin.ID)
	return plugin, nil
}

// Disable turns a plugin off and evicts its handler from the process,
// so the decision reaches the runtime immediately. Concurrent disables
// are idempotent point updates.
func (s *PluginService) Disable(ctx context.Context, id string) error {
	plugin, err := s.plugins.FindByID(ctx, id)
	if err != nil {
		return apperrors.NewNotFound("plugin", id)
	}

	plugin.Enabled = false
	plugin.UpdatedAt = time.Now().UTC()
	if err := s.plugins.Save(ctx, plugin); err != nil {
		return err
	}
	if s.loader != nil {
		s.loader.Unload(id)
	}
	s.appendEvent(ctx, entities.PluginEvent{
		PluginID: id,
		Action:   "disable",
		Status:   entities.EventOK,
	})
	s.audit.Record(ctx, entities.AuditEntry{
		EventType: "plugin_disable",
		ActorType: entities.ActorOperator,
		Result:    entities.AuditAllowed,
		Metadata:  map[string]string{"plugin": id},
	})
	return nil
}

// Get returns a plugin's detail projection: declared capabilities with
// per-capability acknowledgment status and recent lifecycle events.
func (s *PluginService) Get(ctx context.Context, id string, eventLimit int) (*dto.PluginDetail, error) {
	plugin, err := s.plugins.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("plugin", id)
	}

	detail, err := s.project(ctx, plugin)
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListByPlugin(ctx, id, eventLimit)
	if err != nil {
		return nil, err
	}
	detail.RecentEvents = events
	return detail, nil
}

// List returns the detail projection of every installed plugin,
// without events.
func (s *PluginService) List(ctx context.Context) ([]dto.PluginDetail, error) {
	plugins, err := s.plugins.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PluginDetail, 0, len(plugins))
	for _, p := range plugins {
		detail, err := s.project(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, *detail)
	}
	return out, nil
}

func (s *PluginService) project(ctx context.Context, plugin *entities.Plugin) (*dto.PluginDetail, error) {
	rows, err := s.ledger.Rows(ctx, plugin.ID)
	if err != nil {
		return nil, err
	}
	acked := make(map[string]bool, len(rows))
	for _, row := range rows {
		if row.Acknowledged {
			acked[row.Capability.String()] = true
		}
	}

	caps := make([]dto.CapabilityStatus, 0, len(plugin.Declared))
	ackedCount := 0
	for _, c := range plugin.Declared {
		status := dto.CapabilityStatus{
			Permission:   string(c.Permission),
			Scope:        c.Scope,
			Description:  c.Describe(),
			Acknowledged: acked[c.String()],
		}
		if status.Acknowledged {
			ackedCount++
		}
		caps = append(caps, status)
	}

	return &dto.PluginDetail{
		ID:                          plugin.ID,
		Name:                        plugin.Name,
		SourceKind:                  string(plugin.SourceKind),
		Version:                     plugin.CurrentVersion,
		Enabled:                     plugin.Enabled,
		DeclaredCapabilities:        caps,
		DeclaredCapabilityCount:     len(plugin.Declared),
		AcknowledgedDisclosureCount: ackedCount,
	}, nil
}

// recordBlocked appends exactly one blocked lifecycle event tagged for
// dashboards.
func (s *PluginService) recordBlocked(ctx context.Context, id, action string) {
	s.appendEvent(ctx, entities.PluginEvent{
		PluginID: id,
		Action:   action,
		Status:   entities.EventBlocked,
		Detail:   "third-party plugins are disabled in this deployment",
		Tag:      "trust_mode_locked",
	})
}

func (s *PluginService) appendEvent(ctx context.Context, event entities.PluginEvent) {
	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UTC()
	if err := s.events.Append(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("plugin event append failed", "plugin", event.PluginID, "action", event.Action, "error", err)
	}
}

// crashBudget is how many failed handler loads a plugin may accumulate
// before it is forced off. Enable resets the counter.
const crashBudget = 3

// hotLoad attempts to load the plugin's handler in the background.
// Fire-and-forget: a load failure is captured to the log and never
// rolls back the persisted install/enable state; a later process
// restart may retry.
func (s *PluginService) hotLoad(ctx context.Context, id string) {
	if s.loader == nil {
		return
	}
	go s.runHotLoad(context.WithoutCancel(ctx), id)
}

// runHotLoad performs one load attempt and feeds the crash guard. A
// plugin that exhausts its crash budget is disabled rather than left
// flapping.
func (s *PluginService) runHotLoad(ctx context.Context, id string) {
	err := s.loader.Load(ctx, id)
	if err == nil {
		return
	}
	s.logger.Warn("plugin handler hot-load failed", "plugin", id, "error", err)
	if s.guard == nil {
		return
	}
	crashes := s.guard.RecordCrash(id)
	if crashes < crashBudget {
		return
	}
	if derr := s.Disable(ctx, id); derr != nil {
		s.logger.Error("crash guard could not disable plugin", "plugin", id, "error", derr)
		return
	}
	s.appendEvent(ctx, entities.PluginEvent{
		PluginID: id,
		Action:   "disable",
		Status:   entities.EventBlocked,
		Detail:   fmt.Sprintf("handler failed to load %d times", crashes),
		Tag:      "crash_guard",
	})
}
