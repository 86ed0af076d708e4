package services

import (
	"context"
	"time"

	"github.com/agentgate-dev/agentgate/internal/application/ports"
	"github.com/agentgate-dev/agentgate/internal/domain/capabilities"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
)

// DisclosureLedger tracks human acknowledgment of declared plugin
// capabilities. Rows are monotonic: EnsureRows inserts missing rows
// unacknowledged and never touches existing ones, so re-registration
// can never silently reset an acknowledgment.
type DisclosureLedger struct {
	repo ports.DisclosureRepository
}

// NewDisclosureLedger creates a disclosure ledger.
func NewDisclosureLedger(repo ports.DisclosureRepository) *DisclosureLedger {
	return &DisclosureLedger{repo: repo}
}

// EnsureRows idempotently inserts one unacknowledged row per capability
// tuple not already present.
func (l *DisclosureLedger) EnsureRows(ctx context.Context, pluginID string, caps []capabilities.Declared) error {
	for _, c := range caps {
		row := entities.DisclosureAck{
			PluginID:   pluginID,
			Capability: c,
		}
		if err := l.repo.Ensure(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// Acknowledge batch-marks every row for the plugin as acknowledged,
// returning how many rows were newly stamped.
func (l *DisclosureLedger) Acknowledge(ctx context.Context, pluginID string) (int, error) {
	return l.repo.AcknowledgeAll(ctx, pluginID, time.Now().UTC())
}

// Unacknowledged returns the declared capabilities with no matching
// acknowledged row.
func (l *DisclosureLedger) Unacknowledged(ctx context.Context, pluginID string, declared []capabilities.Declared) ([]capabilities.Declared, error) {
	rows, err := l.repo.ListByPlugin(ctx, pluginID)
	if err != nil {
		return nil, err
	}

	acked := make(map[string]bool, len(rows))
	for _, row := range rows {
		if row.Acknowledged {
			acked[row.Capability.String()] = true
		}
	}

	var missing []capabilities.Declared
	for _, c := range declared {
		if !acked[c.String()] {
			missing = append(missing, c)
		}
	}
	return missing, nil
}

// Rows returns every acknowledgment row for a plugin.
func (l *DisclosureLedger) Rows(ctx context.Context, pluginID string) ([]entities.DisclosureAck, error) {
	return l.repo.ListByPlugin(ctx, pluginID)
}
