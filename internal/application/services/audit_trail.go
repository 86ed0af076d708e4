// Package services contains the application services composing domain
// rules with infrastructure ports.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentgate-dev/agentgate/internal/application/ports"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
	domainservices "github.com/agentgate-dev/agentgate/internal/domain/services"
)

// AuditTrail is the append-only ledger of credential and capability
// decisions. Writes are best-effort: a failed append after an
// already-made decision is logged and swallowed, never converted into a
// caller-visible failure. Denial decisions are made and returned before
// their audit write is attempted, so an append failure can never turn a
// denial into an allow.
type AuditTrail struct {
	repo     ports.AuditRepository
	scrubber ports.Scrubber
	logger   *slog.Logger
}

// NewAuditTrail creates an audit trail. scrubber may be nil.
func NewAuditTrail(repo ports.AuditRepository, scrubber ports.Scrubber, logger *slog.Logger) *AuditTrail {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditTrail{repo: repo, scrubber: scrubber, logger: logger}
}

// Record appends one entry, assigning ID and timestamp and scrubbing
// metadata values.
func (t *AuditTrail) Record(ctx context.Context, entry entities.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if t.scrubber != nil && len(entry.Metadata) > 0 {
		scrubbed := make(map[string]string, len(entry.Metadata))
		for k, v := range entry.Metadata {
			scrubbed[k] = t.scrubber.Scrub(v)
		}
		entry.Metadata = scrubbed
	}

	// Audit writes are decoupled from any request timeout.
	if err := t.repo.Append(context.WithoutCancel(ctx), entry); err != nil {
		t.logger.Warn("audit append failed",
			"event_type", entry.EventType,
			"agent", entry.AgentID,
			"result", entry.Result,
			"error", err)
	}
}

// Query returns entries matching the filter, newest first, up to limit
// (0 means no limit).
func (t *AuditTrail) Query(ctx context.Context, filter *domainservices.AuditFilter, limit int) ([]entities.AuditEntry, error) {
	all, err := t.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	var matched []entities.AuditEntry
	for i := len(all) - 1; i >= 0; i-- {
		if filter == nil || filter.Matches(all[i]) {
			matched = append(matched, all[i])
			if limit > 0 && len(matched) >= limit {
				break
			}
		}
	}
	return matched, nil
}
