package entities

import "time"

// ActorType identifies who triggered an audited action.
type ActorType string

// Actor types.
const (
	ActorAgent    ActorType = "agent"
	ActorOperator ActorType = "operator"
	ActorSystem   ActorType = "system"
)

// AuditResult classifies an audited decision.
type AuditResult string

// Audit results.
const (
	AuditAllowed AuditResult = "allowed"
	AuditDenied  AuditResult = "denied"
	AuditError   AuditResult = "error"
)

// AuditEntry is one append-only record of a credential or capability
// decision. Metadata carries host, path, method, and reason strings —
// never secret material; the trail scrubs values before persisting.
type AuditEntry struct {
	ID        string            `json:"id"`
	EventType string            `json:"event_type"`
	AgentID   string            `json:"agent_id,omitempty"`
	ActorType ActorType         `json:"actor_type"`
	Result    AuditResult       `json:"result"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
