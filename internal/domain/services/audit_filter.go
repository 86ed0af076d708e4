// Package services contains pure domain services.
package services

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/agentgate-dev/agentgate/internal/domain/entities"
)

// AuditEnv defines the variables available during audit filter
// expression evaluation.
type AuditEnv struct {
	EventType string `expr:"event_type"`
	AgentID   string `expr:"agent_id"`
	Result    string `expr:"result"`
	Host      string `expr:"host"`
	Method    string `expr:"method"`
	Reason    string `expr:"reason"`
}

// AuditFilter selects audit entries matching agent, event type, and an
// optional compiled expression.
type AuditFilter struct {
	agentID   string
	eventType string
	program   *vm.Program
}

// NewAuditFilter initializes a new empty filter.
func NewAuditFilter() *AuditFilter {
	return &AuditFilter{}
}

// WithAgent restricts matches to one agent.
func (f *AuditFilter) WithAgent(agentID string) *AuditFilter {
	f.agentID = agentID
	return f
}

// WithEventType restricts matches to one event type.
func (f *AuditFilter) WithEventType(eventType string) *AuditFilter {
	f.eventType = eventType
	return f
}

// WithExpression compiles and applies an advanced filter expression,
// e.g. `result == "denied" && host contains "facebook"`.
func (f *AuditFilter) WithExpression(source string) (*AuditFilter, error) {
	program, err := expr.Compile(source, expr.Env(AuditEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid audit filter expression: %w", err)
	}
	f.program = program
	return f, nil
}

// Matches evaluates whether an entry passes the filter criteria.
func (f *AuditFilter) Matches(entry entities.AuditEntry) bool {
	if f.agentID != "" && entry.AgentID != f.agentID {
		return false
	}
	if f.eventType != "" && entry.EventType != f.eventType {
		return false
	}
	if f.program == nil {
		return true
	}

	env := AuditEnv{
		EventType: entry.EventType,
		AgentID:   entry.AgentID,
		Result:    string(entry.Result),
		Host:      entry.Metadata["host"],
		Method:    entry.Metadata["method"],
		Reason:    entry.Metadata["reason"],
	}
	out, err := expr.Run(f.program, env)
	if err != nil {
		return false
	}
	matched, ok := out.(bool)
	return ok && matched
}
