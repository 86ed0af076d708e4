// Package apperrors defines the application-level error taxonomy.
// Every error carries a stable code surfaced on the agent tool boundary.
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// Stable error codes.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeDenied          = "DENIED"
	CodeNotFound        = "NOT_FOUND"
	CodeTimeout         = "TIMEOUT"
	CodeNetworkError    = "NETWORK_ERROR"
	CodeForbidden       = "FORBIDDEN"
	CodeConsentRequired = "CONSENT_REQUIRED"
)

// Policy denial reason tags. These identify the specific check that
// failed and appear verbatim in audit metadata.
const (
	ReasonCredentialUnavailable = "credential_not_assigned_or_disabled"
	ReasonHostNotAllowed        = "host_not_allowed"
	ReasonLocationNotAllowed    = "secret_location_not_allowed"
	ReasonPlaceholderUnused     = "placeholder_never_used"
	ReasonGrantMissing          = "capability_grant_missing"
)

// ValidationError indicates malformed caller input, surfaced verbatim
// as BAD_REQUEST before any lookup happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Code returns the stable error code.
func (e *ValidationError) Code() string { return CodeBadRequest }

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PolicyDeniedError indicates a request was refused by policy. The
// reason tag names the failed check; Message is operator guidance.
type PolicyDeniedError struct {
	Reason  string
	Message string
}

func (e *PolicyDeniedError) Error() string {
	return fmt.Sprintf("denied (%s): %s", e.Reason, e.Message)
}

// Code returns the stable error code.
func (e *PolicyDeniedError) Code() string { return CodeDenied }

// NewPolicyDenied creates a new policy denial.
func NewPolicyDenied(reason, message string) *PolicyDeniedError {
	return &PolicyDeniedError{Reason: reason, Message: message}
}

// NotFoundError indicates a referenced credential, plugin, or agent is
// absent.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Code returns the stable error code.
func (e *NotFoundError) Code() string { return CodeNotFound }

// NewNotFound creates a new not-found error.
func NewNotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// TimeoutError indicates the outbound call was aborted by its timer.
type TimeoutError struct {
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s", e.Elapsed)
}

// Code returns the stable error code.
func (e *TimeoutError) Code() string { return CodeTimeout }

// NetworkError indicates the outbound transport failed.
type NetworkError struct {
	Operation string
	Target    string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s to %s: %v", e.Operation, e.Target, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Code returns the stable error code.
func (e *NetworkError) Code() string { return CodeNetworkError }

// TrustModeBlockedError indicates the deployment's trust mode forbids
// third-party plugin operations outright. Kept distinct from
// ConsentRequiredError so callers can tell "this deployment forbids it"
// apart from "ask the human to consent".
type TrustModeBlockedError struct {
	PluginID string
}

func (e *TrustModeBlockedError) Error() string {
	return fmt.Sprintf("third-party plugin %s blocked: deployment trust mode is saas_locked", e.PluginID)
}

// Code returns the stable error code.
func (e *TrustModeBlockedError) Code() string { return CodeForbidden }

// Tag returns the dashboard tag for this block.
func (e *TrustModeBlockedError) Tag() string { return "trust_mode_locked" }

// ConsentRequiredError indicates a third-party enable was attempted
// without the explicit consent flag.
type ConsentRequiredError struct {
	PluginID string
}

func (e *ConsentRequiredError) Error() string {
	return fmt.Sprintf("enabling third-party plugin %s requires explicit consent", e.PluginID)
}

// Code returns the stable error code.
func (e *ConsentRequiredError) Code() string { return CodeBadRequest }

// ForbiddenError indicates an operation is categorically disallowed,
// e.g. declaring sourceKind=builtin for an unknown plugin ID.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// Code returns the stable error code.
func (e *ForbiddenError) Code() string { return CodeForbidden }

// IsDenied reports whether err is a policy denial.
func IsDenied(err error) bool {
	var d *PolicyDeniedError
	return errors.As(err, &d)
}

// IsConsentRequired reports whether err is a missing-consent failure.
func IsConsentRequired(err error) bool {
	var c *ConsentRequiredError
	return errors.As(err, &c)
}

// IsTrustModeBlocked reports whether err is a trust-mode block.
func IsTrustModeBlocked(err error) bool {
	var t *TrustModeBlockedError
	return errors.As(err, &t)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

// CodeOf returns the stable code for err, or empty for untyped errors.
func CodeOf(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}
