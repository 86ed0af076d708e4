package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agentgate-dev/agentgate/internal/application/dto"
	apperrors "github.com/agentgate-dev/agentgate/internal/application/errors"
	"github.com/agentgate-dev/agentgate/internal/application/ports"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
	"github.com/agentgate-dev/agentgate/internal/domain/hostpolicy"
	"github.com/agentgate-dev/agentgate/internal/domain/values"
)

// EventSecureHTTPRequest is the audit event type for the generic-API
// tool surface.
const EventSecureHTTPRequest = "secure_http_request"

// ExecutorOptions bounds a single execution.
type ExecutorOptions struct {
	// DefaultTimeoutMs applies when the caller omits timeout_ms.
	DefaultTimeoutMs int
	// TimeoutCapMs is the hard ceiling on any requested timeout.
	TimeoutCapMs int
	// MaxBodyChars is the response body character budget.
	MaxBodyChars int
}

// ApplyDefaults applies defaults for zero values.
func (o *ExecutorOptions) ApplyDefaults() {
	if o.DefaultTimeoutMs == 0 {
		o.DefaultTimeoutMs = 30000
	}
	if o.TimeoutCapMs == 0 {
		o.TimeoutCapMs = 30000
	}
	if o.MaxBodyChars == 0 {
		o.MaxBodyChars = 10000
	}
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// RequestExecutor orchestrates the secure HTTP tool call:
// lookup -> policy checks -> interpolation -> dispatch -> redaction -> audit.
type RequestExecutor struct {
	credentials ports.CredentialRepository
	audit       *AuditTrail
	client      ports.Doer
	secrets     ports.SensitiveValueProvider
	scrubber    ports.Scrubber
	opts        ExecutorOptions
	logger      *slog.Logger
}

// NewRequestExecutor creates a request executor.
func NewRequestExecutor(
	credentials ports.CredentialRepository,
	audit *AuditTrail,
	client ports.Doer,
	secrets ports.SensitiveValueProvider,
	scrubber ports.Scrubber,
	opts ExecutorOptions,
	logger *slog.Logger,
) *RequestExecutor {
	opts.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestExecutor{
		credentials: credentials,
		audit:       audit,
		client:      client,
		secrets:     secrets,
		scrubber:    scrubber,
		opts:        opts,
		logger:      logger,
	}
}

// Execute runs one secure_http_request invocation. Malformed input is
// rejected before any lookup; every credential-use decision produces
// exactly one audit entry, and a dispatched request additionally
// produces one post-dispatch outcome entry.
func (e *RequestExecutor) Execute(ctx context.Context, req dto.SecureRequest) (*dto.SecureResponse, error) {
	target, timeout, err := e.validate(&req)
	if err != nil {
		return nil, err
	}

	meta := map[string]string{
		"host":   target.Hostname(),
		"path":   target.Path,
		"method": req.Method,
		"alias":  req.CredentialAlias,
	}

	cred, err := e.resolveCredential(ctx, req)
	if err != nil {
		return nil, e.deny(ctx, req.AgentID, meta, apperrors.ReasonCredentialUnavailable,
			fmt.Sprintf("credential %q is not available to agent %q: it must exist, be enabled, and be assigned to the agent", req.CredentialAlias, req.AgentID))
	}

	if !hostpolicy.Matches(target.Hostname(), cred.AllowedHosts) {
		return nil, e.deny(ctx, req.AgentID, meta, apperrors.ReasonHostNotAllowed,
			fmt.Sprintf("host %q is not in the allowed hosts for credential %q", target.Hostname(), req.CredentialAlias))
	}

	// The secret becomes tracked the moment it enters the request path,
	// so every later output leg is scrubbed against it.
	e.secrets.Track(cred.Secret)
	interp := InterpolateSecret(req, cred.Alias.Placeholder(), cred.Secret)

	for _, loc := range []entities.Location{entities.LocationHeader, entities.LocationQuery, entities.LocationBody} {
		if interp.UsedIn[loc] && !cred.AllowsLocation(loc) {
			return nil, e.deny(ctx, req.AgentID, meta, apperrors.ReasonLocationNotAllowed,
				fmt.Sprintf("credential %q may not be placed in %s", req.CredentialAlias, loc.Human()))
		}
	}

	if !interp.Used() {
		return nil, e.deny(ctx, req.AgentID, meta, apperrors.ReasonPlaceholderUnused,
			fmt.Sprintf("the placeholder %s was not found in any request location; include it where the credential should be injected", cred.Alias.Placeholder()))
	}

	e.audit.Record(ctx, entities.AuditEntry{
		EventType: EventSecureHTTPRequest,
		AgentID:   req.AgentID,
		ActorType: entities.ActorAgent,
		Result:    entities.AuditAllowed,
		Metadata:  cloneMeta(meta),
	})

	resp, err := e.dispatch(ctx, req, target, interp, timeout)
	outcome := cloneMeta(meta)
	if err != nil {
		outcome["reason"] = err.Error()
		e.audit.Record(ctx, entities.AuditEntry{
			EventType: EventSecureHTTPRequest,
			AgentID:   req.AgentID,
			ActorType: entities.ActorAgent,
			Result:    entities.AuditError,
			Metadata:  outcome,
		})
		return nil, err
	}

	e.redact(resp, cred.Secret)
	e.truncate(resp)

	outcome["status"] = strconv.Itoa(resp.Status)
	outcome["duration_ms"] = strconv.FormatInt(resp.DurationMs, 10)
	e.audit.Record(ctx, entities.AuditEntry{
		EventType: EventSecureHTTPRequest,
		AgentID:   req.AgentID,
		ActorType: entities.ActorAgent,
		Result:    entities.AuditAllowed,
		Metadata:  outcome,
	})

	return resp, nil
}

// validate rejects malformed input before any lookup and resolves the
// effective timeout.
func (e *RequestExecutor) validate(req *dto.SecureRequest) (*url.URL, time.Duration, error) {
	if req.AgentID == "" {
		return nil, 0, apperrors.NewValidationError("agent_id", "is required")
	}
	if req.CredentialAlias == "" {
		return nil, 0, apperrors.NewValidationError("credential_alias", "is required")
	}

	req.Method = strings.ToUpper(strings.TrimSpace(req.Method))
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if !allowedMethods[req.Method] {
		return nil, 0, apperrors.NewValidationError("method",
			fmt.Sprintf("%q is not one of GET, POST, PUT, PATCH, DELETE", req.Method))
	}

	target, err := url.Parse(req.URL)
	if err != nil || !target.IsAbs() || target.Hostname() == "" {
		return nil, 0, apperrors.NewValidationError("url", "must be an absolute http or https URL")
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, 0, apperrors.NewValidationError("url",
			fmt.Sprintf("scheme %q is not supported; use http or https", target.Scheme))
	}

	if req.BodyJSON != nil && req.BodyText != "" {
		return nil, 0, apperrors.NewValidationError("body", "body_json and body_text are mutually exclusive")
	}

	timeoutMs := req.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = e.opts.DefaultTimeoutMs
	}
	if timeoutMs > e.opts.TimeoutCapMs {
		timeoutMs = e.opts.TimeoutCapMs
	}

	return target, time.Duration(timeoutMs) * time.Millisecond, nil
}

// resolveCredential looks up the credential by alias and verifies it is
// enabled and assigned to the calling agent.
func (e *RequestExecutor) resolveCredential(ctx context.Context, req dto.SecureRequest) (*entities.Credential, error) {
	alias, err := values.NewAlias(req.CredentialAlias)
	if err != nil {
		return nil, err
	}

	cred, err := e.credentials.FindByAlias(ctx, alias)
	if err != nil {
		return nil, err
	}
	if !cred.Enabled {
		return nil, fmt.Errorf("credential %s is disabled", alias)
	}

	assignment, err := e.credentials.FindAssignment(ctx, cred.ID, req.AgentID)
	if err != nil {
		return nil, err
	}
	if !assignment.Enabled {
		return nil, fmt.Errorf("assignment for credential %s to agent %s is disabled", alias, req.AgentID)
	}
	return cred, nil
}

// deny records exactly one audit entry for the decision, then returns
// the typed denial. The decision is final before the audit write is
// attempted.
func (e *RequestExecutor) deny(ctx context.Context, agentID string, meta map[string]string, reason, message string) error {
	denial := apperrors.NewPolicyDenied(reason, message)

	entry := cloneMeta(meta)
	entry["reason"] = reason
	e.logger.Warn("secure request denied", "agent", agentID, "reason", reason)
	e.audit.Record(ctx, entities.AuditEntry{
		EventType: EventSecureHTTPRequest,
		AgentID:   agentID,
		ActorType: entities.ActorAgent,
		Result:    entities.AuditDenied,
		Metadata:  entry,
	})
	return denial
}

// dispatch performs the HTTP call under an abortable timeout.
func (e *RequestExecutor) dispatch(ctx context.Context, req dto.SecureRequest, target *url.URL, interp InterpolationResult, timeout time.Duration) (*dto.SecureResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	contentType := ""
	switch {
	case interp.BodyJSON != nil:
		encoded, err := json.Marshal(interp.BodyJSON)
		if err != nil {
			return nil, apperrors.NewValidationError("body_json", err.Error())
		}
		bodyReader = strings.NewReader(string(encoded))
		contentType = "application/json"
	case interp.BodyText != "":
		bodyReader = strings.NewReader(interp.BodyText)
	}

	u := *target
	if len(interp.Query) > 0 {
		q := u.Query()
		for k, v := range interp.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, u.String(), bodyReader)
	if err != nil {
		return nil, apperrors.NewValidationError("url", err.Error())
	}
	for k, v := range interp.Headers {
		httpReq.Header.Set(k, v)
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, &apperrors.TimeoutError{Elapsed: duration}
		}
		return nil, &apperrors.NetworkError{Operation: "http_request", Target: target.Hostname(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperrors.NetworkError{Operation: "http_read_body", Target: target.Hostname(), Err: err}
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	finalURL := u.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &dto.SecureResponse{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		URL:        finalURL,
		Headers:    headers,
		Body:       string(raw),
		DurationMs: duration.Milliseconds(),
		HTTPOk:     resp.StatusCode >= 200 && resp.StatusCode < 300,
	}, nil
}

// redact removes the secret from every response leg: headers, body, and
// the final (possibly redirected) URL, including any query parameter
// whose value equals the secret. The body additionally passes through
// the pattern scrubber so provider-echoed foreign secrets are removed.
func (e *RequestExecutor) redact(resp *dto.SecureResponse, secret string) {
	const replacement = "[REDACTED]"

	for k, v := range resp.Headers {
		resp.Headers[k] = strings.ReplaceAll(v, secret, replacement)
	}

	resp.Body = strings.ReplaceAll(resp.Body, secret, replacement)
	if e.scrubber != nil {
		resp.Body = e.scrubber.Scrub(resp.Body)
	}

	resp.URL = strings.ReplaceAll(resp.URL, secret, replacement)
	if u, err := url.Parse(resp.URL); err == nil {
		q := u.Query()
		changed := false
		for key, vals := range q {
			for i, v := range vals {
				if v == secret {
					vals[i] = replacement
					changed = true
				}
			}
			q[key] = vals
		}
		if changed {
			u.RawQuery = q.Encode()
			resp.URL = u.String()
		}
	}
}

// truncate enforces the response body character budget. The cut point
// backs up to a rune boundary so a multibyte character at the edge is
// dropped whole rather than split into invalid UTF-8.
func (e *RequestExecutor) truncate(resp *dto.SecureResponse) {
	if len(resp.Body) <= e.opts.MaxBodyChars {
		return
	}
	cut := e.opts.MaxBodyChars
	for cut > 0 && !utf8.RuneStart(resp.Body[cut]) {
		cut--
	}
	resp.OmittedBytes = len(resp.Body) - cut
	resp.Body = resp.Body[:cut]
	resp.Truncated = true
}

func cloneMeta(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
