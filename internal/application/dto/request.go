// Package dto defines transport shapes for the agent tool surface and
// the operator management surface.
package dto

// SecureRequest is the input of the secure_http_request tool call.
// BodyJSON and BodyText are mutually exclusive.
type SecureRequest struct {
	AgentID         string            `json:"agent_id"`
	CredentialAlias string            `json:"credential_alias"`
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	Headers         map[string]string `json:"headers,omitempty"`
	Query           map[string]string `json:"query,omitempty"`
	BodyJSON        map[string]any    `json:"body_json,omitempty"`
	BodyText        string            `json:"body_text,omitempty"`
	TimeoutMs       int               `json:"timeout_ms,omitempty"`
}

// UsageRecord is reserved for future cost accounting. All fields are
// zero today.
type UsageRecord struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// SecureResponse is the result of a dispatched secure_http_request.
// Headers, body, and URL are post-redaction: the credential secret
// never appears in any of them.
type SecureResponse struct {
	Status        int               `json:"status"`
	StatusText    string            `json:"status_text"`
	URL           string            `json:"url"`
	Headers       map[string]string `json:"headers"`
	Body          string            `json:"body"`
	Truncated     bool              `json:"truncated"`
	OmittedBytes  int               `json:"omitted_bytes,omitempty"`
	DurationMs    int64             `json:"duration_ms"`
	HTTPOk        bool              `json:"http_ok"`
	Usage         UsageRecord       `json:"usage"`
}
