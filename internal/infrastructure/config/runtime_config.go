package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/agentgate-dev/agentgate/internal/domain/values"
)

// RuntimeConfig aggregates all runtime configuration.
// This is a value object that flows through the system.
type RuntimeConfig struct {
	// Policy
	TrustMode          string
	DefaultTokenPreset string

	// Request execution
	DefaultTimeoutMs int
	TimeoutCapMs     int
	MaxBodyChars     int

	// Provider app credentials for scoped token minting
	GitHubAppID          string
	GitHubPrivateKeyPath string
	GitHubAPIBaseURL     string
}

// Load reads configuration from the viper instance bound to the CLI.
// Every key resolves through viper so flags, environment variables and
// the config file share one precedence chain.
func Load(v *viper.Viper) (*RuntimeConfig, error) {
	cfg := &RuntimeConfig{
		TrustMode:            v.GetString("trust_mode"),
		DefaultTokenPreset:   v.GetString("token.default_preset"),
		DefaultTimeoutMs:     v.GetInt("request.default_timeout_ms"),
		TimeoutCapMs:         v.GetInt("request.timeout_cap_ms"),
		MaxBodyChars:         v.GetInt("request.max_body_chars"),
		GitHubAppID:          v.GetString("github.app_id"),
		GitHubPrivateKeyPath: v.GetString("github.private_key_path"),
		GitHubAPIBaseURL:     v.GetString("github.api_base_url"),
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults applies defaults for zero values.
func (r *RuntimeConfig) ApplyDefaults() {
	if r.TrustMode == "" {
		r.TrustMode = values.TrustSelfHostGuarded.String()
	}
	if r.DefaultTokenPreset == "" {
		r.DefaultTokenPreset = "repo-collaborator"
	}
	if r.DefaultTimeoutMs == 0 {
		r.DefaultTimeoutMs = 30000
	}
	if r.TimeoutCapMs == 0 {
		r.TimeoutCapMs = 30000
	}
	if r.MaxBodyChars == 0 {
		r.MaxBodyChars = 10000
	}
	if r.GitHubAPIBaseURL == "" {
		r.GitHubAPIBaseURL = "https://api.github.com"
	}
}

// Validate rejects values that would put the broker in an undefined
// state at wiring time rather than mid-request.
func (r *RuntimeConfig) Validate() error {
	if _, err := values.NewTrustMode(r.TrustMode); err != nil {
		return fmt.Errorf("invalid trust_mode: %w", err)
	}
	if r.DefaultTimeoutMs < 0 || r.TimeoutCapMs < 0 {
		return fmt.Errorf("request timeouts must be non-negative")
	}
	if r.DefaultTimeoutMs > r.TimeoutCapMs {
		return fmt.Errorf("request.default_timeout_ms %d exceeds request.timeout_cap_ms %d", r.DefaultTimeoutMs, r.TimeoutCapMs)
	}
	if r.MaxBodyChars <= 0 {
		return fmt.Errorf("request.max_body_chars must be positive")
	}
	if !strings.HasPrefix(r.GitHubAPIBaseURL, "http://") && !strings.HasPrefix(r.GitHubAPIBaseURL, "https://") {
		return fmt.Errorf("github.api_base_url must be an http(s) URL")
	}
	return nil
}

// TrustModeValue returns the parsed trust mode. Call after Validate.
func (r *RuntimeConfig) TrustModeValue() values.TrustMode {
	tm, err := values.NewTrustMode(r.TrustMode)
	if err != nil {
		return values.TrustSelfHostGuarded
	}
	return tm
}
