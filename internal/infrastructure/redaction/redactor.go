// Package redaction scrubs secret material from text leaving the broker.
package redaction

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/agentgate-dev/agentgate/internal/application/ports"
)

const replacement = "[REDACTED]"

// Redactor removes tracked credential secrets from free-form text, and
// additionally runs the gitleaks detector so secrets echoed back by an
// external provider — ones this broker never issued — are scrubbed too.
// All fields are read-only after construction; safe for concurrent use.
type Redactor struct {
	tracked ports.SensitiveValueProvider

	// gitleaks detector (200+ patterns). If nil, only tracked values
	// are scrubbed.
	detector *detect.Detector
}

// Config holds the configuration for the Redactor.
type Config struct {
	// Tracked supplies the broker's own secret values.
	Tracked ports.SensitiveValueProvider
	// DisableDetector turns off the gitleaks pass, leaving only
	// tracked-value replacement. Intended for tests.
	DisableDetector bool
}

// New creates a Redactor.
func New(cfg Config) (*Redactor, error) {
	r := &Redactor{tracked: cfg.Tracked}
	if !cfg.DisableDetector {
		detector, err := newGitleaksDetector()
		if err != nil {
			// Fall back to tracked-value scrubbing only; the broker's
			// own secrets are still covered.
			return r, nil
		}
		r.detector = detector
	}
	return r, nil
}

// newGitleaksDetector builds a detector from the gitleaks default config.
func newGitleaksDetector() (*detect.Detector, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(strings.NewReader(config.DefaultConfig)); err != nil {
		return nil, fmt.Errorf("failed to read gitleaks config: %w", err)
	}

	var vc config.ViperConfig
	if err := v.Unmarshal(&vc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gitleaks config: %w", err)
	}

	cfg, err := vc.Translate()
	if err != nil {
		return nil, fmt.Errorf("failed to translate gitleaks config: %w", err)
	}

	return detect.NewDetector(cfg), nil
}

// Scrub replaces every tracked secret and every detector finding in the
// input.
func (r *Redactor) Scrub(input string) string {
	if input == "" {
		return ""
	}

	result := input

	if r.tracked != nil {
		for _, secret := range r.tracked.AllValues() {
			result = strings.ReplaceAll(result, secret, replacement)
		}
	}

	if r.detector != nil {
		findings := r.detector.Detect(detect.Fragment{Raw: result})
		for _, finding := range findings {
			if finding.Secret == "" {
				continue
			}
			result = strings.ReplaceAll(result, finding.Secret, replacement)
		}
	}

	return result
}
