package services

import (
	"strings"

	"github.com/agentgate-dev/agentgate/internal/application/dto"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
)

// InterpolationResult holds the request copies with the secret
// substituted, plus per-location booleans recording where substitutions
// happened. The original request is never mutated.
type InterpolationResult struct {
	Headers  map[string]string
	Query    map[string]string
	BodyJSON map[string]any
	BodyText string

	UsedIn map[entities.Location]bool
}

// Used reports whether any location received the secret.
func (r InterpolationResult) Used() bool {
	return r.UsedIn[entities.LocationHeader] ||
		r.UsedIn[entities.LocationQuery] ||
		r.UsedIn[entities.LocationBody]
}

// InterpolateSecret replaces every occurrence of the literal
// placeholder token (e.g. "{stripe_api}") with the secret across
// headers, query parameters, and the body. Matching is on the exact
// placeholder token only, so an alias can never match as a substring of
// unrelated text.
func InterpolateSecret(req dto.SecureRequest, placeholder, secret string) InterpolationResult {
	result := InterpolationResult{
		UsedIn: make(map[entities.Location]bool, 3),
	}

	if len(req.Headers) > 0 {
		result.Headers = make(map[string]string, len(req.Headers))
		for k, v := range req.Headers {
			replaced, hit := substitute(v, placeholder, secret)
			result.Headers[k] = replaced
			if hit {
				result.UsedIn[entities.LocationHeader] = true
			}
		}
	}

	if len(req.Query) > 0 {
		result.Query = make(map[string]string, len(req.Query))
		for k, v := range req.Query {
			replaced, hit := substitute(v, placeholder, secret)
			result.Query[k] = replaced
			if hit {
				result.UsedIn[entities.LocationQuery] = true
			}
		}
	}

	if req.BodyJSON != nil {
		walked, hit := substituteValue(req.BodyJSON, placeholder, secret)
		result.BodyJSON = walked.(map[string]any)
		if hit {
			result.UsedIn[entities.LocationBody] = true
		}
	} else if req.BodyText != "" {
		replaced, hit := substitute(req.BodyText, placeholder, secret)
		result.BodyText = replaced
		if hit {
			result.UsedIn[entities.LocationBody] = true
		}
	}

	return result
}

func substitute(value, placeholder, secret string) (string, bool) {
	if !strings.Contains(value, placeholder) {
		return value, false
	}
	return strings.ReplaceAll(value, placeholder, secret), true
}

// substituteValue walks arbitrary decoded JSON, substituting in string
// leaves. Returns a deep copy; containers are never shared with the
// input.
func substituteValue(value any, placeholder, secret string) (any, bool) {
	switch v := value.(type) {
	case string:
		return substituteString(v, placeholder, secret)
	case map[string]any:
		out := make(map[string]any, len(v))
		hit := false
		for k, item := range v {
			replaced, itemHit := substituteValue(item, placeholder, secret)
			out[k] = replaced
			hit = hit || itemHit
		}
		return out, hit
	case []any:
		out := make([]any, len(v))
		hit := false
		for i, item := range v {
			replaced, itemHit := substituteValue(item, placeholder, secret)
			out[i] = replaced
			hit = hit || itemHit
		}
		return out, hit
	default:
		return v, false
	}
}

func substituteString(value, placeholder, secret string) (any, bool) {
	replaced, hit := substitute(value, placeholder, secret)
	return replaced, hit
}
