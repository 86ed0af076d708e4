package sensitivedata

import "sync"

// Provider implements ports.SensitiveValueProvider: a thread-safe
// registry of every secret value that has entered the request path.
// The redactor consults it so no tracked value can leave the broker in
// a response body, header, URL, or audit entry.
type Provider struct {
	values []string
	seen   map[string]bool
	mu     sync.RWMutex
}

// NewProvider creates a new sensitive data provider.
func NewProvider() *Provider {
	return &Provider{
		values: make([]string, 0, 32),
		seen:   make(map[string]bool, 32),
	}
}

// Track registers a sensitive value to be protected. Empty values and
// duplicates are ignored.
func (p *Provider) Track(value string) {
	if value == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen[value] {
		return
	}
	p.seen[value] = true
	p.values = append(p.values, value)
}

// AllValues returns a copy of all tracked sensitive values.
func (p *Provider) AllValues() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.values))
	copy(out, p.values)
	return out
}
