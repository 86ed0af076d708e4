package capabilities

// Grant represents the abstract capabilities a human has assigned to an
// agent over one external resource (e.g. a repository).
type Grant struct {
	AgentID      string           `json:"agent_id"`
	ResourceID   string           `json:"resource_id"`
	Capabilities []RepoCapability `json:"capabilities"`
}

// IsEmpty reports whether the grant carries no capabilities.
func (g Grant) IsEmpty() bool {
	return len(g.Capabilities) == 0
}

// Add appends a capability if it is not already present.
func (g *Grant) Add(c RepoCapability) {
	for _, existing := range g.Capabilities {
		if existing == c {
			return
		}
	}
	g.Capabilities = append(g.Capabilities, c)
}

// Contains checks if the grant includes a specific capability.
func (g Grant) Contains(c RepoCapability) bool {
	for _, existing := range g.Capabilities {
		if existing == c {
			return true
		}
	}
	return false
}
