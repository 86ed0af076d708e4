// Package capabilities defines domain types for plugin capability
// declarations and agent capability grants.
package capabilities

// Permission identifies one of the five capability categories a plugin
// manifest may declare.
type Permission string

// Declared permission categories.
const (
	PermissionNetwork         Permission = "network"
	PermissionSecret          Permission = "secret"
	PermissionFilesystemRead  Permission = "filesystem_read"
	PermissionFilesystemWrite Permission = "filesystem_write"
	PermissionProcessSpawn    Permission = "process_spawn"
)

// Valid reports whether p is one of the known categories.
func (p Permission) Valid() bool {
	switch p {
	case PermissionNetwork, PermissionSecret,
		PermissionFilesystemRead, PermissionFilesystemWrite,
		PermissionProcessSpawn:
		return true
	}
	return false
}

// Declared represents a single capability tuple derived from a plugin
// manifest: a permission category plus an optional scope. process_spawn
// is the only scopeless category.
// This is a pure value object in the domain.
type Declared struct {
	Permission Permission
	Scope      string
}

// Equals checks if two declared capabilities are equal (value object equality).
func (d Declared) Equals(other Declared) bool {
	return d.Permission == other.Permission && d.Scope == other.Scope
}

// String returns a human-readable representation of the capability.
func (d Declared) String() string {
	if d.Scope == "" {
		return string(d.Permission)
	}
	return string(d.Permission) + ":" + d.Scope
}

// IsEmpty returns true if this is a zero-value capability.
func (d Declared) IsEmpty() bool {
	return d.Permission == "" && d.Scope == ""
}

// Describe returns a human-readable explanation of what acknowledging
// this capability allows. Surfaced in disclosure prompts.
func (d Declared) Describe() string {
	switch d.Permission {
	case PermissionNetwork:
		if d.Scope == "*" {
			return "Plugin can connect to any host on the internet"
		}
		return "Plugin can make network requests to: " + d.Scope
	case PermissionSecret:
		return "Plugin can use the credential: " + d.Scope
	case PermissionFilesystemRead:
		return "Plugin can read files under: " + d.Scope
	case PermissionFilesystemWrite:
		return "Plugin can write files under: " + d.Scope
	case PermissionProcessSpawn:
		return "Plugin can spawn external processes"
	default:
		return "Plugin requires capability: " + d.String()
	}
}
