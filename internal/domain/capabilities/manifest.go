package capabilities

// Manifest is the validated, tagged form of a plugin's permission
// declarations. Malformed manifest input never reaches this type: the
// parser fails closed to an empty permission set instead.
type Manifest struct {
	Name        string        `json:"name" yaml:"name"`
	Version     string        `json:"version" yaml:"version"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Permissions PermissionSet `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

// PermissionSet holds the five declared permission categories.
type PermissionSet struct {
	Network    NetworkPermission    `json:"network,omitempty" yaml:"network,omitempty"`
	Secrets    []string             `json:"secrets,omitempty" yaml:"secrets,omitempty"`
	Filesystem FilesystemPermission `json:"filesystem,omitempty" yaml:"filesystem,omitempty"`
	Process    ProcessPermission    `json:"process,omitempty" yaml:"process,omitempty"`
}

// NetworkPermission declares which hosts the plugin may reach.
type NetworkPermission struct {
	Hosts []string `json:"hosts,omitempty" yaml:"hosts,omitempty"`
}

// FilesystemPermission declares readable and writable path prefixes.
type FilesystemPermission struct {
	Read  []string `json:"read,omitempty" yaml:"read,omitempty"`
	Write []string `json:"write,omitempty" yaml:"write,omitempty"`
}

// ProcessPermission declares whether the plugin may spawn processes.
type ProcessPermission struct {
	Spawn bool `json:"spawn,omitempty" yaml:"spawn,omitempty"`
}

// Declared flattens the manifest's permission categories into capability
// tuples: one per declared host, secret, and path, plus a single
// scopeless tuple when process spawning is allowed.
func (m Manifest) Declared() []Declared {
	var out []Declared
	for _, host := range m.Permissions.Network.Hosts {
		out = append(out, Declared{Permission: PermissionNetwork, Scope: host})
	}
	for _, secret := range m.Permissions.Secrets {
		out = append(out, Declared{Permission: PermissionSecret, Scope: secret})
	}
	for _, path := range m.Permissions.Filesystem.Read {
		out = append(out, Declared{Permission: PermissionFilesystemRead, Scope: path})
	}
	for _, path := range m.Permissions.Filesystem.Write {
		out = append(out, Declared{Permission: PermissionFilesystemWrite, Scope: path})
	}
	if m.Permissions.Process.Spawn {
		out = append(out, Declared{Permission: PermissionProcessSpawn})
	}
	return out
}
