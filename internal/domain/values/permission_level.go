// Package values defines validated value objects shared across the domain.
package values

import (
	"fmt"
	"strings"
)

// PermissionLevel represents the access level resolved for a provider scope.
// Levels are ordered: read < write < admin.
type PermissionLevel struct {
	value permissionRank
}

type permissionRank int

const (
	rankNone  permissionRank = 0
	rankRead  permissionRank = 1
	rankWrite permissionRank = 2
	rankAdmin permissionRank = 3
)

// Predefined permission levels.
var (
	PermNone  = PermissionLevel{rankNone}
	PermRead  = PermissionLevel{rankRead}
	PermWrite = PermissionLevel{rankWrite}
	PermAdmin = PermissionLevel{rankAdmin}
)

// NewPermissionLevel creates a PermissionLevel from string.
func NewPermissionLevel(s string) (PermissionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read":
		return PermRead, nil
	case "write":
		return PermWrite, nil
	case "admin":
		return PermAdmin, nil
	case "":
		return PermNone, nil
	default:
		return PermissionLevel{}, fmt.Errorf("invalid permission level: %s", s)
	}
}

// String returns the string representation.
func (p PermissionLevel) String() string {
	switch p.value {
	case rankRead:
		return "read"
	case rankWrite:
		return "write"
	case rankAdmin:
		return "admin"
	default:
		return ""
	}
}

// Rank returns the numeric level (for ordering).
func (p PermissionLevel) Rank() int {
	return int(p.value)
}

// AtLeast reports whether p grants at least the given level.
func (p PermissionLevel) AtLeast(other PermissionLevel) bool {
	return p.value >= other.value
}

// Max returns the higher of two levels. Aggregation across capability
// grants only ever raises a scope's level, never lowers it.
func (p PermissionLevel) Max(other PermissionLevel) PermissionLevel {
	if other.value > p.value {
		return other
	}
	return p
}

// MarshalJSON implements json.Marshaler.
func (p PermissionLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PermissionLevel) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	level, err := NewPermissionLevel(s)
	if err != nil {
		return err
	}
	*p = level
	return nil
}
