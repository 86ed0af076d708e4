package values

import (
	"fmt"
	"strings"
)

const maxAliasLength = 64

// Alias represents a validated credential alias.
// Aliases are lowercase slugs and double as the interpolation
// placeholder name: a credential with alias "stripe_api" is referenced
// in requests as the literal token "{stripe_api}".
type Alias struct {
	value string
}

// NewAlias creates an Alias with validation.
func NewAlias(s string) (Alias, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Alias{}, fmt.Errorf("credential alias cannot be empty")
	}
	if len(s) > maxAliasLength {
		return Alias{}, fmt.Errorf("credential alias exceeds %d characters", maxAliasLength)
	}
	for _, ch := range s {
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '_' {
			continue
		}
		return Alias{}, fmt.Errorf("credential alias %q must be a lowercase slug ([a-z0-9_])", s)
	}
	return Alias{value: s}, nil
}

// MustNewAlias creates an Alias or panics.
func MustNewAlias(s string) Alias {
	a, err := NewAlias(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the string representation.
func (a Alias) String() string {
	return a.value
}

// Placeholder returns the literal interpolation token for this alias.
func (a Alias) Placeholder() string {
	return "{" + a.value + "}"
}

// IsEmpty returns true if this is the zero value.
func (a Alias) IsEmpty() bool {
	return a.value == ""
}

// Equals checks if two aliases are equal.
func (a Alias) Equals(other Alias) bool {
	return a.value == other.value
}

// MarshalJSON implements json.Marshaler.
func (a Alias) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Alias) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 {
		return fmt.Errorf("invalid alias JSON")
	}
	alias, err := NewAlias(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*a = alias
	return nil
}
