package values

import (
	"fmt"
	"strings"
)

// TrustMode is the deployment-wide policy governing whether third-party
// plugin code may run. It is passed explicitly into every policy-evaluating
// call; there is no ambient process-global mode.
//
// None of the modes provide kernel-level isolation: plugin code runs
// in-process. The modes differ only in what they allow, not in how
// plugin code is contained.
type TrustMode struct {
	value string
}

// Predefined trust modes.
var (
	// TrustSelfHostOpen allows third-party plugins with operator consent.
	TrustSelfHostOpen = TrustMode{"self_host_open"}
	// TrustSelfHostGuarded is the default: third-party plugins require
	// explicit consent and full disclosure acknowledgment.
	TrustSelfHostGuarded = TrustMode{"self_host_guarded"}
	// TrustSaasLocked denies any non-builtin install or enable outright,
	// independent of consent or disclosure state.
	TrustSaasLocked = TrustMode{"saas_locked"}
)

// NewTrustMode creates a TrustMode from its string form.
// An empty string resolves to the guarded default.
func NewTrustMode(s string) (TrustMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "self_host_open":
		return TrustSelfHostOpen, nil
	case "self_host_guarded", "":
		return TrustSelfHostGuarded, nil
	case "saas_locked":
		return TrustSaasLocked, nil
	default:
		return TrustMode{}, fmt.Errorf("invalid trust mode: %s", s)
	}
}

// MustNewTrustMode creates a TrustMode or panics.
func MustNewTrustMode(s string) TrustMode {
	m, err := NewTrustMode(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String returns the string representation.
func (m TrustMode) String() string {
	return m.value
}

// IsEmpty returns true if this is the zero value.
func (m TrustMode) IsEmpty() bool {
	return m.value == ""
}

// Locked reports whether this deployment forbids third-party plugins
// unconditionally.
func (m TrustMode) Locked() bool {
	return m.value == TrustSaasLocked.value
}

// IsolationNotice is the advisory limitation surfaced to operators in
// every mode. It is informational, not an enforcement difference.
func (m TrustMode) IsolationNotice() string {
	return "plugin code executes in-process without kernel-level isolation"
}
