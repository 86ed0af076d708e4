// Package sensitivedata provides tools for holding and tracking secret
// material inside the broker process.
package sensitivedata

import "runtime"

// SecureString holds a credential secret decrypted into memory
// immediately before use. The backing bytes are zeroed when no longer
// needed so the value's lifetime stays as short as practical.
type SecureString struct {
	value []byte
}

// NewSecureString creates a secure string from the input. The input is
// copied; the caller should drop its own reference promptly.
func NewSecureString(s string) *SecureString {
	ss := &SecureString{value: []byte(s)}
	// Zero the memory if the holder is garbage collected without an
	// explicit Zero call.
	runtime.SetFinalizer(ss, func(ss *SecureString) {
		ss.Zero()
	})
	return ss
}

// Expose returns the secret value. Never log the result.
func (ss *SecureString) Expose() string {
	return string(ss.value)
}

// Zero overwrites the memory with zeros. Call explicitly once the
// secret has been injected into its request location.
func (ss *SecureString) Zero() {
	for i := range ss.value {
		ss.value[i] = 0
	}
}
