// Package hostpolicy implements allow-list matching for outbound hosts.
// It is a pure domain service: no I/O, fully deterministic.
package hostpolicy

import "strings"

// Matches reports whether host is permitted by at least one pattern.
//
// A pattern matches when:
//   - it is "*" (allow all);
//   - it starts with "*." and host ends with the pattern minus the
//     leading "*" — so "*.example.com" matches "api.example.com" but
//     not the bare "example.com";
//   - it equals the host exactly.
//
// Hostnames are case-insensitive, so both sides are normalized to
// lowercase before comparison.
func Matches(host string, patterns []string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}

	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		switch {
		case p == "":
			continue
		case p == "*":
			return true
		case strings.HasPrefix(p, "*."):
			// "*.example.com" -> suffix ".example.com"
			if strings.HasSuffix(host, p[1:]) {
				return true
			}
		case host == p:
			return true
		}
	}
	return false
}
