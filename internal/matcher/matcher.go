// Package matcher detects the prover failure signature in log lines and
// extracts the order identifier.
package matcher

import (
	"regexp"
	"strings"
)

// orderIDRe matches a 32-byte hex order identifier as emitted by the broker.
var orderIDRe = regexp.MustCompile(`0x[a-fA-F0-9]{64}`)

// DefaultMarkers are the substrings that identify a terminal proving failure.
// All markers must appear on the same line for a match.
var DefaultMarkers = []string{
	"Proving failed after retries",
	"Monitoring proof (stark) failed: [B-BON-005] Prover failure: SessionId",
}

// Matcher tests log lines against the failure signature.
type Matcher struct {
	markers []string
}

// New creates a Matcher for the given marker substrings. An empty slice
// falls back to DefaultMarkers.
func New(markers []string) *Matcher {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	return &Matcher{markers: markers}
}

// Match returns the order ID embedded in line if the line carries the full
// failure signature: every marker substring plus a well-formed order ID.
// Match is pure and keeps no state.
func (m *Matcher) Match(line string) (string, bool) {
	for _, marker := range m.markers {
		if !strings.Contains(line, marker) {
			return "", false
		}
	}
	id := orderIDRe.FindString(line)
	if id == "" {
		return "", false
	}
	return id, true
}

// IsOrderID reports whether s is exactly a well-formed order identifier.
func IsOrderID(s string) bool {
	return len(s) == 66 && orderIDRe.FindString(s) == s
}
