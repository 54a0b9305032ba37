package history

import (
	"strings"
	"unicode"
)

// sanitizeName turns s into a single safe path element.
func sanitizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "session"
	}

	var b strings.Builder
	b.Grow(len(s))
	lastDash := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t' || unicode.IsControl(r) || strings.ContainsRune(`/\:*?"<>|`, r):
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		default:
			b.WriteRune(r)
			lastDash = false
		}
	}

	out := strings.Trim(b.String(), ".- ")
	if out == "" {
		return "session"
	}
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
