package inventory

import "strings"

// =============================================================================
// CODE NORMALIZATION
// =============================================================================
//
// Business codes are normalized on every write and every lookup, so clients
// can be sloppy ("ab- 12" finds AB_12) while storage stays canonical.

// NormalizeFabricCode canonicalizes a fabric code: uppercase, whitespace and
// dashes become underscores, anything outside [A-Z0-9_] is dropped, runs of
// underscores collapse, and leading/trailing underscores are trimmed.
func NormalizeFabricCode(code string) string {
	up := strings.ToUpper(strings.TrimSpace(code))
	var b strings.Builder
	b.Grow(len(up))
	pendingSep := false
	for _, r := range up {
		switch {
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '-' || r == '_':
			pendingSep = true
		}
		// every other rune is dropped
	}
	return b.String()
}

// NormalizeColorCode canonicalizes a color code: uppercase, alphanumerics
// only. Color codes carry no separators.
func NormalizeColorCode(code string) string {
	up := strings.ToUpper(strings.TrimSpace(code))
	var b strings.Builder
	b.Grow(len(up))
	for _, r := range up {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
