package logutil

import "strings"

// SanitizeForLog strips newlines and control characters from externally
// supplied strings before they reach the log, so a crafted account id or
// display name cannot forge log entries.
func SanitizeForLog(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(' ')
		case r < 32:
			// drop remaining control characters
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
