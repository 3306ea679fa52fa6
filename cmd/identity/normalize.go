package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization (trim + lower).
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validEmail(norm string) bool {
	at := strings.IndexByte(norm, '@')
	return at > 0 && at < len(norm)-1 && !strings.ContainsAny(norm, " \t\r\n")
}
