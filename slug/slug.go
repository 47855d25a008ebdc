package slug

import (
	"regexp"
	"strings"
)

// MaxLength caps a tenant slug.
const MaxLength = 50

var (
	validPattern = regexp.MustCompile(`^[a-z0-9_-]{3,50}$`)
	whitespace   = regexp.MustCompile(`\s+`)
	disallowed   = regexp.MustCompile(`[^a-z0-9_-]`)
)

// reserved names are owned by the platform itself and can never resolve to a
// tenant link, neither as a subdomain nor as a path segment.
var reserved = map[string]struct{}{
	"www":       {},
	"api":       {},
	"dashboard": {},
	"admin":     {},
	"login":     {},
	"signup":    {},
	"logout":    {},
	"auth":      {},
	"settings":  {},
	"billing":   {},
	"analytics": {},
	"static":    {},
	"assets":    {},
	"public":    {},
	"health":    {},
	"status":    {},
	"metrics":   {},
}

// IsReserved reports whether s names a platform route. Case-insensitive.
func IsReserved(s string) bool {
	_, ok := reserved[strings.ToLower(s)]
	return ok
}

// Valid reports whether s is an acceptable stored slug.
func Valid(s string) bool {
	return validPattern.MatchString(s)
}

// Sanitize lowercases s, turns whitespace runs into "-", drops anything
// outside [a-z0-9_-] and truncates to MaxLength.
func Sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespace.ReplaceAllString(s, "-")
	s = disallowed.ReplaceAllString(s, "")
	if len(s) > MaxLength {
		s = s[:MaxLength]
	}
	return s
}
