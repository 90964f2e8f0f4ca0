package util

import (
	"strings"
)

// SanitizePrefix keeps only [A-Za-z0-9/_-], trims surrounding slashes and
// appends a single trailing slash when anything is left.
func SanitizePrefix(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '/', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	s := strings.Trim(b.String(), "/")
	if s == "" {
		return ""
	}
	return s + "/"
}

// ExtensionOf returns the lower-cased text after the last dot of name, or
// "bin" when there is no name or no dot.
func ExtensionOf(name string) string {
	name = strings.TrimSpace(name)
	idx := strings.LastIndex(name, ".")
	if name == "" || idx < 0 {
		return "bin"
	}
	return strings.ToLower(name[idx+1:])
}
