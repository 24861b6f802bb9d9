package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// invalidFileNameChars are rejected by at least one common host filesystem.
const invalidFileNameChars = `<>:"/\|?*`

var controlStripper = runes.Remove(runes.Predicate(func(r rune) bool {
	return (unicode.IsControl(r) && !unicode.IsSpace(r)) || strings.ContainsRune(invalidFileNameChars, r)
}))

// SanitizeFileName removes characters invalid on the host filesystem, folds
// the result to NFC so visually identical names compare equal, and collapses
// whitespace runs to a single space. Leading dots and trailing dots or spaces
// are trimmed. An empty result is returned as-is; callers choose a fallback.
func SanitizeFileName(name string) string {
	t := transform.Chain(norm.NFC, controlStripper)
	cleaned, _, err := transform.String(t, name)
	if err != nil {
		cleaned = name
	}
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = strings.TrimLeft(cleaned, ".")
	return strings.TrimRight(cleaned, ". ")
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
