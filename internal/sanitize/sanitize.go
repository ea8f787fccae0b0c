// Package sanitize screens untrusted form input before it reaches
// business logic.
//
// The character denylist blocks naive HTML/script injection and a subset
// of SQL metacharacters. It is a shallow, first-line defense: the real
// boundaries are parameterized queries at the store and html/template
// auto-escaping at render time. Do not rely on this package alone.
package sanitize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// denylist holds the characters rejected by IsInputSafe and removed by
// SanitizeInput.
const denylist = `<>'";`

// Normalize runs NFKC normalization over s. NFKC collapses visually
// confusable forms so the denylist cannot be evaded with fullwidth or
// composed variants. See http://www.unicode.org/reports/tr36/.
func Normalize(s string) string {
	return norm.NFKC.String(s)
}

// IsInputSafe reports whether s is free of denylisted characters.
// Empty input is safe.
func IsInputSafe(s string) bool {
	if s == "" {
		return true
	}
	return !strings.ContainsAny(s, denylist)
}

// SanitizeInput strips every denylisted character from s. Empty input is
// returned unchanged.
func SanitizeInput(s string) string {
	if s == "" {
		return s
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(denylist, r) {
			return -1
		}
		return r
	}, s)
}
