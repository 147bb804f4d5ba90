// Package normalize provides the pure text transforms shared by grammar
// matching and alias lookup keys.
package normalize

import (
	"strings"
	"unicode"
)

// Text uppercases the input, collapses every run of non-alphanumeric
// characters into a single space, and trims the edges. It is deterministic,
// total, and idempotent.
func Text(input string) string {
	var b strings.Builder
	b.Grow(len(input))

	pendingSep := false
	for _, r := range input {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSep = false
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		pendingSep = true
	}

	return b.String()
}

// Tokens splits the raw utterance into uppercase whitespace-delimited tokens.
// Unlike Text it keeps intra-token punctuation ("$500", "-50", "3.50") so
// numeric extraction can see signs and currency markers.
func Tokens(input string) []string {
	return strings.Fields(strings.ToUpper(strings.TrimSpace(input)))
}
