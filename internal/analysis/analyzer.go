// Package analysis provides the lexical analyzer shared by the sparse
// index and query building: alphanumeric tokenization, lowercase
// folding, and diacritic removal so accented and unaccented spellings
// match (the corpora are largely French).
package analysis

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldAccents decomposes to NFD, strips combining marks and recomposes,
// mapping "élevée" to "elevee".
var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases s and removes diacritics.
func Fold(s string) string {
	folded, _, err := transform.String(foldAccents, s)
	if err != nil {
		// Transform failure leaves the input usable as-is.
		folded = s
	}
	return strings.ToLower(folded)
}

// Tokenize splits s into folded alphanumeric tokens. Any rune that is
// neither a letter nor a digit is a separator. An input with no
// alphanumeric content yields no tokens.
func Tokenize(s string) []string {
	folded := Fold(s)

	var tokens []string
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
