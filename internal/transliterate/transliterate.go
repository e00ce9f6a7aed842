// Package transliterate folds accented text to plain ASCII so filter
// patterns match content regardless of accent usage on either side, e.g.
// a query for "bach" should match metadata containing "Bäch".
package transliterate

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer decomposes runes (NFD) and strips the resulting combining
// marks, the standard Go substitute for a full unidecode table: it handles
// the common case (accented Latin script) without requiring a bundled
// per-character transliteration table.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ASCII returns s with combining diacritics stripped. Characters with no
// decomposition (including non-Latin scripts) pass through unchanged.
func ASCII(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return out
}
