// Package textnorm folds case and Turkish diacritics so spoken input can be
// compared with command patterns.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Applied after Turkish lowering, so only lower-case forms are needed.
var diacritics = strings.NewReplacer(
	"ç", "c",
	"ğ", "g",
	"ı", "i",
	"ö", "o",
	"ş", "s",
	"ü", "u",
)

// Normalize lowercases, folds diacritics and trims s. It never fails and
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	// Casers and transformers carry state, so they are built per call.
	lowered := cases.Lower(language.Turkish).String(s)
	folded := diacritics.Replace(lowered)

	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		folded,
	)
	if err != nil {
		stripped = folded
	}
	return strings.TrimSpace(stripped)
}
