package quality

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/pkg/utils"
)

// qualifiers are seniority and work-mode words that do not change which job a
// posting describes. Abbreviations such as "sr" and "jr" are kept.
var qualifiers = map[string]bool{
	"senior": true, "junior": true, "lead": true, "principal": true, "staff": true,
	"intern": true, "entry": true, "mid": true, "level": true,
	"i": true, "ii": true, "iii": true, "iv": true,
	"remote": true, "hybrid": true, "onsite": true, "wfh": true, "anywhere": true,
}

// Simplify lowercases s, folds diacritics, turns punctuation into spaces and
// collapses whitespace.
func Simplify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

// NormalizeKey is Simplify with qualifier words removed.
func NormalizeKey(s string) string {
	words := strings.Fields(Simplify(s))
	out := words[:0]
	for _, w := range words {
		if !qualifiers[w] {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}

// Fingerprint is the SHA-256 hex digest of the normalized title, company and
// location. Trivial variants of the same posting share a fingerprint.
func Fingerprint(title, company, location string) string {
	return utils.HashString(NormalizeKey(title), NormalizeKey(company), NormalizeKey(location))
}
