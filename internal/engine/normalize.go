package engine

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics transliterates accented letters to their base form:
// decompose, drop combining marks, recompose. "García" becomes "Garcia".
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var digitRun = regexp.MustCompile(`\d+`)

// NormalizeName canonicalizes free text for identity comparison: diacritics
// stripped, non-letters replaced by spaces, whitespace collapsed, uppercased.
// Bank statements carry names in arbitrary casing, padding and byte soup;
// payer records carry proper accents. Both sides normalize to the same form.
func NormalizeName(s string) string {
	out, _, err := transform.String(stripDiacritics, s)
	if err != nil {
		out = s
	}

	var b strings.Builder
	b.Grow(len(out))
	for _, r := range out {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// nameAppearsIn reports whether every word of the payer's normalized name
// appears in the normalized concept text. Word-wise comparison is required
// because statements list names in "LAST FIRST" order.
func nameAppearsIn(concept, name string) bool {
	nameWords := strings.Fields(NormalizeName(name))
	if len(nameWords) == 0 {
		return false
	}

	conceptWords := make(map[string]bool)
	for _, w := range strings.Fields(NormalizeName(concept)) {
		conceptWords[w] = true
	}

	for _, w := range nameWords {
		if !conceptWords[w] {
			return false
		}
	}
	return true
}

// digitTokens extracts every run of digits from the concept text as a
// candidate pledge id.
func digitTokens(concept string) map[int64]bool {
	tokens := make(map[int64]bool)
	for _, match := range digitRun.FindAllString(concept, -1) {
		if id, err := strconv.ParseInt(match, 10, 64); err == nil {
			tokens[id] = true
		}
	}
	return tokens
}
