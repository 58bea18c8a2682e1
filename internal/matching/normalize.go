package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds text into the form trigrams are taken from: compatibility
// normalized, accents stripped, lower-cased, with every run of characters that
// are not letters or digits collapsed to a single space.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	// transform.Chain keeps state, so each call builds its own.
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, text)
	if err != nil {
		folded = norm.NFKC.String(text)
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// stopwords are function words that carry no topic. Short FAQ questions share
// most of them ("how do i ... my ..."), so they are left out of the trigram set.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "am": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "can": {}, "could": {}, "did": {}, "do": {}, "does": {},
	"for": {}, "from": {}, "how": {}, "i": {}, "if": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "me": {}, "my": {}, "of": {}, "on": {}, "or": {},
	"our": {}, "should": {}, "so": {}, "that": {}, "the": {}, "their": {},
	"them": {}, "then": {}, "there": {}, "these": {}, "this": {}, "to": {},
	"was": {}, "we": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "who": {}, "why": {}, "will": {}, "with": {}, "would": {},
	"you": {}, "your": {},
}

// ContentWords returns the normalized words of text without stopwords. Text
// made only of stopwords keeps all of its words.
func ContentWords(text string) []string {
	words := strings.Fields(Normalize(text))
	content := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := stopwords[w]; !ok {
			content = append(content, w)
		}
	}
	if len(content) == 0 {
		return words
	}
	return content
}

// Trigrams returns the set of word trigrams of the content words of text. Each
// word is padded with two leading spaces and one trailing space, so "ok"
// yields "  o", " ok", "ok ".
func Trigrams(text string) map[string]struct{} {
	words := ContentWords(text)
	set := make(map[string]struct{}, len(words)*4)
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}
