package scorer

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarkup extracts plain text from descriptions that carry HTML markup
func stripMarkup(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	text := doc.Text()
	if strings.TrimSpace(text) == "" {
		return s
	}
	return text
}

// tokenize splits lowercased text into alphanumeric tokens
func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// diacritic stripping: NFKD decompose, drop combining marks, recompose
var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var leetReplacer = strings.NewReplacer(
	"0", "o",
	"1", "i",
	"3", "e",
	"4", "a",
	"5", "s",
	"7", "t",
	"@", "a",
	"$", "s",
	"!", "i",
)

// foldToken normalizes away the cheap evasion tricks: accents, compatibility
// forms, and digit/symbol substitutions.
func foldToken(tok string) string {
	if folded, _, err := transform.String(foldTransformer, tok); err == nil {
		tok = folded
	}
	return leetReplacer.Replace(tok)
}

// matchRule matches a pattern against the text. Multi-word patterns match as
// substrings; single words match whole tokens with simple suffix tolerance.
// The returned bool pair is (obfuscated, matched).
func matchRule(tokens []string, lower, pattern string) (string, bool, bool) {
	if strings.ContainsRune(pattern, ' ') {
		if strings.Contains(lower, pattern) {
			return pattern, false, true
		}
		return "", false, false
	}

	for _, tok := range tokens {
		if suffixMatch(tok, pattern) {
			return tok, false, true
		}
	}

	// Second pass over folded tokens catches obfuscated spellings
	for _, tok := range tokens {
		folded := foldToken(tok)
		if folded == tok {
			continue
		}
		if suffixMatch(folded, pattern) {
			return tok, true, true
		}
	}

	return "", false, false
}

// suffixMatch reports a whole-word match allowing trivial plural and verb
// suffixes so "guns", "stabbing", and "threatened" still hit their stems.
func suffixMatch(tok, pattern string) bool {
	if tok == pattern {
		return true
	}
	if len(tok) <= len(pattern) {
		return false
	}
	switch strings.TrimPrefix(tok, pattern) {
	case "s", "es", "ing", "ed":
		return true
	}
	// "stab" -> "stabbing", "stabbed": doubled final consonant
	if len(pattern) > 2 && strings.HasPrefix(tok, pattern+string(pattern[len(pattern)-1])) {
		switch tok[len(pattern)+1:] {
		case "ing", "ed":
			return true
		}
	}
	return false
}
