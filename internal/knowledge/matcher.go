package knowledge

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Matcher decides whether proposed content is close enough to an existing
// record body to be treated as a duplicate.
type Matcher interface {
	Similar(existing, proposed string) bool
}

// LexicalMatcher is keyword overlap: proposed content is split on whitespace
// and the separators , ， 。 into tokens; tokens of two runes or fewer are
// ignored. Content is similar when at least min(MinMatches, tokens) tokens
// occur in the existing body, case-insensitively.
//
// Content with no qualifying tokens is therefore always similar.
type LexicalMatcher struct {
	MinMatches int // 0 means 3
}

// Similar implements Matcher.
func (m LexicalMatcher) Similar(existing, proposed string) bool {
	need := m.MinMatches
	if need <= 0 {
		need = 3
	}
	tokens := lexicalTokens(proposed)
	need = min(need, len(tokens))

	haystack := strings.ToLower(existing)
	hits := 0
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) {
			hits++
		}
	}
	return hits >= need
}

func lexicalTokens(s string) []string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '，' || r == '。'
	})
	var out []string
	for _, p := range parts {
		if utf8.RuneCountInString(p) > 2 {
			out = append(out, p)
		}
	}
	return out
}
