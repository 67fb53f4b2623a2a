package textutil

import (
	"regexp"
	"strings"
)

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

// stopwords are dropped from questions so short questions reduce to the
// words that carry meaning.
var stopwords = map[string]bool{
	"what": true, "who": true, "when": true, "where": true, "why": true,
	"how": true, "is": true, "are": true, "the": true, "a": true,
	"an": true, "of": true, "to": true, "for": true, "about": true,
	"tell": true, "me": true, "explain": true, "define": true, "meaning": true,
	"stand": true, "standfor": true, "does": true, "do": true, "you": true,
	"we": true,
}

// Tokenize lowercases s and returns every ASCII letter/digit run longer
// than two characters, in order of appearance.
func Tokenize(s string) []string {
	words := wordRe.FindAllString(strings.ToLower(s), -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

// QueryTokens is Tokenize with stopwords removed.
func QueryTokens(s string) []string {
	words := Tokenize(s)
	out := words[:0]
	for _, w := range words {
		if !stopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

// Unique drops repeated tokens, keeping the first occurrence of each.
func Unique(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
