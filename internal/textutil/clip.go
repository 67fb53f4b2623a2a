package textutil

import (
	"regexp"
	"strings"
)

var (
	spaceRe    = regexp.MustCompile(`\s+`)
	sentenceRe = regexp.MustCompile(`[.?!]\s+`)
)

// CollapseSpace replaces every whitespace run with a single space and trims.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Sentences splits s after sentence-ending punctuation that is followed by
// whitespace. The punctuation stays with its sentence.
func Sentences(s string) []string {
	s = CollapseSpace(s)
	if s == "" {
		return nil
	}
	var parts []string
	last := 0
	for _, loc := range sentenceRe.FindAllStringIndex(s, -1) {
		parts = append(parts, s[last:loc[0]+1])
		last = loc[1]
	}
	if last < len(s) {
		parts = append(parts, s[last:])
	}
	return parts
}

// Sentenceify accumulates whole sentences of text until the joined result
// reaches max characters. It never cuts a sentence in half, so the result
// may run past max by the length of the last sentence.
func Sentenceify(text string, max int) string {
	parts := Sentences(text)
	if len(parts) == 0 {
		return Clip(CollapseSpace(text), max)
	}
	var b strings.Builder
	for _, p := range parts {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
		if b.Len() >= max {
			break
		}
	}
	return b.String()
}

// Clip truncates s to at most max bytes without splitting a UTF-8 sequence.
func Clip(s string, max int) string {
	if max < 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8Start(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }
