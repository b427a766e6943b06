// Package moderation masks forbidden words in chat text.
package moderation

import (
	"errors"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// ErrNoWords is returned when the word list is empty after normalization.
var ErrNoWords = errors.New("moderation: no censored words")

// Moderator replaces whole-word matches of a fixed dictionary.
// It is safe for concurrent use once built.
type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// New builds the matcher. Words are matched case-insensitively, with common
// digit and symbol substitutions folded to letters.
func New(words []string, replacement rune) (*Moderator, error) {
	patterns := lo.FilterMap(words, func(w string, _ int) ([]rune, bool) {
		p := fold([]rune(strings.TrimSpace(w)))
		return p, len(p) > 0
	})
	if len(patterns) == 0 {
		return nil, ErrNoWords
	}
	if replacement == 0 {
		replacement = '*'
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, replacement: replacement}, nil
}

// Censor returns text with every forbidden word masked rune for rune.
func (m *Moderator) Censor(text string) string {
	if m == nil || text == "" {
		return text
	}
	original := []rune(text)
	folded := fold(original)

	hits := m.matcher.MultiPatternSearch(folded, false)
	if len(hits) == 0 {
		return text
	}
	for _, hit := range hits {
		start, end := hit.Pos, hit.Pos+len(hit.Word)
		if start < 0 || end > len(folded) || !wholeWord(folded, start, end) {
			continue
		}
		for i := start; i < end; i++ {
			original[i] = m.replacement
		}
	}
	return string(original)
}

// fold maps runes one to one so indexes line up with the input.
func fold(in []rune) []rune {
	out := make([]rune, len(in))
	for i, r := range in {
		switch r {
		case '4', '@':
			r = 'a'
		case '3', '€':
			r = 'e'
		case '1':
			r = 'i'
		case '0':
			r = 'o'
		case '5', '$':
			r = 's'
		}
		out[i] = unicode.ToLower(r)
	}
	return out
}

func wholeWord(text []rune, start, end int) bool {
	if start > 0 && isWordRune(text[start-1]) {
		return false
	}
	if end < len(text) && isWordRune(text[end]) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
