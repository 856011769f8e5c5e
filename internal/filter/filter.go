// Package filter masks disallowed words in message text before it is stored.
package filter

import (
	"sort"
	"strings"
	"unicode"
)

// Masker replaces configured words with equal-length runs of '*'.
// Matching is case-insensitive and longest-match-first, so a word that
// contains another configured word is masked once, not twice.
type Masker struct {
	words []string // lowercased, longest first
}

// New builds a Masker from the configured word list. Empty entries are
// dropped; duplicates are harmless.
func New(words []string) *Masker {
	cleaned := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		cleaned = append(cleaned, lowerRunes(w))
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		return len([]rune(cleaned[i])) > len([]rune(cleaned[j]))
	})
	return &Masker{words: cleaned}
}

// Mask returns text with every configured word replaced by asterisks of the
// same rune length. Regions already masked by a longer word are skipped.
func (m *Masker) Mask(text string) string {
	if len(m.words) == 0 || text == "" {
		return text
	}

	runes := []rune(text)
	// Lowercase rune-by-rune so positions line up with the original text.
	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}
	masked := make([]bool, len(runes))

	for _, word := range m.words {
		target := []rune(word)
		if len(target) == 0 || len(target) > len(lower) {
			continue
		}
		for i := 0; i+len(target) <= len(lower); i++ {
			if masked[i] || !matchAt(lower, target, i) {
				continue
			}
			for j := i; j < i+len(target); j++ {
				masked[j] = true
			}
			i += len(target) - 1
		}
	}

	changed := false
	for i, hit := range masked {
		if hit {
			runes[i] = '*'
			changed = true
		}
	}
	if !changed {
		return text
	}
	return string(runes)
}

func lowerRunes(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}
	return string(runes)
}

func matchAt(text, word []rune, at int) bool {
	for i, r := range word {
		if text[at+i] != r {
			return false
		}
	}
	return true
}
