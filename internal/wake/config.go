// Package wake decides whether a transcribed audio window contains the wake
// phrase.
//
// A [PhraseConfig] is an immutable set of accepted spellings. Recognisers
// mishear names, so the set holds every variant seen in practice ("hey maia",
// "a maya", ...) and grows through [PhraseConfig.WithVariants], which returns
// a new value. Learned variants are persisted by a [Store] and folded in at
// the next start.
package wake

import (
	"errors"
	"sort"
	"strings"
	"unicode"
)

// ErrNoVariants is returned when a phrase config would accept nothing.
var ErrNoVariants = errors.New("wake: no wake phrase variants configured")

// DefaultVariants are the spellings recognisers commonly produce for the
// default assistant name.
var DefaultVariants = []string{
	"hey maya",
	"hey maia",
	"a maya",
	"hey maria",
	"maya",
	"maia",
	"maria",
	"hey my",
	"my maya",
}

// PhraseConfig is an immutable set of normalised wake phrase variants,
// ordered longest first.
type PhraseConfig struct {
	variants []string
}

// NewPhraseConfig normalises and deduplicates variants. It returns
// [ErrNoVariants] when nothing usable remains.
func NewPhraseConfig(variants ...string) (PhraseConfig, error) {
	c := PhraseConfig{}.WithVariants(variants...)
	if len(c.variants) == 0 {
		return PhraseConfig{}, ErrNoVariants
	}
	return c, nil
}

// WithVariants returns a new config accepting the receiver's variants plus
// extra. The receiver is not modified.
func (c PhraseConfig) WithVariants(extra ...string) PhraseConfig {
	seen := make(map[string]struct{}, len(c.variants)+len(extra))
	out := make([]string, 0, len(c.variants)+len(extra))
	for _, v := range append(append([]string(nil), c.variants...), extra...) {
		v = Normalize(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	// Longest first so the most specific variant is reported on a match.
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return PhraseConfig{variants: out}
}

// Variants returns a copy of the accepted variants, longest first.
func (c PhraseConfig) Variants() []string {
	return append([]string(nil), c.variants...)
}

// Len returns the number of accepted variants.
func (c PhraseConfig) Len() int { return len(c.variants) }

// Normalize lower-cases s, replaces punctuation with spaces and collapses
// whitespace.
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == '\'':
			return -1
		default:
			return ' '
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
