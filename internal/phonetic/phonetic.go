// Package phonetic provides sound-alike matching for short spoken phrases.
//
// Speech recognisers rarely spell a name the way it is written: "hey maya"
// arrives as "hey mya", "github" as "get hub". Two lookups are offered:
//
//   - [Matcher.Best] picks the closest name from a candidate list (site names).
//   - [Matcher.ContainsPhrase] checks whether a phrase appears, approximately,
//     somewhere inside a longer transcript window (wake phrases).
//
// Similarity is Jaro-Winkler over lower-cased text. Double Metaphone codes act
// as a gate: a candidate whose codes overlap the input's is accepted at the
// lower phonetic threshold, anything else must clear the stricter fuzzy
// threshold.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.88

	// minPairwiseLen is the shortest token considered on its own when
	// comparing multi-word strings. Shorter tokens ("the", "hey") match too
	// much to be meaningful alone.
	minPairwiseLen = 4
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum score for candidates whose Double
// Metaphone codes overlap the input.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum score for candidates without phonetic
// overlap.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Best returns the candidate that sounds most like input. ok is false when no
// candidate clears its threshold.
func (m *Matcher) Best(input string, candidates []string) (match string, score float64, ok bool) {
	in := strings.Fields(strings.ToLower(input))
	if len(in) == 0 {
		return "", 0, false
	}
	inCodes := codes(in)

	var (
		best      string
		bestScore float64
	)
	for _, c := range candidates {
		ct := strings.Fields(strings.ToLower(c))
		if len(ct) == 0 {
			continue
		}
		s := similarity(in, ct, true)
		threshold := m.fuzzyThreshold
		if overlap(inCodes, codes(ct)) {
			threshold = m.phoneticThreshold
		}
		if s >= threshold && s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, bestScore, best != ""
}

// ContainsPhrase reports whether phrase occurs approximately inside text and
// returns the best score found. Every run of words in text whose length is
// within one of the phrase's is compared, so a recogniser that splits or
// merges a word ("hey may a", "heymaya") still matches.
func (m *Matcher) ContainsPhrase(text, phrase string) (float64, bool) {
	words := strings.Fields(strings.ToLower(text))
	want := strings.Fields(strings.ToLower(phrase))
	if len(words) == 0 || len(want) == 0 {
		return 0, false
	}
	wantCodes := codes(want)

	best := 0.0
	matched := false
	for n := max(1, len(want)-1); n <= len(want)+1; n++ {
		for i := 0; i+n <= len(words); i++ {
			gram := words[i : i+n]
			var s float64
			if n == len(want) {
				s = aligned(gram, want)
			} else {
				s = matchr.JaroWinkler(strings.Join(gram, ""), strings.Join(want, ""), false)
			}
			threshold := m.fuzzyThreshold
			if overlap(codes(gram), wantCodes) {
				threshold = m.phoneticThreshold
			}
			if s > best {
				best = s
			}
			if s >= threshold {
				matched = true
			}
		}
	}
	return best, matched
}

// aligned scores two equal-length token lists by their weakest pair, so one
// badly mismatched word sinks the whole phrase.
func aligned(a, b []string) float64 {
	score := 1.0
	for i := range a {
		s := matchr.JaroWinkler(a[i], b[i], false)
		if s < score {
			score = s
		}
	}
	return score
}

// similarity is the best of full-string, space-stripped and (optionally)
// pairwise token Jaro-Winkler.
func similarity(a, b []string, pairwise bool) float64 {
	score := matchr.JaroWinkler(strings.Join(a, " "), strings.Join(b, " "), false)
	if len(a) > 1 || len(b) > 1 {
		if s := matchr.JaroWinkler(strings.Join(a, ""), strings.Join(b, ""), false); s > score {
			score = s
		}
	}
	if !pairwise || (len(a) == 1 && len(b) == 1) {
		return score
	}
	for _, x := range a {
		if len(x) < minPairwiseLen {
			continue
		}
		for _, y := range b {
			if len(y) < minPairwiseLen {
				continue
			}
			if s := matchr.JaroWinkler(x, y, false); s > score {
				score = s
			}
		}
	}
	return score
}

// codes returns the union of Double Metaphone codes for tokens.
func codes(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			out[p] = struct{}{}
		}
		if s != "" {
			out[s] = struct{}{}
		}
	}
	return out
}

func overlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}
