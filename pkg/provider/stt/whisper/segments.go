package whisper

import (
	"math"
	"strings"
)

// isNonSpeech reports whether a segment is a non-speech marker such as
// "[BLANK_AUDIO]", "(music)" or "[ Silence ]" rather than recognized words.
func isNonSpeech(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return true
	}
	switch t[0] {
	case '[', '(', '*':
		return true
	}
	last := t[len(t)-1]
	return last == ']' || last == ')'
}

// joinSegments trims, filters and concatenates segment texts, dropping
// non-speech markers and consecutive duplicates (whisper occasionally repeats
// the final segment on short inputs).
func joinSegments(texts []string) string {
	var parts []string
	prev := ""
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if isNonSpeech(t) || t == prev {
			continue
		}
		parts = append(parts, t)
		prev = t
	}
	return strings.Join(parts, " ")
}

// meanProbability averages per-token probabilities. ok is false when no
// token contributed.
func meanProbability(ps []float64) (mean float64, ok bool) {
	if len(ps) == 0 {
		return 0, false
	}
	var sum float64
	for _, p := range ps {
		sum += p
	}
	return clamp01(sum / float64(len(ps))), true
}

// logprobConfidence maps an average log-probability onto [0, 1].
func logprobConfidence(avgLogprob float64) float64 {
	return clamp01(math.Exp(avgLogprob))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
