package wake

import (
	"strings"
	"sync"

	"github.com/MrWong99/voicenav/internal/phonetic"
)

// Detector reports wake phrases in a stream of transcribed windows.
//
// A spoken wake phrase often spans several consecutive windows. Detect fires
// once for the first matching window and stays silent until either a window
// without the phrase arrives or [Detector.Rearm] is called.
//
// Detector is safe for concurrent use.
type Detector struct {
	cfg     PhraseConfig
	matcher *phonetic.Matcher

	mu   sync.Mutex
	open bool
}

// DetectorOption is a functional option for [Detector].
type DetectorOption func(*Detector)

// WithFuzzy enables sound-alike matching with m when no variant is contained
// literally. Without it only literal containment counts.
func WithFuzzy(m *phonetic.Matcher) DetectorOption {
	return func(d *Detector) { d.matcher = m }
}

// NewDetector creates a Detector for cfg.
func NewDetector(cfg PhraseConfig, opts ...DetectorOption) *Detector {
	d := &Detector{cfg: cfg}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Config returns the detector's phrase config.
func (d *Detector) Config() PhraseConfig { return d.cfg }

// Match reports which variant, if any, windowText contains. It has no side
// effects. Literal containment on word boundaries is tried for every variant
// before any fuzzy comparison.
func (d *Detector) Match(windowText string) (variant string, ok bool) {
	text := Normalize(windowText)
	if text == "" {
		return "", false
	}
	padded := " " + text + " "
	for _, v := range d.cfg.variants {
		if strings.Contains(padded, " "+v+" ") {
			return v, true
		}
	}
	if d.matcher == nil {
		return "", false
	}
	var (
		best      string
		bestScore float64
	)
	for _, v := range d.cfg.variants {
		if score, ok := d.matcher.ContainsPhrase(text, v); ok && score > bestScore {
			best, bestScore = v, score
		}
	}
	return best, best != ""
}

// Detect reports whether windowText starts a new wake event.
func (d *Detector) Detect(windowText string) bool {
	_, ok := d.Match(windowText)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !ok {
		d.open = false
		return false
	}
	if d.open {
		return false
	}
	d.open = true
	return true
}

// Rearm clears the suppression state so the next matching window fires again.
// The orchestrator calls it when an interaction cycle returns to idle.
func (d *Detector) Rearm() {
	d.mu.Lock()
	d.open = false
	d.mu.Unlock()
}
