// Package energy implements a vad.Engine that classifies frames by their RMS
// energy. It needs no model and runs on any platform, which makes it the
// default detector for utterance capture.
//
// The RMS of a frame is mapped onto a pseudo-probability so that the generic
// vad.Config thresholds apply: a frame whose RMS equals the configured
// reference level scores exactly 0.5, louder frames approach 1.0.
package energy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/voicenav/pkg/audio"
	"github.com/MrWong99/voicenav/pkg/provider/vad"
)

// DefaultRMSThreshold is the reference RMS level (in 16-bit sample units)
// that maps to probability 0.5.
const DefaultRMSThreshold = 300.0

// Compile-time interface checks.
var (
	_ vad.Engine        = (*Engine)(nil)
	_ vad.SessionHandle = (*session)(nil)
)

// Engine creates energy-based VAD sessions.
type Engine struct {
	rmsThreshold float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithRMSThreshold sets the RMS level that maps to probability 0.5.
func WithRMSThreshold(rms float64) Option {
	return func(e *Engine) { e.rmsThreshold = rms }
}

// New returns an energy Engine.
func New(opts ...Option) *Engine {
	e := &Engine{rmsThreshold: DefaultRMSThreshold}
	for _, o := range opts {
		o(e)
	}
	if e.rmsThreshold <= 0 {
		e.rmsThreshold = DefaultRMSThreshold
	}
	return e
}

// NewSession implements vad.Engine. Zero thresholds fall back to 0.5 / 0.35.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("energy vad: invalid sample rate %d", cfg.SampleRate)
	}
	if cfg.SpeechThreshold == 0 {
		cfg.SpeechThreshold = 0.5
	}
	if cfg.SilenceThreshold == 0 {
		cfg.SilenceThreshold = 0.35
	}
	if cfg.SpeechThreshold > 1 || cfg.SilenceThreshold < 0 || cfg.SilenceThreshold > cfg.SpeechThreshold {
		return nil, fmt.Errorf("energy vad: invalid thresholds speech=%.2f silence=%.2f",
			cfg.SpeechThreshold, cfg.SilenceThreshold)
	}
	return &session{cfg: cfg, ref: e.rmsThreshold}, nil
}

// session tracks whether the stream is inside a speech segment.
type session struct {
	mu       sync.Mutex
	cfg      vad.Config
	ref      float64
	speaking bool
	closed   bool
}

// ProcessFrame implements vad.SessionHandle. Frames of any even length are
// accepted.
func (s *session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return vad.VADEvent{}, errors.New("energy vad: session closed")
	}
	if len(frame)%2 != 0 {
		return vad.VADEvent{}, fmt.Errorf("energy vad: odd frame length %d", len(frame))
	}

	p := min(audio.RMS(frame)/(2*s.ref), 1)
	ev := vad.VADEvent{Probability: p}
	switch {
	case !s.speaking && p >= s.cfg.SpeechThreshold:
		s.speaking = true
		ev.Type = vad.VADSpeechStart
	case s.speaking && p < s.cfg.SilenceThreshold:
		s.speaking = false
		ev.Type = vad.VADSpeechEnd
	case s.speaking:
		ev.Type = vad.VADSpeechContinue
	default:
		ev.Type = vad.VADSilence
	}
	return ev, nil
}

// Reset implements vad.SessionHandle.
func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = false
}

// Close implements vad.SessionHandle.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
