// Package mock provides a scripted [vad.Engine] for tests that need exact
// control over which frames count as speech.
package mock

import (
	"sync"

	"github.com/MrWong99/voicenav/pkg/provider/vad"
)

// Engine hands out [Session]s that replay Script. Each session starts at the
// beginning of the script; frames past its end are classified as Tail.
type Engine struct {
	// Script lists the classification of successive frames.
	Script []bool

	// Tail classifies frames once Script is exhausted.
	Tail bool

	// FrameErr is returned by ProcessFrame after Script is exhausted, when set.
	FrameErr error

	// NewSessionErr, if set, makes NewSession fail.
	NewSessionErr error

	mu       sync.Mutex
	configs  []vad.Config
	sessions []*Session
}

var _ vad.Engine = (*Engine)(nil)

// NewSession records cfg and returns a fresh session.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs = append(e.configs, cfg)
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	s := &Session{engine: e}
	e.sessions = append(e.sessions, s)
	return s, nil
}

// Configs returns the configs passed to NewSession, oldest first.
func (e *Engine) Configs() []vad.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]vad.Config(nil), e.configs...)
}

// Sessions returns every session created so far.
func (e *Engine) Sessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Session(nil), e.sessions...)
}

// Session is one replay of the engine's script.
type Session struct {
	engine *Engine

	mu     sync.Mutex
	pos    int
	frames int
	closed int
}

var _ vad.SessionHandle = (*Session)(nil)

// ProcessFrame classifies frame by the next script entry.
func (s *Session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	speech := s.engine.Tail
	if s.pos < len(s.engine.Script) {
		speech = s.engine.Script[s.pos]
		s.pos++
	} else if s.engine.FrameErr != nil {
		return vad.VADEvent{}, s.engine.FrameErr
	}
	if speech {
		return vad.VADEvent{Type: vad.VADSpeechContinue, Probability: 1}, nil
	}
	return vad.VADEvent{Type: vad.VADSilence}, nil
}

// Reset rewinds the script.
func (s *Session) Reset() {
	s.mu.Lock()
	s.pos = 0
	s.mu.Unlock()
}

// Close counts the call.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return nil
}

// Frames returns how many frames were processed.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed > 0
}
