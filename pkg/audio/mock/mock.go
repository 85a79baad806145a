// Package mock provides in-memory mock implementations of [audio.Source] and
// [audio.Sink] for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	src := mock.NewSource(audio.Format{SampleRate: 16000, Channels: 1})
//	frames, _ := src.Start(ctx)
//	src.Push(speechFrame)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicenav/pkg/audio"
)

// Compile-time interface checks.
var (
	_ audio.Source = (*Source)(nil)
	_ audio.Sink   = (*Sink)(nil)
)

// ─── Source ──────────────────────────────────────────────────────────────────

// Source is a mock [audio.Source] fed by the test through Push.
type Source struct {
	mu sync.Mutex

	// StartError is returned by Start when non-nil.
	StartError error

	// CloseError is returned by Close.
	CloseError error

	// CallCountStart and CallCountClose record how often each method ran.
	CallCountStart int
	CallCountClose int

	format audio.Format
	frames chan audio.AudioFrame
	closed bool
}

// NewSource returns a Source delivering frames in format f. The frame channel
// is buffered so tests can push ahead of the consumer.
func NewSource(f audio.Format) *Source {
	return &Source{format: f, frames: make(chan audio.AudioFrame, 1024)}
}

// Start implements [audio.Source]. The returned channel is closed by Close or
// when ctx is cancelled.
func (s *Source) Start(ctx context.Context) (<-chan audio.AudioFrame, error) {
	s.mu.Lock()
	s.CallCountStart++
	err := s.StartError
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return s.frames, nil
}

// Format implements [audio.Source].
func (s *Source) Format() audio.Format { return s.format }

// Push enqueues frames for delivery. Frames pushed after Close are dropped.
func (s *Source) Push(frames ...audio.AudioFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, f := range frames {
		if f.SampleRate == 0 {
			f.SampleRate = s.format.SampleRate
		}
		if f.Channels == 0 {
			f.Channels = s.format.Channels
		}
		s.frames <- f
	}
}

// Close implements [audio.Source]. Closes the frame channel once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return s.CloseError
}

// ─── Sink ────────────────────────────────────────────────────────────────────

// PlayCall records the arguments of a single [Sink.Play] invocation.
type PlayCall struct {
	PCM    []byte
	Format audio.Format
}

// Sink is a mock [audio.Sink].
type Sink struct {
	mu sync.Mutex

	// PlayError is returned by Play.
	PlayError error

	// PlayCalls records every Play invocation.
	PlayCalls []PlayCall
}

// Play implements [audio.Sink]. Returns ctx.Err() if ctx is already done.
func (s *Sink) Play(ctx context.Context, pcm []byte, format audio.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PlayCalls = append(s.PlayCalls, PlayCall{PCM: pcm, Format: format})
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.PlayError
}

// Calls returns a snapshot of recorded Play calls.
func (s *Sink) Calls() []PlayCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlayCall, len(s.PlayCalls))
	copy(out, s.PlayCalls)
	return out
}
