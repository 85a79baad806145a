// Package mock provides a test double for the tts.Provider interface.
//
// Example:
//
//	p := &mock.Provider{}
//	_ = p.Speak(ctx, "Navigated to github.com")
//	texts := p.Texts() // ["Navigated to github.com"]
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/voicenav/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

// SpeakCall records a single invocation of Speak.
type SpeakCall struct {
	Text string
	// Cancelled reports whether Speak returned because ctx was done.
	Cancelled bool
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from every Speak call.
	Err error

	// Delay simulates playback time. Speak blocks for Delay or until ctx is
	// cancelled, whichever comes first.
	Delay time.Duration

	// Started, if non-nil, receives the text of each call as playback begins.
	// Sends are non-blocking.
	Started chan string

	// SpeakCalls records every call to Speak in order.
	SpeakCalls []SpeakCall
}

// Speak implements tts.Provider.
func (p *Provider) Speak(ctx context.Context, text string) error {
	p.mu.Lock()
	err, delay, started := p.Err, p.Delay, p.Started
	p.mu.Unlock()

	if started != nil {
		select {
		case started <- text:
		default:
		}
	}

	cancelled := false
	if delay > 0 && err == nil {
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			cancelled = true
			err = ctx.Err()
		}
	}

	p.mu.Lock()
	p.SpeakCalls = append(p.SpeakCalls, SpeakCall{Text: text, Cancelled: cancelled})
	p.mu.Unlock()
	return err
}

// Texts returns the text of every Speak call so far.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.SpeakCalls))
	for i, c := range p.SpeakCalls {
		out[i] = c.Text
	}
	return out
}

// Calls returns a copy of the recorded calls.
func (p *Provider) Calls() []SpeakCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SpeakCall(nil), p.SpeakCalls...)
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SpeakCalls = nil
}
