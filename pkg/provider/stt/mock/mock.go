// Package mock provides a test double for the stt.Provider interface.
//
// Results are returned in the order they are queued; once the queue is empty
// DefaultResult is returned. Every call is recorded for later inspection.
//
// Example:
//
//	p := &mock.Provider{Results: []stt.Result{{Text: "hey maya"}}}
//	res, _ := p.Transcribe(ctx, pcm, stt.Config{})
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/voicenav/pkg/provider/stt"
)

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	PCM []byte
	Cfg stt.Config
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Results is consumed in order, one per call.
	Results []stt.Result

	// DefaultResult is returned when Results is exhausted.
	DefaultResult stt.Result

	// TranscribeFunc, if set, overrides the queued results entirely.
	TranscribeFunc func(ctx context.Context, pcm []byte, cfg stt.Config) (stt.Result, error)

	// Err, if non-nil, is returned by every call.
	Err error

	// Delay makes each call block for the given duration (or until ctx is done).
	Delay time.Duration

	// TranscribeCalls records every call in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the next queued result.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte, cfg stt.Config) (stt.Result, error) {
	p.mu.Lock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{PCM: cp, Cfg: cfg})
	fn, delay, err := p.TranscribeFunc, p.Delay, p.Err
	var res stt.Result
	if len(p.Results) > 0 {
		res = p.Results[0]
		p.Results = p.Results[1:]
	} else {
		res = p.DefaultResult
	}
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, pcm, cfg)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return stt.Result{}, stt.ContextError(ctx.Err())
		}
	}
	if err != nil {
		return stt.Result{}, err
	}
	return res, nil
}

// Calls returns a snapshot of recorded calls.
func (p *Provider) Calls() []TranscribeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TranscribeCall, len(p.TranscribeCalls))
	copy(out, p.TranscribeCalls)
	return out
}
