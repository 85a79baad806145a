// Package tts defines the text-to-speech contract used for spoken feedback and
// read-aloud.
//
// A [Provider] renders one piece of text to the user's speakers and blocks
// until playback finishes or ctx is cancelled. Cancellation must stop audio
// promptly: the dispatcher relies on it to honour a spoken "stop" while a page
// is being read aloud.
package tts

import (
	"context"
	"errors"
)

// ErrNoEngine is returned when no speech engine is installed or configured.
var ErrNoEngine = errors.New("tts: no speech engine available")

// Provider speaks text aloud.
type Provider interface {
	// Speak renders text and blocks until playback completes. Returning early
	// with ctx.Err() is the expected reaction to cancellation.
	Speak(ctx context.Context, text string) error
}

// Func adapts an ordinary function to [Provider].
type Func func(ctx context.Context, text string) error

// Speak implements [Provider].
func (f Func) Speak(ctx context.Context, text string) error { return f(ctx, text) }
