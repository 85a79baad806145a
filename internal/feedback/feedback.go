// Package feedback turns pipeline outcomes into short spoken messages.
//
// Speech is best effort. When no TTS engine is configured, or the engine
// fails, the message is logged instead and the pipeline carries on. Nothing
// in this package returns an error to its caller.
package feedback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/voicenav/internal/dispatch"
	"github.com/MrWong99/voicenav/pkg/provider/tts"
)

// Messages spoken for pipeline outcomes that never reach the dispatcher.
const (
	MsgNoSpeech          = "I didn't hear anything"
	MsgTranscribeFailed  = "Sorry, I couldn't understand that"
	MsgLowConfidence     = "Sorry, I'm not sure what you said. Please try again."
	MsgEngineUnavailable = "Sorry, speech recognition isn't available right now"
)

// Config tunes a Channel.
type Config struct {
	// Timeout bounds one spoken message. Default 10s.
	Timeout time.Duration

	// AnnounceNoSpeech says MsgNoSpeech after an empty capture.
	AnnounceNoSpeech bool

	// Acknowledgement is spoken after a wake trigger. Empty disables it.
	Acknowledgement string
}

// Channel speaks feedback one message at a time. It is safe for concurrent
// use.
type Channel struct {
	tts tts.Provider
	cfg Config

	// speaking serialises playback so messages never overlap.
	speaking sync.Mutex
}

// New returns a Channel speaking through p. A nil p logs every message.
func New(p tts.Provider, cfg Config) *Channel {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Channel{tts: p, cfg: cfg}
}

// Speak says text and returns when playback ends or the timeout elapses.
// Empty text is ignored.
func (c *Channel) Speak(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if c.tts == nil {
		slog.Info("feedback: (no tts)", "text", text)
		return
	}

	c.speaking.Lock()
	defer c.speaking.Unlock()

	sctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	if err := c.tts.Speak(sctx, text); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("feedback: speech failed", "text", text, "err", err)
		return
	}
	slog.Debug("feedback: spoke", "text", text)
}

// Result speaks the message of a dispatched action.
func (c *Channel) Result(ctx context.Context, res dispatch.ActionResult) {
	c.Speak(ctx, res.Message)
}

// Acknowledge speaks the wake acknowledgement cue, if configured.
func (c *Channel) Acknowledge(ctx context.Context) {
	c.Speak(ctx, c.cfg.Acknowledgement)
}

// NoSpeech reacts to a capture that heard nothing. It is silent unless
// AnnounceNoSpeech is set.
func (c *Channel) NoSpeech(ctx context.Context) {
	if c.cfg.AnnounceNoSpeech {
		c.Speak(ctx, MsgNoSpeech)
	}
}

// UnknownCommand speaks the help hint.
func (c *Channel) UnknownCommand(ctx context.Context) {
	c.Speak(ctx, dispatch.MsgUnknownCommand)
}

// TranscriptionFailed apologises for an engine error.
func (c *Channel) TranscriptionFailed(ctx context.Context) {
	c.Speak(ctx, MsgTranscribeFailed)
}

// EngineUnavailable reports that no transcription engine could serve the
// request.
func (c *Channel) EngineUnavailable(ctx context.Context) {
	c.Speak(ctx, MsgEngineUnavailable)
}

// LowConfidence asks the user to repeat themselves.
func (c *Channel) LowConfidence(ctx context.Context) {
	c.Speak(ctx, MsgLowConfidence)
}
