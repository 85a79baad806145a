// Package capture segments the microphone stream into short wake windows and
// records the command utterance that follows a wake phrase.
//
// Both [Windower] and [Capturer] read from the same frame channel. The
// orchestrator's listening goroutine is their only caller, so a frame is
// consumed by exactly one of them.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/voicenav/pkg/audio"
	"github.com/MrWong99/voicenav/pkg/provider/vad"
)

// ErrSourceClosed is returned when the frame channel closes mid-read.
var ErrSourceClosed = errors.New("capture: audio source closed")

// Reason records why a capture ended.
type Reason string

const (
	ReasonTimeout    Reason = "timeout"
	ReasonSilence    Reason = "silence"
	ReasonManualStop Reason = "manual-stop"
)

// Utterance is one captured command.
type Utterance struct {
	PCM    []byte
	Format audio.Format

	// Start is the wall-clock time capture began.
	Start time.Time

	// Duration is the length of the captured audio.
	Duration time.Duration

	// Speech is the total duration classified as speech.
	Speech time.Duration

	Reason Reason

	// Voiced reports whether at least the minimum amount of speech was heard.
	// An unvoiced utterance carries no PCM.
	Voiced bool
}

// Config tunes utterance capture.
type Config struct {
	// Timeout is the hard bound on a capture. Default 5s.
	Timeout time.Duration

	// TrailingSilence ends a capture once this much silence follows speech.
	// Default 700ms.
	TrailingSilence time.Duration

	// MinSpeech is the speech required before trailing silence can end the
	// capture, and for the utterance to count as voiced. Default 200ms.
	MinSpeech time.Duration

	// SpeechThreshold and SilenceThreshold are passed to the VAD session.
	SpeechThreshold  float64
	SilenceThreshold float64
}

// Defaults for [Config].
const (
	DefaultTimeout         = 5 * time.Second
	DefaultTrailingSilence = 700 * time.Millisecond
	DefaultMinSpeech       = 200 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.TrailingSilence <= 0 {
		c.TrailingSilence = DefaultTrailingSilence
	}
	if c.MinSpeech <= 0 {
		c.MinSpeech = DefaultMinSpeech
	}
	return c
}

// Capturer records utterances from a frame stream.
type Capturer struct {
	frames <-chan audio.AudioFrame
	format audio.Format
	vad    vad.Engine
	cfg    Config
}

// NewCapturer returns a Capturer reading frames in format from frames.
func NewCapturer(frames <-chan audio.AudioFrame, format audio.Format, engine vad.Engine, cfg Config) *Capturer {
	return &Capturer{frames: frames, format: format, vad: engine, cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (c *Capturer) Config() Config { return c.cfg }

// Capture records until trailing silence follows enough speech, the timeout
// elapses, or ctx is cancelled. A zero timeout uses the configured default.
//
// Silence for the whole timeout yields an unvoiced utterance with reason
// timeout. Cancellation yields reason manual-stop with whatever was captured
// and a nil error.
func (c *Capturer) Capture(ctx context.Context, timeout time.Duration) (Utterance, error) {
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	sess, err := c.vad.NewSession(vad.Config{
		SampleRate:       c.format.SampleRate,
		SpeechThreshold:  c.cfg.SpeechThreshold,
		SilenceThreshold: c.cfg.SilenceThreshold,
	})
	if err != nil {
		return Utterance{}, fmt.Errorf("capture: vad session: %w", err)
	}
	defer sess.Close()

	u := Utterance{Format: c.format, Start: time.Now()}
	var (
		pcm     []byte
		silence time.Duration
	)
	finish := func(r Reason) Utterance {
		u.Reason = r
		u.Voiced = u.Speech >= c.cfg.MinSpeech
		if u.Voiced {
			u.PCM = pcm
			u.Duration = c.format.Duration(len(pcm))
		}
		return u
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return finish(ReasonManualStop), nil
		case <-timer.C:
			return finish(ReasonTimeout), nil
		case f, ok := <-c.frames:
			if !ok {
				return finish(ReasonManualStop), ErrSourceClosed
			}
			pcm = append(pcm, f.Data...)
			ev, err := sess.ProcessFrame(f.Data)
			if err != nil {
				return finish(ReasonManualStop), fmt.Errorf("capture: vad: %w", err)
			}
			d := c.format.Duration(len(f.Data))
			if ev.IsSpeech() {
				u.Speech += d
				silence = 0
				continue
			}
			silence += d
			if u.Speech >= c.cfg.MinSpeech && silence >= c.cfg.TrailingSilence {
				return finish(ReasonSilence), nil
			}
		}
	}
}
