// Package stt defines the Provider interface for Speech-to-Text engines.
//
// An STT provider turns one complete utterance of PCM audio into text. The
// pipeline captures bounded utterances itself (wake windows and command
// utterances), so the contract is batch-shaped: one call per utterance, bounded
// by the caller's context.
//
// Providers differ in whether they can report how sure they are. Result keeps
// confidence optional rather than overloading zero, because a genuine score of
// 0.0 and "not reported" must be told apart by callers that filter on it.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"time"
)

// ErrModelLoad is returned (wrapped) by constructors when the backing model or
// service cannot be initialised.
var ErrModelLoad = errors.New("stt: model load failed")

// ErrInferenceTimeout is returned (wrapped) by Transcribe when the context
// deadline expires before inference completes.
var ErrInferenceTimeout = errors.New("stt: inference timed out")

// Config describes the audio format and recognition hints for one request.
type Config struct {
	// SampleRate is the PCM sample rate in Hz. Zero selects the provider default.
	SampleRate int

	// Channels is the number of interleaved channels. Zero means mono.
	Channels int

	// Language is the language code for recognition (e.g., "en"). Empty lets
	// the provider use its configured default.
	Language string

	// Prompt is an optional vocabulary hint (e.g., the wake phrase and common
	// command words) that biases recognition.
	Prompt string
}

// Result is the text recognized from one utterance.
type Result struct {
	// Text is the recognized speech with surrounding whitespace trimmed.
	// Non-speech markers such as "[BLANK_AUDIO]" are removed.
	Text string

	// Confidence is the overall score in [0, 1]. Only meaningful when
	// HasConfidence is true.
	Confidence float64

	// HasConfidence reports whether the provider produced a confidence score.
	HasConfidence bool

	// Duration is how long inference took.
	Duration time.Duration
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe recognizes pcm (16-bit little-endian) in the format described
	// by cfg. An empty or silent input yields an empty Result, not an error.
	//
	// When ctx expires before inference completes the returned error wraps
	// ErrInferenceTimeout.
	Transcribe(ctx context.Context, pcm []byte, cfg Config) (Result, error)
}

// ContextError converts a context failure observed during inference into the
// error taxonomy of this package. Deadline expiry becomes ErrInferenceTimeout;
// other errors are returned unchanged.
func ContextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrInferenceTimeout, err)
	}
	return err
}
