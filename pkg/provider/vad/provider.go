// Package vad defines voice activity detection for the capture pipeline.
//
// An [Engine] opens one [SessionHandle] per audio stream. The session sees
// each PCM frame once, in order, and answers immediately whether it holds
// speech, so classification runs inline with capture. Sessions carry state
// between frames and belong to a single goroutine; engines may be shared.
package vad

// Config parameterises a session.
type Config struct {
	// SampleRate of the frames passed to ProcessFrame, in Hz.
	SampleRate int

	// FrameSizeMs is the frame length an engine may require. Zero accepts any
	// length.
	FrameSizeMs int

	// SpeechThreshold is the score at or above which a frame starts or
	// continues speech, in [0, 1].
	SpeechThreshold float64

	// SilenceThreshold is the score below which ongoing speech ends. It is at
	// most SpeechThreshold; the gap between them is hysteresis.
	SilenceThreshold float64
}

// SessionHandle classifies the frames of one stream.
type SessionHandle interface {
	// ProcessFrame scores one frame of 16-bit little-endian PCM.
	ProcessFrame(frame []byte) (VADEvent, error)

	// Reset forgets prior frames, e.g. at the start of a new capture.
	Reset()

	// Close releases the session. Repeated calls return nil.
	Close() error
}

// Engine opens sessions.
type Engine interface {
	// NewSession validates cfg and opens a session with it.
	NewSession(cfg Config) (SessionHandle, error)
}
