// Package audio defines the frame type and the capture/playback abstractions
// the voice pipeline is built on.
//
// The two primary abstractions are:
//
//   - [Source]: a continuous capture device (usually the default microphone)
//     that delivers [AudioFrame] values on a channel.
//   - [Sink]: a playback device that renders raw PCM, used by speech
//     providers that synthesise audio themselves.
//
// All PCM in this package is 16-bit signed little-endian. Implementations live
// in sub-packages (audio/portaudio for real devices, audio/mock for tests).
package audio

import (
	"context"
	"time"
)

// BitsPerSample is the sample width of all PCM handled by the pipeline.
const BitsPerSample = 16

// AudioFrame represents a single frame of captured audio.
type AudioFrame struct {
	// PCM audio data, 16-bit little-endian.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for STT input, 48000 for some devices).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Format returns the frame's sample format.
func (f AudioFrame) Format() Format {
	return Format{SampleRate: f.SampleRate, Channels: f.Channels}
}

// Duration returns the playback length of the frame.
func (f AudioFrame) Duration() time.Duration {
	return f.Format().Duration(len(f.Data))
}

// Source is a continuous audio capture device.
//
// Implementations must be safe for concurrent use; Close may be called from a
// different goroutine than the one reading frames.
type Source interface {
	// Start begins capture and returns the frame channel. The channel is
	// closed when ctx is cancelled, Close is called, or the device fails.
	// Start may only be called once per Source.
	Start(ctx context.Context) (<-chan AudioFrame, error)

	// Format reports the format of the frames delivered by Start.
	Format() Format

	// Close stops capture and releases the device. Calling Close more than
	// once is safe and returns nil.
	Close() error
}

// Sink renders raw PCM to an output device.
type Sink interface {
	// Play blocks until pcm has been played or ctx is cancelled, whichever
	// happens first. A cancelled playback returns ctx.Err().
	Play(ctx context.Context, pcm []byte, format Format) error
}
