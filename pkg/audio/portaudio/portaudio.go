// Package portaudio provides microphone capture and speaker playback backed by
// the PortAudio C library (github.com/gordonklaus/portaudio).
//
// PortAudio reference-counts Initialize/Terminate internally, so every Source
// and Player initialises the library on creation and terminates it on Close.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/voicenav/pkg/audio"
)

const (
	defaultSampleRate = 16000
	defaultFrameMs    = 30
)

// ErrDeviceNotFound is returned when a named device does not exist or has no
// input channels.
var ErrDeviceNotFound = errors.New("portaudio: device not found")

// Compile-time interface checks.
var (
	_ audio.Source = (*Source)(nil)
	_ audio.Sink   = (*Player)(nil)
)

// Device describes an input-capable audio device.
type Device struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// Devices lists every device with at least one input channel.
func Devices() ([]Device, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer pa.Terminate()

	infos, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	def, _ := pa.DefaultInputDevice()

	var out []Device
	for _, d := range infos {
		if d.MaxInputChannels < 1 {
			continue
		}
		out = append(out, Device{
			Index:             d.Index,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			IsDefault:         def != nil && def.Index == d.Index,
		})
	}
	return out, nil
}

// ---- Source -----------------------------------------------------------------

// Source captures mono 16-bit PCM from an input device.
type Source struct {
	device     string
	sampleRate int
	frameMs    int

	stream *pa.Stream
	buf    []int16

	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// Option configures a Source.
type Option func(*Source)

// WithDevice selects the input device whose name contains name
// (case-insensitive). Empty selects the system default input.
func WithDevice(name string) Option {
	return func(s *Source) { s.device = name }
}

// WithSampleRate sets the capture sample rate in Hz. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(s *Source) { s.sampleRate = rate }
}

// WithFrameMs sets the frame duration in milliseconds. Defaults to 30.
func WithFrameMs(ms int) Option {
	return func(s *Source) { s.frameMs = ms }
}

// Open initialises PortAudio and opens (but does not start) the input stream.
// Failure here means the microphone is unavailable.
func Open(opts ...Option) (*Source, error) {
	s := &Source{
		sampleRate: defaultSampleRate,
		frameMs:    defaultFrameMs,
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.sampleRate <= 0 || s.frameMs <= 0 {
		return nil, fmt.Errorf("portaudio: invalid sample rate %d or frame size %dms", s.sampleRate, s.frameMs)
	}

	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}

	s.buf = make([]int16, s.sampleRate*s.frameMs/1000)
	stream, err := s.openStream()
	if err != nil {
		pa.Terminate()
		return nil, err
	}
	s.stream = stream
	return s, nil
}

func (s *Source) openStream() (*pa.Stream, error) {
	if s.device == "" {
		stream, err := pa.OpenDefaultStream(1, 0, float64(s.sampleRate), len(s.buf), s.buf)
		if err != nil {
			return nil, fmt.Errorf("portaudio: open default input: %w", err)
		}
		return stream, nil
	}

	infos, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	var dev *pa.DeviceInfo
	for _, d := range infos {
		if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(s.device)) {
			dev = d
			break
		}
	}
	if dev == nil {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, s.device)
	}
	params := pa.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(s.sampleRate)
	params.FramesPerBuffer = len(s.buf)
	stream, err := pa.OpenStream(params, s.buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open %q: %w", dev.Name, err)
	}
	return stream, nil
}

// Format implements [audio.Source].
func (s *Source) Format() audio.Format {
	return audio.Format{SampleRate: s.sampleRate, Channels: 1}
}

// Start implements [audio.Source].
func (s *Source) Start(ctx context.Context) (<-chan audio.AudioFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, errors.New("portaudio: source already started")
	}
	if err := s.stream.Start(); err != nil {
		return nil, fmt.Errorf("portaudio: start stream: %w", err)
	}
	s.started = true

	out := make(chan audio.AudioFrame, 64)
	s.wg.Add(1)
	go s.readLoop(ctx, out)
	return out, nil
}

// readLoop blocks on the device and forwards each filled buffer as a frame.
func (s *Source) readLoop(ctx context.Context, out chan<- audio.AudioFrame) {
	defer s.wg.Done()
	defer close(out)

	frameDur := time.Duration(s.frameMs) * time.Millisecond
	var ts time.Duration
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			if errors.Is(err, pa.InputOverflowed) {
				slog.Debug("portaudio: input overflowed, frame dropped")
				continue
			}
			select {
			case <-s.done:
			default:
				slog.Error("portaudio: read failed, stopping capture", "error", err)
			}
			return
		}

		frame := audio.AudioFrame{
			Data:       audio.Int16ToPCM(s.buf),
			SampleRate: s.sampleRate,
			Channels:   1,
			Timestamp:  ts,
		}
		ts += frameDur

		select {
		case out <- frame:
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

// Close implements [audio.Source].
func (s *Source) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			err = errors.Join(err, s.stream.Stop())
		}
		s.wg.Wait()
		err = errors.Join(err, s.stream.Close(), pa.Terminate())
	})
	return err
}

// ---- Player -----------------------------------------------------------------

// Player plays 16-bit PCM on the default output device.
type Player struct {
	frameMs int
}

// NewPlayer returns a Player writing in chunks of frameMs milliseconds.
func NewPlayer(frameMs int) *Player {
	if frameMs <= 0 {
		frameMs = defaultFrameMs
	}
	return &Player{frameMs: frameMs}
}

// Play implements [audio.Sink]. Playback stops between chunks when ctx is
// cancelled.
func (p *Player) Play(ctx context.Context, pcm []byte, format audio.Format) error {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return fmt.Errorf("portaudio: play: invalid format %s", format)
	}
	if err := pa.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer pa.Terminate()

	samples := audio.PCMToInt16(pcm)
	out := make([]int16, format.SampleRate*p.frameMs/1000*format.Channels)
	stream, err := pa.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), len(out)/format.Channels, out)
	if err != nil {
		return fmt.Errorf("portaudio: open default output: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("portaudio: start output: %w", err)
	}
	defer stream.Stop()

	for off := 0; off < len(samples); off += len(out) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(out, samples[off:])
		clear(out[n:])
		if err := stream.Write(); err != nil && !errors.Is(err, pa.OutputUnderflowed) {
			return fmt.Errorf("portaudio: write: %w", err)
		}
	}
	return nil
}
