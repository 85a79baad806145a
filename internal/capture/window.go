package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/voicenav/pkg/audio"
	"github.com/MrWong99/voicenav/pkg/provider/vad"
)

// Window is a short speech segment handed to the transcriber while listening
// for the wake phrase or a spoken stop.
type Window struct {
	PCM      []byte
	Format   audio.Format
	Duration time.Duration
}

// WindowConfig tunes wake window segmentation.
type WindowConfig struct {
	// MaxLength closes a window even while speech continues. Default 3s.
	MaxLength time.Duration

	// Silence closes a window once this much silence follows speech.
	// Default 300ms.
	Silence time.Duration

	// MinSpeech discards windows with less speech than this. Default 150ms.
	MinSpeech time.Duration

	// PreRoll is audio kept from before speech onset so the first syllable
	// is not clipped. Default 200ms.
	PreRoll time.Duration

	SpeechThreshold  float64
	SilenceThreshold float64
}

func (c WindowConfig) withDefaults() WindowConfig {
	if c.MaxLength <= 0 {
		c.MaxLength = 3 * time.Second
	}
	if c.Silence <= 0 {
		c.Silence = 300 * time.Millisecond
	}
	if c.MinSpeech <= 0 {
		c.MinSpeech = 150 * time.Millisecond
	}
	if c.PreRoll <= 0 {
		c.PreRoll = 200 * time.Millisecond
	}
	return c
}

// Windower cuts the frame stream into speech windows. Silent stretches never
// produce a window.
type Windower struct {
	frames <-chan audio.AudioFrame
	format audio.Format
	engine vad.Engine
	cfg    WindowConfig

	sess    vad.SessionHandle
	pre     []byte
	buf     []byte
	speech  time.Duration
	silence time.Duration
	active  bool
}

// NewWindower returns a Windower reading frames in format from frames.
func NewWindower(frames <-chan audio.AudioFrame, format audio.Format, engine vad.Engine, cfg WindowConfig) *Windower {
	return &Windower{frames: frames, format: format, engine: engine, cfg: cfg.withDefaults()}
}

// Next blocks until the next speech window is complete.
func (w *Windower) Next(ctx context.Context) (Window, error) {
	if w.sess == nil {
		sess, err := w.engine.NewSession(vad.Config{
			SampleRate:       w.format.SampleRate,
			SpeechThreshold:  w.cfg.SpeechThreshold,
			SilenceThreshold: w.cfg.SilenceThreshold,
		})
		if err != nil {
			return Window{}, fmt.Errorf("capture: vad session: %w", err)
		}
		w.sess = sess
	}

	maxBytes := w.format.Bytes(w.cfg.MaxLength)
	preBytes := w.format.Bytes(w.cfg.PreRoll)
	for {
		select {
		case <-ctx.Done():
			return Window{}, ctx.Err()
		case f, ok := <-w.frames:
			if !ok {
				return Window{}, ErrSourceClosed
			}
			ev, err := w.sess.ProcessFrame(f.Data)
			if err != nil {
				return Window{}, fmt.Errorf("capture: vad: %w", err)
			}
			d := w.format.Duration(len(f.Data))

			if !w.active {
				if !ev.IsSpeech() {
					w.pre = append(w.pre, f.Data...)
					if len(w.pre) > preBytes {
						w.pre = w.pre[len(w.pre)-preBytes:]
					}
					continue
				}
				w.active = true
				w.buf = append(append(w.buf[:0], w.pre...), f.Data...)
				w.pre = w.pre[:0]
				w.speech, w.silence = d, 0
				continue
			}

			w.buf = append(w.buf, f.Data...)
			if ev.IsSpeech() {
				w.speech += d
				w.silence = 0
			} else {
				w.silence += d
			}
			if w.silence < w.cfg.Silence && len(w.buf) < maxBytes {
				continue
			}
			win, keep := w.cut()
			if keep {
				return win, nil
			}
		}
	}
}

// cut closes the current window and reports whether it holds enough speech.
func (w *Windower) cut() (Window, bool) {
	keep := w.speech >= w.cfg.MinSpeech
	win := Window{
		PCM:      append([]byte(nil), w.buf...),
		Format:   w.format,
		Duration: w.format.Duration(len(w.buf)),
	}
	w.active = false
	w.buf = w.buf[:0]
	w.speech, w.silence = 0, 0
	return win, keep
}

// Reset drops any partial window and VAD state. Call it when the listener
// returns to idle after a capture so stale audio is not transcribed.
func (w *Windower) Reset() {
	w.active = false
	w.pre = w.pre[:0]
	w.buf = w.buf[:0]
	w.speech, w.silence = 0, 0
	if w.sess != nil {
		w.sess.Reset()
	}
}

// Drain discards frames already queued on the channel without blocking.
func (w *Windower) Drain() int {
	n := 0
	for {
		select {
		case _, ok := <-w.frames:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// Close releases the VAD session.
func (w *Windower) Close() error {
	if w.sess == nil {
		return nil
	}
	return w.sess.Close()
}
