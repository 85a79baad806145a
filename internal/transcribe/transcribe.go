// Package transcribe adapts an [stt.Provider] to the pipeline: it bounds each
// call with a timeout, normalises errors into the pipeline's taxonomy, applies
// the optional confidence policy and can dump utterances to disk for
// debugging.
//
// The engine is chosen once at startup (see resilience.SelectSTT). A
// Transcriber never switches engines per utterance.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/MrWong99/voicenav/internal/capture"
	"github.com/MrWong99/voicenav/pkg/audio"
	"github.com/MrWong99/voicenav/pkg/provider/stt"
)

var (
	// ErrEngineUnavailable means no transcription engine could be loaded.
	ErrEngineUnavailable = errors.New("transcribe: no transcription engine available")

	// ErrTranscriptionTimeout means inference exceeded its time bound.
	ErrTranscriptionTimeout = errors.New("transcribe: transcription timed out")

	// ErrLowConfidence is returned, together with the result, when the
	// confidence policy is enabled and rejects a transcription.
	ErrLowConfidence = errors.New("transcribe: confidence below threshold")
)

// Engine records whether the primary or a fallback engine produced a result.
type Engine string

const (
	EnginePrimary  Engine = "primary"
	EngineFallback Engine = "fallback"
)

// Result is the text recognised from one utterance.
type Result struct {
	Text string

	// Confidence is in [0, 1]. Engines that report nothing yield 1.0.
	Confidence float64

	Engine Engine

	// EngineName is the configured provider name, e.g. "whisper-native".
	EngineName string

	Duration time.Duration
}

// DefaultThreshold is the minimum confidence in strict mode.
const DefaultThreshold = 0.8

// ConfidencePolicy decides whether a transcription is trustworthy enough to
// act on. The zero value accepts everything.
type ConfidencePolicy struct {
	Enabled   bool
	Threshold float64
}

// Accept reports whether confidence passes the policy.
func (p ConfidencePolicy) Accept(confidence float64) bool {
	if !p.Enabled {
		return true
	}
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return confidence >= threshold
}

// Config tunes a Transcriber.
type Config struct {
	Language string
	Prompt   string

	// Timeout bounds one command transcription. Default 15s.
	Timeout time.Duration

	// WindowTimeout bounds one wake window transcription. Default 5s.
	WindowTimeout time.Duration

	Policy ConfidencePolicy

	// DumpDir, when set, receives a WAV file for every command utterance.
	DumpDir string
}

// Transcriber is safe for concurrent use if its provider is.
type Transcriber struct {
	provider stt.Provider
	name     string
	engine   Engine
	cfg      Config
	fs       afero.Fs
	dumpSeq  atomic.Int64
}

// Option is a functional option for Transcriber.
type Option func(*Transcriber)

// WithFS sets the filesystem used for utterance dumps. Default: the OS
// filesystem.
func WithFS(fs afero.Fs) Option {
	return func(t *Transcriber) { t.fs = fs }
}

// New wraps provider. name and engine describe which startup choice it is.
// A nil provider yields [ErrEngineUnavailable].
func New(provider stt.Provider, name string, engine Engine, cfg Config, opts ...Option) (*Transcriber, error) {
	if provider == nil {
		return nil, ErrEngineUnavailable
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.WindowTimeout <= 0 {
		cfg.WindowTimeout = 5 * time.Second
	}
	t := &Transcriber{provider: provider, name: name, engine: engine, cfg: cfg, fs: afero.NewOsFs()}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Name returns the provider name.
func (t *Transcriber) Name() string { return t.name }

// Engine reports whether the primary or a fallback engine is in use.
func (t *Transcriber) Engine() Engine { return t.engine }

// Policy returns the confidence policy.
func (t *Transcriber) Policy() ConfidencePolicy { return t.cfg.Policy }

// Transcribe converts a command utterance to text. An unvoiced utterance
// yields an empty result without calling the engine.
func (t *Transcriber) Transcribe(ctx context.Context, u capture.Utterance) (Result, error) {
	res := Result{Engine: t.engine, EngineName: t.name, Confidence: 1}
	if !u.Voiced || len(u.PCM) == 0 {
		return res, nil
	}
	t.dump(u)

	r, err := t.run(ctx, t.cfg.Timeout, u.PCM, u.Format)
	if err != nil {
		return res, err
	}
	res.Text = r.Text
	res.Duration = r.Duration
	if r.HasConfidence {
		res.Confidence = min(max(r.Confidence, 0), 1)
	}
	if !t.cfg.Policy.Accept(res.Confidence) {
		return res, fmt.Errorf("%w: %.2f", ErrLowConfidence, res.Confidence)
	}
	return res, nil
}

// TranscribeWindow converts a wake window to text. The confidence policy does
// not apply.
func (t *Transcriber) TranscribeWindow(ctx context.Context, w capture.Window) (string, error) {
	if len(w.PCM) == 0 {
		return "", nil
	}
	r, err := t.run(ctx, t.cfg.WindowTimeout, w.PCM, w.Format)
	if err != nil {
		return "", err
	}
	return r.Text, nil
}

func (t *Transcriber) run(ctx context.Context, timeout time.Duration, pcm []byte, format audio.Format) (stt.Result, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r, err := t.provider.Transcribe(tctx, pcm, stt.Config{
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Language:   t.cfg.Language,
		Prompt:     t.cfg.Prompt,
	})
	if err == nil {
		return r, nil
	}
	switch {
	case ctx.Err() != nil:
		// The caller gave up; not an engine failure.
		return stt.Result{}, ctx.Err()
	case errors.Is(err, stt.ErrInferenceTimeout), errors.Is(err, context.DeadlineExceeded):
		return stt.Result{}, fmt.Errorf("%w after %s: %w", ErrTranscriptionTimeout, timeout, err)
	case errors.Is(err, stt.ErrModelLoad):
		return stt.Result{}, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	default:
		return stt.Result{}, fmt.Errorf("transcribe: %s: %w", t.name, err)
	}
}

func (t *Transcriber) dump(u capture.Utterance) {
	if t.cfg.DumpDir == "" {
		return
	}
	name := fmt.Sprintf("utterance-%s-%03d.wav", u.Start.Format("20060102-150405"), t.dumpSeq.Add(1))
	path := filepath.Join(t.cfg.DumpDir, name)
	if err := t.fs.MkdirAll(t.cfg.DumpDir, 0o755); err != nil {
		slog.Warn("transcribe: cannot create dump dir", "dir", t.cfg.DumpDir, "err", err)
		return
	}
	if err := audio.WriteWAVFile(t.fs, path, u.PCM, u.Format); err != nil {
		slog.Warn("transcribe: dump failed", "path", path, "err", err)
		return
	}
	slog.Debug("transcribe: utterance dumped", "path", path)
}
