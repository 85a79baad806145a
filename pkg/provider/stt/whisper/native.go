// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/voicenav/pkg/audio"
	"github.com/MrWong99/voicenav/pkg/provider/stt"
)

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO). The model is loaded once at startup and shared by every request;
// each request runs in its own whisper context.
type NativeProvider struct {
	model    whisperlib.Model
	language string
	prompt   string
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription (e.g., "en",
// "de"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativePrompt sets the default initial prompt used when a request does
// not carry its own.
func WithNativePrompt(prompt string) NativeOption {
	return func(p *NativeProvider) { p.prompt = prompt }
}

// NewNative loads the whisper.cpp model from modelPath. A missing or corrupt
// model yields an error wrapping stt.ErrModelLoad. The caller must call Close
// when the provider is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("whisper: %w: modelPath must not be empty", stt.ErrModelLoad)
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w: load model %q: %v", stt.ErrModelLoad, modelPath, err)
	}

	p := &NativeProvider{model: model, language: defaultLanguage}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements stt.Provider. whisper.cpp inference is not
// interruptible once the encoder is running, so on context expiry the call
// returns immediately and the abandoned inference finishes in the background.
// An expired context also aborts inference that has not reached the encoder.
func (p *NativeProvider) Transcribe(ctx context.Context, pcm []byte, cfg stt.Config) (stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return stt.Result{}, stt.ContextError(err)
	}
	if len(pcm) < 2 {
		return stt.Result{}, nil
	}

	type outcome struct {
		res stt.Result
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		res, err := p.infer(ctx, pcm, cfg)
		res.Duration = time.Since(start)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return stt.Result{}, fmt.Errorf("whisper: %w", stt.ContextError(ctx.Err()))
	}
}

// infer converts pcm to float32, runs whisper.cpp inference using a fresh
// context, and assembles the text and token-probability confidence.
func (p *NativeProvider) infer(ctx context.Context, pcm []byte, cfg stt.Config) (stt.Result, error) {
	samples := audio.PCMToFloat32(pcm, cfg.Channels)

	// Each context is NOT thread-safe, but the model can be shared.
	wctx, err := p.model.NewContext()
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = p.prompt
	}
	if prompt != "" {
		wctx.SetInitialPrompt(prompt)
	}

	encoderBegin := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(samples, encoderBegin, nil, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stt.Result{}, fmt.Errorf("whisper: %w", stt.ContextError(ctxErr))
		}
		return stt.Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var (
		texts []string
		probs []float64
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		texts = append(texts, segment.Text)
		if isNonSpeech(segment.Text) {
			continue
		}
		for _, tok := range segment.Tokens {
			if isSpecialToken(tok.Text) {
				continue
			}
			probs = append(probs, float64(tok.P))
		}
	}

	res := stt.Result{Text: joinSegments(texts)}
	if res.Text != "" {
		res.Confidence, res.HasConfidence = meanProbability(probs)
	}
	return res, nil
}

// isSpecialToken reports whether a token is a control token such as
// "[_BEG_]" or "<|endoftext|>" that carries no recognized speech.
func isSpecialToken(text string) bool {
	return strings.HasPrefix(text, "[_") || strings.HasPrefix(text, "<|")
}
