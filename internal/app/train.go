package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/voicenav/internal/transcribe"
	"github.com/MrWong99/voicenav/internal/wake"
)

// ErrNoLearnedFile is returned by [App.TrainWake] when wake.learned_file is
// not configured.
var ErrNoLearnedFile = errors.New("app: wake.learned_file is not configured")

// TrainWake records samples utterances of the user saying phrase, transcribes
// each one and appends the spellings not yet known to the learned variant
// store. prompt, if set, is called with the 1-based sample number before each
// recording. The running detector is not changed; the new variants take effect
// on the next start.
func (a *App) TrainWake(ctx context.Context, phrase string, samples int, prompt func(n int)) ([]string, error) {
	store := a.wakeStore()
	if store == nil {
		return nil, ErrNoLearnedFile
	}
	if samples < 1 {
		return nil, fmt.Errorf("app: samples must be at least 1, got %d", samples)
	}

	var transcripts []string
	for i := 1; i <= samples; i++ {
		if prompt != nil {
			prompt(i)
		}
		u, err := a.capturer.Capture(ctx, a.cfg.Capture.Timeout)
		if err != nil {
			return nil, fmt.Errorf("app: capture sample %d: %w", i, err)
		}
		if !u.Voiced {
			slog.Warn("no speech in sample", "sample", i)
			continue
		}
		res, err := a.transcriber.Transcribe(ctx, u)
		// Low-confidence spellings are exactly what training is for.
		if err != nil && !errors.Is(err, transcribe.ErrLowConfidence) {
			slog.Warn("sample transcription failed", "sample", i, "err", err)
			continue
		}
		slog.Info("sample transcribed", "sample", i, "text", res.Text, "confidence", res.Confidence)
		transcripts = append(transcripts, res.Text)
	}

	added, err := wake.Learn(store, a.phrases, phrase, transcripts)
	if err != nil {
		return nil, fmt.Errorf("app: store learned variants: %w", err)
	}
	return added, nil
}

// Phrases returns the wake phrase variants in effect for this run.
func (a *App) Phrases() []string { return a.phrases.Variants() }
