package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MrWong99/voicenav/internal/config"
	"github.com/MrWong99/voicenav/internal/health"
	"github.com/MrWong99/voicenav/internal/resilience"
	"github.com/MrWong99/voicenav/internal/transcribe"
	"github.com/MrWong99/voicenav/pkg/browser"
	"github.com/MrWong99/voicenav/pkg/provider/stt"
	"github.com/MrWong99/voicenav/pkg/provider/tts"
)

// pingTimeout bounds the reachability probe of network-backed providers.
const pingTimeout = 3 * time.Second

// pinger is implemented by providers that can probe their backend.
type pinger interface {
	Ping(ctx context.Context) error
}

// Providers holds one interface value per provider slot. Populated by
// [BuildProviders] from the config registry, or directly by tests.
type Providers struct {
	// STT is the selected transcription engine. Required.
	STT stt.Provider

	// STTName is the configured name of the selected engine.
	STTName string

	// STTEngine records whether STT is the primary or a fallback.
	STTEngine transcribe.Engine

	// TTS speaks feedback and page content. Nil degrades to log lines.
	TTS tts.Provider

	// Browser executes commands. Required.
	Browser browser.Backend
}

// BuildProviders instantiates every configured provider through reg.
//
// The transcription engine is selected once: the primary is loaded first and
// the fallbacks are tried in order only if it fails to load. When no engine
// loads the returned error wraps [health.ErrResourceUnavailable]. TTS failures
// are logged and leave feedback degraded; they never fail the build.
func BuildProviders(ctx context.Context, cfg *config.Config, reg *config.Registry) (*Providers, error) {
	p := &Providers{}

	// ── Transcription ────────────────────────────────────────────────────
	primary := sttLoader(reg, cfg.Transcription.Primary, cfg.Transcription.Primary.Name)
	fallbacks := make([]resilience.STTLoader, 0, len(cfg.Transcription.Fallbacks))
	for i, entry := range cfg.Transcription.Fallbacks {
		label := entry.Name
		if label == primary.Name {
			label = fmt.Sprintf("%s#%d", entry.Name, i+1)
		}
		fallbacks = append(fallbacks, sttLoader(reg, entry, label))
	}
	sttp, name, err := resilience.SelectSTT(ctx, primary, fallbacks...)
	if err != nil {
		return nil, fmt.Errorf("%w: transcription engine: %w", health.ErrResourceUnavailable, err)
	}
	p.STT, p.STTName, p.STTEngine = sttp, name, transcribe.EnginePrimary
	if name != primary.Name {
		p.STTEngine = transcribe.EngineFallback
	}
	slog.Info("transcription engine ready", "engine", name, "role", p.STTEngine)

	// ── Feedback voice ───────────────────────────────────────────────────
	p.TTS = buildTTS(reg, cfg.Feedback)

	// ── Browser ──────────────────────────────────────────────────────────
	b, err := reg.CreateBrowser(cfg.Browser.Provider)
	if err != nil {
		closeIfCloser(p.STT)
		return nil, fmt.Errorf("app: create browser backend %q: %w", cfg.Browser.Provider.Name, err)
	}
	p.Browser = b
	if pg, ok := b.(pinger); ok {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		if err := pg.Ping(pctx); err != nil {
			slog.Warn("browser not reachable yet; commands fail until it is", "backend", cfg.Browser.Provider.Name, "err", err)
		}
		cancel()
	}
	return p, nil
}

// sttLoader wraps a registry entry as a [resilience.STTLoader]. Engines that
// can be probed are pinged so an unreachable server counts as a load failure.
func sttLoader(reg *config.Registry, entry config.ProviderEntry, label string) resilience.STTLoader {
	return resilience.STTLoader{
		Name: label,
		Load: func(ctx context.Context) (stt.Provider, error) {
			p, err := reg.CreateSTT(entry)
			if err != nil {
				return nil, err
			}
			if pg, ok := p.(pinger); ok {
				pctx, cancel := context.WithTimeout(ctx, pingTimeout)
				defer cancel()
				if err := pg.Ping(pctx); err != nil {
					closeIfCloser(p)
					return nil, fmt.Errorf("ping %s: %w", label, err)
				}
			}
			return p, nil
		},
	}
}

// buildTTS creates the feedback voice and its optional fallback. It returns
// nil when neither loads.
func buildTTS(reg *config.Registry, fc config.FeedbackConfig) tts.Provider {
	create := func(entry config.ProviderEntry) tts.Provider {
		if entry.Name == "" {
			return nil
		}
		p, err := reg.CreateTTS(entry)
		if err != nil {
			slog.Warn("tts unavailable", "provider", entry.Name, "err", err)
			return nil
		}
		return p
	}

	primary := create(fc.TTS)
	fallback := create(fc.Fallback)
	switch {
	case primary != nil && fallback != nil:
		f := resilience.NewTTSFallback(primary, fc.TTS.Name, resilience.FallbackConfig{})
		f.AddFallback(fc.Fallback.Name, fallback)
		return f
	case primary != nil:
		return primary
	case fallback != nil:
		slog.Warn("using fallback tts", "provider", fc.Fallback.Name)
		return fallback
	}
	slog.Warn("no tts available; spoken feedback will be logged")
	return nil
}

// Close releases every provider that holds resources.
func (p *Providers) Close() error {
	var errs []error
	for _, v := range []any{p.STT, p.TTS} {
		if err := closeIfCloser(v); err != nil {
			errs = append(errs, err)
		}
	}
	if p.Browser != nil {
		if err := p.Browser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func closeIfCloser(v any) error {
	if c, ok := v.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
