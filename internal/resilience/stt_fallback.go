package resilience

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/voicenav/pkg/provider/stt"
)

// STTLoader initialises one speech-to-text engine. Load is called at most once
// per selection and should fail fast when the engine's model or endpoint is
// unusable.
type STTLoader struct {
	Name string
	Load func(ctx context.Context) (stt.Provider, error)
}

// SelectSTT initialises the first loader that succeeds and returns the
// resulting provider along with its name. Fallback loaders are only tried when
// every earlier loader failed to initialise; once an engine is selected it is
// used for the rest of the run.
func SelectSTT(ctx context.Context, primary STTLoader, fallbacks ...STTLoader) (stt.Provider, string, error) {
	// A single failed Load is enough to skip an entry.
	fg := NewFallbackGroup(primary, primary.Name, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
	})
	for _, fb := range fallbacks {
		fg.AddFallback(fb.Name, fb)
	}
	p, name, err := ExecuteNamed(fg, func(l STTLoader) (stt.Provider, error) {
		if l.Load == nil {
			return nil, fmt.Errorf("stt engine %q has no loader", l.Name)
		}
		return l.Load(ctx)
	})
	if err != nil {
		return nil, "", fmt.Errorf("resilience: select stt engine: %w", err)
	}
	if name != primary.Name {
		slog.Warn("primary stt engine unavailable, using fallback", "primary", primary.Name, "engine", name)
	}
	return p, name, nil
}
