// Package app wires all voicenav subsystems into a running application.
//
// The App struct owns the full lifecycle: New checks the microphone and the
// transcription engine and connects all subsystems, Run executes the voice
// pipeline and the status server, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithSource, WithFS,
// WithMetrics). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicenav/internal/capture"
	"github.com/MrWong99/voicenav/internal/command"
	"github.com/MrWong99/voicenav/internal/config"
	"github.com/MrWong99/voicenav/internal/dispatch"
	"github.com/MrWong99/voicenav/internal/feedback"
	"github.com/MrWong99/voicenav/internal/health"
	"github.com/MrWong99/voicenav/internal/observe"
	"github.com/MrWong99/voicenav/internal/orchestrator"
	"github.com/MrWong99/voicenav/internal/phonetic"
	"github.com/MrWong99/voicenav/internal/resilience"
	"github.com/MrWong99/voicenav/internal/transcribe"
	"github.com/MrWong99/voicenav/internal/wake"
	"github.com/MrWong99/voicenav/pkg/audio"
	"github.com/MrWong99/voicenav/pkg/audio/portaudio"
	"github.com/MrWong99/voicenav/pkg/provider/vad"
	"github.com/MrWong99/voicenav/pkg/provider/vad/energy"
)

// App owns all subsystem lifetimes and runs the voice navigation pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers
	version   string

	// Subsystems, initialised in New and torn down in Shutdown.
	fs          afero.Fs
	telemetry   *observe.Provider
	metrics     *observe.Metrics
	source      audio.Source
	vad         vad.Engine
	transcriber *transcribe.Transcriber
	phrases     wake.PhraseConfig
	detector    *wake.Detector
	parser      *command.Parser
	dispatcher  *dispatch.Dispatcher
	feedback    *feedback.Channel
	windows     *capture.Windower
	capturer    *capture.Capturer
	orch        *orchestrator.Orchestrator
	health      *health.Handler
	mux         *http.ServeMux
	server      *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSource injects an audio source instead of opening the microphone.
func WithSource(s audio.Source) Option {
	return func(a *App) { a.source = s }
}

// WithFS sets the filesystem used for learned wake variants and audio dumps.
// Defaults to the OS filesystem.
func WithFS(fs afero.Fs) Option {
	return func(a *App) { a.fs = fs }
}

// WithMetrics injects metrics instead of initialising the Prometheus
// exporter. /metrics is not served when metrics are injected.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithVersion sets the service version reported in telemetry.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers come
// from [BuildProviders] (or a test). An unusable microphone or a missing
// transcription engine fails with an error wrapping
// [health.ErrResourceUnavailable] before anything starts listening.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.fs == nil {
		a.fs = afero.NewOsFs()
	}
	if providers == nil || providers.Browser == nil {
		return nil, errors.New("app: browser backend is required")
	}
	if providers.STT == nil {
		return nil, fmt.Errorf("%w: no transcription engine", health.ErrResourceUnavailable)
	}

	// ── 1. Telemetry ─────────────────────────────────────────────────────
	if err := a.initTelemetry(ctx); err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}

	// ── 2. Microphone ────────────────────────────────────────────────────
	if err := a.initSource(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("%w: microphone: %w", health.ErrResourceUnavailable, err)
	}

	// ── 3. Transcription ─────────────────────────────────────────────────
	if err := a.initTranscriber(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init transcription: %w", err)
	}

	// ── 4. Wake phrase ───────────────────────────────────────────────────
	if err := a.initWake(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init wake phrase: %w", err)
	}

	// ── 5. Parser ────────────────────────────────────────────────────────
	a.parser = command.NewParser(
		command.WithSites(cfg.Sites),
		command.WithMatcher(phonetic.New()),
		command.WithWakePhrases(a.phrases.Variants()...),
	)

	// ── 6. Dispatcher + feedback ─────────────────────────────────────────
	a.dispatcher = dispatch.New(providers.Browser, providers.TTS, dispatch.Config{
		ActionTimeout:    cfg.Browser.ActionTimeout,
		ReadAloudTimeout: cfg.Browser.ReadAloudTimeout,
		Breaker: resilience.CircuitBreakerConfig{
			Name:          "browser",
			MaxFailures:   cfg.Browser.Breaker.MaxFailures,
			ResetTimeout:  cfg.Browser.Breaker.ResetTimeout,
			OnStateChange: func(name string, _, to resilience.State) {
				if to == resilience.StateOpen {
					a.metrics.RecordProviderError(context.Background(), name, "circuit_open")
				}
			},
		},
	})
	a.feedback = feedback.New(providers.TTS, feedback.Config{
		Timeout:          cfg.Feedback.Timeout,
		AnnounceNoSpeech: cfg.Feedback.AnnounceNoSpeech,
		Acknowledgement:  cfg.Feedback.Acknowledgement,
	})
	a.closers = append(a.closers, providers.Close)

	// ── 7. Capture pipeline + orchestrator ───────────────────────────────
	if err := a.initPipeline(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("%w: microphone: %w", health.ErrResourceUnavailable, err)
	}

	// ── 8. Status server ─────────────────────────────────────────────────
	a.initStatus()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initTelemetry sets up the Prometheus exporter unless metrics were injected.
func (a *App) initTelemetry(ctx context.Context) error {
	if a.metrics != nil {
		return nil
	}
	tp, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: a.version})
	if err != nil {
		return err
	}
	m, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		_ = tp.Shutdown(ctx)
		return err
	}
	a.telemetry, a.metrics = tp, m
	a.closers = append(a.closers, func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tp.Shutdown(sctx)
	})
	return nil
}

// initSource opens the microphone if no source was injected.
func (a *App) initSource() error {
	if a.source == nil {
		src, err := portaudio.Open(
			portaudio.WithDevice(a.cfg.Audio.Device),
			portaudio.WithSampleRate(a.cfg.Audio.SampleRate),
			portaudio.WithFrameMs(a.cfg.Audio.FrameMs),
		)
		if err != nil {
			return err
		}
		a.source = src
	}
	a.closers = append(a.closers, a.source.Close)
	a.vad = energy.New(energy.WithRMSThreshold(a.cfg.Capture.EnergyThreshold))
	slog.Info("microphone ready", "device", a.cfg.Audio.Device, "format", a.source.Format())
	return nil
}

// initTranscriber wraps the selected engine.
func (a *App) initTranscriber() error {
	tc := a.cfg.Transcription
	primary := tc.Primary
	tr, err := transcribe.New(a.providers.STT, a.providers.STTName, a.providers.STTEngine, transcribe.Config{
		Language: primary.Language,
		Prompt:   primary.StringOption("prompt", ""),
		Timeout:  tc.Timeout,
		Policy: transcribe.ConfidencePolicy{
			Enabled:   tc.ConfidenceFilter.Enabled,
			Threshold: tc.ConfidenceFilter.Threshold,
		},
		DumpDir: tc.DumpDir,
	}, transcribe.WithFS(a.fs))
	if err != nil {
		return err
	}
	a.transcriber = tr
	return nil
}

// basePhrases returns the configured wake variants without learned ones.
func basePhrases(cfg *config.Config) (wake.PhraseConfig, error) {
	phrases := cfg.Wake.Phrases
	if len(phrases) == 0 {
		phrases = wake.DefaultVariants
	}
	base, err := wake.NewPhraseConfig(phrases...)
	if err != nil {
		return wake.PhraseConfig{}, err
	}
	return base.WithVariants(cfg.Wake.ExtraVariants...), nil
}

// wakeStore returns the learned variant store, or nil when none is configured.
func (a *App) wakeStore() *wake.Store {
	if a.cfg.Wake.LearnedFile == "" {
		return nil
	}
	return wake.NewStore(a.fs, a.cfg.Wake.LearnedFile)
}

// initWake builds the immutable phrase config and the detector.
func (a *App) initWake() error {
	base, err := basePhrases(a.cfg)
	if err != nil {
		return err
	}
	phrases, err := wake.LoadConfig(base, a.wakeStore())
	if err != nil {
		return err
	}
	a.phrases = phrases

	var opts []wake.DetectorOption
	if th := a.cfg.Wake.FuzzyThreshold; th > 0 {
		opts = append(opts, wake.WithFuzzy(phonetic.New(phonetic.WithFuzzyThreshold(th))))
	}
	a.detector = wake.NewDetector(phrases, opts...)
	slog.Info("wake phrase ready", "variants", phrases.Len(), "learned", phrases.Len()-base.Len())
	return nil
}

// speechFormat is what the VAD and the transcription engines consume.
var speechFormat = audio.Format{SampleRate: 16000, Channels: 1}

// initPipeline starts the audio source and builds the windower, the capturer
// and the orchestrator on the shared frame stream. Sources in another format
// are converted first.
func (a *App) initPipeline(ctx context.Context) error {
	frames, err := a.source.Start(ctx)
	if err != nil {
		return err
	}
	format := a.source.Format()
	if format != speechFormat {
		slog.Info("app: converting microphone audio", "from", format, "to", speechFormat)
		frames, format = audio.ConvertStream(frames, speechFormat), speechFormat
	}
	cc := a.cfg.Capture

	a.windows = capture.NewWindower(frames, format, a.vad, capture.WindowConfig{
		MaxLength: cc.WindowMax,
		Silence:   cc.WindowSilence,
	})
	a.closers = append(a.closers, a.windows.Close)
	a.capturer = capture.NewCapturer(frames, format, a.vad, capture.Config{
		Timeout:         cc.Timeout,
		TrailingSilence: cc.TrailingSilence,
		MinSpeech:       cc.MinSpeech,
	})

	a.orch, err = orchestrator.New(orchestrator.Config{
		Windows:        a.windows,
		Capturer:       a.capturer,
		Transcriber:    a.transcriber,
		Detector:       a.detector,
		Parser:         a.parser,
		Dispatcher:     a.dispatcher,
		Feedback:       a.feedback,
		Metrics:        a.metrics,
		CaptureTimeout: cc.Timeout,
	})
	return err
}

// initStatus builds the health checks and the status server mux.
func (a *App) initStatus() {
	a.health = health.New(a.checkers()...).WithStats(func() any { return a.orch.Stats() })
	a.mux = http.NewServeMux()
	a.health.Register(a.mux)
	if a.telemetry != nil {
		a.mux.Handle("GET /metrics", a.telemetry.MetricsHandler())
	}
	if addr := a.cfg.Server.ListenAddr; addr != "" {
		a.server = &http.Server{
			Addr:              addr,
			Handler:           observe.Middleware(a.metrics)(a.mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
}

// checkers returns the readiness checks for the microphone, the transcription
// engine and the browser.
func (a *App) checkers() []health.Checker {
	return []health.Checker{
		{Name: "microphone", Check: func(context.Context) error {
			if a.source == nil {
				return errors.New("not open")
			}
			return nil
		}},
		{Name: "transcription", Check: func(ctx context.Context) error {
			if pg, ok := a.providers.STT.(pinger); ok {
				return pg.Ping(ctx)
			}
			return nil
		}},
		{Name: "browser", Check: func(ctx context.Context) error {
			if st := a.dispatcher.BreakerState(); st == resilience.StateOpen {
				return fmt.Errorf("circuit %s", st)
			}
			if pg, ok := a.providers.Browser.(pinger); ok {
				return pg.Ping(ctx)
			}
			return nil
		}},
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the status server routes without middleware.
func (a *App) Handler() http.Handler { return a.mux }

// Stats returns the current interaction statistics.
func (a *App) Stats() orchestrator.StatsSnapshot { return a.orch.Stats() }

// Check runs every readiness check once and joins the failures.
func (a *App) Check(ctx context.Context) error { return a.health.Check(ctx) }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the dispatcher, the orchestrator and the status server and
// blocks until ctx is cancelled or one of them fails. When ctx is done, Run
// returns ctx.Err().
func (a *App) Run(ctx context.Context) error {
	// Bind the status port before starting anything so a taken port fails
	// Run with nothing left running.
	var ln net.Listener
	if a.server != nil {
		var err error
		if ln, err = net.Listen("tcp", a.server.Addr); err != nil {
			return fmt.Errorf("app: status server: %w", err)
		}
		slog.Info("status server listening", "addr", ln.Addr().String())
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.dispatcher.Run(gctx) })
	g.Go(func() error { return a.orch.Run(gctx) })

	if ln != nil {
		g.Go(func() error {
			if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.server.Shutdown(sctx)
		})
	}

	slog.Info("app running", "wake_variants", a.phrases.Len(), "engine", a.providers.STTName)
	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		// The orchestrator only returns nil on cancellation.
		err = errors.New("app: pipeline stopped")
	}
	return err
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers registered so far after a failed New.
func (a *App) closeAll() {
	_ = a.Shutdown(context.Background())
}
