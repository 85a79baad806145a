package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":     {"whisper-native", "whisper", "openai"},
	"tts":     {"system", "openai"},
	"browser": {"cdp", "applescript"},
}

// AppleScriptApps are the browsers the applescript backend can drive.
var AppleScriptApps = []string{"Safari", "Google Chrome"}

// Accepted trailing silence for command capture.
const (
	MinTrailingSilence = 500 * time.Millisecond
	MaxTrailingSilence = 800 * time.Millisecond
)

// Load reads the YAML configuration file at path and returns a validated [Config]
// with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every zero value that has a default.
func ApplyDefaults(cfg *Config) {
	setDefault(&cfg.Server.LogLevel, LogInfo)

	setDefault(&cfg.Audio.SampleRate, 16000)
	setDefault(&cfg.Audio.FrameMs, 30)

	setDefault(&cfg.Capture.Timeout, 5*time.Second)
	setDefault(&cfg.Capture.TrailingSilence, 700*time.Millisecond)
	setDefault(&cfg.Capture.MinSpeech, 200*time.Millisecond)
	setDefault(&cfg.Capture.EnergyThreshold, 300)
	setDefault(&cfg.Capture.WindowMax, 3*time.Second)
	setDefault(&cfg.Capture.WindowSilence, 300*time.Millisecond)

	setDefault(&cfg.Transcription.Timeout, 15*time.Second)
	setDefault(&cfg.Transcription.ConfidenceFilter.Threshold, 0.8)

	setDefault(&cfg.Browser.Provider.Name, "cdp")
	setDefault(&cfg.Browser.ActionTimeout, 10*time.Second)
	setDefault(&cfg.Browser.ReadAloudTimeout, 2*time.Minute)
	setDefault(&cfg.Browser.Breaker.MaxFailures, 5)
	setDefault(&cfg.Browser.Breaker.ResetTimeout, 30*time.Second)

	setDefault(&cfg.Feedback.Timeout, 10*time.Second)
}

func setDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is out of range [8000, 48000]", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameMs < 10 || cfg.Audio.FrameMs > 100 {
		errs = append(errs, fmt.Errorf("audio.frame_ms %d is out of range [10, 100]", cfg.Audio.FrameMs))
	}

	// Wake
	for i, p := range append(slices.Clone(cfg.Wake.Phrases), cfg.Wake.ExtraVariants...) {
		if p == "" {
			errs = append(errs, fmt.Errorf("wake phrase %d is empty", i))
		}
	}
	if t := cfg.Wake.FuzzyThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("wake.fuzzy_threshold %.2f is out of range [0, 1]", t))
	}

	// Capture
	c := cfg.Capture
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("capture.timeout must be positive, got %s", c.Timeout))
	}
	if c.TrailingSilence < MinTrailingSilence || c.TrailingSilence > MaxTrailingSilence {
		errs = append(errs, fmt.Errorf("capture.trailing_silence %s is out of range [%s, %s]", c.TrailingSilence, MinTrailingSilence, MaxTrailingSilence))
	}
	if c.MinSpeech <= 0 || c.MinSpeech >= c.Timeout {
		errs = append(errs, fmt.Errorf("capture.min_speech %s must be positive and shorter than capture.timeout", c.MinSpeech))
	}
	if c.EnergyThreshold <= 0 {
		errs = append(errs, fmt.Errorf("capture.energy_threshold must be positive, got %.1f", c.EnergyThreshold))
	}
	if c.WindowMax <= c.WindowSilence {
		errs = append(errs, fmt.Errorf("capture.window_max %s must exceed capture.window_silence %s", c.WindowMax, c.WindowSilence))
	}

	// Transcription
	tr := cfg.Transcription
	if tr.Primary.Name == "" {
		errs = append(errs, errors.New("transcription.primary.name is required"))
	}
	validateProviderName("stt", tr.Primary.Name)
	for i, fb := range tr.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("transcription.fallbacks[%d].name is required", i))
		}
		validateProviderName("stt", fb.Name)
	}
	if th := tr.ConfidenceFilter.Threshold; th <= 0 || th > 1 {
		errs = append(errs, fmt.Errorf("transcription.confidence_filter.threshold %.2f is out of range (0, 1]", th))
	}
	if tr.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("transcription.timeout must be positive, got %s", tr.Timeout))
	}

	// Browser
	b := cfg.Browser
	validateProviderName("browser", b.Provider.Name)
	if b.Provider.Name == "applescript" {
		if app := b.Provider.StringOption("app", "Safari"); !slices.Contains(AppleScriptApps, app) {
			errs = append(errs, fmt.Errorf("browser.provider.options.app %q is invalid; valid values: Safari, Google Chrome", app))
		}
	}
	if b.ActionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("browser.action_timeout must be positive, got %s", b.ActionTimeout))
	}
	if b.Breaker.MaxFailures < 1 {
		errs = append(errs, fmt.Errorf("browser.breaker.max_failures must be at least 1, got %d", b.Breaker.MaxFailures))
	}

	// Feedback
	validateProviderName("tts", cfg.Feedback.TTS.Name)
	validateProviderName("tts", cfg.Feedback.Fallback.Name)
	if cfg.Feedback.TTS.Name == "" {
		slog.Warn("feedback.tts is not configured; spoken feedback will be logged instead")
	}

	// Sites
	for name, raw := range cfg.Sites {
		if name == "" {
			errs = append(errs, errors.New("sites: empty site name"))
			continue
		}
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			errs = append(errs, fmt.Errorf("sites.%s %q must be an absolute https URL", name, raw))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
