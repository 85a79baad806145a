// Package config provides the configuration schema, loader and provider
// registry for voicenav. A configuration is loaded once at start and never
// changes during a run.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Audio         AudioConfig         `yaml:"audio"`
	Wake          WakeConfig          `yaml:"wake"`
	Capture       CaptureConfig       `yaml:"capture"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Browser       BrowserConfig       `yaml:"browser"`
	Feedback      FeedbackConfig      `yaml:"feedback"`

	// Sites maps spoken site names to URLs, merged over the built-in table.
	// An empty URL removes a built-in entry.
	Sites map[string]string `yaml:"sites"`
}

// ServerConfig holds logging and status server settings.
type ServerConfig struct {
	LogLevel LogLevel `yaml:"log_level"`

	// ListenAddr is the address of the status server serving /healthz,
	// /readyz, /stats and /metrics. Empty disables it.
	ListenAddr string `yaml:"listen_addr"`
}

// AudioConfig selects the microphone.
type AudioConfig struct {
	// Device is matched case-insensitively against input device names.
	// Empty selects the system default input.
	Device string `yaml:"device"`

	SampleRate int `yaml:"sample_rate"`
	FrameMs    int `yaml:"frame_ms"`
}

// WakeConfig configures the wake phrase.
type WakeConfig struct {
	// Phrases are the base wake phrase variants. Empty uses the built-in
	// variants for "hey maya".
	Phrases []string `yaml:"phrases"`

	// ExtraVariants are appended to Phrases, typically common
	// mistranscriptions.
	ExtraVariants []string `yaml:"extra_variants"`

	// FuzzyThreshold enables sound-alike matching at this similarity in
	// (0, 1]. Zero disables fuzzy wake matching.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// LearnedFile is the JSON-lines store written by train-wake.
	LearnedFile string `yaml:"learned_file"`
}

// CaptureConfig tunes wake windows and command capture.
type CaptureConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	TrailingSilence time.Duration `yaml:"trailing_silence"`
	MinSpeech       time.Duration `yaml:"min_speech"`

	// EnergyThreshold is the RMS level the energy VAD treats as the
	// speech/silence midpoint.
	EnergyThreshold float64 `yaml:"energy_threshold"`

	WindowMax     time.Duration `yaml:"window_max"`
	WindowSilence time.Duration `yaml:"window_silence"`
}

// TranscriptionConfig selects speech-to-text engines.
type TranscriptionConfig struct {
	Primary ProviderEntry `yaml:"primary"`

	// Fallbacks are tried in order only when the primary fails to load.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`

	Timeout time.Duration `yaml:"timeout"`

	ConfidenceFilter ConfidenceFilterConfig `yaml:"confidence_filter"`

	// DumpDir, when set, receives a WAV file per captured command.
	DumpDir string `yaml:"dump_dir"`
}

// ConfidenceFilterConfig is the optional strict transcription mode.
type ConfidenceFilterConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
}

// BrowserConfig selects and tunes the browser backend.
type BrowserConfig struct {
	Provider ProviderEntry `yaml:"provider"`

	ActionTimeout    time.Duration `yaml:"action_timeout"`
	ReadAloudTimeout time.Duration `yaml:"read_aloud_timeout"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// FeedbackConfig configures spoken feedback.
type FeedbackConfig struct {
	// TTS selects the speech engine. An empty name, or an engine that fails
	// to load, degrades feedback to log lines.
	TTS ProviderEntry `yaml:"tts"`

	// Fallback is tried when TTS fails at speak time.
	Fallback ProviderEntry `yaml:"fallback"`

	Timeout          time.Duration `yaml:"timeout"`
	AnnounceNoSpeech bool          `yaml:"announce_no_speech"`

	// Acknowledgement is spoken after each wake trigger, e.g. "Yes?".
	// Empty disables it.
	Acknowledgement string `yaml:"acknowledgement"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. Name selects the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g. "whisper-native", "cdp").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider, or a model file path for
	// local engines.
	Model string `yaml:"model"`

	Language string `yaml:"language"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// StringOption returns Options[key] as a string, or def.
func (e ProviderEntry) StringOption(key, def string) string {
	if v, ok := e.Options[key].(string); ok && v != "" {
		return v
	}
	return def
}

// FloatOption returns Options[key] as a float64, or def. Integer values are
// converted.
func (e ProviderEntry) FloatOption(key string, def float64) float64 {
	switch v := e.Options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}
