package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/voicenav/internal/app"
	"github.com/MrWong99/voicenav/internal/config"
	"github.com/MrWong99/voicenav/pkg/audio/portaudio"
	"github.com/MrWong99/voicenav/pkg/browser"
	"github.com/MrWong99/voicenav/pkg/browser/applescript"
	"github.com/MrWong99/voicenav/pkg/browser/cdp"
	"github.com/MrWong99/voicenav/pkg/provider/stt"
	sttopenai "github.com/MrWong99/voicenav/pkg/provider/stt/openai"
	"github.com/MrWong99/voicenav/pkg/provider/stt/whisper"
	"github.com/MrWong99/voicenav/pkg/provider/tts"
	ttsopenai "github.com/MrWong99/voicenav/pkg/provider/tts/openai"
	"github.com/MrWong99/voicenav/pkg/provider/tts/system"
)

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.StringOption("model_path", "")
		}
		var opts []whisper.NativeOption
		if entry.Language != "" {
			opts = append(opts, whisper.WithNativeLanguage(entry.Language))
		}
		if prompt := entry.StringOption("prompt", ""); prompt != "" {
			opts = append(opts, whisper.WithNativePrompt(prompt))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, whisper.WithLanguage(entry.Language))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if entry.Language != "" {
			opts = append(opts, sttopenai.WithLanguage(entry.Language))
		}
		return sttopenai.New(entry.APIKey, entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("system", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []system.Option
		if command := entry.StringOption("command", ""); command != "" {
			opts = append(opts, system.WithCommand(command))
		}
		if voice := entry.StringOption("voice", ""); voice != "" {
			opts = append(opts, system.WithVoice(voice))
		}
		if rate := entry.FloatOption("rate", 0); rate > 0 {
			opts = append(opts, system.WithRate(int(rate)))
		}
		return system.New(opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		if voice := entry.StringOption("voice", ""); voice != "" {
			opts = append(opts, ttsopenai.WithVoice(voice))
		}
		if speed := entry.FloatOption("speed", 0); speed > 0 {
			opts = append(opts, ttsopenai.WithSpeed(speed))
		}
		return ttsopenai.New(entry.APIKey, entry.Model, portaudio.NewPlayer(cfg.Audio.FrameMs), opts...)
	})

	// ── Browser ───────────────────────────────────────────────────────────────

	reg.RegisterBrowser("cdp", func(entry config.ProviderEntry) (browser.Backend, error) {
		return cdp.New(entry.BaseURL), nil
	})

	reg.RegisterBrowser("applescript", func(entry config.ProviderEntry) (browser.Backend, error) {
		return applescript.New(entry.StringOption("app", "Safari")), nil
	})

	for kind, names := range reg.Names() {
		slog.Debug("registered providers", "kind", kind, "names", names)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, a *app.App) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        voicenav: startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Transcription.Primary.Name, cfg.Transcription.Primary.Model)
	for _, fb := range cfg.Transcription.Fallbacks {
		printProvider("STT fallback", fb.Name, fb.Model)
	}
	printProvider("TTS", cfg.Feedback.TTS.Name, cfg.Feedback.TTS.Model)
	printProvider("Browser", cfg.Browser.Provider.Name, cfg.Browser.Provider.StringOption("app", ""))
	device := cfg.Audio.Device
	if device == "" {
		device = "(default input)"
	}
	printRow("Microphone", device)
	printRow("Wake variants", fmt.Sprint(len(a.Phrases())))
	if cfg.Transcription.ConfidenceFilter.Enabled {
		printRow("Confidence min", fmt.Sprintf("%.2f", cfg.Transcription.ConfidenceFilter.Threshold))
	} else {
		printRow("Confidence min", "(accept all)")
	}
	if cfg.Server.ListenAddr != "" {
		printRow("Status server", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	printRow(kind, value)
}

func printRow(key, value string) {
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", key, strings.TrimSpace(value))
}
