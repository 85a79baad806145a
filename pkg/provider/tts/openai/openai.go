// Package openai provides a network TTS provider backed by the OpenAI speech
// API. Audio is requested as raw PCM and played through an [audio.Sink].
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/voicenav/pkg/audio"
	"github.com/MrWong99/voicenav/pkg/provider/tts"
)

const (
	// DefaultModel is the default speech model.
	DefaultModel = oai.SpeechModelTTS1

	// DefaultVoice is the default speaker voice.
	DefaultVoice = oai.AudioSpeechNewParamsVoiceAlloy
)

// PCMFormat is the format of the API's "pcm" response: 24 kHz, 16-bit mono.
var PCMFormat = audio.Format{SampleRate: 24000, Channels: 1}

var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
	voice  string
	speed  float64
	sink   audio.Sink
}

type config struct {
	baseURL string
	voice   string
	speed   float64
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithVoice selects the speaker voice (alloy, echo, nova, ...).
func WithVoice(voice string) Option {
	return func(c *config) { c.voice = voice }
}

// WithSpeed sets the playback speed multiplier (0.25 to 4.0).
func WithSpeed(speed float64) Option {
	return func(c *config) { c.speed = speed }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a Provider that plays synthesised speech on sink.
func New(apiKey, model string, sink audio.Sink, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: %w: apiKey must not be empty", tts.ErrNoEngine)
	}
	if sink == nil {
		return nil, fmt.Errorf("openai tts: %w: no playback sink", tts.ErrNoEngine)
	}
	if model == "" {
		model = DefaultModel
	}
	cfg := &config{voice: string(DefaultVoice)}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(1)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  model,
		voice:  cfg.voice,
		speed:  cfg.speed,
		sink:   sink,
	}, nil
}

// Speak implements tts.Provider.
func (p *Provider) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	params := oai.AudioSpeechNewParams{
		Input:          text,
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(p.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if p.speed > 0 {
		params.Speed = oai.Float(p.speed)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("openai tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("openai tts: read audio: %w", err)
	}
	if len(pcm)%2 == 1 {
		pcm = pcm[:len(pcm)-1]
	}
	return p.sink.Play(ctx, pcm, PCMFormat)
}
