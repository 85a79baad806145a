// Package system speaks through a command-line synthesiser installed on the
// host: macOS "say", or espeak-ng / espeak elsewhere.
package system

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/MrWong99/voicenav/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

// Runner executes a command and waits for it. Implementations must kill the
// process when ctx is cancelled.
type Runner func(ctx context.Context, name string, args ...string) error

// LookPath reports the resolved path of an executable.
type LookPath func(file string) (string, error)

// Provider speaks by running a synthesiser command once per utterance.
type Provider struct {
	command string
	voice   string
	rate    int
	run     Runner
}

type config struct {
	command  string
	voice    string
	rate     int
	run      Runner
	lookPath LookPath
}

// Option is a functional option for Provider.
type Option func(*config)

// WithCommand forces a specific synthesiser ("say", "espeak-ng", "espeak")
// instead of detecting one.
func WithCommand(name string) Option {
	return func(c *config) { c.command = name }
}

// WithVoice selects a synthesiser voice by name.
func WithVoice(voice string) Option {
	return func(c *config) { c.voice = voice }
}

// WithRate sets the speaking rate in words per minute.
func WithRate(wpm int) Option {
	return func(c *config) { c.rate = wpm }
}

// WithRunner replaces command execution, for tests.
func WithRunner(r Runner) Option {
	return func(c *config) { c.run = r }
}

// WithLookPath replaces executable discovery, for tests.
func WithLookPath(l LookPath) Option {
	return func(c *config) { c.lookPath = l }
}

// candidates lists synthesisers in preference order for the current OS.
func candidates() []string {
	if runtime.GOOS == "darwin" {
		return []string{"say", "espeak-ng", "espeak"}
	}
	return []string{"espeak-ng", "espeak"}
}

// New detects an installed synthesiser. It returns [tts.ErrNoEngine] when none
// is found.
func New(opts ...Option) (*Provider, error) {
	cfg := &config{lookPath: exec.LookPath, run: execRunner}
	for _, o := range opts {
		o(cfg)
	}

	names := candidates()
	if cfg.command != "" {
		names = []string{cfg.command}
	}
	for _, name := range names {
		if _, err := cfg.lookPath(name); err == nil {
			return &Provider{command: name, voice: cfg.voice, rate: cfg.rate, run: cfg.run}, nil
		}
	}
	return nil, fmt.Errorf("system tts: %w: tried %s", tts.ErrNoEngine, strings.Join(names, ", "))
}

// Command returns the synthesiser in use.
func (p *Provider) Command() string { return p.command }

// Speak implements tts.Provider.
func (p *Provider) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := p.run(ctx, p.command, p.args(text)...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("system tts: %s: %w", p.command, err)
	}
	return nil
}

// args builds the synthesiser argument list. The text is always the final
// argument; leading dashes are stripped so it is never read as a flag.
func (p *Provider) args(text string) []string {
	var args []string
	switch p.command {
	case "say":
		if p.voice != "" {
			args = append(args, "-v", p.voice)
		}
		if p.rate > 0 {
			args = append(args, "-r", strconv.Itoa(p.rate))
		}
	default:
		if p.voice != "" {
			args = append(args, "-v", p.voice)
		}
		if p.rate > 0 {
			args = append(args, "-s", strconv.Itoa(p.rate))
		}
	}
	return append(args, strings.TrimLeft(text, "- "))
}

func execRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil && len(out) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return err
}
