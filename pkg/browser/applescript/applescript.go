// Package applescript implements browser.Backend for the user's own Safari or
// Google Chrome window on macOS, driven through osascript.
//
// Page interaction runs JavaScript in the front tab, which requires "Allow
// JavaScript from Apple Events" to be enabled in the browser.
package applescript

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/MrWong99/voicenav/pkg/browser"
)

// Supported browser applications.
const (
	Safari = "Safari"
	Chrome = "Google Chrome"
)

var _ browser.Backend = (*Backend)(nil)

// Runner executes an AppleScript and returns its trimmed output.
type Runner func(ctx context.Context, script string) (string, error)

// Backend drives the front tab of Safari or Google Chrome.
type Backend struct {
	app string
	run Runner
}

// Option is a functional option for Backend.
type Option func(*Backend)

// WithRunner replaces osascript execution, for tests.
func WithRunner(r Runner) Option {
	return func(b *Backend) { b.run = r }
}

// New creates a Backend for app. Anything other than [Chrome] selects
// [Safari].
func New(app string, opts ...Option) *Backend {
	if app != Chrome {
		app = Safari
	}
	b := &Backend{app: app, run: runOsascript}
	for _, o := range opts {
		o(b)
	}
	return b
}

// App returns the controlled browser application name.
func (b *Backend) App() string { return b.app }

func runOsascript(ctx context.Context, script string) (string, error) {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		return output, fmt.Errorf("osascript error: %w - output: %s", err, output)
	}
	return output, nil
}

// escape quotes s for use inside an AppleScript string literal.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// classify maps osascript failures onto browser sentinel errors.
func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	msg := err.Error()
	switch {
	case errors.Is(err, exec.ErrNotFound),
		strings.Contains(msg, "(-600)"),
		strings.Contains(msg, "isn't running"),
		strings.Contains(msg, "Can't get window 1"),
		strings.Contains(msg, "Can’t get window 1"):
		return fmt.Errorf("applescript: %s: %w: %w", op, browser.ErrBackendUnavailable, err)
	}
	return fmt.Errorf("applescript: %s: %w", op, err)
}

// javascript wraps js in the app-specific "run in front tab" command.
func (b *Backend) javascript(js string) string {
	if b.app == Chrome {
		return fmt.Sprintf("tell application %q to execute active tab of front window javascript \"%s\"", Chrome, escape(js))
	}
	return fmt.Sprintf("tell application %q to do JavaScript \"%s\" in front document", Safari, escape(js))
}

func (b *Backend) exec(ctx context.Context, op, js string) (string, error) {
	out, err := b.run(ctx, b.javascript(js))
	return out, classify(ctx, op, err)
}

// Ping verifies that the browser can be scripted.
func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.run(ctx, fmt.Sprintf("tell application %q to return name", b.app))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("applescript: %w: %w", browser.ErrBackendUnavailable, err)
	}
	return nil
}

// Navigate implements browser.Backend.
func (b *Backend) Navigate(ctx context.Context, url string) error {
	script := fmt.Sprintf("tell application %q\n\tactivate\n\topen location \"%s\"\nend tell", b.app, escape(url))
	_, err := b.run(ctx, script)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("applescript: %w: %s", browser.ErrNavigationTimeout, url)
	}
	return classify(ctx, "navigate", err)
}

// Click implements browser.Backend.
func (b *Backend) Click(ctx context.Context, el browser.ElementDescriptor) error {
	out, err := b.exec(ctx, "click", browser.ClickScript(el))
	if err != nil {
		return err
	}
	if out == "" || out == "missing value" {
		return fmt.Errorf("applescript: %w: %s", browser.ErrElementNotFound, el)
	}
	return nil
}

// Scroll implements browser.Backend.
func (b *Backend) Scroll(ctx context.Context, dir browser.Direction, amount int) error {
	_, err := b.exec(ctx, "scroll", browser.ScrollScript(dir, amount))
	return err
}

// Back implements browser.Backend.
func (b *Backend) Back(ctx context.Context) error {
	_, err := b.exec(ctx, "back", "history.back();")
	return err
}

// Forward implements browser.Backend.
func (b *Backend) Forward(ctx context.Context) error {
	_, err := b.exec(ctx, "forward", "history.forward();")
	return err
}

// Refresh implements browser.Backend.
func (b *Backend) Refresh(ctx context.Context) error {
	_, err := b.exec(ctx, "refresh", "location.reload();")
	return err
}

// ExtractContent implements browser.Backend.
func (b *Backend) ExtractContent(ctx context.Context) (string, error) {
	html, err := b.exec(ctx, "read", browser.DocumentHTMLScript)
	if err != nil {
		return "", err
	}
	return browser.ExtractText(html)
}

// Title implements browser.Backend.
func (b *Backend) Title(ctx context.Context) (string, error) {
	script := fmt.Sprintf("tell application %q to return name of front document", Safari)
	if b.app == Chrome {
		script = fmt.Sprintf("tell application %q to return title of active tab of front window", Chrome)
	}
	out, err := b.run(ctx, script)
	if err != nil {
		return "", classify(ctx, "title", err)
	}
	return strings.TrimSpace(out), nil
}

// Close implements browser.Backend. There is no connection to release.
func (b *Backend) Close() error { return nil }
