package applescript

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/voicenav/pkg/browser"
)

type scripted struct {
	scripts []string
	out     string
	err     error
}

func (s *scripted) run(_ context.Context, script string) (string, error) {
	s.scripts = append(s.scripts, script)
	return s.out, s.err
}

func TestNew_DefaultsToSafari(t *testing.T) {
	t.Parallel()
	if got := New("Firefox").App(); got != Safari {
		t.Fatalf("App() = %q, want %q", got, Safari)
	}
	if got := New(Chrome).App(); got != Chrome {
		t.Fatalf("App() = %q, want %q", got, Chrome)
	}
}

func TestEscape(t *testing.T) {
	t.Parallel()
	got := escape(`say "hi" \ bye`)
	want := `say \"hi\" \\ bye`
	if got != want {
		t.Fatalf("escape = %q, want %q", got, want)
	}
}

func TestJavaScriptWrapping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		app  string
		want string
	}{
		{Safari, `tell application "Safari" to do JavaScript "window.scrollBy(0, 300);" in front document`},
		{Chrome, `tell application "Google Chrome" to execute active tab of front window javascript "window.scrollBy(0, 300);"`},
	}
	for _, tt := range tests {
		t.Run(tt.app, func(t *testing.T) {
			t.Parallel()
			s := &scripted{}
			b := New(tt.app, WithRunner(s.run))
			if err := b.Scroll(context.Background(), browser.DirectionDown, 300); err != nil {
				t.Fatalf("Scroll: %v", err)
			}
			if len(s.scripts) != 1 || s.scripts[0] != tt.want {
				t.Fatalf("script = %q, want %q", s.scripts, tt.want)
			}
		})
	}
}

func TestNavigate(t *testing.T) {
	t.Parallel()
	s := &scripted{}
	b := New(Safari, WithRunner(s.run))
	if err := b.Navigate(context.Background(), "https://github.com"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if !strings.Contains(s.scripts[0], `open location "https://github.com"`) {
		t.Fatalf("script = %q", s.scripts[0])
	}
}

func TestClick_NotFound(t *testing.T) {
	t.Parallel()
	s := &scripted{out: ""}
	b := New(Chrome, WithRunner(s.run))
	err := b.Click(context.Background(), browser.ElementDescriptor{Text: "login"})
	if !errors.Is(err, browser.ErrElementNotFound) {
		t.Fatalf("err = %v, want ErrElementNotFound", err)
	}
}

func TestClick_Found(t *testing.T) {
	t.Parallel()
	s := &scripted{out: "Login"}
	b := New(Chrome, WithRunner(s.run))
	if err := b.Click(context.Background(), browser.ElementDescriptor{Text: "login"}); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if !strings.Contains(s.scripts[0], `\"text\":\"login\"`) {
		t.Fatalf("click locator not escaped into script: %.200s", s.scripts[0])
	}
}

func TestUnavailable(t *testing.T) {
	t.Parallel()
	s := &scripted{err: errors.New("osascript error: exit status 1 - output: Safari got an error: Application isn't running. (-600)")}
	b := New(Safari, WithRunner(s.run))
	if err := b.Refresh(context.Background()); !errors.Is(err, browser.ErrBackendUnavailable) {
		t.Fatalf("Refresh err = %v, want ErrBackendUnavailable", err)
	}
	if err := b.Ping(context.Background()); !errors.Is(err, browser.ErrBackendUnavailable) {
		t.Fatalf("Ping err = %v, want ErrBackendUnavailable", err)
	}
}

func TestExtractContent(t *testing.T) {
	t.Parallel()
	s := &scripted{out: `<html><body><article>Breaking news today</article></body></html>`}
	b := New(Safari, WithRunner(s.run))
	text, err := b.ExtractContent(context.Background())
	if err != nil {
		t.Fatalf("ExtractContent: %v", err)
	}
	if text != "Breaking news today" {
		t.Fatalf("text = %q", text)
	}
}

func TestTitle(t *testing.T) {
	t.Parallel()
	s := &scripted{out: "GitHub"}
	b := New(Chrome, WithRunner(s.run))
	title, err := b.Title(context.Background())
	if err != nil || title != "GitHub" {
		t.Fatalf("Title = %q, %v", title, err)
	}
	if !strings.Contains(s.scripts[0], "title of active tab") {
		t.Fatalf("script = %q", s.scripts[0])
	}
}
