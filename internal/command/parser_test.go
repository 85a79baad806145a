package command_test

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voicenav/internal/command"
	"github.com/MrWong99/voicenav/pkg/browser"
)

var fixed = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newParser(opts ...command.Option) *command.Parser {
	opts = append([]command.Option{command.WithClock(func() time.Time { return fixed })}, opts...)
	return command.NewParser(opts...)
}

func TestParse_Scenarios(t *testing.T) {
	t.Parallel()

	p := newParser()

	t.Run("open google", func(t *testing.T) {
		t.Parallel()
		cmd := p.Parse("open google")
		if cmd.Intent != command.IntentOpenURL {
			t.Fatalf("Intent = %q, want %q", cmd.Intent, command.IntentOpenURL)
		}
		params := cmd.Params.(command.OpenURLParams)
		if params.URL != "https://google.com" {
			t.Fatalf("URL = %q, want %q", params.URL, "https://google.com")
		}
		if cmd.Confidence != command.ConfidenceExact {
			t.Fatalf("Confidence = %v, want %v", cmd.Confidence, command.ConfidenceExact)
		}
	})

	t.Run("click the login button", func(t *testing.T) {
		t.Parallel()
		cmd := p.Parse("click the login button")
		if cmd.Intent != command.IntentClick {
			t.Fatalf("Intent = %q, want %q", cmd.Intent, command.IntentClick)
		}
		params := cmd.Params.(command.ClickParams)
		if params.Type != browser.ElementButton || params.Text != "login" {
			t.Fatalf("params = %+v, want type=button text=login", params)
		}
	})

	t.Run("scroll down", func(t *testing.T) {
		t.Parallel()
		cmd := p.Parse("scroll down")
		if cmd.Intent != command.IntentScroll {
			t.Fatalf("Intent = %q, want %q", cmd.Intent, command.IntentScroll)
		}
		params := cmd.Params.(command.ScrollParams)
		if params.Direction != browser.DirectionDown || params.Amount != command.DefaultScrollAmount {
			t.Fatalf("params = %+v", params)
		}
	})

	t.Run("banana sandwich", func(t *testing.T) {
		t.Parallel()
		cmd := p.Parse("banana sandwich")
		if cmd.Intent != command.IntentUnknown {
			t.Fatalf("Intent = %q, want unknown", cmd.Intent)
		}
		if cmd.RawText != "banana sandwich" {
			t.Fatalf("RawText = %q, want %q", cmd.RawText, "banana sandwich")
		}
		if cmd.Params != nil {
			t.Fatalf("Params = %+v, want nil", cmd.Params)
		}
	})
}

func TestParse_Intents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text       string
		intent     command.Intent
		confidence float64
	}{
		{"stop", command.IntentStop, 0.9},
		{"Stop reading!", command.IntentStop, 0.9},
		{"that's enough", command.IntentStop, 0.9},
		{"cancel", command.IntentStop, 0.9},
		{"help", command.IntentHelp, 0.9},
		{"What can you do?", command.IntentHelp, 0.9},
		{"so what can you do for me", command.IntentHelp, 0.6},
		{"go back", command.IntentBack, 0.9},
		{"previous page", command.IntentBack, 0.9},
		{"back", command.IntentBack, 0.6},
		{"return", command.IntentBack, 0.6},
		{"go forward", command.IntentForward, 0.9},
		{"next page", command.IntentForward, 0.9},
		{"advance", command.IntentForward, 0.6},
		{"refresh", command.IntentRefresh, 0.9},
		{"reload the page", command.IntentRefresh, 0.9},
		{"update page", command.IntentRefresh, 0.9},
		{"read page", command.IntentRead, 0.9},
		{"read this to me", command.IntentRead, 0.9},
		{"what does it say", command.IntentRead, 0.6},
		{"page up", command.IntentScroll, 0.9},
		{"go down", command.IntentScroll, 0.9},
		{"scroll a bit down", command.IntentScroll, 0.6},
		{"down", command.IntentScroll, 0.6},
		{"navigate to github", command.IntentOpenURL, 0.9},
		{"visit reddit.com", command.IntentOpenURL, 0.9},
		{"tap on sign in", command.IntentClick, 0.9},
		{"choose the first link", command.IntentClick, 0.9},
		{"reddit.com", command.IntentOpenURL, 0.3},
		{"i want to click submit", command.IntentClick, 0.3},
		{"", command.IntentUnknown, 0},
		{"   ", command.IntentUnknown, 0},
	}

	p := newParser()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			cmd := p.Parse(tt.text)
			if cmd.Intent != tt.intent {
				t.Fatalf("Parse(%q).Intent = %q, want %q", tt.text, cmd.Intent, tt.intent)
			}
			if cmd.Confidence != tt.confidence {
				t.Fatalf("Parse(%q).Confidence = %v, want %v", tt.text, cmd.Confidence, tt.confidence)
			}
		})
	}
}

func TestParse_SpecificBeforeLoose(t *testing.T) {
	t.Parallel()

	p := newParser()
	// Single-word rules only fire when the word is the whole text.
	if got := p.Parse("take me back").Intent; got == command.IntentBack {
		t.Fatalf("take me back parsed as %q; single-word rules must match whole text", got)
	}
	if got := p.Parse("go to the previous page").Intent; got != command.IntentBack {
		t.Fatalf("go to the previous page = %q, want go_back", got)
	}
}

func TestParse_ScrollWithoutDirection(t *testing.T) {
	t.Parallel()

	p := newParser()
	for _, text := range []string{"scroll", "scroll the page", "scroll somewhere", "keep scrolling"} {
		cmd := p.Parse(text)
		if cmd.Intent != command.IntentUnknown {
			t.Fatalf("Parse(%q).Intent = %q, want unknown", text, cmd.Intent)
		}
		if cmd.RawText != text {
			t.Fatalf("RawText = %q, want %q", cmd.RawText, text)
		}
	}
}

func TestParse_ScrollDirectionAlwaysValid(t *testing.T) {
	t.Parallel()

	p := newParser()
	inputs := []string{"scroll up", "scroll down", "page down", "move up", "scroll way up", "up", "down"}
	for _, in := range inputs {
		cmd := p.Parse(in)
		if cmd.Intent != command.IntentScroll {
			t.Fatalf("Parse(%q).Intent = %q, want scroll", in, cmd.Intent)
		}
		if d := cmd.Params.(command.ScrollParams).Direction; !d.Valid() {
			t.Fatalf("Parse(%q) direction = %q, want up or down", in, d)
		}
	}
}

func TestParse_OpenURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text       string
		url        string
		confidence float64
	}{
		{"open google", "https://google.com", 0.9},
		{"go to the youtube website", "https://youtube.com", 0.9},
		{"open stack overflow", "https://stackoverflow.com", 0.9},
		{"go to reddit.com", "https://reddit.com", 0.9},
		{"open reddit dot com", "https://reddit.com", 0.9},
		{"open news.ycombinator.com", "https://news.ycombinator.com", 0.9},
		{"open google search", "https://google.com", 0.9},
		{"open goggle", "https://google.com", 0.6},
		{"open the weather in paris", "https://google.com/search?q=weather+in+paris", 0.9},
		{"Please, open GitHub.", "https://github.com", 0.9},
		{"visit example.com/news", "https://example.com/news", 0.9},
		{"open https://example.com", "https://example.com", 0.9},
		{"open HTTPS://Example.com/Docs?page=2.", "https://example.com/docs?page=2", 0.9},
		{"go to the example.com/home/page website", "https://example.com/home/page", 0.9},
	}

	p := newParser()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			cmd := p.Parse(tt.text)
			if cmd.Intent != command.IntentOpenURL {
				t.Fatalf("Intent = %q, want open_url", cmd.Intent)
			}
			params := cmd.Params.(command.OpenURLParams)
			if params.URL != tt.url {
				t.Fatalf("URL = %q, want %q", params.URL, tt.url)
			}
			if cmd.Confidence != tt.confidence {
				t.Fatalf("Confidence = %v, want %v", cmd.Confidence, tt.confidence)
			}
		})
	}
}

func TestParse_KnownSitesAreHTTPS(t *testing.T) {
	t.Parallel()

	p := newParser()
	for name := range command.DefaultSites {
		cmd := p.Parse("open " + name)
		if cmd.Intent != command.IntentOpenURL {
			t.Fatalf("open %s: Intent = %q", name, cmd.Intent)
		}
		if u := cmd.Params.(command.OpenURLParams).URL; !strings.HasPrefix(u, "https://") {
			t.Fatalf("open %s: URL = %q, want https://", name, u)
		}
	}
}

func TestParse_OpenWithoutTarget(t *testing.T) {
	t.Parallel()

	p := newParser()
	cmd := p.Parse("open the website")
	if cmd.Intent != command.IntentUnknown {
		t.Fatalf("Intent = %q, want unknown", cmd.Intent)
	}
}

func TestParse_CustomSites(t *testing.T) {
	t.Parallel()

	p := newParser(command.WithSites(map[string]string{
		"Hacker News": "https://news.ycombinator.com",
		"google":      "",
	}))
	cmd := p.Parse("open hacker news")
	if u := cmd.Params.(command.OpenURLParams).URL; u != "https://news.ycombinator.com" {
		t.Fatalf("URL = %q", u)
	}
	cmd = p.Parse("open google")
	if u := cmd.Params.(command.OpenURLParams).URL; !strings.HasPrefix(u, command.SearchURL) {
		t.Fatalf("removed site still resolved: %q", u)
	}
}

func TestParse_CustomSiteUpgradedToHTTPS(t *testing.T) {
	t.Parallel()

	p := newParser(command.WithSites(map[string]string{
		"intranet": "http://intranet.example.com/home",
	}))
	cmd := p.Parse("open intranet")
	if u := cmd.Params.(command.OpenURLParams).URL; u != "https://intranet.example.com/home" {
		t.Fatalf("URL = %q, want https://intranet.example.com/home", u)
	}
}

func TestParse_NoFuzzyMatcher(t *testing.T) {
	t.Parallel()

	p := newParser(command.WithMatcher(nil))
	cmd := p.Parse("open goggle")
	if u := cmd.Params.(command.OpenURLParams).URL; u != command.SearchURL+"goggle" {
		t.Fatalf("URL = %q, want search", u)
	}
}

func TestParse_Click(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want browser.ElementDescriptor
	}{
		{"click login", browser.ElementDescriptor{Type: browser.ElementAny, Text: "login"}},
		{"click on the sign up link", browser.ElementDescriptor{Type: browser.ElementLink, Text: "sign up"}},
		{"click the red search box", browser.ElementDescriptor{Type: browser.ElementInput, Color: "red", Purpose: "search"}},
		{"press the first link", browser.ElementDescriptor{Type: browser.ElementLink, Position: "first"}},
		{"click the search bar", browser.ElementDescriptor{Type: browser.ElementInput, Purpose: "search"}},
		{"tap the password field", browser.ElementDescriptor{Type: browser.ElementInput, Purpose: "password"}},
		{"click the blue submit button", browser.ElementDescriptor{Type: browser.ElementButton, Text: "submit", Color: "blue"}},
		{"click the bottom link", browser.ElementDescriptor{Type: browser.ElementLink, Position: "bottom"}},
		{"click blue", browser.ElementDescriptor{Type: browser.ElementAny, Color: "blue"}},
	}

	p := newParser()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			cmd := p.Parse(tt.text)
			if cmd.Intent != command.IntentClick {
				t.Fatalf("Intent = %q, want click_element", cmd.Intent)
			}
			got := cmd.Params.(command.ClickParams).ElementDescriptor
			if got != tt.want {
				t.Fatalf("element = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParse_ClickWithoutTarget(t *testing.T) {
	t.Parallel()

	p := newParser()
	for _, text := range []string{"click", "click the", "press on"} {
		if cmd := p.Parse(text); cmd.Intent != command.IntentUnknown {
			t.Fatalf("Parse(%q).Intent = %q, want unknown", text, cmd.Intent)
		}
	}
}

func TestParse_ReadTitle(t *testing.T) {
	t.Parallel()

	p := newParser()
	for _, text := range []string{"read the title", "what page is this", "what's the title"} {
		cmd := p.Parse(text)
		if cmd.Intent != command.IntentRead {
			t.Fatalf("Parse(%q).Intent = %q, want read_content", text, cmd.Intent)
		}
		if target := cmd.Params.(command.ReadParams).Target; target != command.ReadTitle {
			t.Fatalf("Parse(%q) target = %q, want title", text, target)
		}
	}
	if target := p.Parse("read page").Params.(command.ReadParams).Target; target != command.ReadMain {
		t.Fatalf("read page target = %q, want main", target)
	}
}

func TestParse_WakePhrasePrefix(t *testing.T) {
	t.Parallel()

	p := newParser(command.WithWakePhrases("hey maya", "maya"))
	cmd := p.Parse("Hey Maya, stop reading please")
	if cmd.Intent != command.IntentStop {
		t.Fatalf("Intent = %q, want stop", cmd.Intent)
	}
	if cmd := p.Parse("hey maya"); cmd.Intent != command.IntentUnknown {
		t.Fatalf("bare wake phrase Intent = %q, want unknown", cmd.Intent)
	}
}

func TestParse_Idempotent(t *testing.T) {
	t.Parallel()

	p := newParser()
	inputs := []string{
		"open google", "click the login button", "scroll down", "banana sandwich",
		"read the title", "open goggle", "", "reddit.com",
	}
	for _, in := range inputs {
		a, b := p.Parse(in), p.Parse(in)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("Parse(%q) not idempotent: %+v vs %+v", in, a, b)
		}
	}
}

func TestParse_Timestamp(t *testing.T) {
	t.Parallel()

	p := newParser()
	if got := p.Parse("help").Timestamp; !got.Equal(fixed) {
		t.Fatalf("Timestamp = %v, want %v", got, fixed)
	}
}

func TestParse_VerbOwnsSentence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want command.Intent
	}{
		{"click the scroll up button", command.IntentClick},
		{"click the scroll bar", command.IntentClick},
		{"click read me", command.IntentClick},
		{"click the what can you do link", command.IntentClick},
		{"open scroll down tutorials", command.IntentOpenURL},
		{"open google and tell me what it says", command.IntentOpenURL},
		// Keyword rules still apply when no verb leads.
		{"scroll a bit down", command.IntentScroll},
		{"so what can you do", command.IntentHelp},
		{"tell me what it says", command.IntentRead},
		{"let me scroll", command.IntentUnknown},
	}

	p := newParser()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			if got := p.Parse(tt.text).Intent; got != tt.want {
				t.Fatalf("Parse(%q).Intent = %q, want %q", tt.text, got, tt.want)
			}
		})
	}

	cmd := p.Parse("click the scroll up button")
	el := cmd.Params.(command.ClickParams).ElementDescriptor
	if el.Type != browser.ElementButton || el.Text != "scroll up" {
		t.Errorf("click target = %+v, want button %q", el, "scroll up")
	}
}
