package browser

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestScrollScript(t *testing.T) {
	t.Parallel()
	if got := ScrollScript(DirectionDown, 300); got != "window.scrollBy(0, 300);" {
		t.Errorf("down = %q", got)
	}
	if got := ScrollScript(DirectionUp, 300); got != "window.scrollBy(0, -300);" {
		t.Errorf("up = %q", got)
	}
}

func decodeLocator(t *testing.T, script string) locator {
	t.Helper()
	start := strings.LastIndex(script, "})(")
	if start < 0 || !strings.HasSuffix(script, ")") {
		t.Fatalf("unexpected script shape: %.80s", script)
	}
	var q locator
	if err := json.Unmarshal([]byte(script[start+3:len(script)-1]), &q); err != nil {
		t.Fatalf("decode locator: %v", err)
	}
	return q
}

func TestClickScript_Locator(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		el           ElementDescriptor
		wantSelector string
		wantText     string
		wantRGB      bool
	}{
		{
			name:         "button with text",
			el:           ElementDescriptor{Type: ElementButton, Text: " Login "},
			wantSelector: "button",
			wantText:     "login",
		},
		{
			name:         "link",
			el:           ElementDescriptor{Type: ElementLink, Text: "pricing"},
			wantSelector: "a[href]",
			wantText:     "pricing",
		},
		{
			name:         "search input",
			el:           ElementDescriptor{Type: ElementInput, Purpose: "search"},
			wantSelector: "input[type=search]",
		},
		{
			name:         "email input",
			el:           ElementDescriptor{Type: ElementInput, Purpose: "email"},
			wantSelector: "input[type=email]",
		},
		{
			name:         "colour only",
			el:           ElementDescriptor{Color: "Blue"},
			wantSelector: "[role=button]",
			wantRGB:      true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q := decodeLocator(t, ClickScript(tt.el))
			if q.Selectors[0] != tt.wantSelector && !contains(q.Selectors, tt.wantSelector) {
				t.Errorf("selectors = %v, want to include %q", q.Selectors, tt.wantSelector)
			}
			if q.Text != tt.wantText {
				t.Errorf("text = %q, want %q", q.Text, tt.wantText)
			}
			if tt.wantRGB != (len(q.RGB) > 0) {
				t.Errorf("rgb = %v, want present=%v", q.RGB, tt.wantRGB)
			}
		})
	}
}

func TestClickScript_InjectionSafe(t *testing.T) {
	t.Parallel()
	q := decodeLocator(t, ClickScript(ElementDescriptor{Text: `x"); alert(1); ("`}))
	if q.Text != `x"); alert(1); ("` {
		t.Fatalf("text round-trip = %q", q.Text)
	}
	if got := cssEscape(`email"] , body[x="`); got != "emailbodyx" {
		t.Fatalf("cssEscape = %q", got)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestElementDescriptor_Label(t *testing.T) {
	t.Parallel()
	tests := []struct {
		el   ElementDescriptor
		want string
	}{
		{ElementDescriptor{Type: ElementButton, Text: "login"}, "login"},
		{ElementDescriptor{Type: ElementInput, Purpose: "search"}, "search field"},
		{ElementDescriptor{Type: ElementButton, Color: "blue"}, "blue button"},
		{ElementDescriptor{Type: ElementLink}, "link"},
		{ElementDescriptor{Color: "red"}, "red element"},
		{ElementDescriptor{}, "element"},
	}
	for _, tt := range tests {
		if got := tt.el.Label(); got != tt.want {
			t.Errorf("Label(%v) = %q, want %q", tt.el, got, tt.want)
		}
	}
}
