// Package browser defines the contract between the dispatcher and the
// browser-automation backends.
//
// A [Backend] drives exactly one browser tab. Implementations live in the
// subpackages: cdp talks the Chrome DevTools Protocol over a websocket,
// applescript drives Safari or Google Chrome through osascript, and mock
// records calls for tests.
//
// Backends are not required to be safe for concurrent use. The dispatcher is
// their only caller and serialises every call on one goroutine.
package browser

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors returned by backends. Implementations wrap them with
// fmt.Errorf so callers can classify failures with errors.Is.
var (
	// ErrElementNotFound means no element on the page matched the descriptor.
	ErrElementNotFound = errors.New("browser: element not found")

	// ErrNavigationTimeout means the page did not finish loading in time.
	ErrNavigationTimeout = errors.New("browser: navigation timeout")

	// ErrBackendUnavailable means the browser could not be reached at all.
	ErrBackendUnavailable = errors.New("browser: backend unavailable")
)

// Direction is a vertical scroll direction.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Valid reports whether d is up or down.
func (d Direction) Valid() bool { return d == DirectionUp || d == DirectionDown }

// ElementType is the role an element is expected to have.
type ElementType string

const (
	ElementAny    ElementType = "any"
	ElementButton ElementType = "button"
	ElementLink   ElementType = "link"
	ElementInput  ElementType = "input"
)

// ElementDescriptor describes an element the user referred to by voice. Every
// field is optional; empty fields do not constrain the search.
type ElementDescriptor struct {
	Type     ElementType `json:"type,omitempty"`
	Text     string      `json:"text,omitempty"`
	Color    string      `json:"color,omitempty"`
	Position string      `json:"position,omitempty"`
	Purpose  string      `json:"purpose,omitempty"`
}

// Label returns the most human-friendly name for the element, used in spoken
// feedback such as "Clicked login".
func (e ElementDescriptor) Label() string {
	switch {
	case e.Text != "":
		return e.Text
	case e.Purpose != "":
		return e.Purpose + " field"
	case e.Color != "" && e.Type != "" && e.Type != ElementAny:
		return e.Color + " " + string(e.Type)
	case e.Type != "" && e.Type != ElementAny:
		return string(e.Type)
	case e.Color != "":
		return e.Color + " element"
	default:
		return "element"
	}
}

// String implements fmt.Stringer for logging.
func (e ElementDescriptor) String() string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("type", string(e.Type))
	add("text", e.Text)
	add("color", e.Color)
	add("position", e.Position)
	add("purpose", e.Purpose)
	return "{" + strings.Join(parts, " ") + "}"
}

// Backend controls a single browser tab.
type Backend interface {
	// Navigate loads url in the current tab.
	Navigate(ctx context.Context, url string) error

	// Click activates the first element matching el. It returns
	// ErrElementNotFound when nothing matches.
	Click(ctx context.Context, el ElementDescriptor) error

	// Scroll moves the viewport by amount pixels in dir.
	Scroll(ctx context.Context, dir Direction, amount int) error

	// Back and Forward move through the tab's history.
	Back(ctx context.Context) error
	Forward(ctx context.Context) error

	// Refresh reloads the current page.
	Refresh(ctx context.Context) error

	// ExtractContent returns the readable text of the page's main content.
	// The text is untruncated; callers decide how much to speak.
	ExtractContent(ctx context.Context) (string, error)

	// Title returns the current page title.
	Title(ctx context.Context) (string, error)

	// Close releases any connection held by the backend.
	Close() error
}
