// Package command turns transcribed speech into structured browser commands.
//
// A [Command] carries an [Intent] and a typed [Params] value whose concrete
// type is fixed by the intent: open_url carries [OpenURLParams], click_element
// carries [ClickParams], and so on. Commands whose parameters do not satisfy
// their intent are normalised to [IntentUnknown] by [Normalize], so the
// dispatcher never has to inspect parameter shapes at run time.
package command

import (
	"fmt"
	"time"

	"github.com/MrWong99/voicenav/pkg/browser"
)

// Intent is the closed set of things a user can ask for.
type Intent string

const (
	IntentOpenURL Intent = "open_url"
	IntentClick   Intent = "click_element"
	IntentScroll  Intent = "scroll"
	IntentBack    Intent = "go_back"
	IntentForward Intent = "go_forward"
	IntentRefresh Intent = "refresh"
	IntentRead    Intent = "read_content"
	IntentStop    Intent = "stop"
	IntentHelp    Intent = "help"
	IntentUnknown Intent = "unknown"
)

// Confidence levels assigned by the parser. They rank how specific the
// matching rule was and are not probabilities.
const (
	ConfidenceExact    = 0.9
	ConfidenceImplied  = 0.6
	ConfidenceInferred = 0.3
)

// DefaultScrollAmount is the distance in pixels of one spoken scroll.
const DefaultScrollAmount = 300

// Params is the intent-specific payload of a Command. The set of
// implementations is closed to this package.
type Params interface {
	// Intent returns the intent these parameters belong to.
	Intent() Intent

	valid() bool
}

// OpenURLParams is the payload of [IntentOpenURL].
type OpenURLParams struct {
	// URL is fully qualified.
	URL string `json:"url"`

	// Input is what the user said after the verb, e.g. "google".
	Input string `json:"input"`
}

func (OpenURLParams) Intent() Intent { return IntentOpenURL }
func (p OpenURLParams) valid() bool  { return p.URL != "" }

// ClickParams is the payload of [IntentClick].
type ClickParams struct {
	browser.ElementDescriptor
}

func (ClickParams) Intent() Intent { return IntentClick }

// valid requires something to search for: text, a concrete role or a colour.
func (p ClickParams) valid() bool {
	role := p.Type != "" && p.Type != browser.ElementAny
	return p.Text != "" || role || p.Color != ""
}

// ScrollParams is the payload of [IntentScroll].
type ScrollParams struct {
	Direction browser.Direction `json:"direction"`
	Amount    int               `json:"amount"`
}

func (ScrollParams) Intent() Intent { return IntentScroll }
func (p ScrollParams) valid() bool  { return p.Direction.Valid() && p.Amount > 0 }

// ReadTarget selects what read_content speaks.
type ReadTarget string

const (
	ReadMain  ReadTarget = "main"
	ReadTitle ReadTarget = "title"
)

// ReadParams is the payload of [IntentRead].
type ReadParams struct {
	Target ReadTarget `json:"target"`
}

func (ReadParams) Intent() Intent { return IntentRead }
func (p ReadParams) valid() bool  { return p.Target == ReadMain || p.Target == ReadTitle }

// Compile-time interface checks.
var (
	_ Params = OpenURLParams{}
	_ Params = ClickParams{}
	_ Params = ScrollParams{}
	_ Params = ReadParams{}
)

// Command is one parsed user request. It lives for a single interaction.
type Command struct {
	Intent Intent `json:"intent"`

	// Params is nil for intents without parameters.
	Params Params `json:"params,omitempty"`

	Confidence float64   `json:"confidence"`
	RawText    string    `json:"raw_text"`
	Timestamp  time.Time `json:"timestamp"`
}

// String implements fmt.Stringer for logging.
func (c Command) String() string {
	if c.Params == nil {
		return fmt.Sprintf("%s(%.1f)", c.Intent, c.Confidence)
	}
	return fmt.Sprintf("%s(%.1f) %+v", c.Intent, c.Confidence, c.Params)
}

// Unknown returns an unknown command that preserves raw.
func Unknown(raw string, at time.Time) Command {
	return Command{Intent: IntentUnknown, RawText: raw, Timestamp: at}
}

// Normalize returns c unchanged when its parameters satisfy its intent and an
// unknown command carrying the same raw text otherwise.
func Normalize(c Command) Command {
	if validFor(c.Intent, c.Params) {
		return c
	}
	return Unknown(c.RawText, c.Timestamp)
}

func validFor(intent Intent, p Params) bool {
	switch intent {
	case IntentOpenURL, IntentClick, IntentScroll, IntentRead:
		return p != nil && p.Intent() == intent && p.valid()
	case IntentBack, IntentForward, IntentRefresh, IntentStop, IntentHelp:
		return p == nil
	case IntentUnknown:
		return p == nil
	default:
		return false
	}
}
