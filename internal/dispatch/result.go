package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/voicenav/internal/command"
	"github.com/MrWong99/voicenav/internal/resilience"
	"github.com/MrWong99/voicenav/pkg/browser"
)

// ErrorKind classifies why an action failed.
type ErrorKind string

const (
	KindElementNotFound    ErrorKind = "element_not_found"
	KindNavigationTimeout  ErrorKind = "navigation_timeout"
	KindBackendUnavailable ErrorKind = "backend_unavailable"
	KindTimeout            ErrorKind = "timeout"
	KindCancelled          ErrorKind = "cancelled"
	KindNoContent          ErrorKind = "no_content"
	KindUnknownCommand     ErrorKind = "unknown_command"
	KindActionFailed       ErrorKind = "action_failed"
)

// ActionResult is the outcome of one dispatched command.
type ActionResult struct {
	Success bool

	// Message is what the user should hear. Empty when the action already
	// spoke for itself (a completed read-aloud).
	Message string

	// ErrorKind is empty on success.
	ErrorKind ErrorKind

	Intent   command.Intent
	Duration time.Duration
}

func ok(intent command.Intent, msg string) ActionResult {
	return ActionResult{Success: true, Message: msg, Intent: intent}
}

func failed(intent command.Intent, kind ErrorKind, msg string) ActionResult {
	return ActionResult{Message: msg, ErrorKind: kind, Intent: intent}
}

// errInterrupted is the cancellation cause set by Dispatcher.Interrupt.
var errInterrupted = errors.New("dispatch: interrupted")

// classify maps a backend error to an error kind. actx is the context the
// action ran under; its cause distinguishes an interrupt from a timeout.
func classify(actx context.Context, err error) ErrorKind {
	switch {
	case errors.Is(context.Cause(actx), errInterrupted):
		return KindCancelled
	case errors.Is(err, browser.ErrElementNotFound):
		return KindElementNotFound
	case errors.Is(err, browser.ErrNavigationTimeout):
		return KindNavigationTimeout
	case errors.Is(err, browser.ErrBackendUnavailable), errors.Is(err, resilience.ErrCircuitOpen):
		return KindBackendUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindActionFailed
	}
}

// failure builds the result for a failed action with the message specific to
// what was attempted.
func failure(cmd command.Command, kind ErrorKind) ActionResult {
	switch kind {
	case KindBackendUnavailable:
		return failed(cmd.Intent, kind, MsgBrowserNotReady)
	case KindTimeout:
		return failed(cmd.Intent, kind, MsgTimeout)
	case KindCancelled:
		if cmd.Intent == command.IntentRead {
			return failed(cmd.Intent, kind, MsgReadingStopped)
		}
		return failed(cmd.Intent, kind, MsgStopped)
	}

	switch cmd.Intent {
	case command.IntentOpenURL:
		if kind == KindNavigationTimeout {
			return failed(cmd.Intent, kind, MsgPageSlow)
		}
		return failed(cmd.Intent, kind, MsgOpenFailed)
	case command.IntentClick:
		if kind == KindElementNotFound {
			return failed(cmd.Intent, kind, MsgElementNotFound)
		}
		return failed(cmd.Intent, kind, MsgClickFailed)
	case command.IntentScroll:
		return failed(cmd.Intent, kind, MsgScrollFailed)
	case command.IntentBack:
		return failed(cmd.Intent, kind, MsgBackFailed)
	case command.IntentForward:
		return failed(cmd.Intent, kind, MsgForwardFailed)
	case command.IntentRefresh:
		return failed(cmd.Intent, kind, MsgRefreshFailed)
	case command.IntentRead:
		return failed(cmd.Intent, kind, MsgNoContent)
	default:
		return failed(cmd.Intent, kind, fmt.Sprintf("Sorry, %s failed", cmd.Intent))
	}
}
