package dispatch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/MrWong99/voicenav/internal/command"
)

// Spoken messages.
const (
	MsgOpenFailed      = "Sorry, I couldn't open that page"
	MsgPageSlow        = "The page took too long to load"
	MsgElementNotFound = "I couldn't find that element to click"
	MsgClickFailed     = "Sorry, I couldn't click that"
	MsgScrollFailed    = "Sorry, I couldn't scroll"
	MsgBackFailed      = "Sorry, I couldn't go back"
	MsgForwardFailed   = "Sorry, I couldn't go forward"
	MsgRefreshFailed   = "Sorry, I couldn't refresh the page"
	MsgNoContent       = "I couldn't find any content to read"
	MsgReadingStopped  = "Reading stopped"
	MsgStopped         = "Stopped"
	MsgStopping        = "Stopping"
	MsgBrowserNotReady = "Browser not ready"
	MsgTimeout         = "Sorry, that took too long"
	MsgGoingBack       = "Going back"
	MsgGoingForward    = "Going forward"
	MsgRefreshed       = "Page refreshed"
	MsgUnknownCommand  = "I didn't understand that command. Try saying help."
)

// HelpText lists what the user can say.
const HelpText = "You can say: open a website, like open google. " +
	"Click something, like click the login button. " +
	"Scroll up or scroll down. Go back or go forward. " +
	"Refresh. Read page, or read the title. " +
	"And stop, to stop reading."

func openedMessage(p command.OpenURLParams) string {
	name := strings.TrimSpace(p.Input)
	if name == "" || strings.HasPrefix(p.URL, command.SearchURL) {
		if q := searchQuery(p.URL); q != "" {
			return "Searching for " + q
		}
	}
	if name == "" {
		if u, err := url.Parse(p.URL); err == nil && u.Host != "" {
			name = u.Host
		} else {
			name = p.URL
		}
	}
	return "Opened " + name
}

func searchQuery(raw string) string {
	if !strings.HasPrefix(raw, command.SearchURL) {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("q")
}

func scrollMessage(p command.ScrollParams) string {
	return fmt.Sprintf("Scrolling %s", p.Direction)
}

func clickedMessage(p command.ClickParams) string {
	return "Clicked " + p.Label()
}

func titleMessage(title string) string {
	return "This page is " + title
}
