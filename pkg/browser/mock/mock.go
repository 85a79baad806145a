// Package mock provides a test double for the browser.Backend interface.
//
// Every method records its call and returns the configured error for that
// method. Block, when set, makes each call wait until ctx is done or the
// channel is closed, which is how tests exercise action timeouts and
// interruption.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicenav/pkg/browser"
)

var _ browser.Backend = (*Backend)(nil)

// Call records one backend invocation.
type Call struct {
	Method    string
	URL       string
	Element   browser.ElementDescriptor
	Direction browser.Direction
	Amount    int
}

// Backend is a mock implementation of browser.Backend.
type Backend struct {
	mu sync.Mutex

	// Errs maps method names ("Navigate", "Click", ...) to the error they
	// return.
	Errs map[string]error

	// Content is returned by ExtractContent.
	Content string

	// PageTitle is returned by Title.
	PageTitle string

	// Block, if non-nil, delays every call until it is closed or ctx ends.
	Block chan struct{}

	// Entered, if non-nil, receives the method name as each call starts.
	// Sends are non-blocking.
	Entered chan string

	// ThreadCheck, if non-nil, is called at the start of every method. Tests
	// use it to observe which goroutine drives the backend.
	ThreadCheck func(method string)

	calls  []Call
	closed bool
}

func (b *Backend) record(ctx context.Context, c Call) error {
	b.mu.Lock()
	b.calls = append(b.calls, c)
	err := b.Errs[c.Method]
	block, entered, check := b.Block, b.Entered, b.ThreadCheck
	b.mu.Unlock()

	if check != nil {
		check(c.Method)
	}
	if entered != nil {
		select {
		case entered <- c.Method:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Navigate implements browser.Backend.
func (b *Backend) Navigate(ctx context.Context, url string) error {
	return b.record(ctx, Call{Method: "Navigate", URL: url})
}

// Click implements browser.Backend.
func (b *Backend) Click(ctx context.Context, el browser.ElementDescriptor) error {
	return b.record(ctx, Call{Method: "Click", Element: el})
}

// Scroll implements browser.Backend.
func (b *Backend) Scroll(ctx context.Context, dir browser.Direction, amount int) error {
	return b.record(ctx, Call{Method: "Scroll", Direction: dir, Amount: amount})
}

// Back implements browser.Backend.
func (b *Backend) Back(ctx context.Context) error { return b.record(ctx, Call{Method: "Back"}) }

// Forward implements browser.Backend.
func (b *Backend) Forward(ctx context.Context) error { return b.record(ctx, Call{Method: "Forward"}) }

// Refresh implements browser.Backend.
func (b *Backend) Refresh(ctx context.Context) error { return b.record(ctx, Call{Method: "Refresh"}) }

// ExtractContent implements browser.Backend.
func (b *Backend) ExtractContent(ctx context.Context) (string, error) {
	if err := b.record(ctx, Call{Method: "ExtractContent"}); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Content, nil
}

// Title implements browser.Backend.
func (b *Backend) Title(ctx context.Context) (string, error) {
	if err := b.record(ctx, Call{Method: "Title"}); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.PageTitle, nil
}

// Close implements browser.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Calls returns a copy of the recorded calls.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Methods returns the method names of the recorded calls in order.
func (b *Backend) Methods() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	for i, c := range b.calls {
		out[i] = c.Method
	}
	return out
}

// Closed reports whether Close was called.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
