// Package cdp implements browser.Backend over the Chrome DevTools Protocol.
//
// The browser must be started with --remote-debugging-port. The backend
// discovers the first page target through the HTTP /json endpoint and then
// speaks JSON-RPC over the target's websocket. A dropped connection is
// re-established on the next call.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/voicenav/pkg/browser"
)

// DefaultEndpoint is the conventional remote-debugging address.
const DefaultEndpoint = "http://127.0.0.1:9222"

// readLimit bounds a single CDP message. Serialised pages can be large.
const readLimit = 32 << 20

var _ browser.Backend = (*Backend)(nil)

// Backend drives one Chrome tab over CDP.
type Backend struct {
	endpoint     string
	httpClient   *http.Client
	pollInterval time.Duration

	mu   sync.Mutex
	sess *session
}

// Option is a functional option for Backend.
type Option func(*Backend)

// WithHTTPClient overrides the client used for target discovery.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.httpClient = c }
}

// WithPollInterval sets how often page load state is polled after navigation.
func WithPollInterval(d time.Duration) Option {
	return func(b *Backend) { b.pollInterval = d }
}

// New creates a Backend for the browser at endpoint. No connection is made
// until the first call or [Backend.Ping].
func New(endpoint string, opts ...Option) *Backend {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	b := &Backend{
		endpoint:     strings.TrimRight(endpoint, "/"),
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		pollInterval: 100 * time.Millisecond,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// ── Discovery ───────────────────────────────────────────────────────────────

type target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

func (b *Backend) discover(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"/json", nil)
	if err != nil {
		return "", err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("discovery returned %s", resp.Status)
	}
	var targets []target
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return "", fmt.Errorf("decode targets: %w", err)
	}
	for _, t := range targets {
		if t.Type == "page" && t.WebSocketDebuggerURL != "" {
			return t.WebSocketDebuggerURL, nil
		}
	}
	return "", errors.New("no page target open")
}

// Ping verifies that the browser is reachable and a page target exists.
func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.conn(ctx)
	return err
}

func (b *Backend) conn(ctx context.Context) (*session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sess != nil && !b.sess.isClosed() {
		return b.sess, nil
	}
	wsURL, err := b.discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("cdp: %w: %w", browser.ErrBackendUnavailable, err)
	}
	c, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("cdp: %w: dial: %w", browser.ErrBackendUnavailable, err)
	}
	c.SetReadLimit(readLimit)
	b.sess = newSession(c)
	slog.Debug("cdp connected", "target", wsURL)
	return b.sess, nil
}

// Close implements browser.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sess == nil {
		return nil
	}
	err := b.sess.close()
	b.sess = nil
	return err
}

// ── Session ─────────────────────────────────────────────────────────────────

type request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type response struct {
	ID     int64           `json:"id"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("cdp error %d: %s", e.Code, e.Message) }

type session struct {
	conn   *websocket.Conn
	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan response
	closed  bool
	done    chan struct{}
}

func newSession(c *websocket.Conn) *session {
	s := &session{
		conn:    c,
		pending: make(map[int64]chan response),
		done:    make(chan struct{}),
	}
	go s.receiveLoop()
	return s
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *session) close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

func (s *session) receiveLoop() {
	defer close(s.done)
	for {
		_, data, err := s.conn.Read(context.Background())
		if err != nil {
			s.mu.Lock()
			s.closed = true
			for id, ch := range s.pending {
				close(ch)
				delete(s.pending, id)
			}
			s.mu.Unlock()
			return
		}
		var msg response
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("cdp: ignoring malformed message", "err", err)
			continue
		}
		if msg.ID == 0 {
			// Protocol event; nothing subscribes to them.
			continue
		}
		s.mu.Lock()
		ch, ok := s.pending[msg.ID]
		delete(s.pending, msg.ID)
		s.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

// call sends one command and waits for its response. Cancellation abandons
// the response but keeps the connection.
func (s *session) call(ctx context.Context, method string, params any, out any) error {
	id := s.nextID.Add(1)
	ch := make(chan response, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("cdp: %w: connection closed", browser.ErrBackendUnavailable)
	}
	s.pending[id] = ch
	s.mu.Unlock()

	data, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		s.forget(id)
		return fmt.Errorf("cdp: marshal %s: %w", method, err)
	}
	// Writes use a detached context: a cancelled write would close the socket.
	if err := s.conn.Write(context.WithoutCancel(ctx), websocket.MessageText, data); err != nil {
		s.forget(id)
		return fmt.Errorf("cdp: %w: write %s: %w", browser.ErrBackendUnavailable, method, err)
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return fmt.Errorf("cdp: %w: connection lost during %s", browser.ErrBackendUnavailable, method)
		}
		if msg.Error != nil {
			return fmt.Errorf("cdp: %s: %w", method, msg.Error)
		}
		if out != nil && len(msg.Result) > 0 {
			if err := json.Unmarshal(msg.Result, out); err != nil {
				return fmt.Errorf("cdp: decode %s: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		s.forget(id)
		return ctx.Err()
	}
}

func (s *session) forget(id int64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// ── Helpers ─────────────────────────────────────────────────────────────────

type remoteObject struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type evaluateResult struct {
	Result           remoteObject `json:"result"`
	ExceptionDetails *struct {
		Text string `json:"text"`
	} `json:"exceptionDetails"`
}

// evaluate runs expression in the page and decodes its value into out.
func (b *Backend) evaluate(ctx context.Context, expression string, out any) error {
	s, err := b.conn(ctx)
	if err != nil {
		return err
	}
	var res evaluateResult
	err = s.call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expression,
		"returnByValue": true,
		"awaitPromise":  true,
	}, &res)
	if err != nil {
		return err
	}
	if res.ExceptionDetails != nil {
		return fmt.Errorf("cdp: script exception: %s", res.ExceptionDetails.Text)
	}
	if out != nil && len(res.Result.Value) > 0 {
		if err := json.Unmarshal(res.Result.Value, out); err != nil {
			return fmt.Errorf("cdp: decode script result: %w", err)
		}
	}
	return nil
}

// waitLoaded polls document.readyState until the page has loaded. A deadline
// is reported as ErrNavigationTimeout.
func (b *Backend) waitLoaded(ctx context.Context) error {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		var state string
		err := b.evaluate(ctx, "document.readyState", &state)
		switch {
		case err == nil && (state == "complete" || state == "interactive"):
			return nil
		case errors.Is(err, browser.ErrBackendUnavailable):
			return err
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("cdp: %w", browser.ErrNavigationTimeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ── browser.Backend ─────────────────────────────────────────────────────────

// Navigate implements browser.Backend.
func (b *Backend) Navigate(ctx context.Context, url string) error {
	s, err := b.conn(ctx)
	if err != nil {
		return err
	}
	var res struct {
		FrameID   string `json:"frameId"`
		ErrorText string `json:"errorText"`
	}
	if err := s.call(ctx, "Page.navigate", map[string]any{"url": url}, &res); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("cdp: %w: %s", browser.ErrNavigationTimeout, url)
		}
		return err
	}
	if res.ErrorText != "" {
		return fmt.Errorf("cdp: navigate %s: %s", url, res.ErrorText)
	}
	return b.waitLoaded(ctx)
}

// Click implements browser.Backend.
func (b *Backend) Click(ctx context.Context, el browser.ElementDescriptor) error {
	var clicked string
	if err := b.evaluate(ctx, browser.ClickScript(el), &clicked); err != nil {
		return err
	}
	if clicked == "" {
		return fmt.Errorf("cdp: %w: %s", browser.ErrElementNotFound, el)
	}
	slog.Debug("cdp clicked element", "descriptor", el.String(), "element", clicked)
	return nil
}

// Scroll implements browser.Backend.
func (b *Backend) Scroll(ctx context.Context, dir browser.Direction, amount int) error {
	return b.evaluate(ctx, browser.ScrollScript(dir, amount), nil)
}

type navigationHistory struct {
	CurrentIndex int `json:"currentIndex"`
	Entries      []struct {
		ID  int    `json:"id"`
		URL string `json:"url"`
	} `json:"entries"`
}

func (b *Backend) moveHistory(ctx context.Context, delta int) error {
	s, err := b.conn(ctx)
	if err != nil {
		return err
	}
	var h navigationHistory
	if err := s.call(ctx, "Page.getNavigationHistory", nil, &h); err != nil {
		return err
	}
	idx := h.CurrentIndex + delta
	if idx < 0 || idx >= len(h.Entries) {
		return errors.New("cdp: no history entry in that direction")
	}
	if err := s.call(ctx, "Page.navigateToHistoryEntry", map[string]any{"entryId": h.Entries[idx].ID}, nil); err != nil {
		return err
	}
	return b.waitLoaded(ctx)
}

// Back implements browser.Backend.
func (b *Backend) Back(ctx context.Context) error { return b.moveHistory(ctx, -1) }

// Forward implements browser.Backend.
func (b *Backend) Forward(ctx context.Context) error { return b.moveHistory(ctx, 1) }

// Refresh implements browser.Backend.
func (b *Backend) Refresh(ctx context.Context) error {
	s, err := b.conn(ctx)
	if err != nil {
		return err
	}
	if err := s.call(ctx, "Page.reload", map[string]any{"ignoreCache": false}, nil); err != nil {
		return err
	}
	return b.waitLoaded(ctx)
}

// ExtractContent implements browser.Backend.
func (b *Backend) ExtractContent(ctx context.Context) (string, error) {
	var html string
	if err := b.evaluate(ctx, browser.DocumentHTMLScript, &html); err != nil {
		return "", err
	}
	return browser.ExtractText(html)
}

// Title implements browser.Backend.
func (b *Backend) Title(ctx context.Context) (string, error) {
	var title string
	if err := b.evaluate(ctx, "document.title", &title); err != nil {
		return "", err
	}
	return strings.TrimSpace(title), nil
}
