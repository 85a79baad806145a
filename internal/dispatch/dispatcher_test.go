package dispatch_test

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/voicenav/internal/command"
	"github.com/MrWong99/voicenav/internal/dispatch"
	"github.com/MrWong99/voicenav/internal/resilience"
	"github.com/MrWong99/voicenav/pkg/browser"
	browsermock "github.com/MrWong99/voicenav/pkg/browser/mock"
	ttsmock "github.com/MrWong99/voicenav/pkg/provider/tts/mock"
)

// start runs d until the test ends.
func start(t *testing.T, d *dispatch.Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := d.Submit(command.Command{Intent: command.IntentHelp}); !errors.Is(err, dispatch.ErrNotRunning) {
			if err != nil {
				t.Fatalf("warm-up Submit: %v", err)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("dispatcher did not start")
		}
		time.Sleep(time.Millisecond)
	}
	waitIdle(t, d)
}

func waitIdle(t *testing.T, d *dispatch.Dispatcher) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for d.Busy() {
		if time.Now().After(deadline) {
			t.Fatal("dispatcher stayed busy")
		}
		time.Sleep(time.Millisecond)
	}
}

func dispatchOne(t *testing.T, d *dispatch.Dispatcher, cmd command.Command) dispatch.ActionResult {
	t.Helper()
	ch, err := d.Submit(cmd)
	if err != nil {
		t.Fatalf("Submit(%s): %v", cmd.Intent, err)
	}
	select {
	case res := <-ch:
		waitIdle(t, d)
		return res
	case <-time.After(5 * time.Second):
		t.Fatalf("no result for %s", cmd.Intent)
		return dispatch.ActionResult{}
	}
}

func parse(text string) command.Command { return command.NewParser().Parse(text) }

func goroutineID() string {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	// "goroutine 123 [running]:"
	fields := bytes.Fields(buf)
	if len(fields) < 2 {
		return ""
	}
	return string(fields[1])
}

func TestSubmit_NotRunning(t *testing.T) {
	t.Parallel()

	d := dispatch.New(&browsermock.Backend{}, nil, dispatch.Config{})
	if _, err := d.Submit(parse("go back")); !errors.Is(err, dispatch.ErrNotRunning) {
		t.Fatalf("err = %v, want ErrNotRunning", err)
	}
}

func TestDispatch_SingleBackendGoroutine(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	b := &browsermock.Backend{
		Content: "Some article text.",
		ThreadCheck: func(string) {
			mu.Lock()
			ids[goroutineID()] = true
			mu.Unlock()
		},
	}
	d := dispatch.New(b, nil, dispatch.Config{})
	start(t, d)

	for _, text := range []string{"open google", "scroll down", "go back", "refresh", "read page", "click login"} {
		dispatchOne(t, d, parse(text))
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ids) != 1 {
		t.Fatalf("backend driven from %d goroutines, want 1", len(ids))
	}
	if ids[goroutineID()] {
		t.Fatal("backend driven from the test goroutine")
	}
}

func TestDispatch_BusyDropsSilently(t *testing.T) {
	t.Parallel()

	b := &browsermock.Backend{Block: make(chan struct{}), Entered: make(chan string, 1)}
	d := dispatch.New(b, nil, dispatch.Config{})
	start(t, d)

	first, err := d.Submit(parse("open google"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-b.Entered

	if _, err := d.Submit(parse("scroll down")); !errors.Is(err, dispatch.ErrBusy) {
		t.Fatalf("second Submit err = %v, want ErrBusy", err)
	}
	if got := d.Dropped(); got != 1 {
		t.Fatalf("Dropped = %d, want 1", got)
	}

	close(b.Block)
	res := <-first
	if !res.Success || res.Message != "Opened google" {
		t.Fatalf("first result = %+v", res)
	}
	waitIdle(t, d)
	if got := b.Methods(); len(got) != 1 || got[0] != "Navigate" {
		t.Fatalf("backend calls = %v, want only Navigate", got)
	}
}

func TestDispatch_Results(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		text    string
		errs    map[string]error
		success bool
		kind    dispatch.ErrorKind
		msg     string
	}{
		{name: "open", text: "open github", success: true, msg: "Opened github"},
		{name: "open search", text: "open the weather in paris", success: true, msg: "Searching for weather in paris"},
		{name: "open fails", text: "open github", errs: map[string]error{"Navigate": errors.New("boom")}, kind: dispatch.KindActionFailed, msg: dispatch.MsgOpenFailed},
		{name: "open slow", text: "open github", errs: map[string]error{"Navigate": browser.ErrNavigationTimeout}, kind: dispatch.KindNavigationTimeout, msg: dispatch.MsgPageSlow},
		{name: "browser gone", text: "open github", errs: map[string]error{"Navigate": browser.ErrBackendUnavailable}, kind: dispatch.KindBackendUnavailable, msg: dispatch.MsgBrowserNotReady},
		{name: "click", text: "click the login button", success: true, msg: "Clicked login"},
		{name: "click missing", text: "click the login button", errs: map[string]error{"Click": browser.ErrElementNotFound}, kind: dispatch.KindElementNotFound, msg: dispatch.MsgElementNotFound},
		{name: "scroll", text: "scroll down", success: true, msg: "Scrolling down"},
		{name: "scroll fails", text: "scroll up", errs: map[string]error{"Scroll": errors.New("boom")}, kind: dispatch.KindActionFailed, msg: dispatch.MsgScrollFailed},
		{name: "back", text: "go back", success: true, msg: dispatch.MsgGoingBack},
		{name: "forward", text: "go forward", success: true, msg: dispatch.MsgGoingForward},
		{name: "refresh", text: "refresh", success: true, msg: dispatch.MsgRefreshed},
		{name: "title", text: "read the title", success: true, msg: "This page is Example Domain"},
		{name: "help", text: "help", success: true, msg: dispatch.HelpText},
		{name: "stop idle", text: "stop", success: true, msg: dispatch.MsgStopping},
		{name: "unknown", text: "banana sandwich", kind: dispatch.KindUnknownCommand, msg: dispatch.MsgUnknownCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := &browsermock.Backend{Errs: tt.errs, PageTitle: "Example Domain"}
			d := dispatch.New(b, &ttsmock.Provider{}, dispatch.Config{})
			start(t, d)

			cmd := parse(tt.text)
			res := dispatchOne(t, d, cmd)
			if res.Success != tt.success || res.ErrorKind != tt.kind || res.Message != tt.msg {
				t.Fatalf("result = %+v, want success=%v kind=%q msg=%q", res, tt.success, tt.kind, tt.msg)
			}
			if res.Intent != cmd.Intent {
				t.Fatalf("Intent = %q, want %q", res.Intent, cmd.Intent)
			}
		})
	}
}

func TestDispatch_ActionTimeout(t *testing.T) {
	t.Parallel()

	b := &browsermock.Backend{Block: make(chan struct{})}
	d := dispatch.New(b, nil, dispatch.Config{ActionTimeout: 20 * time.Millisecond})
	start(t, d)

	res := dispatchOne(t, d, parse("refresh"))
	if res.Success || res.ErrorKind != dispatch.KindTimeout || res.Message != dispatch.MsgTimeout {
		t.Fatalf("result = %+v, want timeout", res)
	}
}

func TestDispatch_ReadAloud(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 200)
	b := &browsermock.Backend{Content: long}
	speaker := &ttsmock.Provider{}
	d := dispatch.New(b, speaker, dispatch.Config{})
	start(t, d)

	res := dispatchOne(t, d, parse("read page"))
	if !res.Success || res.Message != "" {
		t.Fatalf("result = %+v, want silent success", res)
	}
	texts := speaker.Texts()
	if len(texts) != 1 {
		t.Fatalf("spoken %d texts, want 1", len(texts))
	}
	if n := len([]rune(texts[0])); n > browser.MaxReadChars+3 {
		t.Fatalf("spoken %d chars, want at most %d", n, browser.MaxReadChars+3)
	}
	if !strings.HasSuffix(texts[0], "...") {
		t.Fatalf("truncated text %q lacks ellipsis", texts[0][len(texts[0])-10:])
	}
}

func TestDispatch_ReadNoContent(t *testing.T) {
	t.Parallel()

	d := dispatch.New(&browsermock.Backend{Content: "   "}, &ttsmock.Provider{}, dispatch.Config{})
	start(t, d)

	res := dispatchOne(t, d, parse("read page"))
	if res.Success || res.ErrorKind != dispatch.KindNoContent || res.Message != dispatch.MsgNoContent {
		t.Fatalf("result = %+v, want no content", res)
	}
}

func TestDispatch_InterruptReadAloud(t *testing.T) {
	t.Parallel()

	b := &browsermock.Backend{Content: "A long article."}
	speaker := &ttsmock.Provider{Delay: time.Minute, Started: make(chan string, 1)}
	d := dispatch.New(b, speaker, dispatch.Config{})
	start(t, d)

	ch, err := d.Submit(parse("read page"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-speaker.Started

	if !d.Interrupt() {
		t.Fatal("Interrupt reported nothing running")
	}
	select {
	case res := <-ch:
		if res.ErrorKind != dispatch.KindCancelled || res.Message != dispatch.MsgReadingStopped {
			t.Fatalf("result = %+v, want reading stopped", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt did not end the read-aloud")
	}
	waitIdle(t, d)
	if calls := speaker.Calls(); len(calls) != 1 || !calls[0].Cancelled {
		t.Fatalf("speaker calls = %+v, want one cancelled", calls)
	}
	if d.Interrupt() {
		t.Fatal("Interrupt on idle dispatcher reported true")
	}
}

func TestDispatch_InterruptBackendCall(t *testing.T) {
	t.Parallel()

	b := &browsermock.Backend{Block: make(chan struct{}), Entered: make(chan string, 1)}
	d := dispatch.New(b, nil, dispatch.Config{})
	start(t, d)

	ch, err := d.Submit(parse("open google"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-b.Entered
	d.Interrupt()
	res := <-ch
	if res.ErrorKind != dispatch.KindCancelled || res.Message != dispatch.MsgStopped {
		t.Fatalf("result = %+v, want cancelled", res)
	}
	if got := d.BreakerState(); got != resilience.StateClosed {
		t.Fatalf("breaker = %v after interrupt, want closed", got)
	}
}

func TestDispatch_BreakerOpensOnBackendFaults(t *testing.T) {
	t.Parallel()

	b := &browsermock.Backend{Errs: map[string]error{"Refresh": browser.ErrBackendUnavailable}}
	d := dispatch.New(b, nil, dispatch.Config{
		Breaker: resilience.CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	start(t, d)

	for range 3 {
		res := dispatchOne(t, d, parse("refresh"))
		if res.Message != dispatch.MsgBrowserNotReady {
			t.Fatalf("result = %+v, want browser not ready", res)
		}
	}
	if n := len(b.Calls()); n != 2 {
		t.Fatalf("backend called %d times, want 2 before the breaker opened", n)
	}
	if got := d.BreakerState(); got != resilience.StateOpen {
		t.Fatalf("breaker = %v, want open", got)
	}
}

func TestDispatch_MissingElementDoesNotTripBreaker(t *testing.T) {
	t.Parallel()

	b := &browsermock.Backend{Errs: map[string]error{"Click": browser.ErrElementNotFound}}
	d := dispatch.New(b, nil, dispatch.Config{
		Breaker: resilience.CircuitBreakerConfig{MaxFailures: 1},
	})
	start(t, d)

	for range 3 {
		dispatchOne(t, d, parse("click the login button"))
	}
	if n := len(b.Calls()); n != 3 {
		t.Fatalf("backend called %d times, want 3", n)
	}
}
