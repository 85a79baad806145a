// Package dispatch executes parsed commands against the browser backend.
//
// A [Dispatcher] owns the backend. Its Run loop executes on one goroutine
// locked to its OS thread, which is the only place backend methods are ever
// called. Native scripting bridges reject calls from other threads, and a
// single caller means the live tab never sees two actions at once.
//
// Commands reach the loop through a single slot. [Dispatcher.Submit] returns
// [ErrBusy] while an action is running or queued; the caller drops the
// command. [Dispatcher.Interrupt] cancels whatever action is running, which is
// how a spoken "stop" cuts a read-aloud short.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/voicenav/internal/command"
	"github.com/MrWong99/voicenav/internal/resilience"
	"github.com/MrWong99/voicenav/pkg/browser"
	"github.com/MrWong99/voicenav/pkg/provider/tts"
)

var (
	// ErrBusy is returned by Submit while another command is in flight.
	ErrBusy = errors.New("dispatch: busy")

	// ErrNotRunning is returned by Submit when Run is not active.
	ErrNotRunning = errors.New("dispatch: not running")
)

// Config tunes a Dispatcher.
type Config struct {
	// ActionTimeout bounds each backend call. Default 10s.
	ActionTimeout time.Duration

	// ReadAloudTimeout bounds speaking page content. Default 2m.
	ReadAloudTimeout time.Duration

	// MaxReadChars caps the text read aloud. Default browser.MaxReadChars.
	MaxReadChars int

	// Breaker guards the backend. IsFailure defaults to ignoring missing
	// elements and interrupts.
	Breaker resilience.CircuitBreakerConfig
}

func (c Config) withDefaults() Config {
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 10 * time.Second
	}
	if c.ReadAloudTimeout <= 0 {
		c.ReadAloudTimeout = 2 * time.Minute
	}
	if c.MaxReadChars <= 0 {
		c.MaxReadChars = browser.MaxReadChars
	}
	if c.Breaker.Name == "" {
		c.Breaker.Name = "browser"
	}
	if c.Breaker.IsFailure == nil {
		c.Breaker.IsFailure = backendFault
	}
	return c
}

// backendFault reports whether err says something about the backend's health
// rather than about the request.
func backendFault(err error) bool {
	return err != nil &&
		!errors.Is(err, browser.ErrElementNotFound) &&
		!errors.Is(err, context.Canceled)
}

type job struct {
	cmd   command.Command
	reply chan ActionResult
}

// Dispatcher serialises command execution. Submit, Interrupt, Busy and
// Dropped are safe for concurrent use.
type Dispatcher struct {
	backend browser.Backend
	speaker tts.Provider
	cfg     Config
	breaker *resilience.CircuitBreaker

	slot    chan job
	busy    atomic.Bool
	running atomic.Bool
	dropped atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelCauseFunc
	current command.Intent
}

// New returns a Dispatcher driving backend. speaker reads page content aloud;
// when nil, content is returned as the result message instead.
func New(backend browser.Backend, speaker tts.Provider, cfg Config) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		backend: backend,
		speaker: speaker,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(cfg.Breaker),
		slot:    make(chan job, 1),
	}
}

// Run executes submitted commands until ctx is cancelled. It pins itself to
// the calling goroutine's OS thread for its whole lifetime.
func (d *Dispatcher) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if !d.running.CompareAndSwap(false, true) {
		return errors.New("dispatch: already running")
	}
	defer d.running.Store(false)

	slog.Info("dispatch: started", "action_timeout", d.cfg.ActionTimeout)
	for {
		select {
		case <-ctx.Done():
			d.drain()
			slog.Info("dispatch: stopped")
			return nil
		case j := <-d.slot:
			j.reply <- d.execute(ctx, j.cmd)
			d.busy.Store(false)
		}
	}
}

// drain answers a command that was queued but never started.
func (d *Dispatcher) drain() {
	select {
	case j := <-d.slot:
		j.reply <- failure(j.cmd, KindCancelled)
		d.busy.Store(false)
	default:
	}
}

// Submit hands cmd to the dispatch loop. The returned channel receives
// exactly one result. While another command is in flight Submit drops cmd
// and returns [ErrBusy].
func (d *Dispatcher) Submit(cmd command.Command) (<-chan ActionResult, error) {
	if !d.running.Load() {
		return nil, ErrNotRunning
	}
	if !d.busy.CompareAndSwap(false, true) {
		d.dropped.Add(1)
		slog.Debug("dispatch: busy, command dropped", "intent", cmd.Intent)
		return nil, ErrBusy
	}
	reply := make(chan ActionResult, 1)
	select {
	case d.slot <- job{cmd: cmd, reply: reply}:
		return reply, nil
	default:
		// Unreachable while busy guards the slot.
		d.busy.Store(false)
		d.dropped.Add(1)
		return nil, ErrBusy
	}
}

// Interrupt cancels the running action. It reports whether there was one.
func (d *Dispatcher) Interrupt() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel == nil {
		return false
	}
	slog.Info("dispatch: interrupting action", "intent", d.current)
	d.cancel(errInterrupted)
	return true
}

// Busy reports whether a command is queued or running.
func (d *Dispatcher) Busy() bool { return d.busy.Load() }

// Dropped returns how many commands Submit rejected as busy.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// BreakerState reports the backend circuit breaker state.
func (d *Dispatcher) BreakerState() resilience.State { return d.breaker.State() }

func (d *Dispatcher) execute(ctx context.Context, cmd command.Command) ActionResult {
	start := time.Now()
	actx, cancel := context.WithCancelCause(ctx)

	d.mu.Lock()
	d.cancel, d.current = cancel, cmd.Intent
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.cancel, d.current = nil, ""
		d.mu.Unlock()
		cancel(nil)
	}()

	res := d.perform(actx, cmd)
	res.Intent = cmd.Intent
	res.Duration = time.Since(start)

	if res.Success {
		slog.Info("dispatch: action done", "command", cmd, "duration", res.Duration)
	} else {
		slog.Error("dispatch: action failed", "command", cmd, "kind", res.ErrorKind, "duration", res.Duration)
	}
	return res
}

func (d *Dispatcher) perform(ctx context.Context, cmd command.Command) ActionResult {
	switch p := cmd.Params.(type) {
	case command.OpenURLParams:
		if err := d.call(ctx, func(c context.Context) error { return d.backend.Navigate(c, p.URL) }); err != nil {
			return failure(cmd, classify(ctx, err))
		}
		return ok(cmd.Intent, openedMessage(p))
	case command.ClickParams:
		if err := d.call(ctx, func(c context.Context) error { return d.backend.Click(c, p.ElementDescriptor) }); err != nil {
			return failure(cmd, classify(ctx, err))
		}
		return ok(cmd.Intent, clickedMessage(p))
	case command.ScrollParams:
		if err := d.call(ctx, func(c context.Context) error { return d.backend.Scroll(c, p.Direction, p.Amount) }); err != nil {
			return failure(cmd, classify(ctx, err))
		}
		return ok(cmd.Intent, scrollMessage(p))
	case command.ReadParams:
		return d.read(ctx, cmd, p)
	}

	switch cmd.Intent {
	case command.IntentBack:
		return d.simple(ctx, cmd, d.backend.Back, MsgGoingBack)
	case command.IntentForward:
		return d.simple(ctx, cmd, d.backend.Forward, MsgGoingForward)
	case command.IntentRefresh:
		return d.simple(ctx, cmd, d.backend.Refresh, MsgRefreshed)
	case command.IntentHelp:
		return ok(cmd.Intent, HelpText)
	case command.IntentStop:
		// Nothing is running; a stop during an action arrives via Interrupt.
		return ok(cmd.Intent, MsgStopping)
	default:
		return failed(cmd.Intent, KindUnknownCommand, MsgUnknownCommand)
	}
}

func (d *Dispatcher) simple(ctx context.Context, cmd command.Command, fn func(context.Context) error, msg string) ActionResult {
	if err := d.call(ctx, fn); err != nil {
		return failure(cmd, classify(ctx, err))
	}
	return ok(cmd.Intent, msg)
}

// call runs one backend operation under the action timeout and the breaker.
func (d *Dispatcher) call(ctx context.Context, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, d.cfg.ActionTimeout)
	defer cancel()
	return d.breaker.Execute(func() error { return fn(cctx) })
}

func (d *Dispatcher) read(ctx context.Context, cmd command.Command, p command.ReadParams) ActionResult {
	var text string
	err := d.call(ctx, func(c context.Context) error {
		var err error
		if p.Target == command.ReadTitle {
			text, err = d.backend.Title(c)
		} else {
			text, err = d.backend.ExtractContent(c)
		}
		return err
	})
	if err != nil {
		return failure(cmd, classify(ctx, err))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return failed(cmd.Intent, KindNoContent, MsgNoContent)
	}
	if p.Target == command.ReadTitle {
		return ok(cmd.Intent, titleMessage(text))
	}

	speech := browser.Summarize(text, d.cfg.MaxReadChars)
	if d.speaker == nil {
		return ok(cmd.Intent, speech)
	}

	rctx, cancel := context.WithTimeout(ctx, d.cfg.ReadAloudTimeout)
	defer cancel()
	err = d.speaker.Speak(rctx, speech)
	switch {
	case errors.Is(context.Cause(ctx), errInterrupted):
		return failed(cmd.Intent, KindCancelled, MsgReadingStopped)
	case err == nil:
		return ok(cmd.Intent, "")
	case rctx.Err() != nil && ctx.Err() == nil:
		slog.Info("dispatch: read-aloud cut at timeout", "timeout", d.cfg.ReadAloudTimeout)
		return ok(cmd.Intent, "")
	case ctx.Err() != nil:
		return failure(cmd, classify(ctx, ctx.Err()))
	default:
		slog.Warn("dispatch: read-aloud failed", "err", err, "text", speech)
		return ok(cmd.Intent, "")
	}
}
