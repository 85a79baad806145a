// Package orchestrator runs the voice interaction cycle:
//
//	idle → wake-detected → capturing → transcribing → parsing → dispatching → feedback → idle
//
// The listening goroutine (the caller of [Orchestrator.Run]) segments audio,
// detects the wake phrase, captures and transcribes the command and hands it
// to the dispatcher. While a command runs it keeps segmenting audio, but only
// to hear a spoken "stop", which interrupts the running action. Errors at any
// stage route to feedback and then back to idle; only a failed audio source
// ends Run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/voicenav/internal/capture"
	"github.com/MrWong99/voicenav/internal/command"
	"github.com/MrWong99/voicenav/internal/dispatch"
	"github.com/MrWong99/voicenav/internal/feedback"
	"github.com/MrWong99/voicenav/internal/observe"
	"github.com/MrWong99/voicenav/internal/transcribe"
	"github.com/MrWong99/voicenav/internal/wake"
)

// Interaction outcomes, used for the interactions metric and [HistoryEntry].
const (
	OutcomeNoSpeech            = "no_speech"
	OutcomeTranscriptionFailed = "transcription_failed"
	OutcomeLowConfidence       = "low_confidence"
	OutcomeUnknownCommand      = "unknown_command"
	OutcomeDropped             = "dropped"
	OutcomeSuccess             = "success"
	OutcomeFailure             = "failure"
	OutcomeAborted             = "aborted"
)

// Windows yields speech windows from the microphone.
type Windows interface {
	Next(ctx context.Context) (capture.Window, error)
	Reset()
	Drain() int
}

// Capturer records one command utterance.
type Capturer interface {
	Capture(ctx context.Context, timeout time.Duration) (capture.Utterance, error)
}

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, u capture.Utterance) (transcribe.Result, error)
	TranscribeWindow(ctx context.Context, w capture.Window) (string, error)
}

// Dispatcher executes commands one at a time.
type Dispatcher interface {
	Submit(cmd command.Command) (<-chan dispatch.ActionResult, error)
	Interrupt() bool
}

var (
	_ Windows     = (*capture.Windower)(nil)
	_ Capturer    = (*capture.Capturer)(nil)
	_ Transcriber = (*transcribe.Transcriber)(nil)
	_ Dispatcher  = (*dispatch.Dispatcher)(nil)
)

// Config holds the orchestrator's collaborators and tuning.
type Config struct {
	Windows     Windows
	Capturer    Capturer
	Transcriber Transcriber
	Detector    *wake.Detector
	Parser      *command.Parser
	Dispatcher  Dispatcher
	Feedback    *feedback.Channel

	// Metrics defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics

	// CaptureTimeout bounds command capture. Zero uses the capturer default.
	CaptureTimeout time.Duration

	// HistorySize and HistoryAge bound the recent interaction list.
	// Defaults 20 and 10 minutes.
	HistorySize int
	HistoryAge  time.Duration
}

// Orchestrator owns the session state. Run must be called from exactly one
// goroutine; State, Stats and Recent may be called from anywhere.
type Orchestrator struct {
	cfg     Config
	metrics *observe.Metrics
	stats   *Stats
	history *History
	state   atomic.Int32
}

// New validates cfg and returns an idle Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	var errs []error
	if cfg.Windows == nil {
		errs = append(errs, errors.New("windows is required"))
	}
	if cfg.Capturer == nil {
		errs = append(errs, errors.New("capturer is required"))
	}
	if cfg.Transcriber == nil {
		errs = append(errs, errors.New("transcriber is required"))
	}
	if cfg.Detector == nil {
		errs = append(errs, errors.New("detector is required"))
	}
	if cfg.Parser == nil {
		errs = append(errs, errors.New("parser is required"))
	}
	if cfg.Dispatcher == nil {
		errs = append(errs, errors.New("dispatcher is required"))
	}
	if cfg.Feedback == nil {
		errs = append(errs, errors.New("feedback is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 20
	}
	if cfg.HistoryAge <= 0 {
		cfg.HistoryAge = 10 * time.Minute
	}
	return &Orchestrator{
		cfg:     cfg,
		metrics: cfg.Metrics,
		stats:   NewStats(),
		history: NewHistory(cfg.HistorySize, cfg.HistoryAge),
	}, nil
}

// State returns the current session state.
func (o *Orchestrator) State() SessionState { return SessionState(o.state.Load()) }

// Stats returns a snapshot of the counters, the current state and the most
// recent interactions.
func (o *Orchestrator) Stats() StatsSnapshot {
	snap := o.stats.Snapshot()
	snap.State = o.State()
	snap.Recent = o.history.Recent(o.cfg.HistorySize)
	return snap
}

func (o *Orchestrator) setState(ctx context.Context, s SessionState) {
	prev := SessionState(o.state.Swap(int32(s)))
	if prev != s {
		observe.Logger(ctx).Info("orchestrator: state", "from", prev, "to", s)
	}
}

// Run listens until ctx is cancelled or the audio source fails. A cancelled
// ctx returns nil.
func (o *Orchestrator) Run(ctx context.Context) error {
	slog.Info("orchestrator: listening")
	for {
		start := time.Now()
		w, err := o.cfg.Windows.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("orchestrator: %w", err)
		}
		text, err := o.cfg.Transcriber.TranscribeWindow(ctx, w)
		o.metrics.RecordStage(ctx, observe.StageWindow, time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("orchestrator: window transcription failed", "err", err)
			continue
		}
		slog.Debug("orchestrator: window", "text", text)
		if !o.cfg.Detector.Detect(text) {
			continue
		}
		o.interact(ctx, text)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// interaction carries the per-cycle values recorded when it ends.
type interaction struct {
	id         string
	start      time.Time
	transcript string
	intent     command.Intent
	message    string
}

// interact runs one cycle after a wake trigger and always leaves the
// orchestrator idle.
func (o *Orchestrator) interact(ctx context.Context, wakeText string) {
	it := interaction{id: uuid.NewString(), start: time.Now()}
	ctx = observe.WithInteractionID(ctx, it.id)
	ctx, span := observe.StartSpan(ctx, "voicenav.interaction")
	span.SetAttributes(attribute.String("interaction.id", it.id))
	defer span.End()

	o.stats.wakeTriggers.Add(1)
	o.metrics.WakeTriggers.Add(ctx, 1)
	o.setState(ctx, StateWakeDetected)
	observe.Logger(ctx).Info("orchestrator: wake phrase detected", "window", wakeText)

	outcome := o.cycle(ctx, &it)

	o.metrics.RecordInteraction(ctx, outcome)
	span.SetAttributes(attribute.String("interaction.outcome", outcome))
	if outcome == OutcomeTranscriptionFailed || outcome == OutcomeFailure {
		span.SetStatus(codes.Error, outcome)
	}
	o.history.Add(HistoryEntry{
		ID:         it.id,
		Transcript: it.transcript,
		Intent:     it.intent,
		Outcome:    outcome,
		Message:    it.message,
		Timestamp:  it.start,
		Duration:   time.Since(it.start),
	})

	// Audio heard during the cycle belongs to it, not to the next wake.
	o.cfg.Windows.Reset()
	if n := o.cfg.Windows.Drain(); n > 0 {
		slog.Debug("orchestrator: drained stale frames", "frames", n)
	}
	o.cfg.Detector.Rearm()
	o.setState(ctx, StateIdle)
}

func (o *Orchestrator) cycle(ctx context.Context, it *interaction) string {
	log := observe.Logger(ctx)
	fb := o.cfg.Feedback

	fb.Acknowledge(ctx)

	// ── Capture ──
	o.setState(ctx, StateCapturing)
	start := time.Now()
	utt, err := o.cfg.Capturer.Capture(ctx, o.cfg.CaptureTimeout)
	o.metrics.RecordStage(ctx, observe.StageCapture, time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeAborted
		}
		log.Error("orchestrator: capture failed", "err", err)
		o.toFeedback(ctx)
		fb.TranscriptionFailed(ctx)
		return OutcomeTranscriptionFailed
	}
	if !utt.Voiced {
		o.stats.falseTriggers.Add(1)
		o.metrics.FalseTriggers.Add(ctx, 1)
		log.Info("orchestrator: no speech after wake", "reason", utt.Reason)
		o.toFeedback(ctx)
		fb.NoSpeech(ctx)
		return OutcomeNoSpeech
	}

	// ── Transcribe ──
	o.setState(ctx, StateTranscribing)
	start = time.Now()
	res, err := o.cfg.Transcriber.Transcribe(ctx, utt)
	o.metrics.RecordStage(ctx, observe.StageTranscribe, time.Since(start))
	it.transcript = res.Text
	switch {
	case err == nil:
		o.metrics.TranscriptionConfidence.Record(ctx, res.Confidence)
	case errors.Is(err, transcribe.ErrLowConfidence):
		o.stats.lowConfidence.Add(1)
		o.metrics.LowConfidence.Add(ctx, 1)
		log.Warn("orchestrator: transcript rejected", "text", res.Text, "confidence", res.Confidence)
		o.toFeedback(ctx)
		fb.LowConfidence(ctx)
		return OutcomeLowConfidence
	case ctx.Err() != nil:
		return OutcomeAborted
	default:
		o.stats.sttErrors.Add(1)
		o.metrics.RecordProviderError(ctx, res.EngineName, sttErrorKind(err))
		log.Error("orchestrator: transcription failed", "engine", res.EngineName, "err", err)
		o.toFeedback(ctx)
		if errors.Is(err, transcribe.ErrEngineUnavailable) {
			fb.EngineUnavailable(ctx)
		} else {
			fb.TranscriptionFailed(ctx)
		}
		return OutcomeTranscriptionFailed
	}
	log.Info("orchestrator: heard", "text", res.Text, "confidence", res.Confidence, "engine", res.Engine)

	// ── Parse ──
	o.setState(ctx, StateParsing)
	start = time.Now()
	cmd := o.cfg.Parser.Parse(res.Text)
	o.metrics.RecordStage(ctx, observe.StageParse, time.Since(start))
	it.intent = cmd.Intent
	if cmd.Intent == command.IntentUnknown {
		o.stats.unknown.Add(1)
		o.metrics.RecordCommand(ctx, string(cmd.Intent), "unknown")
		log.Info("orchestrator: unknown command", "text", cmd.RawText)
		o.toFeedback(ctx)
		it.message = dispatch.MsgUnknownCommand
		fb.UnknownCommand(ctx)
		return OutcomeUnknownCommand
	}

	// ── Dispatch ──
	o.setState(ctx, StateDispatching)
	log.Info("orchestrator: dispatching", "command", cmd.String())
	reply, err := o.cfg.Dispatcher.Submit(cmd)
	if err != nil {
		o.stats.dropped.Add(1)
		o.metrics.DroppedCommands.Add(ctx, 1)
		if !errors.Is(err, dispatch.ErrBusy) {
			log.Error("orchestrator: submit failed", "err", err)
		}
		return OutcomeDropped
	}
	o.stats.commands.Add(1)
	start = time.Now()
	result, ok := o.await(ctx, reply)
	o.metrics.RecordStage(ctx, observe.StageDispatch, time.Since(start))
	if !ok {
		return OutcomeAborted
	}
	it.message = result.Message

	status := "success"
	if result.Success {
		o.stats.successes.Add(1)
	} else {
		o.stats.failures.Add(1)
		status = string(result.ErrorKind)
		log.Warn("orchestrator: command failed", "intent", cmd.Intent, "kind", result.ErrorKind)
	}
	o.metrics.RecordCommand(ctx, string(cmd.Intent), status)

	// ── Feedback ──
	o.toFeedback(ctx)
	start = time.Now()
	fb.Result(ctx, result)
	o.metrics.RecordStage(ctx, observe.StageFeedback, time.Since(start))
	if result.Success {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

func (o *Orchestrator) toFeedback(ctx context.Context) {
	o.setState(ctx, StateFeedback)
}

// await waits for the dispatch result while watching the microphone for a
// spoken stop. It reports false if ctx ended first.
func (o *Orchestrator) await(ctx context.Context, reply <-chan dispatch.ActionResult) (dispatch.ActionResult, bool) {
	wctx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.watchForStop(wctx)
	}()
	defer func() {
		stop()
		<-done
	}()

	select {
	case res := <-reply:
		return res, true
	case <-ctx.Done():
		return dispatch.ActionResult{}, false
	}
}

// watchForStop interrupts the running action when a window parses as stop.
// It owns the window stream until ctx is cancelled.
func (o *Orchestrator) watchForStop(ctx context.Context) {
	for {
		w, err := o.cfg.Windows.Next(ctx)
		if err != nil {
			return
		}
		text, err := o.cfg.Transcriber.TranscribeWindow(ctx, w)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Debug("orchestrator: window transcription failed while dispatching", "err", err)
			continue
		}
		if text == "" || o.cfg.Parser.Parse(text).Intent != command.IntentStop {
			continue
		}
		if o.cfg.Dispatcher.Interrupt() {
			o.stats.stops.Add(1)
			observe.Logger(ctx).Info("orchestrator: stop heard, action interrupted", "text", text)
		}
	}
}

func sttErrorKind(err error) string {
	switch {
	case errors.Is(err, transcribe.ErrEngineUnavailable):
		return "unavailable"
	case errors.Is(err, transcribe.ErrTranscriptionTimeout):
		return "timeout"
	default:
		return "error"
	}
}
