package orchestrator

import (
	"sync/atomic"
	"time"
)

// Stats holds process-wide interaction counters. They start at zero when the
// orchestrator is created and are never reset. All methods are safe for
// concurrent use; read them through [Stats.Snapshot].
type Stats struct {
	started time.Time

	wakeTriggers  atomic.Int64
	falseTriggers atomic.Int64
	commands      atomic.Int64
	successes     atomic.Int64
	failures      atomic.Int64
	unknown       atomic.Int64
	lowConfidence atomic.Int64
	dropped       atomic.Int64
	sttErrors     atomic.Int64
	stops         atomic.Int64
}

// NewStats returns zeroed counters with uptime measured from now.
func NewStats() *Stats {
	return &Stats{started: time.Now()}
}

// StatsSnapshot is a point-in-time copy of [Stats].
type StatsSnapshot struct {
	State               SessionState   `json:"state"`
	WakeTriggers        int64          `json:"wake_triggers"`
	FalseTriggers       int64          `json:"false_triggers"`
	Commands            int64          `json:"commands"`
	Successes           int64          `json:"successes"`
	Failures            int64          `json:"failures"`
	UnknownCommands     int64          `json:"unknown_commands"`
	LowConfidence       int64          `json:"low_confidence"`
	Dropped             int64          `json:"dropped"`
	TranscriptionErrors int64          `json:"transcription_errors"`
	SpokenStops         int64          `json:"spoken_stops"`
	SuccessRate         float64        `json:"success_rate"`
	Uptime              time.Duration  `json:"uptime_ns"`
	Recent              []HistoryEntry `json:"recent,omitempty"`
}

// Snapshot copies the counters. SuccessRate is successes over finished
// commands, or 0 before the first one.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		WakeTriggers:        s.wakeTriggers.Load(),
		FalseTriggers:       s.falseTriggers.Load(),
		Commands:            s.commands.Load(),
		Successes:           s.successes.Load(),
		Failures:            s.failures.Load(),
		UnknownCommands:     s.unknown.Load(),
		LowConfidence:       s.lowConfidence.Load(),
		Dropped:             s.dropped.Load(),
		TranscriptionErrors: s.sttErrors.Load(),
		SpokenStops:         s.stops.Load(),
		Uptime:              time.Since(s.started),
	}
	if done := snap.Successes + snap.Failures; done > 0 {
		snap.SuccessRate = float64(snap.Successes) / float64(done)
	}
	return snap
}
