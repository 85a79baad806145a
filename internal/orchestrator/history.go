package orchestrator

import (
	"sync"
	"time"

	"github.com/MrWong99/voicenav/internal/command"
)

// HistoryEntry summarises one finished interaction.
type HistoryEntry struct {
	ID         string         `json:"id"`
	Transcript string         `json:"transcript,omitempty"`
	Intent     command.Intent `json:"intent,omitempty"`
	Outcome    string         `json:"outcome"`
	Message    string         `json:"message,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Duration   time.Duration  `json:"duration_ns"`
}

// History keeps the most recent interactions, bounded by count and by age.
// Entries past either limit are evicted on every Add.
//
// All methods are safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	entries []HistoryEntry
	maxSize int
	maxAge  time.Duration
}

// NewHistory retains at most maxSize entries no older than maxAge.
func NewHistory(maxSize int, maxAge time.Duration) *History {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &History{
		entries: make([]HistoryEntry, 0, maxSize),
		maxSize: maxSize,
		maxAge:  maxAge,
	}
}

// Add records e and evicts stale entries.
func (h *History) Add(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, e)
	h.evict(time.Now())
}

// Recent returns up to n live entries, newest first.
func (h *History) Recent(n int) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cutoff := time.Now().Add(-h.maxAge)
	out := make([]HistoryEntry, 0, min(n, len(h.entries)))
	for i := len(h.entries) - 1; i >= 0 && len(out) < n; i-- {
		if h.entries[i].Timestamp.Before(cutoff) {
			break
		}
		out = append(out, h.entries[i])
	}
	return out
}

// evict drops expired and surplus entries. Must be called with h.mu held.
func (h *History) evict(now time.Time) {
	cutoff := now.Add(-h.maxAge)
	start := 0
	for start < len(h.entries) && h.entries[start].Timestamp.Before(cutoff) {
		start++
	}
	keep := h.entries[start:]
	if len(keep) > h.maxSize {
		keep = keep[len(keep)-h.maxSize:]
	}
	if len(keep) < len(h.entries) {
		// Copy so evicted transcripts can be collected.
		fresh := make([]HistoryEntry, len(keep), h.maxSize)
		copy(fresh, keep)
		h.entries = fresh
	}
}
