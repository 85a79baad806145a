// Package health provides the status server handlers and the startup
// resource checks.
//
// The package exposes three endpoints:
//
//   - /healthz: liveness probe; always returns 200 OK.
//   - /readyz: readiness probe; returns 200 only when every registered
//     [Checker] passes (microphone, transcription engine, browser).
//   - /stats: the interaction statistics as JSON.
//
// The same checkers back the "voicenav check" command through [Handler.Check].
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single check.
const checkTimeout = 5 * time.Second

// ErrResourceUnavailable wraps every failed check returned by [Handler.Check].
var ErrResourceUnavailable = errors.New("resource unavailable")

// Checker is a named health check. Check returns nil when the resource is
// usable.
type Checker struct {
	// Name labels the check in responses, e.g. "microphone".
	Name string

	// Check probes the resource. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// result is the JSON response body for health endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the status endpoints. It is safe for concurrent use; the
// checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
	stats    func() any
}

// New creates a [Handler] evaluating checkers on each /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// WithStats sets the function whose result /stats serves.
func (h *Handler) WithStats(fn func() any) *Handler {
	h.stats = fn
	return h
}

// run evaluates all checkers concurrently and returns each one's error.
func (h *Handler) run(ctx context.Context) map[string]error {
	var (
		mu   sync.Mutex
		errs = make(map[string]error, len(h.checkers))
		g    errgroup.Group
	)
	for _, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			err := c.Check(cctx)
			mu.Lock()
			errs[c.Name] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Check runs every checker and joins the failures, each wrapped with
// [ErrResourceUnavailable] and its name.
func (h *Handler) Check(ctx context.Context) error {
	errs := h.run(ctx)
	var failed []error
	for _, c := range h.checkers {
		if err := errs[c.Name]; err != nil {
			failed = append(failed, fmt.Errorf("%w: %s: %w", ErrResourceUnavailable, c.Name, err))
		}
	}
	return errors.Join(failed...)
}

// Healthz is a liveness probe that always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz returns 200 only when every registered [Checker] passes.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	errs := h.run(r.Context())
	res := result{Status: "ok", Checks: make(map[string]string, len(errs))}
	status := http.StatusOK
	for name, err := range errs {
		if err != nil {
			res.Checks[name] = "fail: " + err.Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks[name] = "ok"
	}
	writeJSON(w, status, res)
}

// Stats serves the statistics snapshot, or 404 when none is configured.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.stats())
}

// Register adds the /healthz, /readyz and /stats routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	mux.HandleFunc("GET /stats", h.Stats)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
