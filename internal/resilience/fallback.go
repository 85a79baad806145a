package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no member of a [FallbackGroup] produced a
// result. It wraps the last member's error.
var ErrAllFailed = errors.New("all providers failed")

// errEmptyGroup stands in for the last error of a group with no members.
var errEmptyGroup = errors.New("no providers registered")

// FallbackConfig is the breaker template applied to every member of a
// [FallbackGroup]. The member name replaces CircuitBreaker.Name.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type member[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds providers of one kind in order of preference. A call goes
// to the first member whose breaker admits it and moves down the list when that
// member fails.
//
// Members are added during setup; the group must not be modified once calls
// run concurrently.
type FallbackGroup[T any] struct {
	tmpl    CircuitBreakerConfig
	members []member[T]
}

// NewFallbackGroup returns a group whose first member is primary.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{tmpl: cfg.CircuitBreaker}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a member with its own breaker.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	bc := fg.tmpl
	bc.Name = name
	fg.members = append(fg.members, member[T]{name: name, value: fallback, breaker: NewCircuitBreaker(bc)})
}

// Names lists members in order of preference.
func (fg *FallbackGroup[T]) Names() []string {
	out := make([]string, 0, len(fg.members))
	for _, m := range fg.members {
		out = append(out, m.name)
	}
	return out
}

// Execute calls fn for each member in turn until one returns nil.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, _, err := ExecuteNamed(fg, func(v T) (struct{}, error) { return struct{}{}, fn(v) })
	return err
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that return a value.
func ExecuteWithResult[T, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	r, _, err := ExecuteNamed(fg, fn)
	return r, err
}

// ExecuteNamed is [ExecuteWithResult] that also names the member that
// answered. When fn returns context.Canceled the walk stops there and the
// error is returned unwrapped with that member's name.
func ExecuteNamed[T, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, string, error) {
	var zero R
	last := errEmptyGroup
	for _, m := range fg.members {
		var r R
		err := m.breaker.Execute(func() (err error) {
			r, err = fn(m.value)
			return err
		})
		switch {
		case err == nil:
			return r, m.name, nil
		case errors.Is(err, context.Canceled):
			return zero, m.name, err
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("provider skipped, circuit open", "provider", m.name)
		default:
			slog.Warn("provider failed, trying next", "provider", m.name, "err", err)
		}
		last = err
	}
	return zero, "", fmt.Errorf("%w: %w", ErrAllFailed, last)
}
