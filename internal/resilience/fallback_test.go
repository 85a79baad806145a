package resilience

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

// failing returns a call that errors for the listed members and echoes the
// rest, recording the order in which members were tried.
func failing(tried *[]string, bad ...string) func(string) (string, error) {
	return func(v string) (string, error) {
		*tried = append(*tried, v)
		if slices.Contains(bad, v) {
			return "", errTest
		}
		return "from-" + v, nil
	}
}

func TestExecuteNamed_Order(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		bad       []string
		wantValue string
		wantName  string
		wantTried []string
		wantErr   error
	}{
		{
			name:      "primary answers",
			wantValue: "from-a",
			wantName:  "whisper-native",
			wantTried: []string{"a"},
		},
		{
			name:      "primary fails",
			bad:       []string{"a"},
			wantValue: "from-b",
			wantName:  "openai",
			wantTried: []string{"a", "b"},
		},
		{
			name:      "every member fails",
			bad:       []string{"a", "b"},
			wantTried: []string{"a", "b"},
			wantErr:   ErrAllFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fg := NewFallbackGroup("a", "whisper-native", FallbackConfig{})
			fg.AddFallback("openai", "b")

			var tried []string
			got, name, err := ExecuteNamed(fg, failing(&tried, tt.bad...))
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil && !errors.Is(err, errTest) {
				t.Errorf("err = %v, want the last member's error wrapped", err)
			}
			if got != tt.wantValue || name != tt.wantName {
				t.Errorf("got (%q, %q), want (%q, %q)", got, name, tt.wantValue, tt.wantName)
			}
			if !slices.Equal(tried, tt.wantTried) {
				t.Errorf("tried = %v, want %v", tried, tt.wantTried)
			}
		})
	}
}

func TestFallbackGroup_SkipsOpenMember(t *testing.T) {
	t.Parallel()
	fg := NewFallbackGroup("a", "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	fg.AddFallback("secondary", "b")

	var tried []string
	for i := 0; i < 2; i++ {
		if _, err := ExecuteWithResult(fg, failing(&tried, "a")); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	tried = nil
	if err := fg.Execute(func(v string) error { tried = append(tried, v); return nil }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !slices.Equal(tried, []string{"b"}) {
		t.Fatalf("tried = %v, want only the secondary while the primary's breaker is open", tried)
	}
}

func TestFallbackGroup_BreakersAreIndependent(t *testing.T) {
	t.Parallel()
	fg := NewFallbackGroup(1, "one", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	fg.AddFallback("two", 2)

	_ = fg.Execute(func(v int) error {
		if v == 1 {
			return errTest
		}
		return nil
	})
	if st := fg.members[0].breaker.State(); st != StateOpen {
		t.Errorf("first breaker = %v, want open", st)
	}
	if st := fg.members[1].breaker.State(); st != StateClosed {
		t.Errorf("second breaker = %v, want closed", st)
	}
	if n := fg.members[1].breaker.Name(); n != "two" {
		t.Errorf("second breaker name = %q, want two", n)
	}
}

func TestExecuteNamed_CancellationStopsFailover(t *testing.T) {
	t.Parallel()
	fg := NewFallbackGroup(1, "one", FallbackConfig{})
	fg.AddFallback("two", 2)

	var tried []int
	_, name, err := ExecuteNamed(fg, func(v int) (int, error) {
		tried = append(tried, v)
		return 0, context.Canceled
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want bare context.Canceled", err)
	}
	if name != "one" || len(tried) != 1 {
		t.Fatalf("name = %q, tried = %v; want only the first member", name, tried)
	}
}

func TestFallbackGroup_Names(t *testing.T) {
	t.Parallel()
	fg := NewFallbackGroup("x", "whisper-native", FallbackConfig{})
	fg.AddFallback("whisper", "y")
	fg.AddFallback("openai", "z")
	if got, want := fg.Names(), []string{"whisper-native", "whisper", "openai"}; !slices.Equal(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
}
