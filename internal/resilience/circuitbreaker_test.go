package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var (
	errTest     = errors.New("test error")
	errNotFound = errors.New("element not found")
)

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Unix(1_700_000_000, 0)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// transitions records OnStateChange callbacks.
type transitions struct {
	mu  sync.Mutex
	got []string
}

func (tr *transitions) record(_ string, from, to State) {
	tr.mu.Lock()
	tr.got = append(tr.got, from.String()+">"+to.String())
	tr.mu.Unlock()
}

func (tr *transitions) list() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.got...)
}

func fail() error    { return errTest }
func succeed() error { return nil }

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "browser"})
	if cb.cfg.MaxFailures != 5 || cb.cfg.ResetTimeout != 30*time.Second || cb.cfg.HalfOpenMax != 1 {
		t.Errorf("defaults = %d/%v/%d, want 5/30s/1", cb.cfg.MaxFailures, cb.cfg.ResetTimeout, cb.cfg.HalfOpenMax)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
	if cb.Name() != "browser" {
		t.Errorf("Name() = %q, want browser", cb.Name())
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	var tr transitions
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:          "browser",
		MaxFailures:   3,
		ResetTimeout:  time.Hour,
		OnStateChange: tr.record,
	})

	for i := 0; i < 2; i++ {
		if err := cb.Execute(fail); !errors.Is(err, errTest) {
			t.Fatalf("call %d: err = %v, want errTest", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("state after 2 failures = %v, want closed", cb.State())
	}
	_ = cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatalf("state after 3 failures = %v, want open", cb.State())
	}

	ran := false
	if err := cb.Execute(func() error { ran = true; return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if ran {
		t.Fatal("fn ran while the breaker was open")
	}
	if got := tr.list(); len(got) != 1 || got[0] != "closed>open" {
		t.Fatalf("transitions = %v, want [closed>open]", got)
	}
}

func TestCircuitBreaker_SuccessClearsRun(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 3})
	for _, fn := range []func() error{fail, fail, succeed, fail, fail} {
		_ = cb.Execute(fn)
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed; a success between failures resets the run", cb.State())
	}
}

func TestCircuitBreaker_IgnoredErrorsPassThrough(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures: 2,
		IsFailure:   func(err error) bool { return !errors.Is(err, errNotFound) },
	})
	for i := 0; i < 5; i++ {
		if err := cb.Execute(func() error { return errNotFound }); !errors.Is(err, errNotFound) {
			t.Fatalf("err = %v, want errNotFound", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
}

func TestCircuitBreaker_Probe(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		probe func() error
		want  State
		trans []string
	}{
		{
			name:  "success closes",
			probe: succeed,
			want:  StateClosed,
			trans: []string{"closed>open", "open>half-open", "half-open>closed"},
		},
		{
			name:  "failure reopens",
			probe: fail,
			want:  StateOpen,
			trans: []string{"closed>open", "open>half-open", "half-open>open"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clk := newClock()
			var tr transitions
			cb := NewCircuitBreaker(CircuitBreakerConfig{
				MaxFailures:   1,
				ResetTimeout:  10 * time.Second,
				OnStateChange: tr.record,
				Now:           clk.Now,
			})
			_ = cb.Execute(fail)

			clk.Advance(9 * time.Second)
			if err := cb.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
				t.Fatalf("before cool-down: err = %v, want ErrCircuitOpen", err)
			}
			clk.Advance(time.Second)
			if cb.State() != StateHalfOpen {
				t.Fatalf("after cool-down: state = %v, want half-open", cb.State())
			}

			_ = cb.Execute(tt.probe)
			if got := cb.State(); got != tt.want {
				t.Fatalf("state = %v, want %v", got, tt.want)
			}
			got := tr.list()
			if len(got) != len(tt.trans) {
				t.Fatalf("transitions = %v, want %v", got, tt.trans)
			}
			for i := range got {
				if got[i] != tt.trans[i] {
					t.Fatalf("transitions = %v, want %v", got, tt.trans)
				}
			}
		})
	}
}

func TestCircuitBreaker_ReopenRestartsCoolDown(t *testing.T) {
	t.Parallel()
	clk := newClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute, Now: clk.Now})
	_ = cb.Execute(fail)
	clk.Advance(time.Minute)
	_ = cb.Execute(fail)

	clk.Advance(30 * time.Second)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open until a full cool-down after the failed probe", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenAdmitsOneProbe(t *testing.T) {
	t.Parallel()
	clk := newClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Second, Now: clk.Now})
	_ = cb.Execute(fail)
	clk.Advance(time.Second)

	release := make(chan struct{})
	entered := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cb.Execute(func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	if err := cb.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe err = %v, want ErrCircuitOpen", err)
	}
	close(release)
	wg.Wait()
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenMax(t *testing.T) {
	t.Parallel()
	clk := newClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Second,
		HalfOpenMax:  2,
		Now:          clk.Now,
	})
	_ = cb.Execute(fail)
	clk.Advance(time.Second)

	_ = cb.Execute(succeed)
	if cb.State() != StateHalfOpen {
		t.Fatalf("after one probe: state = %v, want half-open", cb.State())
	}
	_ = cb.Execute(succeed)
	if cb.State() != StateClosed {
		t.Fatalf("after two probes: state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()
	var tr transitions
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour, OnStateChange: tr.record})
	_ = cb.Execute(fail)
	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after reset", cb.State())
	}
	if err := cb.Execute(succeed); err != nil {
		t.Fatalf("after reset: %v", err)
	}
	cb.Reset()
	if got := tr.list(); len(got) != 2 || got[1] != "open>closed" {
		t.Fatalf("transitions = %v, want [closed>open open>closed]", got)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	for state, want := range map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
