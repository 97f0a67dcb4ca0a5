package circuitbreaker

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/onnwee/barnes-hut-tree/internal/metrics"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(name string, cfg Config) (*CircuitBreaker, *clock) {
	cfg.Name = name
	cb := New(cfg)
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	cb.now = clk.now
	return cb, clk
}

var errStore = errors.New("store unavailable")

func fail() error { return errStore }
func ok() error   { return nil }

func TestCircuitBreakerLifecycle(t *testing.T) {
	cb, clk := newTestBreaker("lifecycle", Config{FailureThreshold: 3, SuccessThreshold: 2, Timeout: time.Second})
	trips := testutil.ToFloat64(metrics.CircuitBreakerTrips.WithLabelValues("lifecycle"))

	steps := []struct {
		name    string
		advance time.Duration
		fn      func() error
		wantErr error
		want    State
	}{
		{"closed success", 0, ok, nil, StateClosed},
		{"failure 1", 0, fail, errStore, StateClosed},
		{"failure 2", 0, fail, errStore, StateClosed},
		{"failure 3 opens", 0, fail, errStore, StateOpen},
		{"open rejects", 0, ok, ErrCircuitOpen, StateOpen},
		{"timeout half-opens", 2 * time.Second, ok, nil, StateHalfOpen},
		{"half-open failure reopens", 0, fail, errStore, StateOpen},
		{"still open", 500 * time.Millisecond, ok, ErrCircuitOpen, StateOpen},
		{"half-open again", 2 * time.Second, ok, nil, StateHalfOpen},
		{"second success closes", 0, ok, nil, StateClosed},
	}
	for _, s := range steps {
		t.Run(s.name, func(t *testing.T) {
			clk.advance(s.advance)
			if err := cb.Call(s.fn); !errors.Is(err, s.wantErr) {
				t.Fatalf("Call err = %v, want %v", err, s.wantErr)
			}
			if got := cb.GetState(); got != s.want {
				t.Fatalf("state = %v, want %v", got, s.want)
			}
		})
	}

	if got := testutil.ToFloat64(metrics.CircuitBreakerTrips.WithLabelValues("lifecycle")); got != trips+2 {
		t.Errorf("trips = %v, want %v", got, trips+2)
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("lifecycle")); got != 0 {
		t.Errorf("state gauge = %v, want 0", got)
	}
}

func TestCircuitBreakerIgnoresNonFailures(t *testing.T) {
	cb, _ := newTestBreaker("ignore", Config{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, sql.ErrNoRows) },
	})
	for i := 0; i < 5; i++ {
		if err := cb.Call(func() error { return sql.ErrNoRows }); !errors.Is(err, sql.ErrNoRows) {
			t.Fatalf("expected ErrNoRows, got %v", err)
		}
	}
	if cb.GetState() != StateClosed {
		t.Errorf("ErrNoRows must not trip the breaker, state %v", cb.GetState())
	}
}

func TestCallContext(t *testing.T) {
	cb, _ := newTestBreaker("ctx", Config{FailureThreshold: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := cb.CallContext(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("done context: err=%v called=%v", err, called)
	}

	// Cancellation inside fn does not count as a failure by default.
	err = cb.CallContext(context.Background(), func(context.Context) error { return context.Canceled })
	if !errors.Is(err, context.Canceled) || cb.GetState() != StateClosed {
		t.Errorf("err=%v state=%v", err, cb.GetState())
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open", State(9): "unknown"} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), want)
		}
	}
}
