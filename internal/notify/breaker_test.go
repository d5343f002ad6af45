package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pitabwire/signoff/model"
)

type flakySender struct {
	calls int
	err   error
}

func (f *flakySender) Notify(context.Context, model.Notification) error {
	f.calls++
	return f.err
}

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(next Sender, failures, successes int) (*Breaker, *manualClock) {
	clock := &manualClock{t: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
	return NewBreaker(next, failures, successes, time.Minute, WithBreakerClock(clock.now)), clock
}

func TestBreaker_startsClosedPassesThrough(t *testing.T) {
	sender := &flakySender{}
	b, _ := newTestBreaker(sender, 3, 2)

	if s := b.State(); s != BreakerClosed {
		t.Errorf("initial state = %v, want closed", s)
	}
	if err := b.Notify(context.Background(), testNotification("stk-ciso")); err != nil {
		t.Errorf("Notify() error = %v", err)
	}
	if sender.calls != 1 {
		t.Errorf("calls = %d, want 1", sender.calls)
	}
}

func TestBreaker_opensAfterThreshold(t *testing.T) {
	boom := errors.New("redis down")
	sender := &flakySender{err: boom}
	b, _ := newTestBreaker(sender, 3, 2)
	ctx := context.Background()

	for i := range 3 {
		if err := b.Notify(ctx, testNotification("stk-ciso")); !errors.Is(err, boom) {
			t.Fatalf("call %d error = %v, want underlying error", i, err)
		}
	}
	if s := b.State(); s != BreakerOpen {
		t.Fatalf("state after 3 failures = %v, want open", s)
	}

	if err := b.Notify(ctx, testNotification("stk-ciso")); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error while open = %v, want ErrCircuitOpen", err)
	}
	if sender.calls != 3 {
		t.Errorf("calls = %d, want 3 (open circuit must not call through)", sender.calls)
	}
}

func TestBreaker_successResetsFailureCount(t *testing.T) {
	sender := &flakySender{err: errors.New("timeout")}
	b, _ := newTestBreaker(sender, 3, 2)
	ctx := context.Background()

	_ = b.Notify(ctx, testNotification("a"))
	_ = b.Notify(ctx, testNotification("a"))
	sender.err = nil
	_ = b.Notify(ctx, testNotification("a"))
	sender.err = errors.New("timeout")
	_ = b.Notify(ctx, testNotification("a"))
	_ = b.Notify(ctx, testNotification("a"))

	if s := b.State(); s != BreakerClosed {
		t.Errorf("state = %v, want closed after reset", s)
	}
}

func TestBreaker_halfOpenRecovery(t *testing.T) {
	sender := &flakySender{err: errors.New("down")}
	b, clock := newTestBreaker(sender, 1, 2)
	ctx := context.Background()

	_ = b.Notify(ctx, testNotification("a"))
	if s := b.State(); s != BreakerOpen {
		t.Fatalf("state = %v, want open", s)
	}

	clock.advance(time.Minute)
	if s := b.State(); s != BreakerHalfOpen {
		t.Fatalf("state after timeout = %v, want half-open", s)
	}

	sender.err = nil
	_ = b.Notify(ctx, testNotification("a"))
	if s := b.State(); s != BreakerHalfOpen {
		t.Errorf("state after 1 probe success = %v, want half-open", s)
	}
	_ = b.Notify(ctx, testNotification("a"))
	if s := b.State(); s != BreakerClosed {
		t.Errorf("state after 2 probe successes = %v, want closed", s)
	}
}

func TestBreaker_halfOpenFailureReopens(t *testing.T) {
	sender := &flakySender{err: errors.New("down")}
	b, clock := newTestBreaker(sender, 1, 2)
	ctx := context.Background()

	_ = b.Notify(ctx, testNotification("a"))
	clock.advance(time.Minute)
	_ = b.Notify(ctx, testNotification("a"))

	if s := b.State(); s != BreakerOpen {
		t.Errorf("state = %v, want open after failed probe", s)
	}
}

func TestBreaker_healthCheck(t *testing.T) {
	_, client := newTestRedis(t)
	b, _ := newTestBreaker(NewRedisNotifier(client, "signoff.test"), 1, 1)

	if err := b.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() closed = %v", err)
	}

	b.recordFailure()
	if err := b.HealthCheck(context.Background()); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("HealthCheck() open = %v, want ErrCircuitOpen", err)
	}
}

func TestBreaker_logsTransitions(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	b := NewBreaker(&flakySender{err: errors.New("down")}, 1, 1, time.Minute, WithBreakerLogger(zap.New(core)))

	_ = b.Notify(context.Background(), testNotification("a"))

	entries := logs.FilterMessage("notifier circuit breaker state changed").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d transitions, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["to"]; got != "open" {
		t.Errorf("to = %v, want open", got)
	}
}

func TestBreakerState_String(t *testing.T) {
	tests := []struct {
		state BreakerState
		want  string
	}{
		{BreakerClosed, "closed"},
		{BreakerOpen, "open"},
		{BreakerHalfOpen, "half-open"},
		{BreakerState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
