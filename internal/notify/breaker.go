package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/signoff/model"
)

// ErrCircuitOpen is returned while the breaker is shedding notifications.
var ErrCircuitOpen = errors.New("notifier circuit breaker is open")

// BreakerState represents the current state of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets every notification through and counts failures.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects notifications immediately.
	BreakerOpen
	// BreakerHalfOpen lets probe notifications through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Sender is anything that can deliver a notification.
type Sender interface {
	Notify(ctx context.Context, n model.Notification) error
}

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithBreakerClock overrides the time source.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = now }
}

// WithBreakerLogger logs state transitions.
func WithBreakerLogger(l *zap.Logger) BreakerOption {
	return func(b *Breaker) { b.logger = l }
}

// Breaker wraps a Sender so that a failing channel stops being called after
// failureThreshold consecutive errors. After openTimeout it lets probes
// through; successThreshold consecutive probe successes close it again and
// any probe failure reopens it. It is safe for concurrent use.
type Breaker struct {
	next             Sender
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	now              func() time.Time
	logger           *zap.Logger

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
}

// NewBreaker wraps next. Non-positive thresholds fall back to 5 failures,
// 2 successes and a 30s open timeout.
func NewBreaker(next Sender, failureThreshold, successThreshold int, openTimeout time.Duration, opts ...BreakerOption) *Breaker {
	if failureThreshold < 1 {
		failureThreshold = 5
	}
	if successThreshold < 1 {
		successThreshold = 2
	}
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	b := &Breaker{
		next:             next,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
		now:              time.Now,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Notify forwards to the wrapped sender unless the circuit is open.
func (b *Breaker) Notify(ctx context.Context, n model.Notification) error {
	if !b.allow() {
		return ErrCircuitOpen
	}
	err := b.next.Notify(ctx, n)
	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// HealthCheck reports the breaker as unhealthy while it is open, then
// delegates to the wrapped sender if it can check itself.
func (b *Breaker) HealthCheck(ctx context.Context) error {
	if b.State() == BreakerOpen {
		return ErrCircuitOpen
	}
	if hc, ok := b.next.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	return b.state != BreakerOpen
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.transition(BreakerClosed)
		}
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.transition(BreakerOpen)
	}
}

// maybeHalfOpen must be called with mu held.
func (b *Breaker) maybeHalfOpen() {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.openTimeout {
		b.transition(BreakerHalfOpen)
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	if to == BreakerOpen {
		b.openedAt = b.now()
	}
	b.logger.Warn("notifier circuit breaker state changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
}
