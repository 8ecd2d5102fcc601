package inference

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// #region state
// State is the breaker position.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	}
	return "unknown"
}

// #endregion state

// #region breaker
// Breaker fast-fails calls after MaxFailures consecutive errors. Once
// ResetTimeout has passed a single trial call is let through; its outcome
// closes or reopens the breaker.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

// NewBreaker creates a closed breaker. maxFailures below 1 disables it.
func NewBreaker(name string, maxFailures int, resetTimeout time.Duration, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		logger:       logger,
		now:          time.Now,
	}
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs op unless the breaker is open.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if b.maxFailures < 1 {
		return op(ctx)
	}

	b.mu.Lock()
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			b.mu.Unlock()
			b.logger.Warn("breaker_fast_fail", "name", b.name)
			return ErrOpen
		}
		b.state = HalfOpen
		b.logger.Info("breaker_trial", "name", b.name, "previous_failures", b.failures)
	case HalfOpen:
		// one trial at a time
		b.mu.Unlock()
		return ErrOpen
	}
	b.mu.Unlock()

	err := op(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		if b.state != Closed {
			b.logger.Info("breaker_closed", "name", b.name)
		}
		b.state = Closed
		b.failures = 0
		return nil
	}
	b.failures++
	if b.state == HalfOpen || b.failures >= b.maxFailures {
		b.state = Open
		b.openedAt = b.now()
		b.logger.Error("breaker_opened", "name", b.name, "failures", b.failures, "error", err.Error())
	}
	return err
}

// #endregion breaker
