package inference

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// #region policy

// retryPolicy decides whether a failed attempt is worth repeating.
type retryPolicy struct {
	maxRetries int // 2 retries = 3 total attempts
	backoff    time.Duration
	maxBackoff time.Duration
}

// #endregion

// #region should-retry

// shouldRetry reports whether to try again after attempts failed calls.
// Caller-side cancellation and request errors are final.
func (p retryPolicy) shouldRetry(ctx context.Context, err error, attempts int) bool {
	if err == nil || attempts > p.maxRetries {
		return false
	}
	if ctx.Err() != nil || errors.Is(err, ErrOpen) {
		return false
	}
	if errors.Is(err, ErrEmptyReply) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted, codes.DeadlineExceeded, codes.Internal:
		return true
	}
	return false
}

// delay is the exponential backoff before retry number attempt (1-based).
func (p retryPolicy) delay(attempt int) time.Duration {
	d := p.backoff << (attempt - 1)
	if p.maxBackoff > 0 && (d > p.maxBackoff || d <= 0) {
		d = p.maxBackoff
	}
	return d
}

// wait sleeps for the backoff or until ctx is done.
func (p retryPolicy) wait(ctx context.Context, attempt int) error {
	d := p.delay(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// #endregion
