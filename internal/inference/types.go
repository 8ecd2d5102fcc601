package inference

import (
	"context"
	"errors"
	"time"
)

// #region types
// Request is one conversation turn sent to a hosted model.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Reply holds the model output and the usage the service reported.
type Reply struct {
	Text         string
	InputTokens  int
	OutputTokens int
	// LatencyMS is the inference latency reported by the service. Zero means
	// the service did not report one and callers should use wall time.
	LatencyMS float64
	Attempts  int
}

// Invoker is anything that can answer a conversation turn.
type Invoker interface {
	Converse(ctx context.Context, req Request) (Reply, error)
}

// #endregion types

// #region errors
var (
	// ErrOpen is returned without calling the service while the breaker is open.
	ErrOpen = errors.New("inference circuit open")
	// ErrEmptyReply marks a reply without text.
	ErrEmptyReply = errors.New("empty reply")
)

// #endregion errors

// #region config
// Config controls retries and the circuit breaker.
type Config struct {
	MaxRetries   int
	Backoff      time.Duration
	MaxBackoff   time.Duration
	MaxFailures  int
	ResetTimeout time.Duration
	MaxTokens    int
}

// DefaultConfig allows 2 retries (3 attempts) and opens the breaker after 5
// consecutive failures.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   2,
		Backoff:      500 * time.Millisecond,
		MaxBackoff:   5 * time.Second,
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
		MaxTokens:    2048,
	}
}

// #endregion config
