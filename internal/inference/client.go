package inference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// MethodConverse is the full gRPC method name of the inference gateway.
// Requests and replies are google.protobuf.Struct messages, so no generated
// stubs are needed on either side.
const MethodConverse = "/greenbench.inference.v1.Inference/Converse"

// #region client-struct
// Client calls the inference gateway with retries behind a circuit breaker.
type Client struct {
	conn    grpc.ClientConnInterface
	closer  func() error
	cfg     Config
	retry   retryPolicy
	breaker *Breaker
	logger  *slog.Logger
}

// #endregion client-struct

// #region constructor
// NewClient connects to the inference gateway at addr.
func NewClient(addr string, cfg Config, logger *slog.Logger) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	c := NewClientWithConn(conn, cfg, logger)
	c.closer = conn.Close
	return c, nil
}

// NewClientWithConn wraps an existing connection. Close does not close it.
func NewClientWithConn(conn grpc.ClientConnInterface, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn: conn,
		cfg:  cfg,
		retry: retryPolicy{
			maxRetries: cfg.MaxRetries,
			backoff:    cfg.Backoff,
			maxBackoff: cfg.MaxBackoff,
		},
		breaker: NewBreaker("inference", cfg.MaxFailures, cfg.ResetTimeout, logger),
		logger:  logger,
	}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection if the client owns it.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// Breaker exposes the circuit state for health reporting.
func (c *Client) Breaker() *Breaker { return c.breaker }

// #endregion close

// #region converse
// Converse sends one turn, retrying transient failures.
func (c *Client) Converse(ctx context.Context, req Request) (Reply, error) {
	if req.MaxTokens == 0 {
		req.MaxTokens = c.cfg.MaxTokens
	}
	in, err := structpb.NewStruct(map[string]any{
		"model_id":    req.Model,
		"system":      req.System,
		"prompt":      req.Prompt,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("encode request: %w", err)
	}

	for attempt := 1; ; attempt++ {
		var reply Reply
		err := c.breaker.Execute(ctx, func(ctx context.Context) error {
			var callErr error
			reply, callErr = c.call(ctx, in)
			return callErr
		})
		if err == nil {
			reply.Attempts = attempt
			return reply, nil
		}
		if !c.retry.shouldRetry(ctx, err, attempt) {
			return Reply{Attempts: attempt}, fmt.Errorf("converse %s: %w", req.Model, err)
		}
		c.logger.Warn("inference_retry", "model", req.Model, "attempt", attempt, "error", err.Error())
		if werr := c.retry.wait(ctx, attempt); werr != nil {
			return Reply{Attempts: attempt}, fmt.Errorf("converse %s: %w", req.Model, werr)
		}
	}
}

func (c *Client) call(ctx context.Context, in *structpb.Struct) (Reply, error) {
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, MethodConverse, in, out); err != nil {
		return Reply{}, fmt.Errorf("converse rpc: %w", err)
	}
	reply := decodeReply(out)
	if strings.TrimSpace(reply.Text) == "" {
		return Reply{}, ErrEmptyReply
	}
	return reply, nil
}

func decodeReply(out *structpb.Struct) Reply {
	f := out.GetFields()
	return Reply{
		Text:         f["text"].GetStringValue(),
		InputTokens:  int(f["input_tokens"].GetNumberValue()),
		OutputTokens: int(f["output_tokens"].GetNumberValue()),
		LatencyMS:    f["latency_ms"].GetNumberValue(),
	}
}

// #endregion converse
