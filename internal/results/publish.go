package results

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// #region writer
// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a writer that keys messages onto partitions by hash.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// #endregion writer

// #region publisher
// Publisher streams RunRecords as JSON keyed by run id.
type Publisher struct {
	w      MessageWriter
	logger *slog.Logger
}

// NewPublisher wraps w.
func NewPublisher(w MessageWriter, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{w: w, logger: logger}
}

// Publish writes one record.
func (p *Publisher) Publish(ctx context.Context, rec RunRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", rec.ID, err)
	}
	msg := kafka.Message{
		Key:   []byte(rec.ID),
		Value: b,
		Time:  rec.StartedAt,
		Headers: []kafka.Header{
			{Key: "batch_id", Value: []byte(rec.BatchID)},
			{Key: "model", Value: []byte(rec.Model)},
			{Key: "status", Value: []byte(rec.Status)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("kafka write failed", "run_id", rec.ID, "err", err)
		return fmt.Errorf("publish run %s: %w", rec.ID, err)
	}
	p.logger.Debug("published", "run_id", rec.ID)
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}

// #endregion publisher
