package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &Producer{writer: w}
}

func (p *Producer) Publish(ctx context.Context, e Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(e)
	return p.writer.WriteMessages(ctx, kafka.Message{Key: e.key(), Value: b})
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Handler is invoked once per consumed envelope. Errors are logged and the
// loop moves on; room broadcasts are at-most-once so there is no redelivery.
type Handler func(ctx context.Context, e Envelope) error

// Reader consumes the request-events topic and feeds the coordinators.
type Reader struct {
	reader *kafka.Reader
	logger *slog.Logger
}

func NewReader(brokers []string, topic, group string, logger *slog.Logger) *Reader {
	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 1, MaxBytes: 10e6})
	return &Reader{reader: r, logger: logger}
}

// Run blocks until ctx is cancelled, reading envelopes and dispatching
// them. Kafka read errors back off exponentially up to 30s.
func (r *Reader) Run(ctx context.Context, h Handler) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("ingest reader stopping")
				return
			}
			r.logger.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		var e Envelope
		if err := json.Unmarshal(m.Value, &e); err != nil {
			r.logger.Warn("invalid envelope", "error", err)
			continue
		}
		if err := h(ctx, e); err != nil {
			r.logger.Warn("event handling failed", "type", e.Type, "error", err)
		}
	}
}

func (r *Reader) Close() error { return r.reader.Close() }
