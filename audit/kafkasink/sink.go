// Package kafkasink publishes identityauth audit events to a Kafka topic as
// JSON, keyed by user id so one user's events stay ordered within a
// partition.
package kafkasink

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/MrEthical07/identityauth"
	skafka "github.com/segmentio/kafka-go"
)

// DefaultWriteTimeout bounds a single publish.
const DefaultWriteTimeout = 5 * time.Second

// Writer is the subset of *kafka.Writer the sink uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// Sink implements identityauth.AuditSink. Publish failures are logged and
// the event is dropped.
type Sink struct {
	writer  Writer
	logger  *slog.Logger
	timeout time.Duration
}

// New creates a Sink writing to topic on brokers.
func New(brokers []string, topic string, logger *slog.Logger) *Sink {
	w := &skafka.Writer{
		Addr:         skafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &skafka.Hash{},
		RequiredAcks: skafka.RequireOne,
	}
	return NewWithWriter(w, logger)
}

// NewWithWriter wraps an existing writer.
func NewWithWriter(w Writer, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{writer: w, logger: logger, timeout: DefaultWriteTimeout}
}

// Emit publishes event. It ignores cancellation of ctx, which usually
// belongs to a finished request.
func (s *Sink) Emit(ctx context.Context, event identityauth.AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	value, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("kafkasink: marshal audit event", "event", event.EventType, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	msg := skafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Time:  event.Timestamp,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Warn("kafkasink: publish audit event", "event", event.EventType, "error", err)
	}
}

func (s *Sink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
