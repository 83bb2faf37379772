package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/havenloop/haven/internal/config"
	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	"github.com/havenloop/haven/pkg/errors"
)

var ErrConsumerClosed = errors.New(errors.ErrCodeInternal, "consumer closed")

// Handler processes one decoded envelope.  Returning an error leaves the
// offset uncommitted so the message is redelivered.
type Handler func(ctx context.Context, env *EventEnvelope) error

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer drives a handler over one topic within a consumer group.  The
// notification worker uses it to drain the fan-out topics.
type Consumer struct {
	reader  ReaderInterface
	handler Handler
	logger  logging.Logger
	closed  atomic.Bool

	processed atomic.Int64
	failed    atomic.Int64
}

// NewConsumer builds a group consumer for one topic.
func NewConsumer(cfg config.KafkaConfig, groupID, topic string, handler Handler, logger logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if groupID == "" || topic == "" {
		return nil, errors.New(errors.ErrCodeValidation, "group ID and topic required")
	}
	if handler == nil {
		return nil, errors.New(errors.ErrCodeValidation, "handler required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0, // explicit commits only
	})
	return &Consumer{reader: reader, handler: handler, logger: logger.Named("consumer")}, nil
}

// NewConsumerWithReader wraps an existing reader (for testing).
func NewConsumerWithReader(reader ReaderInterface, handler Handler, logger logging.Logger) *Consumer {
	return &Consumer{reader: reader, handler: handler, logger: logger.Named("consumer")}
}

// Run fetches and handles messages until the context is canceled or the
// consumer is closed.  A malformed message is committed and skipped; a
// handler error leaves the offset alone for redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if c.closed.Load() {
			return ErrConsumerClosed
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if c.closed.Load() {
				return ErrConsumerClosed
			}
			c.logger.Error("Failed to fetch message", logging.Err(err))
			time.Sleep(time.Second)
			continue
		}

		env, err := ParseEnvelope(msg.Value)
		if err != nil {
			c.failed.Add(1)
			c.logger.Warn("Skipping undecodable message",
				logging.String("topic", msg.Topic),
				logging.Int64("offset", msg.Offset),
				logging.Err(err))
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		if err := c.handler(ctx, env); err != nil {
			c.failed.Add(1)
			c.logger.Error("Handler failed, message will be redelivered",
				logging.String("event_type", env.EventType),
				logging.String("event_id", env.EventID),
				logging.Err(err))
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Failed to commit offset", logging.Err(err))
			continue
		}
		c.processed.Add(1)
	}
}

// Metrics returns processed and failed counts.
func (c *Consumer) Metrics() (processed, failed int64) {
	return c.processed.Load(), c.failed.Load()
}

func (c *Consumer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.reader.Close()
}
