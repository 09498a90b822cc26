package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/utafrali/WholesaleGo/pkg/logger"
)

// maxHandlerRetries is the maximum number of times a message handler will be
// attempted before the message is dead-lettered and committed.
const maxHandlerRetries = 3

// Handler is a function that processes a Kafka event.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
	// DLQ receives messages whose handler failed every retry. Nil drops them.
	DLQ *DLQProducer
}

// Consumer wraps the kafka-go reader for consuming events.
type Consumer struct {
	reader    *kafka.Reader
	logger    *slog.Logger
	handler   Handler
	dlq       *DLQProducer
	topic     string
	group     string
	closeOnce sync.Once
}

// NewConsumer creates a new Kafka consumer for a specific topic and group.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})

	return &Consumer{
		reader:  r,
		logger:  logger,
		handler: handler,
		dlq:     cfg.DLQ,
		topic:   cfg.Topic,
		group:   cfg.GroupID,
	}
}

// Start begins consuming messages. It blocks until the context is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started",
		slog.String("topic", c.topic),
		slog.String("group", c.group),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", slog.String("topic", c.topic))
			return c.Close()
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
				continue
			}
			ConsumerMessagesReceived.WithLabelValues(msg.Topic, c.group).Inc()

			if stop := c.process(ctx, msg); stop {
				return nil
			}
		}
	}
}

// process handles one message and commits it. It reports true when ctx was
// canceled mid-retry and the message must stay uncommitted.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	msgCtx := withDelivery(extractTraceContext(ctx, msg), msg.Topic, c.group)

	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		recordConsumed(msgCtx, OutcomeInvalid)
		c.logger.ErrorContext(msgCtx, "discarding undecodable event",
			slog.String("error", err.Error()),
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
		)
		c.deadLetter(msgCtx, DeadLetter{Message: msg, Group: c.group, Cause: err})
		c.commit(ctx, msg)
		return false
	}
	if event.CorrelationID != "" {
		msgCtx = logger.WithCorrelationID(msgCtx, event.CorrelationID)
	}

	start := time.Now()
	attempts, lastErr := c.handle(msgCtx, event, msg)
	ConsumerProcessingDuration.WithLabelValues(msg.Topic, c.group).Observe(time.Since(start).Seconds())
	if lastErr != nil && ctx.Err() != nil {
		return true
	}

	if lastErr != nil {
		recordConsumed(msgCtx, OutcomeFailed)
		c.logger.ErrorContext(msgCtx, "handler failed after all retries",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", lastErr.Error()),
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempts", attempts),
		)
		c.deadLetter(msgCtx, DeadLetter{Message: msg, Group: c.group, Cause: lastErr, Attempts: attempts})
	} else {
		recordConsumed(msgCtx, OutcomeProcessed)
	}

	c.commit(ctx, msg)
	return false
}

// handle runs the handler up to maxHandlerRetries times with linear backoff.
// Envelope errors are not retried.
func (c *Consumer) handle(ctx context.Context, event *Event, msg kafka.Message) (int, error) {
	var err error
	for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
		if err = c.handler(ctx, event); err == nil || errors.Is(err, ErrInvalidEnvelope) {
			return attempt, err
		}
		c.logger.WarnContext(ctx, "handler failed, will retry",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", err.Error()),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
		)

		if attempt < maxHandlerRetries {
			select {
			case <-ctx.Done():
				return attempt, ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
	}
	return maxHandlerRetries, err
}

func (c *Consumer) deadLetter(ctx context.Context, dl DeadLetter) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Publish(ctx, dl); err == nil {
		recordConsumed(ctx, OutcomeDeadLettered)
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit message", slog.String("error", err.Error()))
	}
}

// Close closes the consumer. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}

// TopicPrefix is the standard prefix for all WholesaleGo Kafka topics.
const TopicPrefix = "wholesale"

// Topic constructs a fully-qualified topic name.
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}
