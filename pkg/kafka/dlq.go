package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQTopicPrefix is prepended to the source topic to form its dead-letter topic.
const DLQTopicPrefix = "wholesale.dlq"

// DLQTopic returns the dead-letter topic for originalTopic.
func DLQTopic(originalTopic string) string {
	return DLQTopicPrefix + "." + originalTopic
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DeadLetter is a message the consumer gave up on.
type DeadLetter struct {
	Message  kafka.Message
	Group    string
	Cause    error
	Attempts int
}

func (d DeadLetter) headers(failedAt time.Time) []kafka.Header {
	h := make([]kafka.Header, 0, len(d.Message.Headers)+7)
	h = append(h, d.Message.Headers...)
	h = append(h,
		kafka.Header{Key: "dlq.original_topic", Value: []byte(d.Message.Topic)},
		kafka.Header{Key: "dlq.original_partition", Value: []byte(strconv.Itoa(d.Message.Partition))},
		kafka.Header{Key: "dlq.original_offset", Value: []byte(strconv.FormatInt(d.Message.Offset, 10))},
		kafka.Header{Key: "dlq.consumer_group", Value: []byte(d.Group)},
		kafka.Header{Key: "dlq.attempts", Value: []byte(strconv.Itoa(d.Attempts))},
		kafka.Header{Key: "dlq.failed_at", Value: []byte(failedAt.UTC().Format(time.RFC3339))},
	)
	if d.Cause != nil {
		h = append(h, kafka.Header{Key: "dlq.error", Value: []byte(d.Cause.Error())})
	}
	return h
}

// DLQProducer parks failed messages on their dead-letter topic with enough
// headers to replay them.
type DLQProducer struct {
	writer messageWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewDLQProducer creates a producer that writes synchronously, one message
// per batch.
func NewDLQProducer(brokers []string, logger *slog.Logger) *DLQProducer {
	return newDLQProducer(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              1,
		BatchTimeout:           100 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}, logger)
}

func newDLQProducer(w messageWriter, logger *slog.Logger) *DLQProducer {
	return &DLQProducer{writer: w, logger: logger, now: time.Now}
}

// Publish writes dl to DLQTopic(dl.Message.Topic), keeping the original key
// so a replay lands on the same partition.
func (d *DLQProducer) Publish(ctx context.Context, dl DeadLetter) error {
	topic := DLQTopic(dl.Message.Topic)
	log := d.logger.With(
		slog.String("dlq_topic", topic),
		slog.Int("partition", dl.Message.Partition),
		slog.Int64("offset", dl.Message.Offset),
		slog.String("consumer_group", dl.Group),
	)

	msg := kafka.Message{
		Topic:   topic,
		Key:     dl.Message.Key,
		Value:   dl.Message.Value,
		Headers: dl.headers(d.now()),
	}
	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		log.ErrorContext(ctx, "failed to publish message to DLQ", slog.String("error", err.Error()))
		return fmt.Errorf("publish to DLQ %s: %w", topic, err)
	}

	log.WarnContext(ctx, "message sent to DLQ", slog.Int("attempts", dl.Attempts))
	return nil
}

// Close flushes and closes the writer.
func (d *DLQProducer) Close() error {
	return d.writer.Close()
}
