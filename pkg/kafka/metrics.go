package kafka

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded on kafka_consumer_messages_total.
const (
	OutcomeProcessed    = "processed"
	OutcomeFailed       = "failed"
	OutcomeDuplicate    = "duplicate"
	OutcomeInvalid      = "invalid"
	OutcomeDeadLettered = "dead_lettered"
)

// Outcomes recorded on kafka_producer_messages_total.
const (
	OutcomePublished = "published"
	OutcomeError     = "error"
)

// Stock handlers hold row locks for the length of a transaction, so the
// buckets reach past the default lock timeout.
var handlerBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

var (
	// ConsumerMessagesReceived counts messages fetched from the broker.
	ConsumerMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_messages_received_total",
			Help: "Total number of Kafka messages fetched from the broker",
		},
		[]string{"topic", "consumer_group"},
	)

	// ConsumerMessages counts handled messages by outcome.
	ConsumerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_messages_total",
			Help: "Total number of Kafka messages handled, by outcome",
		},
		[]string{"topic", "consumer_group", "outcome"},
	)

	// ConsumerProcessingDuration observes handler time including retries.
	ConsumerProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_consumer_processing_duration_seconds",
			Help:    "Duration of Kafka message handling in seconds, retries included",
			Buckets: handlerBuckets,
		},
		[]string{"topic", "consumer_group"},
	)

	// ProducerMessages counts publish attempts by outcome.
	ProducerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_messages_total",
			Help: "Total number of Kafka publish attempts, by outcome",
		},
		[]string{"topic", "outcome"},
	)

	// ProducerPublishDuration observes broker write time.
	ProducerPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_producer_publish_duration_seconds",
			Help:    "Duration of Kafka publish operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)

type deliveryKey struct{}

// delivery names the topic and group a handler invocation belongs to.
type delivery struct {
	topic string
	group string
}

func withDelivery(ctx context.Context, topic, group string) context.Context {
	return context.WithValue(ctx, deliveryKey{}, delivery{topic: topic, group: group})
}

// recordConsumed increments the outcome counter for the delivery in ctx.
// Calls outside a consumer are ignored.
func recordConsumed(ctx context.Context, outcome string) {
	d, ok := ctx.Value(deliveryKey{}).(delivery)
	if !ok {
		return
	}
	ConsumerMessages.WithLabelValues(d.topic, d.group, outcome).Inc()
}
