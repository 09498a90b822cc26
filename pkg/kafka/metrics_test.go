package kafka

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordConsumed(t *testing.T) {
	ctx := withDelivery(context.Background(), "metrics-topic", "metrics-group")

	for _, outcome := range []string{OutcomeProcessed, OutcomeFailed, OutcomeInvalid, OutcomeDeadLettered} {
		c := ConsumerMessages.WithLabelValues("metrics-topic", "metrics-group", outcome)
		before := testutil.ToFloat64(c)

		recordConsumed(ctx, outcome)

		assert.Equal(t, before+1, testutil.ToFloat64(c), outcome)
	}
}

func TestRecordConsumed_OutsideConsumer(t *testing.T) {
	before := testutil.CollectAndCount(ConsumerMessages)

	recordConsumed(context.Background(), OutcomeProcessed)

	assert.Equal(t, before, testutil.CollectAndCount(ConsumerMessages))
}

func TestMetrics_Registered(t *testing.T) {
	ConsumerMessagesReceived.WithLabelValues("reg-topic", "reg-group")
	ConsumerMessages.WithLabelValues("reg-topic", "reg-group", OutcomeProcessed)
	ConsumerProcessingDuration.WithLabelValues("reg-topic", "reg-group")
	ProducerMessages.WithLabelValues("reg-topic", OutcomePublished)
	ProducerPublishDuration.WithLabelValues("reg-topic")

	families, err := prometheus.DefaultGatherer.Gather()
	assert.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"kafka_consumer_messages_received_total",
		"kafka_consumer_messages_total",
		"kafka_consumer_processing_duration_seconds",
		"kafka_producer_messages_total",
		"kafka_producer_publish_duration_seconds",
		"kafka_publish_breaker_state",
	} {
		assert.True(t, names[want], want)
	}
}
