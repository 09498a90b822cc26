package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestDefaultProducerConfig(t *testing.T) {
	brokers := []string{"broker1:9092", "broker2:9092"}
	cfg := DefaultProducerConfig(brokers)

	assert.Equal(t, brokers, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
}

func TestTopic(t *testing.T) {
	tests := []struct {
		domain string
		action string
		want   string
	}{
		{"purchasing", "stock_posted", "wholesale.purchasing.stock_posted"},
		{"purchasing", "stock_reversed", "wholesale.purchasing.stock_reversed"},
		{"inventory", "stock_adjusted", "wholesale.inventory.stock_adjusted"},
		{"sales", "order_cancelled", "wholesale.sales.order_cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.domain+"."+tt.action, func(t *testing.T) {
			assert.Equal(t, tt.want, Topic(tt.domain, tt.action))
		})
	}
}

func TestProducer_Publish(t *testing.T) {
	prevProp := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prevProp) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	w := &recordingWriter{}
	p := &Producer{writer: w, logger: testLogger()}
	topic := "test.producer.publish"
	event := testEvent("evt-1").WithCorrelationID("corr-1")
	event.Source = "purchasing-service"

	require.NoError(t, p.Publish(ctx, topic, event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, topic, msg.Topic)
	assert.Equal(t, "so-1", string(msg.Key))

	headers := headerMap(msg.Headers)
	assert.Equal(t, event.EventType, headers["event_type"])
	assert.Equal(t, "purchasing-service", headers["source"])
	assert.Equal(t, "corr-1", headers["correlation_id"])
	assert.Contains(t, headers["traceparent"], "4bf92f3577b34da6a3ce929d0e0e4736")

	decoded, err := UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", decoded.EventID)

	assert.InDelta(t, 1, testutil.ToFloat64(ProducerMessages.WithLabelValues(topic, OutcomePublished)), 0)
}

func TestProducer_PublishWithoutCorrelationID(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{writer: w, logger: testLogger()}

	require.NoError(t, p.Publish(context.Background(), "test.producer.nocorr", testEvent("evt-2")))

	require.Len(t, w.msgs, 1)
	assert.NotContains(t, headerMap(w.msgs[0].Headers), "correlation_id")
}

func TestProducer_PublishError(t *testing.T) {
	topic := "test.producer.error"
	brokerErr := errors.New("leader not available")
	p := &Producer{writer: &recordingWriter{err: brokerErr}, logger: testLogger()}

	err := p.Publish(context.Background(), topic, testEvent("evt-3"))

	require.ErrorIs(t, err, brokerErr)
	assert.Contains(t, err.Error(), topic)
	assert.InDelta(t, 1, testutil.ToFloat64(ProducerMessages.WithLabelValues(topic, OutcomeError)), 0)
}

func TestNewProducer_Close(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), testLogger())
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)

	assert.NoError(t, p.Close())
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	for _, brokers := range [][]string{nil, {}} {
		err := PingBrokers(t.Context(), brokers)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no brokers configured")
	}
}

func TestPingBrokers_Unreachable(t *testing.T) {
	err := PingBrokers(t.Context(), []string{"127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all brokers unreachable")
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
