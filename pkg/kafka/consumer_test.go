package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func consumerWith(h Handler) *Consumer {
	return &Consumer{handler: h, logger: testLogger(), topic: "t", group: "g"}
}

func TestConsumer_HandleRetriesThenSucceeds(t *testing.T) {
	calls := 0
	c := consumerWith(func(context.Context, *Event) error {
		calls++
		if calls < 2 {
			return errors.New("could not obtain lock")
		}
		return nil
	})

	attempts, err := c.handle(context.Background(), testEvent("e1"), kafka.Message{})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestConsumer_HandleGivesUp(t *testing.T) {
	calls := 0
	c := consumerWith(func(context.Context, *Event) error {
		calls++
		return errors.New("db down")
	})

	attempts, err := c.handle(context.Background(), testEvent("e1"), kafka.Message{})

	require.Error(t, err)
	assert.Equal(t, maxHandlerRetries, attempts)
	assert.Equal(t, maxHandlerRetries, calls)
}

func TestConsumer_HandleDoesNotRetryInvalidPayload(t *testing.T) {
	calls := 0
	c := consumerWith(func(context.Context, *Event) error {
		calls++
		return fmt.Errorf("decode data: %w", ErrInvalidEnvelope)
	})

	attempts, err := c.handle(context.Background(), testEvent("e1"), kafka.Message{})

	require.ErrorIs(t, err, ErrInvalidEnvelope)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestConsumer_HandleStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := consumerWith(func(context.Context, *Event) error {
		cancel()
		return errors.New("interrupted")
	})

	attempts, err := c.handle(ctx, testEvent("e1"), kafka.Message{})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
