package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct {
	err   error
	calls int
}

func (s *stubPublisher) Publish(_ context.Context, _ string, _ *Event) error {
	s.calls++
	return s.err
}

func TestBreakerPublisher_PassesThrough(t *testing.T) {
	next := &stubPublisher{}
	p := NewBreakerPublisher(next, DefaultBreakerConfig("test-pass"), testLogger())

	require.NoError(t, p.Publish(context.Background(), "topic", testEvent("evt-1")))
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, gobreaker.StateClosed, p.State())
}

func TestBreakerPublisher_OpensAfterFailures(t *testing.T) {
	next := &stubPublisher{err: errors.New("broker down")}
	cfg := DefaultBreakerConfig("test-open")
	cfg.MinRequests = 3
	cfg.Timeout = time.Minute
	p := NewBreakerPublisher(next, cfg, testLogger())

	for i := 0; i < 3; i++ {
		err := p.Publish(context.Background(), "topic", testEvent("evt"))
		assert.EqualError(t, err, "broker down")
	}
	assert.Equal(t, gobreaker.StateOpen, p.State())

	err := p.Publish(context.Background(), "topic", testEvent("evt"))
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, 3, next.calls)
}
