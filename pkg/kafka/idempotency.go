package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// IdempotencyStore remembers which events were handled. Keys come from
// Event.DedupKey. Implementations must be safe for concurrent use.
type IdempotencyStore interface {
	Contains(ctx context.Context, key string) (bool, error)
	Add(ctx context.Context, key string) error
}

// sweepEvery bounds how many Adds may pass between expiry sweeps.
const sweepEvery = 1024

// MemoryIdempotencyStore keeps keys in process memory. It only deduplicates
// redeliveries to the same replica and forgets everything on restart.
type MemoryIdempotencyStore struct {
	mu         sync.Mutex
	entries    map[string]time.Time
	ttl        time.Duration
	sinceSweep int
	now        func() time.Time
}

// NewMemoryIdempotencyStore creates a store whose keys expire after ttl.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Contains reports whether key was added less than ttl ago.
func (s *MemoryIdempotencyStore) Contains(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if s.now().Sub(added) > s.ttl {
		delete(s.entries, key)
		return false, nil
	}
	return true, nil
}

// Add records key. Every sweepEvery calls it also drops expired keys.
func (s *MemoryIdempotencyStore) Add(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.entries[key] = now
	s.sinceSweep++
	if s.sinceSweep >= sweepEvery {
		s.sinceSweep = 0
		for k, added := range s.entries {
			if now.Sub(added) > s.ttl {
				delete(s.entries, k)
			}
		}
	}
	return nil
}

// Len returns the number of stored keys, expired ones included.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// IdempotentHandler skips events whose DedupKey is already in store and
// records the key after inner succeeds. A failing store lookup does not block
// delivery: the event is handled and the lookup error only logged.
func IdempotentHandler(store IdempotencyStore, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		key := event.DedupKey()
		if key == "" {
			return inner(ctx, event)
		}

		seen, err := store.Contains(ctx, key)
		if err != nil {
			logger.WarnContext(ctx, "idempotency lookup failed, handling event anyway",
				slog.String("dedup_key", key),
				slog.String("error", err.Error()),
			)
			return inner(ctx, event)
		}
		if seen {
			recordConsumed(ctx, OutcomeDuplicate)
			logger.DebugContext(ctx, "skipping duplicate event",
				slog.String("dedup_key", key),
				slog.String("aggregate_id", event.AggregateID),
			)
			return nil
		}

		if err := inner(ctx, event); err != nil {
			return err
		}

		if err := store.Add(ctx, key); err != nil {
			logger.WarnContext(ctx, "failed to record handled event",
				slog.String("dedup_key", key),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
}
