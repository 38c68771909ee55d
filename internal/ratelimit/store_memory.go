package ratelimit

import (
	"context"
	"sync"
	"time"
)

type slidingWindow struct {
	stamps []time.Time
	window time.Duration
}

// InMemoryStore keeps one sliding window per key in process memory.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
	now     func() time.Time
}

type MemoryOption func(*InMemoryStore)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		windows: make(map[string]*slidingWindow),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sw := s.windows[key]
	if sw == nil {
		sw = &slidingWindow{}
		s.windows[key] = sw
	}
	sw.window = window
	sw.stamps = append(prune(sw.stamps, now.Add(-window)), now)

	return Result{
		Allowed:   len(sw.stamps) <= limit,
		Limit:     limit,
		Remaining: max(limit-len(sw.stamps), 0),
		ResetAt:   sw.stamps[0].Add(window),
	}, nil
}

// DeleteExpired drops every key whose window holds no attempt newer than
// now and reports how many were removed.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, sw := range s.windows {
		sw.stamps = prune(sw.stamps, now.Add(-sw.window))
		if len(sw.stamps) == 0 {
			delete(s.windows, key)
			removed++
		}
	}
	return removed, nil
}

// prune drops timestamps at or before cutoff. stamps is ascending.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}
