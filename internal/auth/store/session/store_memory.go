package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"xpdash/pkg/platform/sentinel"
)

type entry struct {
	token     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// InMemoryStore keeps tokens in process memory. Suitable for a single
// instance; use RedisStore when several instances share sessions.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// New returns an in-memory store. A zero ttl keeps entries until deleted.
func New(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *InMemoryStore) Load(_ context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	e, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	if e.expired(s.now()) {
		s.mu.Lock()
		// Save may have replaced the entry since the read above.
		if cur, ok := s.entries[sessionID]; ok && cur.expired(s.now()) {
			delete(s.entries, sessionID)
		}
		s.mu.Unlock()
		return "", fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	return e.token, nil
}

func (s *InMemoryStore) Save(_ context.Context, sessionID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{token: token}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	s.entries[sessionID] = e
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[sessionID]; !ok {
		return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	delete(s.entries, sessionID)
	return nil
}

// DeleteExpired removes every entry expired as of now and reports how many
// were removed.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}
