package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"xpdash/pkg/platform/sentinel"
)

var loadDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "xpdash_session_load_duration_ms",
	Help:    "Latency of session token lookups in Redis in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const sessionKeyPrefix = "session:"

// RedisStore shares session tokens between dashboard instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed store. Tokens expire after ttl; a zero
// ttl keeps them until deleted.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func key(sessionID string) string {
	return sessionKeyPrefix + sessionID + ":" + TokenKey
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (string, error) {
	start := time.Now()
	defer func() {
		loadDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	token, err := s.client.Get(ctx, key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("load session token: %w: %w", sentinel.ErrUnavailable, err)
	}
	return token, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID, token string) error {
	if err := s.client.Set(ctx, key(sessionID), token, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session token: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	n, err := s.client.Del(ctx, key(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("delete session token: %w: %w", sentinel.ErrUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	return nil
}
