// Package cooldown tracks per-user windows during which contact notification
// is suppressed after the user reported a false alarm.
package cooldown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store starts and queries cooldown windows.
type Store interface {
	Start(ctx context.Context, userID string, d time.Duration) error
	Active(ctx context.Context, userID string) (bool, error)
}

const keyPrefix = "safety:cooldown:"

func key(userID string) string {
	return keyPrefix + userID
}

// RedisStore keeps one expiring key per user.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          0,
		DialTimeout: 5 * time.Second,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStore) Start(ctx context.Context, userID string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, key(userID), time.Now().UTC().Format(time.RFC3339), d).Err(); err != nil {
		return fmt.Errorf("failed to start cooldown: %w", err)
	}
	return nil
}

func (s *RedisStore) Active(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read cooldown: %w", err)
	}
	return n > 0, nil
}

// MemoryStore is the in-process fallback when no redis is configured.
type MemoryStore struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{until: make(map[string]time.Time), now: time.Now}
}

// WithClock replaces the time source; for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Start(_ context.Context, userID string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.until[userID] = s.now().Add(d)
	return nil
}

func (s *MemoryStore) Active(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.until[userID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(until) {
		delete(s.until, userID)
		return false, nil
	}
	return true, nil
}
