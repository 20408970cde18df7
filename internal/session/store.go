package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store tracks revoked session ids until their tokens would have expired.
type Store interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryStore keeps revocations in process. Entries are dropped once
// expired.
type MemoryStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{revoked: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryStore) Revoke(_ context.Context, jti string, until time.Time) error {
	if jti == "" {
		return errors.New("jti is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, id)
		}
	}
	if until.After(now) {
		s.revoked[jti] = until
	}
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[jti]
	return ok && exp.After(s.now()), nil
}

// RedisStore keeps revocations in Redis with a TTL matching the token.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

type RedisStoreConfig struct {
	Client    *redis.Client
	KeyPrefix string
}

const defaultKeyPrefix = "taskdash:session:revoked:"

func NewRedisStore(cfg RedisStoreConfig) *RedisStore {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: cfg.Client, keyPrefix: prefix}
}

func (s *RedisStore) key(jti string) string {
	return s.keyPrefix + jti
}

func (s *RedisStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	if jti == "" {
		return errors.New("jti is required")
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := s.client.Get(ctx, s.key(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check session revocation: %w", err)
	}
	return true, nil
}
