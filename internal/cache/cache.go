package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a cached simulation result is served.
const DefaultTTL = 60 * time.Minute

// Store is a byte-oriented result cache.
type Store interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte) error
}

// RedisStore keeps results in Redis under a shared prefix with a fixed TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps client. A zero ttl means DefaultTTL.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Get reads a cached value.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

// Set stores a value with the store's TTL.
func (s *RedisStore) Set(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.key(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Key hashes a JSON-encodable value into a stable cache key. Struct fields
// encode in declaration order, so equal values always produce equal keys.
func Key(namespace string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshaling cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return namespace + ":" + hex.EncodeToString(sum[:]), nil
}

// GetJSON decodes a cached value into dst. A nil store always misses.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	if s == nil {
		return false, nil
	}
	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("unmarshaling cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v into the store. A nil store is a no-op.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling cached %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
