package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultKey is the key the counter value is stored under.
const DefaultKey = "counter_value"

// Store persists the counter value.
type Store interface {
	// Load returns the stored value, or 0 if nothing was stored yet.
	Load(ctx context.Context) (int64, error)

	// Save overwrites the stored value.
	Save(ctx context.Context, value int64) error
}

// RedisStore keeps the counter value under a single Redis key.
type RedisStore struct {
	rdb goredis.Cmdable
	key string
}

// NewRedisStore creates a store. An empty key uses DefaultKey.
func NewRedisStore(rdb goredis.Cmdable, key string) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

// Load reads the value. A missing key is 0.
func (s *RedisStore) Load(ctx context.Context) (int64, error) {
	raw, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse stored counter %q: %w", raw, err)
	}
	return v, nil
}

// Save writes the value with no expiry.
func (s *RedisStore) Save(ctx context.Context, value int64) error {
	if err := s.rdb.Set(ctx, s.key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// MemoryStore keeps the value in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	value int64

	// SaveError, if set, will be returned by Save.
	SaveError error
	// LoadError, if set, will be returned by Load.
	LoadError error
}

// NewMemoryStore creates a store holding value.
func NewMemoryStore(value int64) *MemoryStore {
	return &MemoryStore{value: value}
}

// Load returns the held value.
func (s *MemoryStore) Load(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadError != nil {
		return 0, s.LoadError
	}
	return s.value, nil
}

// Save replaces the held value.
func (s *MemoryStore) Save(_ context.Context, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveError != nil {
		return s.SaveError
	}
	s.value = value
	return nil
}

// Value returns the held value without the error path.
func (s *MemoryStore) Value() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}
