package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces keys when no prefix is configured.
const DefaultRedisPrefix = "airelay"

// RedisStoreConfig configures a RedisStore.
type RedisStoreConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// Prefix namespaces every key as "<prefix>:<key>".
	// Default: "airelay"
	Prefix string `yaml:"prefix"`

	// DialTimeout bounds connection establishment.
	// Default: 5s
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// RedisStore is a distributed Store on Redis. Expiry is delegated to Redis
// key TTLs.
type RedisStore struct {
	client goredis.UniversalClient
	prefix string
	owned  bool
}

// NewRedisStore connects a new client from config.
func NewRedisStore(config RedisStoreConfig) (*RedisStore, error) {
	if config.Addr == "" {
		return nil, errors.New("cache: redis addr is required")
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        config.Addr,
		Password:    config.Password,
		DB:          config.DB,
		DialTimeout: config.DialTimeout,
	})
	s := NewRedisStoreFromClient(client, config.Prefix)
	s.owned = true
	return s, nil
}

// NewRedisStoreFromClient wraps an existing client. The caller keeps
// ownership of the client.
func NewRedisStoreFromClient(client goredis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) fullKey(key string) string {
	return s.prefix + ":" + key
}

// Get retrieves a value. A missing key is a miss, not an error.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, s.fullKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis store get %q: %w", key, err)
	}
	return raw, true, nil
}

// Set stores value with a Redis TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.fullKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis store set %q: %w", key, err)
	}
	return nil
}

// Delete removes the key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("redis store delete %q: %w", key, err)
	}
	return nil
}

// Clear deletes every key under the store's prefix. Keys outside the
// prefix are never touched.
func (s *RedisStore) Clear(ctx context.Context) error {
	var cursor uint64
	match := s.prefix + ":*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, 500).Result()
		if err != nil {
			return fmt.Errorf("redis store scan: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis store clear: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis store ping: %w", err)
	}
	return nil
}

// Close releases the client when the store created it.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
