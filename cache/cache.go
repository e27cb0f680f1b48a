package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey     = errors.New("cache: key is invalid")
	ErrKeyTooLong     = errors.New("cache: key exceeds max length")
	ErrUnknownBackend = errors.New("cache: unknown store backend")
)

// Store is the key/value capability behind a ResponseCache. The in-process
// LRU and the Redis implementation are interchangeable.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: Get reports a miss as (nil, false, nil); errors mean the store
// itself failed.
type Store interface {
	// Get retrieves a stored value.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value for ttl. A non-positive ttl stores nothing.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error

	// Clear removes every value owned by this store.
	Clear(ctx context.Context) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
