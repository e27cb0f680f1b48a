package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxEntries bounds a MemoryStore when no capacity is configured.
const DefaultMaxEntries = 1000

// MemoryStoreConfig configures a MemoryStore.
type MemoryStoreConfig struct {
	// MaxEntries is the LRU capacity.
	// Default: 1000
	MaxEntries int

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// MemoryStore is an in-process LRU store with per-entry expiry. Expired
// entries are dropped lazily on read; capacity eviction is least recently
// used.
type MemoryStore struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(config MemoryStoreConfig) *MemoryStore {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultMaxEntries
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, memoryEntry](config.MaxEntries)
	return &MemoryStore{entries: entries, now: config.Now}
}

// Get retrieves a value. Returns (nil, false, nil) on miss or expiry.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := s.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(entry.expiresAt) {
		s.entries.Remove(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores a copy of value for ttl.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.entries.Add(key, memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
	})
	return nil
}

// Delete removes a value. Idempotent - no error on miss.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.entries.Remove(key)
	return nil
}

// Clear removes every entry.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.entries.Purge()
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close releases nothing; it lets NewStore hand out one closer for every
// backend.
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// observed.
func (s *MemoryStore) Len() int {
	return s.entries.Len()
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
