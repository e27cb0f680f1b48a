package cache

import (
	"fmt"
	"io"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// StoreConfig selects and configures a Store.
type StoreConfig struct {
	// Backend is "memory" or "redis".
	// Default: memory
	Backend string `yaml:"backend"`

	// MaxEntries is the memory store capacity.
	MaxEntries int `yaml:"max_entries"`

	Redis RedisStoreConfig `yaml:"redis"`
}

// NewStore builds the Store named by config.Backend. The returned closer
// releases any connection the store opened.
func NewStore(config StoreConfig) (Store, io.Closer, error) {
	switch config.Backend {
	case BackendMemory, "":
		s := NewMemoryStore(MemoryStoreConfig{MaxEntries: config.MaxEntries})
		return s, s, nil
	case BackendRedis:
		s, err := NewRedisStore(config.Redis)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, config.Backend)
	}
}
