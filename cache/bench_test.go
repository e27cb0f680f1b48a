package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func BenchmarkMemoryStore_Get_Hit(b *testing.B) {
	s := NewMemoryStore(MemoryStoreConfig{})
	ctx := context.Background()
	_ = s.Set(ctx, "key", []byte("value"), time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = s.Get(ctx, "key")
	}
}

func BenchmarkMemoryStore_Set(b *testing.B) {
	s := NewMemoryStore(MemoryStoreConfig{MaxEntries: 1024})
	ctx := context.Background()
	value := []byte("value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Set(ctx, fmt.Sprintf("key-%d", i%2048), value, time.Hour)
	}
}

func BenchmarkGenerateKey(b *testing.B) {
	req := Request{
		Model:       "claude",
		System:      "You are terse.",
		Messages:    []Message{{Role: RoleUser, Content: "hello"}, {Role: RoleAssistant, Content: "hi"}},
		Temperature: Temperature(0.2),
		MaxTokens:   256,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = GenerateKey(req)
	}
}

func BenchmarkResponseCache_GetOrGenerate_Hit(b *testing.B) {
	c := New[string](NewMemoryStore(MemoryStoreConfig{}))
	ctx := context.Background()
	gen := func(context.Context) (string, error) { return "v", nil }
	_, _ = c.GetOrGenerate(ctx, "ai:k", time.Hour, gen)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.GetOrGenerate(ctx, "ai:k", time.Hour, gen)
	}
}
