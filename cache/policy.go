package cache

import (
	"time"
	"unicode/utf8"
)

// Tiered TTLs.
const (
	LongTTL   = 24 * time.Hour
	MediumTTL = 30 * time.Minute
	ShortTTL  = 5 * time.Minute
)

// Eligibility limits.
const (
	MaxCacheableTemperature = 0.7
	MaxCacheableInputLength = 10000
	ShortConversationLength = 3
)

// Policy configures eligibility and TTL selection.
type Policy struct {
	// MaxTemperature is the highest sampling temperature that is cached.
	// Default: 0.7
	MaxTemperature float64

	// MaxInputLength is the exclusive ceiling, in runes, on the primary input.
	// Default: 10000
	MaxInputLength int

	// LongTTL applies to template and system prompt requests.
	// Default: 24h
	LongTTL time.Duration

	// MediumTTL applies to short conversations.
	// Default: 30m
	MediumTTL time.Duration

	// ShortTTL is the fallback TTL.
	// Default: 5m
	ShortTTL time.Duration
}

// DefaultPolicy returns the default caching policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxTemperature: MaxCacheableTemperature,
		MaxInputLength: MaxCacheableInputLength,
		LongTTL:        LongTTL,
		MediumTTL:      MediumTTL,
		ShortTTL:       ShortTTL,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxTemperature <= 0 {
		p.MaxTemperature = d.MaxTemperature
	}
	if p.MaxInputLength <= 0 {
		p.MaxInputLength = d.MaxInputLength
	}
	if p.LongTTL <= 0 {
		p.LongTTL = d.LongTTL
	}
	if p.MediumTTL <= 0 {
		p.MediumTTL = d.MediumTTL
	}
	if p.ShortTTL <= 0 {
		p.ShortTTL = d.ShortTTL
	}
	return p
}

// ShouldCache reports whether req may be served from cache. Streaming
// requests, requests without an explicit low temperature and oversized
// inputs are never cached.
func (p Policy) ShouldCache(req Request) bool {
	p = p.withDefaults()
	if req.Stream {
		return false
	}
	if req.Temperature == nil || *req.Temperature > p.MaxTemperature {
		return false
	}
	return utf8.RuneCountInString(req.PrimaryInput()) < p.MaxInputLength
}

// TTL selects the tier for req.
func (p Policy) TTL(req Request) time.Duration {
	p = p.withDefaults()
	switch {
	case req.Purpose == PurposeTemplate || req.Purpose == PurposeSystemPrompt:
		return p.LongTTL
	case len(req.Messages) <= ShortConversationLength:
		return p.MediumTTL
	default:
		return p.ShortTTL
	}
}

// EffectiveTTL returns override when positive, else the short tier, clamped
// to the long tier.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	p = p.withDefaults()
	ttl := override
	if ttl <= 0 {
		ttl = p.ShortTTL
	}
	if ttl > p.LongTTL {
		ttl = p.LongTTL
	}
	return ttl
}

// ShouldCacheRequest applies the default policy's eligibility rules.
func ShouldCacheRequest(req Request) bool {
	return DefaultPolicy().ShouldCache(req)
}

// DetermineCacheTTL applies the default policy's TTL tiers.
func DetermineCacheTTL(req Request) time.Duration {
	return DefaultPolicy().TTL(req)
}
