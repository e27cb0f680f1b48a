// Package cache provides response caching for AI completion calls.
//
// A Store holds raw bytes under string keys with a TTL. MemoryStore is an
// in-process LRU; RedisStore shares entries across processes. NewStore picks
// one from configuration.
//
// GenerateKey hashes canonicalized request parameters, so object key order
// never changes a key. ShouldCacheRequest and DetermineCacheTTL implement
// the eligibility and tiered TTL rules for a Request.
//
// ResponseCache layers typed get-or-generate on top of a Store. Store
// failures degrade to a miss and never fail the caller.
//
// # Concurrency
//
// Concurrent misses for one key each call their generator unless the cache
// was built WithSingleFlight, in which case they share a single call.
package cache
