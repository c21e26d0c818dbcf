// Package cmap provides a sharded concurrent map keyed by strings.
//
// Keys are spread over shards with murmur3 so unrelated keys rarely share
// a lock:
//
//   - Sharding: power-of-two shard count, per-shard RWMutex
//   - Drain: remove and return every item, used to flush staged writes
//
// Usage:
//
//	m := cmap.New[[]byte]()
//	m.Set("ns/", image)
//	val, ok := m.Get("ns/")
//
// All operations are safe for concurrent use. Multi-shard operations
// (Range, Count, Drain) visit shards one at a time and are not a
// consistent snapshot when writers run concurrently.
package cmap
