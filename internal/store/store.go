// Package store implements the per-mode keyed data stores (spec §4.4): a
// generic keyed map from entity key to a normalized record, with
// merge-by-field upsert and TTL-based eviction.
//
// Grounded on the teacher's keyed in-memory map style (internal/queue's
// map[string]... shape, generalized here into a type-safe store with an
// actual eviction policy). Each store guards a plain map with its own
// sync.RWMutex; unlike the device arbiter it does not use xsync.Map.
package store

import (
	"sync"
	"time"

	"github.com/mitchellh/hashstructure/v2"
)

// Record is anything with a last-seen timestamp the store can track for
// eviction purposes. Mode-specific record types embed or implement this.
type Record interface {
	LastSeen() time.Time
}

// MergeFunc overlays partial (the newly parsed record) onto existing (the
// prior record for this key, or the zero value if none existed), returning
// the merged record. New non-nil/non-zero fields win; fields the new record
// omits are carried over from existing. Implementations also stamp
// last_seen = now.
type MergeFunc[T Record] func(existing T, partial T, now time.Time) T

// Store is a keyed, TTL-evicting, concurrency-safe map of normalized
// records for one decoder mode.
type Store[T Record] struct {
	ttl   time.Duration
	merge MergeFunc[T]

	mu      sync.RWMutex
	entries map[string]T
}

// New builds a Store with the given TTL and merge rule.
func New[T Record](ttl time.Duration, merge MergeFunc[T]) *Store[T] {
	return &Store[T]{
		ttl:     ttl,
		merge:   merge,
		entries: make(map[string]T),
	}
}

// Upsert merges partial into the existing record for key (if any) and
// stores the result, per spec §4.4 "merge by field, update last_seen".
func (s *Store[T]) Upsert(key string, partial T, now time.Time) T {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.entries[key]
	merged := s.merge(existing, partial, now)
	s.entries[key] = merged
	return merged
}

// UpsertChanged behaves like Upsert but additionally reports whether the
// merged record differs from what was already stored for key, comparing a
// stable structural hash rather than every field by hand. Modes use this to
// skip re-publishing a bus event when a decoder re-reports an unchanged
// record (e.g. airodump-ng rewriting its CSV with a beacon that carries no
// new information).
func (s *Store[T]) UpsertChanged(key string, partial T, now time.Time) (merged T, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, hadExisting := s.entries[key]
	merged = s.merge(existing, partial, now)
	s.entries[key] = merged

	if !hadExisting {
		return merged, true
	}
	before, errBefore := hashstructure.Hash(existing, hashstructure.FormatV2, nil)
	after, errAfter := hashstructure.Hash(merged, hashstructure.FormatV2, nil)
	if errBefore != nil || errAfter != nil {
		// Hashing failed (shouldn't happen for plain data structs); treat as
		// changed so we never silently drop a legitimate update.
		return merged, true
	}
	return merged, before != after
}

// Get returns the record for key and whether it exists.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

// Snapshot returns a stable, point-in-time copy of every record in the
// store, in no particular order.
func (s *Store[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.entries))
	for _, v := range s.entries {
		out = append(out, v)
	}
	return out
}

// Len reports the current entry count.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// EvictExpired deletes every entry whose age exceeds the store's TTL,
// measured against now. It runs under the same lock as Upsert so eviction
// never interleaves destructively with a concurrent merge (spec §4.4
// invariant). Returns the number of entries evicted.
func (s *Store[T]) EvictExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for key, rec := range s.entries {
		if now.Sub(rec.LastSeen()) > s.ttl {
			delete(s.entries, key)
			evicted++
		}
	}
	return evicted
}

// Clear removes every entry. Stores outlive any one decoder instance (spec
// §3 "ownership"), so neither stop nor kill-all calls Clear: records left by
// a stopped instance stay until TTL eviction removes them.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]T)
}
