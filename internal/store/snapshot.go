package store

import (
	"fmt"
	"os"
	"time"

	"github.com/tinylib/msgp/msgp"
)

// ToMapFunc flattens a record into a map of msgpack-safe plain values
// (string, int64, float64, bool, or nil — never time.Time or a pointer)
// suitable for compact wire encoding.
type ToMapFunc[T Record] func(T) map[string]interface{}

// FromMapFunc rebuilds a record from the flattened map a ToMapFunc produced.
type FromMapFunc[T Record] func(map[string]interface{}) T

// KeyFunc recovers a record's store key, mirroring whatever key the mode
// passes to Upsert/UpsertChanged.
type KeyFunc[T Record] func(T) string

// SaveSnapshot writes every live entry to path as a msgpack array of maps
// (spec supplement "snapshot warm-start"): a crash-restart convenience, not
// a history sink — the in-memory store remains the sole authoritative state
// for as long as the process runs.
func (s *Store[T]) SaveSnapshot(path string, toMap ToMapFunc[T]) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	defer f.Close()

	w := msgp.NewWriter(f)
	records := s.Snapshot()
	if err := w.WriteArrayHeader(uint32(len(records))); err != nil {
		return fmt.Errorf("writing snapshot header: %w", err)
	}
	for _, rec := range records {
		if err := w.WriteMapStrIntf(toMap(rec)); err != nil {
			return fmt.Errorf("writing snapshot entry: %w", err)
		}
	}
	return w.Flush()
}

// LoadSnapshot hydrates the store from a file SaveSnapshot previously wrote,
// discarding any entry already older than maxAge so a stale snapshot from a
// long-stopped process never masquerades as live data. Missing path is a
// no-op, not an error: a fresh install has no snapshot yet. Returns the
// number of entries actually hydrated.
func (s *Store[T]) LoadSnapshot(path string, fromMap FromMapFunc[T], key KeyFunc[T], maxAge time.Duration, now time.Time) (int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("opening snapshot file: %w", err)
	}
	defer f.Close()

	r := msgp.NewReader(f)
	n, err := r.ReadArrayHeader()
	if err != nil {
		return 0, fmt.Errorf("reading snapshot header: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := 0
	for i := uint32(0); i < n; i++ {
		raw, err := r.ReadMapStrIntf(nil)
		if err != nil {
			return loaded, fmt.Errorf("reading snapshot entry %d: %w", i, err)
		}
		rec := fromMap(raw)
		if now.Sub(rec.LastSeen()) > maxAge {
			continue
		}
		s.entries[key(rec)] = rec
		loaded++
	}
	return loaded, nil
}
