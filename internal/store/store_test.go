package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valentinerf/valentine-rf/internal/store"
)

type aircraft struct {
	ICAO     string
	Callsign string
	Altitude *int
	Seen     time.Time
}

func (a aircraft) LastSeen() time.Time { return a.Seen }

func mergeAircraft(existing, partial aircraft, now time.Time) aircraft {
	merged := existing
	if merged.ICAO == "" {
		merged.ICAO = partial.ICAO
	}
	if partial.Callsign != "" {
		merged.Callsign = partial.Callsign
	}
	if partial.Altitude != nil {
		merged.Altitude = partial.Altitude
	}
	merged.Seen = now
	return merged
}

func TestUpsertMergesByField(t *testing.T) {
	t.Parallel()
	s := store.New[aircraft](5*time.Minute, mergeAircraft)

	t0 := time.Now()
	s.Upsert("A12345", aircraft{ICAO: "A12345", Callsign: "N12345"}, t0)

	alt := 3500
	t1 := t0.Add(time.Second)
	merged := s.Upsert("A12345", aircraft{Altitude: &alt}, t1)

	assert.Equal(t, "N12345", merged.Callsign)
	assert.Equal(t, &alt, merged.Altitude)
	assert.Equal(t, t1, merged.Seen)
}

func TestGetMissing(t *testing.T) {
	t.Parallel()
	s := store.New[aircraft](time.Minute, mergeAircraft)
	_, ok := s.Get("nope")
	assert.False(t, ok)
}

func TestSnapshotIsStableCopy(t *testing.T) {
	t.Parallel()
	s := store.New[aircraft](time.Minute, mergeAircraft)
	s.Upsert("A1", aircraft{ICAO: "A1"}, time.Now())
	s.Upsert("A2", aircraft{ICAO: "A2"}, time.Now())

	snap := s.Snapshot()
	assert.Len(t, snap, 2)
}

func TestEvictExpiredRemovesOldEntriesOnly(t *testing.T) {
	t.Parallel()
	s := store.New[aircraft](time.Minute, mergeAircraft)

	t0 := time.Now()
	s.Upsert("old", aircraft{ICAO: "old"}, t0)
	s.Upsert("fresh", aircraft{ICAO: "fresh"}, t0.Add(2*time.Minute))

	evicted := s.EvictExpired(t0.Add(2*time.Minute + time.Second))
	assert.Equal(t, 1, evicted)

	_, ok := s.Get("old")
	assert.False(t, ok)
	_, ok = s.Get("fresh")
	assert.True(t, ok)
}

func TestClearEmptiesStore(t *testing.T) {
	t.Parallel()
	s := store.New[aircraft](time.Minute, mergeAircraft)
	s.Upsert("A1", aircraft{ICAO: "A1"}, time.Now())
	s.Clear()
	assert.Zero(t, s.Len())
}
