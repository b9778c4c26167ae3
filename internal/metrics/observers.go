package metrics

import (
	"github.com/valentinerf/valentine-rf/internal/bus"
	"github.com/valentinerf/valentine-rf/internal/store"
)

// BusObserver adapts a Metrics bundle to bus.Observer, so each mode's Bus
// can report ring drops, per-subscriber drops, and queue depth without the
// generic bus package importing the metrics registry itself.
type BusObserver struct {
	metrics *Metrics
}

// NewBusObserver builds a bus.Observer backed by m.
func NewBusObserver(m *Metrics) *BusObserver {
	return &BusObserver{metrics: m}
}

func (o *BusObserver) RingDropped(mode string) {
	o.metrics.BusDroppedTotal.WithLabelValues(mode).Inc()
}

func (o *BusObserver) SubscriberDropped(mode string) {
	o.metrics.SubscriberDroppedTotal.WithLabelValues(mode).Inc()
}

func (o *BusObserver) Depth(mode string, n int) {
	o.metrics.BusDepth.WithLabelValues(mode).Set(float64(n))
}

var _ bus.Observer = (*BusObserver)(nil)

// StoreObserver adapts a Metrics bundle to store.Observer, so the evictor
// can report entry counts and eviction totals per mode.
type StoreObserver struct {
	metrics *Metrics
}

// NewStoreObserver builds a store.Observer backed by m.
func NewStoreObserver(m *Metrics) *StoreObserver {
	return &StoreObserver{metrics: m}
}

func (o *StoreObserver) Evicted(name string, n int) {
	o.metrics.StoreEvictedTotal.WithLabelValues(name).Add(float64(n))
}

func (o *StoreObserver) Entries(name string, n int) {
	o.metrics.StoreEntries.WithLabelValues(name).Set(float64(n))
}

var _ store.Observer = (*StoreObserver)(nil)
