// Package metrics exposes Prometheus instrumentation for the decoder
// orchestration engine. Grounded on the teacher's internal/metrics
// (KV-operation counters/histograms/gauges) applied to decoder/bus/store
// concerns instead of KV-store concerns.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the process-wide instrumentation bundle.
type Metrics struct {
	MessagesReceivedTotal *prometheus.CounterVec
	MalformedRecordsTotal *prometheus.CounterVec
	BusDroppedTotal       *prometheus.CounterVec
	SubscriberDroppedTotal *prometheus.CounterVec
	BusDepth              *prometheus.GaugeVec
	ActiveDecoders        prometheus.Gauge
	StoreEntries          *prometheus.GaugeVec
	StoreEvictedTotal     *prometheus.CounterVec
	DecoderCrashesTotal   *prometheus.CounterVec
}

// New builds and registers the metrics bundle.
func New() *Metrics {
	m := &Metrics{
		MessagesReceivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "valentinerf_messages_received_total",
			Help: "Total records successfully parsed and merged per mode.",
		}, []string{"mode"}),
		MalformedRecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "valentinerf_malformed_records_total",
			Help: "Total records that failed to parse per mode.",
		}, []string{"mode"}),
		BusDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "valentinerf_bus_dropped_total",
			Help: "Total records dropped from the mode bus queue due to overflow (drop-oldest).",
		}, []string{"mode"}),
		SubscriberDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "valentinerf_subscriber_dropped_total",
			Help: "Total events dropped for a specific slow subscriber.",
		}, []string{"mode"}),
		BusDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "valentinerf_bus_depth",
			Help: "Current number of buffered records in a mode's bus queue.",
		}, []string{"mode"}),
		ActiveDecoders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "valentinerf_active_decoders",
			Help: "Number of decoder instances currently running.",
		}),
		StoreEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "valentinerf_store_entries",
			Help: "Current number of live entries in a mode's data store.",
		}, []string{"mode"}),
		StoreEvictedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "valentinerf_store_evicted_total",
			Help: "Total entries evicted from a mode's data store due to TTL expiry.",
		}, []string{"mode"}),
		DecoderCrashesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "valentinerf_decoder_crashes_total",
			Help: "Total times a decoder instance transitioned to crashed.",
		}, []string{"mode"}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	prometheus.MustRegister(
		m.MessagesReceivedTotal,
		m.MalformedRecordsTotal,
		m.BusDroppedTotal,
		m.SubscriberDroppedTotal,
		m.BusDepth,
		m.ActiveDecoders,
		m.StoreEntries,
		m.StoreEvictedTotal,
		m.DecoderCrashesTotal,
	)
}
