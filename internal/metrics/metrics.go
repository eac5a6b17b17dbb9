// Package metrics exposes optional Prometheus instrumentation for the
// source layers. A nil *Recorder disables instrumentation entirely, so
// the core has no hard runtime dependency on a registry being present.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder collects counters and gauges for one or more stacked sources.
// The zero value is not usable; construct one with NewRecorder.
type Recorder struct {
	BytesRead        *prometheus.CounterVec
	StreamsOpen      prometheus.Gauge
	CompressionRatio prometheus.Histogram
}

// NewRecorder registers the metrics with reg and returns a Recorder.
// BytesRead is labeled by the layer name passed to AddBytesRead.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		BytesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zipsource",
			Name:      "bytes_read_total",
			Help:      "Bytes read from a source, labeled by layer.",
		}, []string{"layer"}),
		StreamsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zipsource",
			Name:      "streams_open",
			Help:      "Number of concurrently open stream-mode readers.",
		}),
		CompressionRatio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "zipsource",
			Name:      "compression_ratio",
			Help:      "uncompressed/compressed size once a compress stream ends.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(r.BytesRead, r.StreamsOpen, r.CompressionRatio)
	return r
}

// AddBytesRead is a no-op-safe helper: calling it on a nil Recorder is fine.
func (r *Recorder) AddBytesRead(layer string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.BytesRead.WithLabelValues(layer).Add(float64(n))
}

// StreamOpened/StreamClosed adjust the open-stream gauge; safe on nil.
func (r *Recorder) StreamOpened() {
	if r == nil {
		return
	}
	r.StreamsOpen.Inc()
}

func (r *Recorder) StreamClosed() {
	if r == nil {
		return
	}
	r.StreamsOpen.Dec()
}

// ObserveCompressionRatio records uncompressed/compressed once known; safe on nil.
func (r *Recorder) ObserveCompressionRatio(uncompressed, compressed int64) {
	if r == nil || compressed <= 0 {
		return
	}
	r.CompressionRatio.Observe(float64(uncompressed) / float64(compressed))
}
