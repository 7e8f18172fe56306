// Package kinfer is the inference server's public API: wiring a
// transport, protocol engine, model lifecycle, dispatcher and backend
// together into a serving loop, plus the ambient error/metrics/config
// surface every component shares.
package kinfer

import (
	"sync/atomic"
	"time"

	"github.com/edge-infer/kinfer/internal/interfaces"
	"github.com/edge-infer/kinfer/internal/wire"
)

// LatencyBuckets defines the PROCESS-handling latency histogram buckets
// in nanoseconds, log-spaced from 1us to 10s, repurposed from per-IO to
// per-inference latency.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks ambient, non-wire operational statistics for a running
// server: frame counts, timeouts, and inference latency. Never
// serialized over the wire — the STATS message type is backend-owned
// (see StatRecord/EncodeStats below).
type Metrics struct {
	FramesRecv atomic.Uint64
	FramesSent atomic.Uint64
	Timeouts   atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
}

// NewMetrics returns a Metrics instance stamped with the current time.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// MetricsSnapshot is a point-in-time, lock-free read of Metrics.
type MetricsSnapshot struct {
	FramesRecv       uint64
	FramesSent       uint64
	Timeouts         uint64
	AvgLatencyNs     uint64
	UptimeNs         uint64
	LatencyHistogram [numLatencyBuckets]uint64
}

// Snapshot reads every counter into a MetricsSnapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		FramesRecv: m.FramesRecv.Load(),
		FramesSent: m.FramesSent.Load(),
		Timeouts:   m.Timeouts.Load(),
		UptimeNs:   uint64(time.Now().UnixNano() - m.StartTime.Load()),
	}
	if opCount := m.OpCount.Load(); opCount > 0 {
		snap.AvgLatencyNs = m.TotalLatencyNs.Load() / opCount
	}
	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	return snap
}

// Reset zeroes every counter, useful for tests.
func (m *Metrics) Reset() {
	m.FramesRecv.Store(0)
	m.FramesSent.Store(0)
	m.Timeouts.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
}

// MetricsObserver implements interfaces.Observer against a Metrics
// instance, feeding frame/timeout events into its counters.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver returns an Observer recording into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveFrameRecv(msgType uint8, payloadSize int) {
	o.metrics.FramesRecv.Add(1)
}

func (o *MetricsObserver) ObserveFrameSent(msgType uint8, payloadSize int) {
	o.metrics.FramesSent.Add(1)
}

func (o *MetricsObserver) ObserveTimeout() {
	o.metrics.Timeouts.Add(1)
}

func (o *MetricsObserver) ObserveProcessLatency(latencyNs uint64) {
	o.metrics.recordLatency(latencyNs)
}

var _ interfaces.Observer = (*MetricsObserver)(nil)

// StatRecord and StatType re-export the wire package's statistics record
// shape for callers that only need the STATS payload's public surface,
// without importing internal/wire directly.
type StatRecord = wire.StatRecord
type StatType = wire.StatType

const (
	StatDefault       = wire.StatDefault
	StatAllocation    = wire.StatAllocation
	StatInferenceTime = wire.StatInferenceTime
)

// EncodeStats concatenates the wire encoding of every record, in order —
// the dispatcher copies a backend's emitted array verbatim into the
// STATS response payload; this is exposed for callers assembling their
// own backend's GetStatistics implementation.
func EncodeStats(records []StatRecord) []byte { return wire.EncodeStats(records) }

// DecodeStats splits buf into StatRecordSize-byte records.
func DecodeStats(buf []byte) ([]StatRecord, error) { return wire.DecodeStats(buf) }
