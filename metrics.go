package hubauth

import (
	"sync/atomic"
	"time"

	"github.com/wellbuilt/hubauth/entitlement"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginConnectionError
	MetricRegistrationSubmitted
	MetricRegistrationConflict
	MetricRegistrationApproved
	MetricRegistrationRejected
	MetricRegistrationCancelled
	MetricRegistrationConnectionError
	MetricSessionCreated
	MetricSessionRevoked
	MetricSessionKeptOffline
	MetricLogout
	MetricEntitlementCacheHit
	MetricEntitlementFetched
	MetricEntitlementFallback
	MetricEntitlementUnavailable
	// MetricDirectoryLatency is the only histogram: round trips to the
	// driver tree and document store.
	MetricDirectoryLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter keeps each counter on its own cache line.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter, plus the
// latency buckets when histograms are enabled.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates counters per cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the latency histogram. Other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricDirectoryLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricDirectoryLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricDirectoryLatency].buckets[i])
		}
		s.Histograms[MetricDirectoryLatency] = buckets
	}

	return s
}

// observeLookup counts one entitlement resolution by outcome.
func (m *Metrics) observeLookup(o entitlement.Outcome) {
	switch o {
	case entitlement.OutcomeCacheHit:
		m.Inc(MetricEntitlementCacheHit)
	case entitlement.OutcomeFetched:
		m.Inc(MetricEntitlementFetched)
	case entitlement.OutcomeFallback:
		m.Inc(MetricEntitlementFallback)
	case entitlement.OutcomeUnavailable:
		m.Inc(MetricEntitlementUnavailable)
	}
}

// bucketIndex maps a round trip onto 50ms, 100ms, 250ms, 500ms, 1s,
// 2.5s, 5s and +Inf upper bounds.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 50:
		return 0
	case ms <= 100:
		return 1
	case ms <= 250:
		return 2
	case ms <= 500:
		return 3
	case ms <= 1000:
		return 4
	case ms <= 2500:
		return 5
	case ms <= 5000:
		return 6
	default:
		return 7
	}
}
