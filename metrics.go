package shopAuth

import (
	"sync/atomic"
	"time"
)

// MetricID names one in-process counter.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterFailure
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginUnverified
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRateLimitHit
	MetricAccountLocked
	MetricSessionCreated
	MetricSessionRevoked
	MetricPasswordResetRequest
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricPasswordChangeSuccess
	MetricPasswordChangeFailure
	MetricEmailVerificationRequest
	MetricEmailVerificationSuccess
	MetricEmailVerificationFailure
	MetricLogout
	MetricLogoutAll
	MetricSuspiciousFlagged
	MetricInternalError
	MetricLoginLatency
	MetricValidateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// latencyMetrics are the ids that carry a histogram.
var latencyMetrics = [...]MetricID{MetricLoginLatency, MetricValidateLatency}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters and latency histograms.
// A nil or disabled Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters. Histogram slices
// hold non-cumulative bucket counts.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates the counter set described by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether histograms are recorded.
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

// Observe records d in the histogram id. Ids without a histogram are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if !isLatencyMetric(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, every histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, len(latencyMetrics)),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isLatencyMetric(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range latencyMetrics {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func isLatencyMetric(id MetricID) bool {
	for _, l := range latencyMetrics {
		if l == id {
			return true
		}
	}
	return false
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
