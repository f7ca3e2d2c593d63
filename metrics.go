package gatewayauth

import (
	"sort"
	"sync/atomic"
	"time"
)

// MetricID names one in-process counter or histogram.
type MetricID uint16

const (
	MetricAuthSuccess MetricID = iota
	MetricAuthFailure
	MetricRateLimited
	MetricHeaderRejected
	MetricTokenRevoked
	MetricTokenInvalid
	MetricPayloadInvalid
	MetricTokenExpired
	MetricUserInactive
	MetricReplayDetected
	MetricInternalError
	MetricForbidden
	MetricTokenBlacklisted
	MetricUserStatusCacheHit
	MetricUserStatusStoreLookup
	MetricUserStatusStoreError
	// MetricUserStatusDenyByDefault counts fail-closed answers given with
	// neither store nor cache available.
	MetricUserStatusDenyByDefault
	// MetricCacheDegraded counts authentications that skipped a cache-backed
	// check.
	MetricCacheDegraded
	MetricAuthenticateLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricAuthSuccess:             "auth_success",
	MetricAuthFailure:             "auth_failure",
	MetricRateLimited:             "rate_limited",
	MetricHeaderRejected:          "header_rejected",
	MetricTokenRevoked:            "token_revoked",
	MetricTokenInvalid:            "token_invalid",
	MetricPayloadInvalid:          "payload_invalid",
	MetricTokenExpired:            "token_expired",
	MetricUserInactive:            "user_inactive",
	MetricReplayDetected:          "replay_detected",
	MetricInternalError:           "internal_error",
	MetricForbidden:               "forbidden",
	MetricTokenBlacklisted:        "token_blacklisted",
	MetricUserStatusCacheHit:      "user_status_cache_hit",
	MetricUserStatusStoreLookup:   "user_status_store_lookup",
	MetricUserStatusStoreError:    "user_status_store_error",
	MetricUserStatusDenyByDefault: "user_status_deny_by_default",
	MetricCacheDegraded:           "cache_degraded",
	MetricAuthenticateLatency:     "authenticate_latency",
}

// String returns the snake_case name of id.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// latencyBounds are the inclusive upper bounds of the finite buckets. One
// more bucket collects everything slower.
var latencyBounds = [...]time.Duration{
	250 * time.Microsecond,
	500 * time.Microsecond,
	time.Millisecond,
	2500 * time.Microsecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
}

const latencyBucketCount = len(latencyBounds) + 1

// counter sits alone on its cache line so hot counters do not contend.
type counter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics is a fixed set of lock-free counters plus the Authenticate latency
// histogram. A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled bool
	latency bool

	counters [metricIDCount]counter
	buckets  [latencyBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.latency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount || id == MetricAuthenticateLatency {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d in the histogram of id. Only
// MetricAuthenticateLatency carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricAuthenticateLatency {
		return
	}
	i := sort.Search(len(latencyBounds), func(i int) bool { return d <= latencyBounds[i] })
	m.buckets[i].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies the current values. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id != MetricAuthenticateLatency {
			s.Counters[id] = m.counters[id].Load()
		}
	}
	if m.latency {
		hist := make([]uint64, latencyBucketCount)
		for i := range hist {
			hist[i] = m.buckets[i].Load()
		}
		s.Histograms[MetricAuthenticateLatency] = hist
	}
	return s
}

// LatencyBucketBounds returns the upper bounds, in seconds, of the finite
// latency buckets in Snapshot order.
func LatencyBucketBounds() []float64 {
	out := make([]float64, len(latencyBounds))
	for i, b := range latencyBounds {
		out[i] = b.Seconds()
	}
	return out
}
