package ledger

import (
	"sort"
	"time"
)

// Status is a provider's circuit-breaker state.
type Status string

const (
	StatusOK            Status = "ok"
	StatusQuotaExceeded Status = "quota_exceeded"
	StatusTempFail      Status = "temp_fail"
)

// ErrorKind classifies a provider HTTP failure.
type ErrorKind string

const (
	Error4xx ErrorKind = "4xx"
	Error5xx ErrorKind = "5xx"
)

const latencyRingCap = 100

// minimum samples before latency percentiles are derived
const latencyMinSamples = 10

// Rolling holds lifetime outcome counters for a provider. They never
// decay; they feed diagnostics rates, not the breaker.
type Rolling struct {
	Success  int64 `json:"success"`
	Timeout  int64 `json:"timeout"`
	Error4xx int64 `json:"error_4xx"`
	Error5xx int64 `json:"error_5xx"`
	Quota    int64 `json:"quota"`
}

// State is the health/quota/latency record for one provider. Fields are
// exported for snapshot serialization; all access goes through the Ledger,
// which owns the locking.
type State struct {
	Status  Status    `json:"status"`
	ResetAt time.Time `json:"reset_at"`

	DailyUsed   int64 `json:"daily_used"`
	DailyCap    int64 `json:"daily_cap"`
	MonthlyUsed int64 `json:"monthly_used"`
	MonthlyCap  int64 `json:"monthly_cap"`

	// Dual-cap counters for providers billed both per call and per
	// returned item. RequestsDailyCap > 0 marks a provider as dual-cap.
	RequestsDailyUsed int64 `json:"requests_daily_used"`
	RequestsDailyCap  int64 `json:"requests_daily_cap"`
	ObjectsDailyUsed  int64 `json:"objects_daily_used"`
	ObjectsDailyCap   int64 `json:"objects_daily_cap"`

	Rolling Rolling `json:"rolling"`

	// LatencySamples is a ring buffer of recent call latencies in
	// milliseconds; LatencyIndex is the next write position once full.
	LatencySamples []int64 `json:"latency_samples,omitempty"`
	LatencyIndex   int     `json:"latency_index,omitempty"`
	LatencyP50     int64   `json:"latency_p50_ms"`
	LatencyP95     int64   `json:"latency_p95_ms"`

	LastSuccessAt  time.Time `json:"last_success_at"`
	LastFailureAt  time.Time `json:"last_failure_at"`
	LastUsedAt     time.Time `json:"last_used_at"`
	LastSkipReason string    `json:"last_skip_reason,omitempty"`

	// RecentFailures holds timestamps of timeouts and 5xx errors inside
	// the breaker's sliding window.
	RecentFailures []time.Time `json:"recent_failures,omitempty"`
}

// newState returns the default state: healthy, zero counters.
func newState() *State {
	return &State{Status: StatusOK}
}

// dualCap reports whether this provider is billed on two daily dimensions.
func (s *State) dualCap() bool {
	return s.RequestsDailyCap > 0
}

// addLatencySample records one latency observation and rederives the
// percentiles once enough samples exist.
func (s *State) addLatencySample(ms int64) {
	if len(s.LatencySamples) < latencyRingCap {
		s.LatencySamples = append(s.LatencySamples, ms)
	} else {
		s.LatencySamples[s.LatencyIndex] = ms
		s.LatencyIndex = (s.LatencyIndex + 1) % latencyRingCap
	}

	if len(s.LatencySamples) < latencyMinSamples {
		return
	}

	sorted := make([]int64, len(s.LatencySamples))
	copy(sorted, s.LatencySamples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	s.LatencyP50 = sorted[len(sorted)*50/100]
	idx95 := len(sorted) * 95 / 100
	if idx95 >= len(sorted) {
		idx95 = len(sorted) - 1
	}
	s.LatencyP95 = sorted[idx95]
}

// pruneFailures drops window entries older than the breaker window.
func (s *State) pruneFailures(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	kept := s.RecentFailures[:0]
	for _, t := range s.RecentFailures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.RecentFailures = kept
}

// clone returns a deep copy safe to hand outside the ledger's lock.
func (s *State) clone() State {
	out := *s
	out.LatencySamples = append([]int64(nil), s.LatencySamples...)
	out.RecentFailures = append([]time.Time(nil), s.RecentFailures...)
	return out
}
