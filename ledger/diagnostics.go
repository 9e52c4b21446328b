package ledger

import "time"

// Usage summarizes one cap dimension.
type Usage struct {
	Used      int64 `json:"used"`
	Cap       int64 `json:"cap"`
	Remaining int64 `json:"remaining"`
}

// ProviderDiagnostics is the derived health summary for one provider. No
// credentials are stored in the ledger, so nothing here needs redaction.
type ProviderDiagnostics struct {
	Status  Status    `json:"status"`
	ResetAt time.Time `json:"reset_at,omitempty"`

	TotalCalls   int64   `json:"total_calls"`
	SuccessRate  float64 `json:"success_rate"`
	TimeoutRate  float64 `json:"timeout_rate"`
	Error4xxRate float64 `json:"error_4xx_rate"`
	Error5xxRate float64 `json:"error_5xx_rate"`
	QuotaRate    float64 `json:"quota_rate"`

	Daily         Usage  `json:"daily"`
	Monthly       Usage  `json:"monthly"`
	RequestsDaily *Usage `json:"requests_daily,omitempty"`
	ObjectsDaily  *Usage `json:"objects_daily,omitempty"`

	LatencyP50Ms int64 `json:"latency_p50_ms"`
	LatencyP95Ms int64 `json:"latency_p95_ms"`

	LastSuccessAt  time.Time `json:"last_success_at,omitempty"`
	LastFailureAt  time.Time `json:"last_failure_at,omitempty"`
	LastUsedAt     time.Time `json:"last_used_at,omitempty"`
	LastSkipReason string    `json:"last_skip_reason,omitempty"`
}

// Diagnostics maps provider name to its health summary.
type Diagnostics map[string]ProviderDiagnostics

func usage(used, capacity int64) Usage {
	u := Usage{Used: used, Cap: capacity}
	if capacity > 0 {
		u.Remaining = capacity - used
		if u.Remaining < 0 {
			u.Remaining = 0
		}
	}
	return u
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func (s *State) diagnostics() ProviderDiagnostics {
	total := s.Rolling.Success + s.Rolling.Timeout + s.Rolling.Error4xx + s.Rolling.Error5xx + s.Rolling.Quota

	d := ProviderDiagnostics{
		Status:         s.Status,
		ResetAt:        s.ResetAt,
		TotalCalls:     total,
		SuccessRate:    percent(s.Rolling.Success, total),
		TimeoutRate:    percent(s.Rolling.Timeout, total),
		Error4xxRate:   percent(s.Rolling.Error4xx, total),
		Error5xxRate:   percent(s.Rolling.Error5xx, total),
		QuotaRate:      percent(s.Rolling.Quota, total),
		Daily:          usage(s.DailyUsed, s.DailyCap),
		Monthly:        usage(s.MonthlyUsed, s.MonthlyCap),
		LatencyP50Ms:   s.LatencyP50,
		LatencyP95Ms:   s.LatencyP95,
		LastSuccessAt:  s.LastSuccessAt,
		LastFailureAt:  s.LastFailureAt,
		LastUsedAt:     s.LastUsedAt,
		LastSkipReason: s.LastSkipReason,
	}

	if s.dualCap() {
		rd := usage(s.RequestsDailyUsed, s.RequestsDailyCap)
		od := usage(s.ObjectsDailyUsed, s.ObjectsDailyCap)
		d.RequestsDaily = &rd
		d.ObjectsDaily = &od
	}

	return d
}

// Diagnostics returns health summaries for the named providers, or for
// every known provider when no names are given.
func (l *Ledger) Diagnostics(names ...string) Diagnostics {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(Diagnostics)
	if len(names) == 0 {
		for name, s := range l.states {
			out[name] = s.diagnostics()
		}
		return out
	}
	for _, name := range names {
		out[name] = l.get(name).diagnostics()
	}
	return out
}
