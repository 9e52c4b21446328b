// Package ledger tracks per-provider health, quota usage and latency, and
// implements the circuit breaker that gates whether a provider is called.
package ledger

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/polyquery/metasearch/kv"
)

const (
	// DefaultMaxFailures is how many timeouts/5xx inside the failure
	// window trip a provider into temp-fail.
	DefaultMaxFailures = 3

	// DefaultFailureWindow bounds how long a timeout/5xx counts toward
	// tripping the breaker.
	DefaultFailureWindow = 10 * time.Minute

	// DefaultTempFailCooldown is how long a tripped provider stays out of
	// rotation before the next health check restores it.
	DefaultTempFailCooldown = 5 * time.Minute

	// DefaultQuotaReset is used when a provider signals quota exhaustion
	// without a reset hint.
	DefaultQuotaReset = time.Hour

	snapshotPrefix = "ledger:"
	snapshotTTL    = 48 * time.Hour
)

// Ledger holds the state records for all providers. A single mutex guards
// the map; critical sections are limited to counter and status updates, so
// concurrent group chains sharing a provider serialize cleanly.
type Ledger struct {
	mu     sync.Mutex
	states map[string]*State
	store  kv.Store // nil means in-memory-only operation

	maxFailures      int
	failureWindow    time.Duration
	tempFailCooldown time.Duration
	quotaReset       time.Duration
}

// New creates a ledger backed by the given store. A nil store degrades to
// in-memory-only operation.
func New(store kv.Store) *Ledger {
	return &Ledger{
		states:           make(map[string]*State),
		store:            store,
		maxFailures:      DefaultMaxFailures,
		failureWindow:    DefaultFailureWindow,
		tempFailCooldown: DefaultTempFailCooldown,
		quotaReset:       DefaultQuotaReset,
	}
}

// get returns the live state for name, creating the default lazily.
// Callers must hold l.mu.
func (l *Ledger) get(name string) *State {
	s, ok := l.states[name]
	if !ok {
		s = newState()
		l.states[name] = s
	}
	return s
}

// State returns a copy of the provider's current state, creating the
// default record if the provider has never been seen. Never errors.
func (l *Ledger) State(name string) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(name).clone()
}

// IsHealthy reports whether the provider may be called. When a gated
// provider's reset time has passed, the check restores it to OK as a side
// effect; this lazy check is the only recovery path.
func (l *Ledger) IsHealthy(name string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.get(name)
	if s.Status == StatusOK {
		return true
	}
	if !s.ResetAt.IsZero() && !now.Before(s.ResetAt) {
		log.WithField("provider", name).Infof("provider recovered from %s", s.Status)
		s.Status = StatusOK
		s.ResetAt = time.Time{}
		return true
	}
	return false
}

// RecordSuccess marks a successful call: status back to OK, latency sample
// recorded, success counter bumped.
func (l *Ledger) RecordSuccess(name string, latency time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.get(name)
	now := time.Now()
	s.Status = StatusOK
	s.ResetAt = time.Time{}
	s.Rolling.Success++
	s.LastSuccessAt = now
	s.LastUsedAt = now
	if latency > 0 {
		s.addLatencySample(latency.Milliseconds())
	}
}

// RecordTimeout counts a timed-out call and evaluates the breaker.
func (l *Ledger) RecordTimeout(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.get(name)
	s.Rolling.Timeout++
	l.recordBreakerFailure(name, s, time.Now())
}

// RecordError counts a failed call. Only 5xx errors count toward tripping
// the breaker; 4xx never promotes.
func (l *Ledger) RecordError(name string, kind ErrorKind) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.get(name)
	now := time.Now()
	switch kind {
	case Error4xx:
		s.Rolling.Error4xx++
		s.LastFailureAt = now
		s.LastUsedAt = now
	case Error5xx:
		s.Rolling.Error5xx++
		l.recordBreakerFailure(name, s, now)
	}
}

// recordBreakerFailure adds a window entry and promotes to temp-fail once
// the windowed failure count reaches the threshold. Caller holds l.mu.
func (l *Ledger) recordBreakerFailure(name string, s *State, now time.Time) {
	s.LastFailureAt = now
	s.LastUsedAt = now
	s.pruneFailures(now, l.failureWindow)
	s.RecentFailures = append(s.RecentFailures, now)

	if s.Status == StatusOK && len(s.RecentFailures) >= l.maxFailures {
		s.Status = StatusTempFail
		s.ResetAt = now.Add(l.tempFailCooldown)
		log.WithFields(log.Fields{
			"provider": name,
			"failures": len(s.RecentFailures),
			"reset_at": s.ResetAt.Format(time.RFC3339),
		}).Warn("circuit breaker tripped")
	}
}

// MarkQuotaExceeded gates the provider until resetAt, or for the default
// quota cooldown when the provider gave no hint.
func (l *Ledger) MarkQuotaExceeded(name string, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.get(name)
	now := time.Now()
	if resetAt.IsZero() {
		resetAt = now.Add(l.quotaReset)
	}
	s.Status = StatusQuotaExceeded
	s.ResetAt = resetAt
	s.Rolling.Quota++
	s.LastFailureAt = now
	s.LastUsedAt = now
	log.WithFields(log.Fields{
		"provider": name,
		"reset_at": resetAt.Format(time.RFC3339),
	}).Warn("provider quota exceeded")
}

// RecordSkip notes why the executor bypassed the provider.
func (l *Ledger) RecordSkip(name, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.get(name).LastSkipReason = reason
}

// IncrementDailyUsed bumps the single-dimension daily usage counter.
func (l *Ledger) IncrementDailyUsed(name string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.get(name).DailyUsed += amount
}

// IncrementMonthlyUsed bumps the monthly usage counter.
func (l *Ledger) IncrementMonthlyUsed(name string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.get(name).MonthlyUsed += amount
}

// IncrementRequestsDailyUsed bumps the per-call dimension of a dual-cap
// provider.
func (l *Ledger) IncrementRequestsDailyUsed(name string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.get(name).RequestsDailyUsed += amount
}

// IncrementObjectsDailyUsed bumps the per-item dimension of a dual-cap
// provider.
func (l *Ledger) IncrementObjectsDailyUsed(name string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.get(name).ObjectsDailyUsed += amount
}

// SetDailyCap configures the daily cap. Zero means uncapped.
func (l *Ledger) SetDailyCap(name string, value int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.get(name).DailyCap = value
}

// SetMonthlyCap configures the monthly cap. Zero means uncapped.
func (l *Ledger) SetMonthlyCap(name string, value int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.get(name).MonthlyCap = value
}

// SetRequestsDailyCap configures the per-call daily cap. A non-zero value
// marks the provider as dual-cap.
func (l *Ledger) SetRequestsDailyCap(name string, value int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.get(name).RequestsDailyCap = value
}

// SetObjectsDailyCap configures the per-item daily cap.
func (l *Ledger) SetObjectsDailyCap(name string, value int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.get(name).ObjectsDailyCap = value
}

// LoadSnapshot restores provider states from the backing store. It is
// best-effort: a nil store or unreadable entries leave the in-memory state
// untouched.
func (l *Ledger) LoadSnapshot(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	keys, err := l.store.List(ctx, snapshotPrefix)
	if err != nil {
		return err
	}

	for _, key := range keys {
		value, ok, err := l.store.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		var s State
		if err := json.Unmarshal([]byte(value), &s); err != nil {
			log.WithField("key", key).Warnf("discarding unreadable ledger snapshot: %v", err)
			continue
		}
		name := strings.TrimPrefix(key, snapshotPrefix)
		l.mu.Lock()
		// Caps are owned by the routing config, not the snapshot: keep
		// whatever is configured in memory so a cap change still takes
		// effect after a restart.
		cur := l.get(name)
		s.DailyCap = cur.DailyCap
		s.MonthlyCap = cur.MonthlyCap
		s.RequestsDailyCap = cur.RequestsDailyCap
		s.ObjectsDailyCap = cur.ObjectsDailyCap
		l.states[name] = &s
		l.mu.Unlock()
	}
	return nil
}

// SaveSnapshot writes all provider states to the backing store. Last
// writer wins across overlapping requests.
func (l *Ledger) SaveSnapshot(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	l.mu.Lock()
	snapshot := make(map[string]State, len(l.states))
	for name, s := range l.states {
		snapshot[name] = s.clone()
	}
	l.mu.Unlock()

	for name, s := range snapshot {
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		if err := l.store.Put(ctx, snapshotPrefix+name, string(data), snapshotTTL); err != nil {
			return err
		}
	}
	return nil
}
