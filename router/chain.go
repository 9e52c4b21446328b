package router

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/polyquery/metasearch/config"
	"github.com/polyquery/metasearch/ledger"
	"github.com/polyquery/metasearch/provider"
)

// skip reasons recorded in the ledger and trace
const (
	skipUnconfigured     = "unconfigured"
	skipUnhealthy        = "unhealthy"
	skipDailyCap         = "daily_cap"
	skipRequestsDailyCap = "requests_daily_cap"
	skipMonthlyCap       = "monthly_cap"
)

// runGroup walks the group's chain until its quota is filled or the chain
// is exhausted. A provider failure never aborts the group; the executor
// simply moves on to the next step.
func (r *Router) runGroup(ctx context.Context, g config.Group, req Request, quota int) ([]provider.Result, GroupTrace) {
	trace := GroupTrace{Group: g.Name, Requested: quota}
	var results []provider.Result
	delivered := 0

	for _, step := range g.Chain {
		if delivered >= quota {
			break
		}
		remaining := quota - delivered

		if step.IsParallel() {
			stepResults, entries := r.runParallelStep(ctx, step.Parallel, req, remaining)
			results = append(results, stepResults...)
			delivered += len(stepResults)
			trace.Steps = append(trace.Steps, entries...)
			continue
		}

		stepResults, entry := r.attemptProvider(ctx, step.Provider, req, remaining)
		results = append(results, stepResults...)
		delivered += len(stepResults)
		trace.Steps = append(trace.Steps, entry)
	}

	trace.Delivered = delivered
	return results, trace
}

// runParallelStep invokes all member providers concurrently, each subject
// to the same per-provider checks, and flattens their results in member
// declaration order.
func (r *Router) runParallelStep(ctx context.Context, members []string, req Request, remaining int) ([]provider.Result, []TraceEntry) {
	type memberOutcome struct {
		index   int
		results []provider.Result
		entry   TraceEntry
	}

	outcomes := make(chan memberOutcome, len(members))
	var wg sync.WaitGroup

	for i, name := range members {
		wg.Add(1)
		go func(idx int, providerName string) {
			defer wg.Done()
			res, entry := r.attemptProvider(ctx, providerName, req, remaining)
			outcomes <- memberOutcome{index: idx, results: res, entry: entry}
		}(i, name)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	ordered := make([]memberOutcome, len(members))
	for o := range outcomes {
		ordered[o.index] = o
	}

	var flattened []provider.Result
	entries := make([]TraceEntry, 0, len(members))
	for _, o := range ordered {
		flattened = append(flattened, o.results...)
		entries = append(entries, o.entry)
	}
	return flattened, entries
}

// attemptProvider runs the full per-provider gauntlet: configuration
// check, health check, cap checks, then the actual search call with
// outcome accounting.
func (r *Router) attemptProvider(ctx context.Context, name string, req Request, remaining int) ([]provider.Result, TraceEntry) {
	entry := TraceEntry{Provider: name}

	p, ok := r.registry.Get(name)
	if !ok {
		// Unconfigured providers never touch the ledger.
		entry.Status = StepSkipped
		entry.Reason = skipUnconfigured
		return nil, entry
	}

	if !r.ledger.IsHealthy(name, time.Now()) {
		r.ledger.RecordSkip(name, skipUnhealthy)
		entry.Status = StepSkipped
		entry.Reason = skipUnhealthy
		return nil, entry
	}

	if reason := r.capExhausted(name); reason != "" {
		r.ledger.RecordSkip(name, reason)
		entry.Status = StepSkipped
		entry.Reason = reason
		return nil, entry
	}

	start := time.Now()
	results, err := p.Search(ctx, req.Query, provider.Options{
		Limit:     remaining,
		Freshness: req.Freshness,
		SafeMode:  req.SafeMode,
	})
	latency := time.Since(start)

	if err != nil {
		entry.Status = StepError
		entry.Reason = r.classifyFailure(name, err)
		log.WithFields(log.Fields{
			"provider": name,
			"reason":   entry.Reason,
		}).Warnf("provider call failed: %v", err)
		return nil, entry
	}

	r.ledger.RecordSuccess(name, latency)
	r.recordUsage(name, len(results))

	for i := range results {
		if results[i].Source == "" {
			results[i].Source = name
		}
	}

	entry.Added = len(results)
	if len(results) == 0 {
		entry.Status = StepNoResults
	} else {
		entry.Status = StepSuccess
	}
	return results, entry
}

// capExhausted checks the relevant daily dimension (requests-daily for
// dual-cap providers, plain daily otherwise) and then the monthly cap.
// Returns the skip reason, or empty if the provider has budget left.
func (r *Router) capExhausted(name string) string {
	st := r.ledger.State(name)

	if st.RequestsDailyCap > 0 {
		if st.RequestsDailyUsed >= st.RequestsDailyCap {
			return skipRequestsDailyCap
		}
	} else if st.DailyCap > 0 && st.DailyUsed >= st.DailyCap {
		return skipDailyCap
	}

	if st.MonthlyCap > 0 && st.MonthlyUsed >= st.MonthlyCap {
		return skipMonthlyCap
	}
	return ""
}

// recordUsage bumps the usage counters after a successful call.
func (r *Router) recordUsage(name string, returned int) {
	st := r.ledger.State(name)
	if st.RequestsDailyCap > 0 {
		r.ledger.IncrementRequestsDailyUsed(name, 1)
		r.ledger.IncrementObjectsDailyUsed(name, int64(returned))
	} else {
		r.ledger.IncrementDailyUsed(name, 1)
	}
	r.ledger.IncrementMonthlyUsed(name, 1)
}

// classifyFailure maps a provider error onto the matching ledger record
// and returns the trace reason.
func (r *Router) classifyFailure(name string, err error) string {
	var quotaErr *provider.QuotaError
	if errors.As(err, &quotaErr) {
		r.ledger.MarkQuotaExceeded(name, quotaErr.ResetAt)
		return "quota_" + string(quotaErr.Scope)
	}

	var httpErr *provider.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Status >= 500 {
			r.ledger.RecordError(name, ledger.Error5xx)
			return "http_5xx"
		}
		r.ledger.RecordError(name, ledger.Error4xx)
		return "http_4xx"
	}

	if isTimeout(err) {
		r.ledger.RecordTimeout(name)
		return "timeout"
	}

	// Connection resets and other transport failures count as transient
	// server-side errors.
	r.ledger.RecordError(name, ledger.Error5xx)
	return "transport"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
