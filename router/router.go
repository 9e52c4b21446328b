// Package router composes the quota allocator, chain executor,
// deduplicator and assembler into the search fan-out engine.
package router

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/polyquery/metasearch/config"
	"github.com/polyquery/metasearch/ledger"
	"github.com/polyquery/metasearch/provider"
)

// Registry resolves provider identifiers to configured providers.
type Registry interface {
	Get(name string) (provider.Provider, bool)
}

// Router fans a request out across routing groups, respecting the ledger,
// and merges the results.
type Router struct {
	registry Registry
	ledger   *ledger.Ledger
	routing  *config.Routing
}

// New creates a router over the given providers, ledger and routing table.
func New(registry Registry, led *ledger.Ledger, routing *config.Routing) *Router {
	return &Router{
		registry: registry,
		ledger:   led,
		routing:  routing,
	}
}

// Search runs the full aggregation flow: snapshot load, quota allocation,
// concurrent group execution, merge, dedupe, truncate, snapshot save.
// Provider failures degrade to empty contributions; only an orchestration
// failure surfaces as an error.
func (r *Router) Search(ctx context.Context, req Request) (*Response, error) {
	req = r.normalize(req)

	if err := r.ledger.LoadSnapshot(ctx); err != nil {
		log.Warnf("ledger snapshot load failed, continuing with in-memory state: %v", err)
	}

	weights := r.resolveWeights(req)
	quotas := Allocate(weights, req.Limit)

	type groupOutcome struct {
		index   int
		results []provider.Result
		trace   GroupTrace
	}

	outcomes := make(chan groupOutcome, len(weights))
	var wg sync.WaitGroup

	launched := 0
	for i, w := range weights {
		group, ok := r.groupFor(w.Group, req)
		if !ok {
			continue
		}
		quota := quotas[w.Group]
		if quota == 0 {
			continue
		}

		wg.Add(1)
		launched++
		go func(idx int, g config.Group, q int) {
			defer wg.Done()
			res, trace := r.runGroup(ctx, g, req, q)
			outcomes <- groupOutcome{index: idx, results: res, trace: trace}
		}(i, group, quota)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	ordered := make([]groupOutcome, len(weights))
	for o := range outcomes {
		ordered[o.index] = o
	}

	var merged []provider.Result
	traces := make([]GroupTrace, 0, launched)
	for _, o := range ordered {
		if o.trace.Group == "" {
			continue
		}
		merged = append(merged, o.results...)
		traces = append(traces, o.trace)
	}

	deduped, dropped := Dedupe(merged)
	resp := assemble(deduped, dropped, req.Limit)

	if req.Debug {
		resp.Debug = &DebugInfo{
			RequestID: uuid.New().String(),
			Groups:    traces,
			Ledger:    r.ledger.Diagnostics(),
		}
	}

	if err := r.ledger.SaveSnapshot(ctx); err != nil {
		log.Warnf("ledger snapshot save failed: %v", err)
	}

	log.WithFields(log.Fields{
		"query_len": len(req.Query),
		"mode":      req.Mode,
		"groups":    launched,
		"unique":    resp.TotalUnique,
		"deduped":   resp.DedupedCount,
	}).Info("search completed")

	return resp, nil
}

// normalize applies limit defaults and clamps against the configured
// bounds. The API layer validates; this keeps the router safe on its own.
func (r *Router) normalize(req Request) Request {
	if req.Limit == 0 {
		req.Limit = r.routing.DefaultLimit
	}
	if req.Limit < r.routing.MinLimit {
		req.Limit = r.routing.MinLimit
	}
	if req.Limit > r.routing.MaxLimit {
		req.Limit = r.routing.MaxLimit
	}
	if req.Mode == "" {
		req.Mode = r.routing.DefaultMode
	}
	if req.Freshness == "" {
		req.Freshness = provider.FreshnessWeek
	}
	return req
}

// resolveWeights picks the mode's group weights, or a synthetic
// single-provider group when the request overrides routing.
func (r *Router) resolveWeights(req Request) []config.GroupWeight {
	if req.Provider != "" {
		return []config.GroupWeight{{Group: req.Provider, Weight: 1.0}}
	}
	return r.routing.ModeWeights(req.Mode)
}

// groupFor resolves a weight entry to its chain. Under a provider
// override the chain is a single step naming the override.
func (r *Router) groupFor(name string, req Request) (config.Group, bool) {
	if req.Provider != "" {
		return config.Group{
			Name:  req.Provider,
			Chain: []config.Step{{Provider: req.Provider}},
		}, true
	}
	return r.routing.GroupByName(name)
}
