package router

import (
	"github.com/polyquery/metasearch/ledger"
	"github.com/polyquery/metasearch/provider"
)

// Request is a validated search request.
type Request struct {
	Query     string             `json:"query"`
	Mode      string             `json:"mode,omitempty"`
	Limit     int                `json:"limit,omitempty"`
	Freshness provider.Freshness `json:"freshness,omitempty"`
	SafeMode  bool               `json:"safe_mode,omitempty"`
	Provider  string             `json:"provider,omitempty"` // single-provider override
	Debug     bool               `json:"debug,omitempty"`
}

// StepStatus describes the outcome of one attempted chain step.
type StepStatus string

const (
	StepSuccess   StepStatus = "success"
	StepNoResults StepStatus = "no_results"
	StepError     StepStatus = "error"
	StepSkipped   StepStatus = "skipped"
)

// TraceEntry records one provider attempt within a group chain.
type TraceEntry struct {
	Provider string     `json:"provider"`
	Added    int        `json:"added"`
	Status   StepStatus `json:"status"`
	Reason   string     `json:"reason,omitempty"`
}

// GroupTrace records how a group spent its quota.
type GroupTrace struct {
	Group     string       `json:"group"`
	Requested int          `json:"requested"`
	Delivered int          `json:"delivered"`
	Steps     []TraceEntry `json:"steps"`
}

// DebugInfo is attached to a response only when the request asked for it.
type DebugInfo struct {
	RequestID string             `json:"request_id"`
	Groups    []GroupTrace       `json:"groups"`
	Ledger    ledger.Diagnostics `json:"ledger"`
}

// Response is the aggregated, deduplicated search result set.
type Response struct {
	Results      []provider.Result `json:"results"`
	TotalUnique  int               `json:"total_unique"`
	DedupedCount int               `json:"deduped_count"`
	Debug        *DebugInfo        `json:"debug,omitempty"`
}
