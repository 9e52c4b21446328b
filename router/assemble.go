package router

import "github.com/polyquery/metasearch/provider"

// assemble truncates the deduplicated list to the requested limit.
// Missing optional fields keep their zero values; nothing is synthesized.
func assemble(results []provider.Result, dropped, limit int) *Response {
	totalUnique := len(results)
	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []provider.Result{}
	}

	return &Response{
		Results:      results,
		TotalUnique:  totalUnique,
		DedupedCount: dropped,
	}
}
