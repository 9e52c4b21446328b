package api

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/polyquery/metasearch/provider"
	"github.com/polyquery/metasearch/router"
)

const (
	minQueryLen = 2
	maxQueryLen = 200
)

// ValidationError indicates invalid request parameters
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// sanitizeQuery trims and collapses internal whitespace.
func sanitizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

// validate turns a wire request into a router request, applying the
// query/freshness rules. Mode fallback and limit clamping happen in the
// router against the routing config.
func validate(req SearchRequest) (router.Request, error) {
	query := sanitizeQuery(req.Query)
	if n := utf8.RuneCountInString(query); n < minQueryLen || n > maxQueryLen {
		return router.Request{}, &ValidationError{
			Field:   "query",
			Message: fmt.Sprintf("query must be between %d and %d characters", minQueryLen, maxQueryLen),
		}
	}

	// Unrecognized freshness values degrade to the default window, the
	// same way an unknown mode falls back to the default mode.
	freshness := provider.FreshnessWeek
	switch req.Freshness {
	case string(provider.FreshnessAny), string(provider.FreshnessDay),
		string(provider.FreshnessWeek), string(provider.FreshnessMonth):
		freshness = provider.Freshness(req.Freshness)
	}

	return router.Request{
		Query:     query,
		Mode:      req.Mode,
		Limit:     req.Limit,
		Freshness: freshness,
		SafeMode:  req.SafeMode,
		Provider:  req.Provider,
		Debug:     req.Debug,
	}, nil
}
