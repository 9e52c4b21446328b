package provider

import (
	"fmt"
	"time"
)

// QuotaScope identifies which usage dimension ran out.
type QuotaScope string

const (
	QuotaDaily   QuotaScope = "daily"
	QuotaMonthly QuotaScope = "monthly"
)

// QuotaError indicates the provider rejected the call because a usage
// quota is exhausted. ResetAt is a hint from the provider and may be zero.
type QuotaError struct {
	Provider string
	Scope    QuotaScope
	ResetAt  time.Time
}

func (e *QuotaError) Error() string {
	if e.ResetAt.IsZero() {
		return fmt.Sprintf("%s: %s quota exhausted", e.Provider, e.Scope)
	}
	return fmt.Sprintf("%s: %s quota exhausted until %s", e.Provider, e.Scope, e.ResetAt.Format(time.RFC3339))
}

// HTTPError indicates a non-2xx provider response that is not a quota signal.
type HTTPError struct {
	Provider string
	Status   int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s API returned status %d", e.Provider, e.Status)
}
