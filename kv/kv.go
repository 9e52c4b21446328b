// Package kv provides the key-value store backing the provider ledger's
// snapshots. The ledger treats the store as best-effort: a missing or
// failing store degrades the service to in-memory-only operation.
package kv

import (
	"context"
	"time"
)

// Store is a minimal key-value abstraction. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns the value for key. The boolean reports whether the key
	// exists (and has not expired).
	Get(ctx context.Context, key string) (string, bool, error)

	// Put stores value under key. A zero ttl means the entry never expires.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// List returns all live keys with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	Close() error
}
