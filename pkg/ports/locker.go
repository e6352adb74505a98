package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// The session manager uses it so that only one editor process at a time edits
// a given bot.
type DistributedLocker interface {
	// Lock attempts to acquire a distributed lock for the given key (a bot id).
	// It blocks until the lock is acquired or the context is canceled.
	// The lock expires after ttl unless released earlier.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
