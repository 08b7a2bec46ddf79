package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock.
type UnlockFunc func(ctx context.Context) error

// Locker enforces a single active run per station.
type Locker interface {
	// Lock acquires key, trying once immediately and then polling until ctx
	// is done. If the key is still held it returns an error matching
	// domain.ErrRunLocked. The lock expires after ttl unless released.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
