package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benchrig/benchrig/pkg/domain"
	"github.com/benchrig/benchrig/pkg/ports"
)

// Locker implements ports.Locker within one process.
type Locker struct {
	mu    sync.Mutex
	held  map[string]lease
	token uint64
	poll  time.Duration
}

type lease struct {
	token   uint64
	expires time.Time
}

// NewLocker creates an empty in-process locker.
func NewLocker() *Locker {
	return &Locker{held: make(map[string]lease), poll: 20 * time.Millisecond}
}

// Lock acquires key, polling until ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		if unlock, ok := l.tryLock(key, ttl); ok {
			return unlock, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrRunLocked, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) tryLock(key string, ttl time.Duration) (ports.UnlockFunc, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, false
	}
	l.token++
	tok := l.token
	l.held[key] = lease{token: tok, expires: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.token == tok {
			delete(l.held, key)
		}
		return nil
	}, true
}
