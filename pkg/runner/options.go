package runner

import (
	"log/slog"
	"time"

	"github.com/benchrig/benchrig/pkg/domain"
	"github.com/benchrig/benchrig/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed run can keep a station locked.
const DefaultLockTTL = time.Hour

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithHooks adds lifecycle hooks. Repeated calls chain the hooks in order.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Runner) {
		r.Hooks = r.Hooks.Merge(hooks)
	}
}

// WithLocker guards every run with a lock on key. A zero ttl means DefaultLockTTL.
func WithLocker(locker ports.Locker, key string, ttl time.Duration) Option {
	return func(r *Runner) {
		r.Locker = locker
		r.LockKey = key
		r.LockTTL = ttl
	}
}

// WithLockWait sets how long Run waits for a busy lock before giving up.
// The default is to try once.
func WithLockWait(d time.Duration) Option {
	return func(r *Runner) {
		r.LockWait = d
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.RunID = id
	}
}

// WithReportStore saves every finished report.
func WithReportStore(store ports.ReportStore) Option {
	return func(r *Runner) {
		r.Store = store
	}
}
