package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/benchrig/benchrig/pkg/bench"
	"github.com/benchrig/benchrig/pkg/criteria"
	"github.com/benchrig/benchrig/pkg/domain"
	"github.com/benchrig/benchrig/pkg/ports"
	"github.com/benchrig/benchrig/pkg/registry"
	"github.com/benchrig/benchrig/pkg/state"
)

// Runner executes a test plan one instance at a time, applying the failure
// escalation policy and mirroring progress into the state tree.
type Runner struct {
	// Logger is used for run and case logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	// Hooks are called synchronously on the execution thread.
	Hooks domain.LifecycleHooks

	// Locker, if set, guards each run with LockKey.
	Locker   ports.Locker
	LockKey  string
	LockTTL  time.Duration
	LockWait time.Duration

	// Store, if set, receives every finished report.
	Store ports.ReportStore

	// RunID overrides the generated run identifier.
	RunID string
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.Logger == nil {
		r.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.LockTTL <= 0 {
		r.LockTTL = DefaultLockTTL
	}
	return r
}

// execution is the bookkeeping of a single Run call.
type execution struct {
	*Runner
	c      *bench.Context
	plan   *registry.Plan
	report *domain.Report
	logger *slog.Logger

	// stop is set once the remainder of the plan must be aborted.
	stop error
}

// Run executes plan against c and returns the report.
//
// Failures in non-critical cases are recorded and the run continues. A failure
// in a critical or suite-critical case aborts every remaining case and Run
// returns a *domain.CriticalAbort. Configuration and predicate errors raised
// by a body are fatal: the remaining cases are aborted and the error is
// returned as is. The report is returned in every case except when the run
// lock cannot be acquired.
func (r *Runner) Run(c *bench.Context, plan *registry.Plan) (*domain.Report, error) {
	if plan == nil {
		plan = &registry.Plan{}
	}
	runID := r.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	if r.Locker != nil {
		unlock, err := r.lock(c)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(c)); err != nil {
				r.Logger.Warn("Failed to release run lock", "key", r.LockKey, "err", err)
			}
		}()
	}

	x := &execution{
		Runner: r,
		c:      c,
		plan:   plan,
		logger: r.Logger.With("run", runID),
		report: &domain.Report{
			RunID:    runID,
			TestType: c.TestType,
			Product:  c.Product,
			Started:  time.Now(),
			Cases:    make([]domain.CaseResult, plan.Len()),
		},
	}
	for i, inst := range plan.Instances {
		x.report.Cases[i] = domain.CaseResult{
			ID:          inst.ID,
			Suite:       inst.Suite,
			Params:      slices.Clone([]domain.Param(inst.Params)),
			Criticality: inst.Criticality,
			Status:      domain.StatusPending,
		}
	}

	x.publishPlan()
	x.publishRun("running", "")
	x.logger.Info("Run started", "cases", plan.Len(), "test_type", c.TestType, "product", c.Product)
	if r.Hooks.OnRunStart != nil {
		r.Hooks.OnRunStart(c, x.runEvent(domain.EventRunStart))
	}

	for i := range plan.Instances {
		x.step(i)
	}

	return x.finish()
}

func (r *Runner) lock(ctx context.Context) (ports.UnlockFunc, error) {
	lockCtx, cancel := context.WithTimeout(ctx, r.LockWait)
	defer cancel()

	unlock, err := r.Locker.Lock(lockCtx, r.LockKey, r.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrRunLocked) {
			return nil, err
		}
		return nil, fmt.Errorf("acquire run lock %q: %w", r.LockKey, err)
	}
	r.Logger.Debug("Run lock acquired", "key", r.LockKey, "ttl", r.LockTTL)
	return unlock, nil
}

func (x *execution) step(i int) {
	inst := x.plan.Instances[i]

	if x.stop == nil && x.c.Err() != nil {
		x.halt(fmt.Errorf("run cancelled: %w", context.Cause(x.c)), "")
	}
	switch {
	case x.stop != nil:
		x.settle(i, domain.StatusAborted, nil, 0)
		return
	case inst.Skip:
		x.logger.Info("Case skipped", "suite", inst.Suite, "case", inst.ID)
		x.settle(i, domain.StatusSkipped, nil, 0)
		return
	}

	if err := x.move(i, domain.StatusRunning); err != nil {
		x.halt(err, inst.Key())
		return
	}
	x.publishRun("running", inst.Key())
	x.logger.Info("Case started", "suite", inst.Suite, "case", inst.ID, "index", i+1, "total", x.plan.Len())
	if x.Hooks.OnCaseStart != nil {
		x.Hooks.OnCaseStart(x.c, x.caseEvent(domain.EventCaseStart, i, nil, 0))
	}

	start := time.Now()
	err := x.execute(i)
	x.verdict(i, err, time.Since(start))
}

// execute runs the body of instance i with a fresh evaluator bound to
// results/<suite>/<id>/criteria.
func (x *execution) execute(i int) error {
	inst := x.plan.Instances[i]
	logger := x.logger.With("suite", inst.Suite)

	node := x.c.State.At("results").At(inst.Suite).At(inst.ID).At("criteria")
	eval := criteria.New(criteria.WithTree(node), criteria.WithLogger(logger.With("case", inst.ID)))
	if err := eval.Declare(inst.Criteria); err != nil {
		return err
	}
	defer func() {
		x.report.Cases[i].Criteria = eval.Results()
	}()

	cc := x.c.ForCase(x.c.Context, inst.ID, eval)
	cc.Logger = logger.With("case", inst.ID)

	err := invoke(cc, inst)
	if err == nil {
		if failed := eval.Failed(); len(failed) > 0 {
			err = &domain.TestFailure{Message: "failed criteria were not reported by the test case", Failed: failed}
		}
	}
	return err
}

func invoke(c *bench.Context, inst registry.Instance) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			c.Logger.Error("Test case panicked", "panic", rec, "stack", string(debug.Stack()))
			err = &domain.TestFailure{Message: fmt.Sprintf("panic: %v", rec)}
		}
	}()
	if inst.Body == nil {
		return nil
	}
	return inst.Body(c, inst.Params)
}

func (x *execution) verdict(i int, err error, d time.Duration) {
	inst := x.plan.Instances[i]
	logger := x.logger.With("suite", inst.Suite, "case", inst.ID, "duration", d)

	switch {
	case err == nil:
		logger.Info("Case passed")
		x.settle(i, domain.StatusPassed, nil, d)

	case x.c.Err() != nil:
		logger.Warn("Case interrupted", "err", err)
		x.settle(i, domain.StatusAborted, err, d)
		x.halt(fmt.Errorf("run cancelled: %w", context.Cause(x.c)), "")

	case domain.IsFatal(err):
		logger.Error("Fatal error in test case", "err", err)
		x.settle(i, domain.StatusFailed, err, d)
		x.halt(err, inst.Key())

	default:
		if errors.Is(err, domain.ErrRetryRequested) {
			logger.Error("Retry requested but not handled by the test case", "err", err)
		} else {
			logger.Warn("Case failed", "err", err)
		}
		x.settle(i, domain.StatusFailed, err, d)
		if inst.Criticality.Escalates() {
			logger.Error("Critical failure, aborting remaining cases", "criticality", inst.Criticality)
			x.halt(&domain.CriticalAbort{CaseID: inst.ID, Suite: inst.Suite, Cause: err}, inst.Key())
		}
	}
}

func (x *execution) halt(err error, key string) {
	if x.stop != nil {
		return
	}
	x.stop = err
	x.report.Abort = key
}

// move applies a validated status transition.
func (x *execution) move(i int, to domain.Status) error {
	res := &x.report.Cases[i]
	if !domain.CanTransition(res.Status, to) {
		return fmt.Errorf("case %s/%s: illegal transition %s -> %s", res.Suite, res.ID, res.Status, to)
	}
	res.Status = to
	x.c.State.Update(x.resultPath(i, "status"), string(to))
	return nil
}

func (x *execution) settle(i int, to domain.Status, err error, d time.Duration) {
	res := &x.report.Cases[i]
	if moveErr := x.move(i, to); moveErr != nil {
		x.logger.Error("Status not recorded", "err", moveErr)
		x.halt(moveErr, res.Suite+"/"+res.ID)
		return
	}
	res.Duration = d
	if err != nil {
		res.Error = err.Error()
		x.c.State.Update(x.resultPath(i, "error"), res.Error)
	}
	x.c.State.Update(x.resultPath(i, "duration"), d.Seconds())
	x.publishRun("running", "")

	if x.Hooks.OnCaseFinish != nil {
		x.Hooks.OnCaseFinish(x.c, x.caseEvent(domain.EventCaseFinish, i, err, d))
	}
}

func (x *execution) finish() (*domain.Report, error) {
	rep := x.report
	rep.Finished = time.Now()
	if x.stop != nil {
		rep.Error = x.stop.Error()
	}

	status := "passed"
	switch {
	case x.stop != nil:
		status = "aborted"
	case !rep.OK():
		status = "failed"
	}
	x.publishRun(status, "")

	counts := rep.Counts()
	x.logger.Info("Run finished",
		"status", status,
		"passed", counts[domain.StatusPassed],
		"failed", counts[domain.StatusFailed],
		"skipped", counts[domain.StatusSkipped],
		"aborted", counts[domain.StatusAborted],
		"elapsed", rep.Finished.Sub(rep.Started),
	)

	if x.Store != nil {
		if err := x.Store.Save(context.WithoutCancel(x.c), rep); err != nil {
			x.logger.Warn("Failed to save report", "err", err)
		}
	}
	if x.Hooks.OnRunFinish != nil {
		x.Hooks.OnRunFinish(x.c, x.runEvent(domain.EventRunFinish))
	}
	return rep, x.stop
}

func (x *execution) resultPath(i int, leaf string) state.Path {
	res := x.report.Cases[i]
	return state.Path{"results", res.Suite, res.ID, leaf}
}

// publishPlan replaces the results subtree with one pending entry per case.
func (x *execution) publishPlan() {
	results := make(map[string]any)
	for _, res := range x.report.Cases {
		suite, ok := results[res.Suite].(map[string]any)
		if !ok {
			suite = make(map[string]any)
			results[res.Suite] = suite
		}
		params := make(map[string]any, len(res.Params))
		for _, p := range res.Params {
			params[p.Name] = p.Value
		}
		suite[res.ID] = map[string]any{
			"suite":       res.Suite,
			"status":      string(res.Status),
			"criticality": res.Criticality.String(),
			"params":      params,
		}
	}
	x.c.State.Update(state.Path{"results"}, results)
}

func (x *execution) publishRun(status, current string) {
	counts := x.report.Counts()
	x.c.State.Update(state.Path{"run"}, map[string]any{
		"id":        x.report.RunID,
		"status":    status,
		"current":   current,
		"total":     len(x.report.Cases),
		"pending":   counts[domain.StatusPending],
		"passed":    counts[domain.StatusPassed],
		"failed":    counts[domain.StatusFailed],
		"skipped":   counts[domain.StatusSkipped],
		"aborted":   counts[domain.StatusAborted],
		"test_type": x.report.TestType,
		"product":   x.report.Product,
	})
}

func (x *execution) caseEvent(typ domain.EventType, i int, err error, d time.Duration) *domain.CaseEvent {
	res := x.report.Cases[i]
	return &domain.CaseEvent{
		EventBase:   domain.EventBase{Timestamp: time.Now(), Type: typ, RunID: x.report.RunID},
		CaseID:      res.ID,
		Suite:       res.Suite,
		Index:       i,
		Total:       len(x.report.Cases),
		Status:      res.Status,
		Criticality: res.Criticality,
		Duration:    d,
		Criteria:    res.Criteria,
		Err:         err,
	}
}

func (x *execution) runEvent(typ domain.EventType) *domain.RunEvent {
	counts := x.report.Counts()
	ev := &domain.RunEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: typ, RunID: x.report.RunID},
		Total:     len(x.report.Cases),
		Passed:    counts[domain.StatusPassed],
		Failed:    counts[domain.StatusFailed],
		Skipped:   counts[domain.StatusSkipped],
		Aborted:   counts[domain.StatusAborted],
		Err:       x.stop,
	}
	if typ == domain.EventRunFinish {
		ev.Elapsed = x.report.Finished.Sub(x.report.Started)
	}
	return ev
}
