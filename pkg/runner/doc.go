/*
Package runner executes an expanded test plan.

Instances run strictly in plan order on the calling goroutine. Each instance
gets a case-scoped bench.Context with a fresh criteria evaluator whose results
are published under results/<suite>/<id>/criteria. Run progress is mirrored to
the "run" node of the state tree.

# Failure policy

  - A failure in a case without criticality is recorded and the run continues.
  - A failure in a critical or suite-critical case aborts every remaining case.
  - Configuration and predicate errors raised by a body are fatal.
  - A retry request that reaches the runner fails the case.
  - A panicking body is recovered into a failure.

# Usage

	r := runner.New(
		runner.WithLogger(logger),
		runner.WithLocker(locker, "station/bench01", time.Hour),
	)
	report, err := r.Run(c, plan)
*/
package runner
