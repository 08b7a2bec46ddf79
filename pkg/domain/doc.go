/*
Package domain contains the shared vocabulary of the benchrig engine.

It defines the error taxonomy every other package reports through, the
lifecycle states of a test case, criticality levels and the hook types used
for observability. It has no dependencies beyond the standard library.

# Error Taxonomy

  - ConfigurationError: missing file or key, ambiguous product lookup, duplicate expanded case.
  - PredicateError: malformed criterion expression.
  - TestFailure: one or more criteria failed, or an explicit assertion.
  - ErrRetryRequested: the operator asked to redo the current case. Not a failure.
  - CriticalAbort: escalation from a critical case or suite; stops the run.
*/
package domain
