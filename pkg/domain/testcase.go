package domain

import "fmt"

// Status is the lifecycle state of one test case execution.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusAborted Status = "aborted"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped, StatusAborted:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is a legal lifecycle step.
// Running may re-enter Running when a case retries locally.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning || to == StatusSkipped || to == StatusAborted
	case StatusRunning:
		return to == StatusRunning || to == StatusPassed || to == StatusFailed || to == StatusAborted
	default:
		return false
	}
}

// Criticality controls how a failure escalates.
type Criticality int

const (
	// NotCritical failures are recorded and the run continues.
	NotCritical Criticality = iota
	// Critical failures abort the remainder of the run.
	Critical
	// SuiteCritical marks a whole suite: any failure in it aborts the remainder of the run.
	SuiteCritical
)

func (c Criticality) String() string {
	switch c {
	case NotCritical:
		return "none"
	case Critical:
		return "critical"
	case SuiteCritical:
		return "suite_critical"
	default:
		return fmt.Sprintf("criticality(%d)", int(c))
	}
}

// Escalates reports whether a failure at this level becomes a CriticalAbort.
func (c Criticality) Escalates() bool {
	return c == Critical || c == SuiteCritical
}

// Param is one bound parameter of an expanded test case.
type Param struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}
