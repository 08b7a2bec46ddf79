package domain

import (
	"errors"
	"time"
)

// ErrReportNotFound is returned by report stores for an unknown run ID.
var ErrReportNotFound = errors.New("report not found")

// CaseResult is the recorded outcome of one test case instance.
type CaseResult struct {
	ID          string            `json:"id"`
	Suite       string            `json:"suite"`
	Params      []Param           `json:"params,omitempty"`
	Criticality Criticality       `json:"criticality"`
	Status      Status            `json:"status"`
	Error       string            `json:"error,omitempty"`
	Duration    time.Duration     `json:"duration"`
	Criteria    []CriterionResult `json:"criteria,omitempty"`
}

// Report summarises one run.
type Report struct {
	RunID    string       `json:"run_id"`
	TestType string       `json:"test_type,omitempty"`
	Product  string       `json:"product,omitempty"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Cases    []CaseResult `json:"cases"`
	// Abort names the case whose failure stopped the run, if any.
	Abort string `json:"abort,omitempty"`
	Error string `json:"error,omitempty"`
}

// Counts tallies the cases by status.
func (r *Report) Counts() map[Status]int {
	out := make(map[Status]int)
	for _, c := range r.Cases {
		out[c.Status]++
	}
	return out
}

// OK reports whether every case passed or was skipped.
func (r *Report) OK() bool {
	for _, c := range r.Cases {
		if c.Status != StatusPassed && c.Status != StatusSkipped {
			return false
		}
	}
	return r.Error == ""
}
