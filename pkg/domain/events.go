package domain

import (
	"context"
	"time"
)

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventRunStart   EventType = "run_start"
	EventRunFinish  EventType = "run_finish"
	EventCaseStart  EventType = "case_start"
	EventCaseFinish EventType = "case_finish"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// CaseEvent represents a test case entering or leaving execution.
type CaseEvent struct {
	EventBase
	CaseID      string            `json:"case_id"`
	Suite       string            `json:"suite"`
	Index       int               `json:"index"`
	Total       int               `json:"total"`
	Status      Status            `json:"status"`
	Criticality Criticality       `json:"criticality"`
	Duration    time.Duration     `json:"duration,omitempty"`
	Criteria    []CriterionResult `json:"criteria,omitempty"`
	Err         error             `json:"-"`
}

// RunEvent represents the start or end of a run.
type RunEvent struct {
	EventBase
	Total   int           `json:"total"`
	Passed  int           `json:"passed"`
	Failed  int           `json:"failed"`
	Skipped int           `json:"skipped"`
	Aborted int           `json:"aborted"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
	Err     error         `json:"-"`
}

// LifecycleHooks defines callbacks for run observability.
// Hooks run synchronously on the execution thread.
type LifecycleHooks struct {
	OnRunStart   func(context.Context, *RunEvent)
	OnRunFinish  func(context.Context, *RunEvent)
	OnCaseStart  func(context.Context, *CaseEvent)
	OnCaseFinish func(context.Context, *CaseEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnRunStart:   chainRun(h.OnRunStart, other.OnRunStart),
		OnRunFinish:  chainRun(h.OnRunFinish, other.OnRunFinish),
		OnCaseStart:  chainCase(h.OnCaseStart, other.OnCaseStart),
		OnCaseFinish: chainCase(h.OnCaseFinish, other.OnCaseFinish),
	}
}

func chainRun(a, b func(context.Context, *RunEvent)) func(context.Context, *RunEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *RunEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainCase(a, b func(context.Context, *CaseEvent)) func(context.Context, *CaseEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *CaseEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
