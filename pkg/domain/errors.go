package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration classifies every ConfigurationError.
	ErrConfiguration = errors.New("configuration error")

	// ErrPredicate classifies every PredicateError.
	ErrPredicate = errors.New("predicate error")

	// ErrTestFailure classifies every TestFailure.
	ErrTestFailure = errors.New("test failure")

	// ErrRetryRequested is returned when the operator asks for the current case to be attempted again.
	// It is never a TestFailure and must be handled by the case that triggered it.
	ErrRetryRequested = errors.New("retry requested")

	// ErrCriticalAbort classifies every CriticalAbort.
	ErrCriticalAbort = errors.New("critical abort")

	// ErrRunLocked is returned when another run already holds the station lock.
	ErrRunLocked = errors.New("run already active")
)

// ConfigurationError reports a problem with configuration or registration.
// It is always fatal to the run.
type ConfigurationError struct {
	Source string
	Msg    string
	Err    error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString(ErrConfiguration.Error())
	if e.Source != "" {
		b.WriteString(": ")
		b.WriteString(e.Source)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Configf builds a ConfigurationError attributed to source.
func Configf(source, format string, args ...any) error {
	return &ConfigurationError{Source: source, Msg: fmt.Sprintf(format, args...)}
}

// PredicateError reports a criterion expression that cannot be compiled.
type PredicateError struct {
	Predicate string
	Pos       int
	Msg       string
}

func (e *PredicateError) Error() string {
	return fmt.Sprintf("%s: %q at offset %d: %s", ErrPredicate, e.Predicate, e.Pos, e.Msg)
}

func (e *PredicateError) Is(target error) bool { return target == ErrPredicate }

// CriterionResult is the outcome of evaluating one named criterion.
type CriterionResult struct {
	Name      string `json:"name"`
	Predicate string `json:"predicate"`
	Value     any    `json:"value"`
	Passed    bool   `json:"passed"`
}

func (c CriterionResult) String() string {
	return fmt.Sprintf("%s=%v (%s)", c.Name, c.Value, c.Predicate)
}

// TestFailure reports failed criteria or an explicit assertion inside a test case.
type TestFailure struct {
	Message string
	Failed  []CriterionResult
}

func (e *TestFailure) Error() string {
	parts := make([]string, 0, len(e.Failed)+1)
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if len(e.Failed) > 0 {
		names := make([]string, len(e.Failed))
		for i, c := range e.Failed {
			names[i] = c.String()
		}
		parts = append(parts, "failed criteria: "+strings.Join(names, ", "))
	}
	if len(parts) == 0 {
		return ErrTestFailure.Error()
	}
	return ErrTestFailure.Error() + ": " + strings.Join(parts, "; ")
}

func (e *TestFailure) Is(target error) bool { return target == ErrTestFailure }

// FailedNames returns the names of the failed criteria in evaluation order.
func (e *TestFailure) FailedNames() []string {
	names := make([]string, len(e.Failed))
	for i, c := range e.Failed {
		names[i] = c.Name
	}
	return names
}

// Failf builds an explicit assertion failure.
func Failf(format string, args ...any) error {
	return &TestFailure{Message: fmt.Sprintf(format, args...)}
}

// CriticalAbort stops every remaining test case of the run.
type CriticalAbort struct {
	CaseID string
	Suite  string
	Cause  error
}

func (e *CriticalAbort) Error() string {
	return fmt.Sprintf("%s: %s/%s: %v", ErrCriticalAbort, e.Suite, e.CaseID, e.Cause)
}

func (e *CriticalAbort) Is(target error) bool { return target == ErrCriticalAbort }

func (e *CriticalAbort) Unwrap() error { return e.Cause }

// IsFatal reports whether err must stop the run regardless of criticality.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrPredicate)
}
