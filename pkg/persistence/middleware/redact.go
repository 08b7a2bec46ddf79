package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/benchrig/benchrig/pkg/domain"
	"github.com/benchrig/benchrig/pkg/ports"
)

// Masked replaces redacted values in stored reports.
const Masked = "***"

// NewRedactMiddleware masks the values of case parameters and criteria whose
// names match any of the patterns before a report is saved. Patterns are
// regular expressions matched case-insensitively. The caller's report is
// not modified.
func NewRedactMiddleware(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, domain.Configf("redact", "invalid pattern %q: %v", p, err)
		}
		compiled = append(compiled, re)
	}
	return func(next ports.ReportStore) ports.ReportStore {
		return &redactStore{next: next, patterns: compiled}
	}, nil
}

type redactStore struct {
	next     ports.ReportStore
	patterns []*regexp.Regexp
}

func (s *redactStore) Save(ctx context.Context, report *domain.Report) error {
	if report == nil || len(s.patterns) == 0 {
		return s.next.Save(ctx, report)
	}
	masked := *report
	masked.Cases = make([]domain.CaseResult, len(report.Cases))
	for i, c := range report.Cases {
		c.Params = s.maskParams(c.Params)
		c.Criteria = s.maskCriteria(c.Criteria)
		masked.Cases[i] = c
	}
	if err := s.next.Save(ctx, &masked); err != nil {
		return fmt.Errorf("redacted save: %w", err)
	}
	return nil
}

func (s *redactStore) Load(ctx context.Context, runID string) (*domain.Report, error) {
	return s.next.Load(ctx, runID)
}

func (s *redactStore) List(ctx context.Context) ([]string, error) {
	return s.next.List(ctx)
}

func (s *redactStore) Delete(ctx context.Context, runID string) error {
	return s.next.Delete(ctx, runID)
}

func (s *redactStore) maskParams(in []domain.Param) []domain.Param {
	if in == nil {
		return nil
	}
	out := make([]domain.Param, len(in))
	for i, p := range in {
		if s.match(p.Name) {
			p.Value = Masked
		}
		out[i] = p
	}
	return out
}

func (s *redactStore) maskCriteria(in []domain.CriterionResult) []domain.CriterionResult {
	if in == nil {
		return nil
	}
	out := make([]domain.CriterionResult, len(in))
	for i, c := range in {
		if s.match(c.Name) {
			c.Value = Masked
		}
		out[i] = c
	}
	return out
}

func (s *redactStore) match(name string) bool {
	for _, p := range s.patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}
