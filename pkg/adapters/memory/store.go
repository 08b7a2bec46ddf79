package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/benchrig/benchrig/pkg/domain"
)

// Store implements ports.ReportStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Report
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Report),
	}
}

// Save keeps a copy of the report.
func (s *Store) Save(ctx context.Context, report *domain.Report) error {
	copied := clone(report)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[report.RunID] = copied
	return nil
}

// Load returns a copy so callers cannot mutate stored reports.
func (s *Store) Load(ctx context.Context, runID string) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.data[runID]
	if !ok {
		return nil, domain.ErrReportNotFound
	}
	return clone(report), nil
}

// Delete removes the report.
func (s *Store) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
	return nil
}

// List returns stored run IDs, newest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	reports := make([]*domain.Report, 0, len(s.data))
	for _, r := range s.data {
		reports = append(reports, r)
	}
	s.mu.RUnlock()

	slices.SortFunc(reports, func(a, b *domain.Report) int {
		return b.Started.Compare(a.Started)
	})
	ids := make([]string, len(reports))
	for i, r := range reports {
		ids[i] = r.RunID
	}
	return ids, nil
}

func clone(r *domain.Report) *domain.Report {
	c := *r
	c.Cases = make([]domain.CaseResult, len(r.Cases))
	for i, cr := range r.Cases {
		cr.Params = slices.Clone(cr.Params)
		cr.Criteria = slices.Clone(cr.Criteria)
		c.Cases[i] = cr
	}
	return &c
}
