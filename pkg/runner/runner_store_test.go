package runner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/benchrig/benchrig/pkg/domain"
	"github.com/benchrig/benchrig/pkg/registry"
	"github.com/benchrig/benchrig/pkg/runner"
)

type MockReportStore struct {
	mock.Mock
}

func (m *MockReportStore) Save(ctx context.Context, report *domain.Report) error {
	return m.Called(ctx, report).Error(0)
}

func (m *MockReportStore) Load(ctx context.Context, runID string) (*domain.Report, error) {
	args := m.Called(ctx, runID)
	rep, _ := args.Get(0).(*domain.Report)
	return rep, args.Error(1)
}

func (m *MockReportStore) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *MockReportStore) Delete(ctx context.Context, runID string) error {
	return m.Called(ctx, runID).Error(0)
}

func TestRun_ReportStoreFailureDoesNotFailRun(t *testing.T) {
	store := new(MockReportStore)
	store.On("Save", mock.Anything, mock.MatchedBy(func(r *domain.Report) bool {
		return r.RunID == "run-9" && len(r.Cases) == 1
	})).Return(errors.New("disk full")).Once()

	reg := registry.New()
	reg.Suite("rf").Case("a", pass)
	c, plan := setup(t, reg)

	rep, err := runner.New(runner.WithReportStore(store), runner.WithRunID("run-9")).Run(c, plan)
	require.NoError(t, err)
	assert.True(t, rep.OK())
	store.AssertExpectations(t)
}
