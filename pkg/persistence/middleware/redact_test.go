package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchrig/benchrig/pkg/adapters/memory"
	"github.com/benchrig/benchrig/pkg/domain"
	"github.com/benchrig/benchrig/pkg/persistence/middleware"
	"github.com/benchrig/benchrig/pkg/ports"
)

func TestRedactMiddleware_Masking(t *testing.T) {
	mw, err := middleware.NewRedactMiddleware([]string{"serial", "^mac$"})
	require.NoError(t, err)
	inner := memory.NewStore()
	store := mw(inner)
	ctx := context.Background()

	rep := &domain.Report{
		RunID: "r1",
		Cases: []domain.CaseResult{{
			ID:     "scan",
			Suite:  "id",
			Params: []domain.Param{{Name: "Serial_Number", Value: "SN-1"}, {Name: "band", Value: "2g"}},
			Criteria: []domain.CriterionResult{
				{Name: "mac", Value: "00:11:22", Passed: true},
				{Name: "mac_count", Value: 1, Passed: true},
			},
		}},
	}
	require.NoError(t, store.Save(ctx, rep))

	assert.Equal(t, "SN-1", rep.Cases[0].Params[0].Value, "caller report untouched")
	assert.Equal(t, "00:11:22", rep.Cases[0].Criteria[0].Value)

	loaded, err := inner.Load(ctx, "r1")
	require.NoError(t, err)
	c := loaded.Cases[0]
	assert.Equal(t, middleware.Masked, c.Params[0].Value)
	assert.Equal(t, "2g", c.Params[1].Value)
	assert.Equal(t, middleware.Masked, c.Criteria[0].Value)
	assert.Equal(t, 1, c.Criteria[1].Value)
}

func TestRedactMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewRedactMiddleware([]string{"("})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestRedactMiddleware_Contract(t *testing.T) {
	mw, err := middleware.NewRedactMiddleware([]string{"secret"})
	require.NoError(t, err)
	ports.RunReportStoreContract(t, middleware.Chain(memory.NewStore(), mw))
}

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) middleware.Middleware {
		return func(next ports.ReportStore) ports.ReportStore {
			return &recording{ReportStore: next, name: name, order: &order}
		}
	}
	store := middleware.Chain(memory.NewStore(), tag("outer"), tag("inner"))
	require.NoError(t, store.Save(context.Background(), &domain.Report{RunID: "r"}))
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type recording struct {
	ports.ReportStore
	name  string
	order *[]string
}

func (r *recording) Save(ctx context.Context, rep *domain.Report) error {
	*r.order = append(*r.order, r.name)
	return r.ReportStore.Save(ctx, rep)
}
