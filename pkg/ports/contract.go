package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchrig/benchrig/pkg/domain"
)

// RunReportStoreContract verifies that a ReportStore implementation adheres
// to the interface contract.
func RunReportStoreContract(t *testing.T, store ReportStore) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	runID := "contract-run-" + time.Now().Format("20060102150405")

	report := &domain.Report{
		RunID:    runID,
		TestType: "rf_cal",
		Product:  "board_a",
		Started:  base,
		Finished: base.Add(time.Minute),
		Cases: []domain.CaseResult{
			{ID: "tx0", Suite: "rf", Status: domain.StatusPassed, Params: []domain.Param{{Name: "tx", Value: 0}}},
			{ID: "tx1", Suite: "rf", Status: domain.StatusFailed, Error: "test failure"},
		},
	}

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, report))

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, report.RunID, loaded.RunID)
		assert.Equal(t, "board_a", loaded.Product)
		require.Len(t, loaded.Cases, 2)
		assert.Equal(t, domain.StatusFailed, loaded.Cases[1].Status)
		assert.True(t, report.Started.Equal(loaded.Started))
		// JSON backed stores may turn ints into float64; only presence is checked.
		assert.NotNil(t, loaded.Cases[0].Params[0].Value)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrReportNotFound)
	})

	t.Run("List newest first", func(t *testing.T) {
		older := &domain.Report{RunID: runID + "-old", Started: base.Add(-time.Hour)}
		newer := &domain.Report{RunID: runID + "-new", Started: base.Add(time.Hour)}
		require.NoError(t, store.Save(ctx, older))
		require.NoError(t, store.Save(ctx, newer))
		defer func() {
			_ = store.Delete(ctx, older.RunID)
			_ = store.Delete(ctx, newer.RunID)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)

		pos := func(id string) int {
			for i, v := range ids {
				if v == id {
					return i
				}
			}
			return -1
		}
		require.NotEqual(t, -1, pos(older.RunID))
		assert.Less(t, pos(newer.RunID), pos(runID))
		assert.Less(t, pos(runID), pos(older.RunID))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, runID))
		_, err := store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrReportNotFound)
		assert.NoError(t, store.Delete(ctx, runID), "deleting twice is not an error")
	})
}

// RunLockerContract verifies that a Locker implementation adheres to the
// interface contract.
func RunLockerContract(t *testing.T, locker Locker) {
	ctx := context.Background()
	key := "station-" + time.Now().Format("150405.000000")

	unlock, err := locker.Lock(ctx, key, time.Minute)
	require.NoError(t, err)

	busy, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(busy, key, time.Minute)
	assert.ErrorIs(t, err, domain.ErrRunLocked)

	other, err := locker.Lock(ctx, key+"-other", time.Minute)
	require.NoError(t, err, "distinct keys do not contend")
	require.NoError(t, other(ctx))

	require.NoError(t, unlock(ctx))

	again, err := locker.Lock(ctx, key, time.Minute)
	require.NoError(t, err, "released key can be acquired again")
	require.NoError(t, again(ctx))
}
