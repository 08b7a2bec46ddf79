package ports

import (
	"context"

	"github.com/benchrig/benchrig/pkg/domain"
)

// ReportStore keeps the reports of finished runs.
type ReportStore interface {
	// Save persists the report under its RunID, replacing any earlier copy.
	Save(ctx context.Context, report *domain.Report) error

	// Load retrieves a report.
	// Returns domain.ErrReportNotFound if the run ID is unknown.
	Load(ctx context.Context, runID string) (*domain.Report, error)

	// List returns the stored run IDs, newest first.
	List(ctx context.Context) ([]string, error)

	// Delete removes a report. Deleting an unknown run ID is not an error.
	Delete(ctx context.Context, runID string) error
}
