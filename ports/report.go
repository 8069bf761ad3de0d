package ports

import (
	"context"

	"churnpipe/domain/model"
)

// ReportWriter renders the selection outcome for humans and machines.
type ReportWriter interface {
	WriteMetrics(ctx context.Context, bundle *model.Bundle, results []model.CandidateResult) error
	WriteReport(ctx context.Context, report *model.SelectionReport) error
}
