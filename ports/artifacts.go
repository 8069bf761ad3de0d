package ports

import (
	"context"

	"churnpipe/domain/core"
	"churnpipe/domain/customer"
	"churnpipe/domain/model"
)

// ArtifactStore persists the output of each pipeline stage. Stages write
// whole artifacts atomically: a failed stage stores nothing.
type ArtifactStore interface {
	SaveCleanTable(ctx context.Context, runID core.RunID, table *customer.CleanTable) error
	SaveFeatureTable(ctx context.Context, runID core.RunID, table *customer.FeatureTable) error
	LoadLatestFeatureTable(ctx context.Context) (*customer.FeatureTable, error)
	SaveModelBundle(ctx context.Context, bundle *model.Bundle) error
}
