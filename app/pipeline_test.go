package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnpipe/domain/core"
	"churnpipe/domain/customer"
	"churnpipe/domain/model"
	"churnpipe/internal/config"
	"churnpipe/internal/logging"
	"churnpipe/internal/testkit"
)

// fakeReader serves a fixed in-memory batch.
type fakeReader struct {
	batch []customer.RawRecord
}

func (r *fakeReader) ReadBatch(ctx context.Context) ([]customer.RawRecord, customer.IngestAudit, error) {
	return r.batch, customer.IngestAudit{Rows: len(r.batch), Source: "memory"}, nil
}

// memoryStore keeps artifacts in memory, mirroring the store contract.
type memoryStore struct {
	cleanTables   []*customer.CleanTable
	featureTables []*customer.FeatureTable
	bundles       []*model.Bundle
}

func (s *memoryStore) SaveCleanTable(ctx context.Context, runID core.RunID, t *customer.CleanTable) error {
	s.cleanTables = append(s.cleanTables, t)
	return nil
}

func (s *memoryStore) SaveFeatureTable(ctx context.Context, runID core.RunID, t *customer.FeatureTable) error {
	s.featureTables = append(s.featureTables, t)
	return nil
}

func (s *memoryStore) LoadLatestFeatureTable(ctx context.Context) (*customer.FeatureTable, error) {
	if len(s.featureTables) == 0 {
		return nil, nil
	}
	return s.featureTables[len(s.featureTables)-1], nil
}

func (s *memoryStore) SaveModelBundle(ctx context.Context, b *model.Bundle) error {
	s.bundles = append(s.bundles, b)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Cleaning: config.CleaningConfig{
			CapSpend:      15000,
			CapShipments:  500,
			PhoneSentinel: "MISSING",
			HashSalt:      "test_salt",
		},
		Features: config.FeatureConfig{
			RecencyBuckets:   [3]float64{30, 90, 180},
			TenureBuckets:    [3]float64{180, 365, 730},
			SpendBuckets:     [3]float64{500, 1500, 5000},
			FrequencyBuckets: [3]float64{10, 30, 100},
			TicketBuckets:    [3]float64{50, 100, 200},
			RecencyWeight:    0.4,
			FrequencyWeight:  0.3,
			SpendWeight:      0.3,

			InactivityDays:         180,
			LowEngagementThreshold: 30,
			RecentActivityDays:     90,
			HighValueSpend:         1500,
			HighValueShipments:     50,
		},
		Training: config.TrainingConfig{
			TestRatio:  0.25,
			Folds:      5,
			Seed:       42,
			Candidates: config.DefaultCandidates(),
			Priority:   []string{"random_forest", "logistic_regression", "decision_tree"},
		},
	}
}

func dirtyBatch() []customer.RawRecord {
	gen := testkit.NewCustomerGenerator(testkit.DefaultCustomerConfig())
	return gen.GenerateBatch()
}

func TestPipelineRunEndToEnd(t *testing.T) {
	store := &memoryStore{}
	p := NewPipeline(testConfig(), logging.DefaultLogger(), &fakeReader{batch: dirtyBatch()}, store, nil)

	bundle, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, bundle.Winner.Spec.Name)
	assert.NotNil(t, bundle.Winner.Fitted)
	assert.NotEmpty(t, bundle.Report.Justification)
	assert.NotEmpty(t, bundle.AllCVF1)

	require.Len(t, store.cleanTables, 1)
	require.Len(t, store.featureTables, 1)
	require.Len(t, store.bundles, 1)
	assert.Greater(t, store.cleanTables[0].Len(), 0)
}

func TestPipelineRunDeterministicWinner(t *testing.T) {
	cfg := testConfig()
	batch := dirtyBatch()

	a, err := NewPipeline(cfg, logging.DefaultLogger(), &fakeReader{batch: batch}, nil, nil).Run(context.Background())
	require.NoError(t, err)
	b, err := NewPipeline(cfg, logging.DefaultLogger(), &fakeReader{batch: batch}, nil, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a.Report.Winner, b.Report.Winner)
	assert.Equal(t, a.AllCVF1, b.AllCVF1)
	assert.Equal(t, a.Winner.Test, b.Winner.Test)
}

func TestPipelineCleanOnly(t *testing.T) {
	store := &memoryStore{}
	p := NewPipeline(testConfig(), logging.DefaultLogger(), &fakeReader{batch: dirtyBatch()}, store, nil)

	table, err := p.CleanOnly(context.Background())
	require.NoError(t, err)
	assert.Greater(t, table.Len(), 0)
	assert.Len(t, store.cleanTables, 1)
	assert.Empty(t, store.featureTables)
}

func TestPipelineFeaturesOnly(t *testing.T) {
	store := &memoryStore{}
	p := NewPipeline(testConfig(), logging.DefaultLogger(), &fakeReader{batch: dirtyBatch()}, store, nil)

	table, err := p.FeaturesOnly(context.Background())
	require.NoError(t, err)
	assert.Greater(t, table.Len(), 0)
	assert.False(t, table.Reference.IsZero())
	assert.Len(t, store.featureTables, 1)
	assert.Empty(t, store.bundles)
}

func TestTrainOnlyWithoutFeatureTableFails(t *testing.T) {
	p := NewPipeline(testConfig(), logging.DefaultLogger(), &fakeReader{batch: dirtyBatch()}, &memoryStore{}, nil)

	_, err := p.TrainOnly(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsMissingPrerequisiteError(err))
}

func TestTrainOnlyWithoutStoreFails(t *testing.T) {
	p := NewPipeline(testConfig(), logging.DefaultLogger(), &fakeReader{batch: dirtyBatch()}, nil, nil)

	_, err := p.TrainOnly(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsMissingPrerequisiteError(err))
}

func TestTrainOnlyUsesStoredFeatures(t *testing.T) {
	store := &memoryStore{}
	p := NewPipeline(testConfig(), logging.DefaultLogger(), &fakeReader{batch: dirtyBatch()}, store, nil)

	_, err := p.FeaturesOnly(context.Background())
	require.NoError(t, err)

	bundle, err := p.TrainOnly(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, bundle.Report.Winner)
	assert.Len(t, store.bundles, 1)
}
