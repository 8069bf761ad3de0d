package app

import (
	"context"
	"time"

	"churnpipe/domain/core"
	"churnpipe/domain/customer"
	"churnpipe/domain/model"
	"churnpipe/internal/cleaning"
	"churnpipe/internal/config"
	"churnpipe/internal/features"
	"churnpipe/internal/logging"
	"churnpipe/internal/ml"
	"churnpipe/ports"
)

// Pipeline orchestrates the staged batch flow: ingest, clean, derive
// features, train candidates, select a winner. Stages run strictly in order
// and each consumes only the previous stage's artifact.
type Pipeline struct {
	cfg      *config.Config
	log      *logging.Logger
	reader   ports.BatchReader
	store    ports.ArtifactStore
	reports  ports.ReportWriter
	cleaner  *cleaning.Engine
	deriver  *features.Engine
	trainer  *ml.Trainer
	selector *ml.Selector
}

// NewPipeline wires the stages. store and reports may be nil; persistence
// and report output are then skipped.
func NewPipeline(cfg *config.Config, log *logging.Logger, reader ports.BatchReader,
	store ports.ArtifactStore, reports ports.ReportWriter) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		log:      log,
		reader:   reader,
		store:    store,
		reports:  reports,
		cleaner:  cleaning.NewEngine(cfg.Cleaning, log),
		deriver:  features.NewEngine(cfg.Features, log),
		trainer:  ml.NewTrainer(cfg.Training, log),
		selector: ml.NewSelector(cfg.Training.Priority),
	}
}

// Run executes the full pipeline and returns the model bundle.
func (p *Pipeline) Run(ctx context.Context) (*model.Bundle, error) {
	runID := core.NewRunID()
	p.log.Info("pipeline run %s starting", runID)

	clean, err := p.cleanStage(ctx, runID)
	if err != nil {
		return nil, err
	}
	table, err := p.featureStage(ctx, runID, clean)
	if err != nil {
		return nil, err
	}
	return p.trainStage(ctx, runID, table)
}

// CleanOnly runs ingestion and cleaning, persisting the clean table.
func (p *Pipeline) CleanOnly(ctx context.Context) (*customer.CleanTable, error) {
	return p.cleanStage(ctx, core.NewRunID())
}

// FeaturesOnly runs everything up to and including feature derivation.
func (p *Pipeline) FeaturesOnly(ctx context.Context) (*customer.FeatureTable, error) {
	runID := core.NewRunID()
	clean, err := p.cleanStage(ctx, runID)
	if err != nil {
		return nil, err
	}
	return p.featureStage(ctx, runID, clean)
}

// TrainOnly trains on the latest persisted feature table. Without one, the
// stage refuses to start: training never computes features implicitly.
func (p *Pipeline) TrainOnly(ctx context.Context) (*model.Bundle, error) {
	if p.store == nil {
		return nil, core.NewMissingPrerequisiteError("training", "an artifact store with a feature table")
	}
	table, err := p.store.LoadLatestFeatureTable(ctx)
	if err != nil {
		return nil, err
	}
	if table == nil || len(table.Records) == 0 {
		return nil, core.NewMissingPrerequisiteError("training", "a stored feature table")
	}
	return p.trainStage(ctx, core.NewRunID(), table)
}

func (p *Pipeline) cleanStage(ctx context.Context, runID core.RunID) (*customer.CleanTable, error) {
	batch, audit, err := p.reader.ReadBatch(ctx)
	if err != nil {
		return nil, err
	}
	p.log.Info("batch from %s: %d rows, %d columns", audit.Source, audit.Rows, len(audit.Columns))

	clean, stats, err := p.cleaner.Clean(batch)
	if err != nil {
		return nil, err
	}
	p.log.Info("cleaning repaired: %d dates unparsable, %d non-numeric, %d capped, %d imputed",
		stats.UnparsableDates, stats.NonNumericValues,
		stats.SpendCapped+stats.ShipmentsCapped+stats.NegativeSpend,
		stats.PhoneImputed+stats.SpendImputed+stats.ShipmentsImputed)

	if p.store != nil {
		if err := p.store.SaveCleanTable(ctx, runID, clean); err != nil {
			return nil, err
		}
	}
	return clean, nil
}

func (p *Pipeline) featureStage(ctx context.Context, runID core.RunID, clean *customer.CleanTable) (*customer.FeatureTable, error) {
	table, err := p.deriver.Derive(clean)
	if err != nil {
		return nil, err
	}
	if p.store != nil {
		if err := p.store.SaveFeatureTable(ctx, runID, table); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func (p *Pipeline) trainStage(ctx context.Context, runID core.RunID, table *customer.FeatureTable) (*model.Bundle, error) {
	vocab := features.BuildVocabulary(table)
	matrix := ml.BuildMatrix(table, vocab.EncodedNames())

	results, err := p.trainer.Train(ctx, matrix)
	if err != nil {
		return nil, err
	}
	winner, report, err := p.selector.Select(runID, results)
	if err != nil {
		return nil, err
	}

	bundle := &model.Bundle{
		RunID:     runID,
		Winner:    winner,
		Report:    report,
		AllCVF1:   cvComparison(results),
		CreatedAt: time.Now().UTC(),
	}

	if p.store != nil {
		if err := p.store.SaveModelBundle(ctx, bundle); err != nil {
			return nil, err
		}
	}
	if p.reports != nil {
		if err := p.reports.WriteMetrics(ctx, bundle, results); err != nil {
			return nil, err
		}
		if err := p.reports.WriteReport(ctx, &report); err != nil {
			return nil, err
		}
	}

	p.log.Info("pipeline run %s complete: winner %s (cv F1 %.4f)", runID, report.Winner, report.WinnerMeanF1)
	return bundle, nil
}

func cvComparison(results []model.CandidateResult) map[string]float64 {
	out := make(map[string]float64, len(results))
	for _, r := range results {
		if !r.Failed() {
			out[r.Spec.Name] = r.CV.MeanF1
		}
	}
	return out
}
