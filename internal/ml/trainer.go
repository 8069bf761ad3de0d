package ml

import (
	"context"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"churnpipe/domain/core"
	"churnpipe/domain/model"
	"churnpipe/internal/config"
	"churnpipe/internal/logging"
)

// Classifier is the closed contract every candidate implements.
type Classifier interface {
	Fit(x [][]float64, y []int) error
	PredictProba(x [][]float64) []float64
	Importances(names []string) []model.FeatureImportance
	Marshal() ([]byte, error)
}

// newClassifier builds a fresh, unfitted classifier for a candidate spec.
// The set of algorithms is closed; an unknown one is a configuration bug.
func newClassifier(spec model.CandidateSpec, seed int64) (Classifier, error) {
	switch spec.Algorithm {
	case model.AlgorithmLogisticRegression:
		if spec.Logistic == nil {
			return nil, fmt.Errorf("candidate %s: missing logistic params", spec.Name)
		}
		return NewLogisticRegression(*spec.Logistic), nil
	case model.AlgorithmDecisionTree:
		if spec.Tree == nil {
			return nil, fmt.Errorf("candidate %s: missing tree params", spec.Name)
		}
		return NewDecisionTree(*spec.Tree), nil
	case model.AlgorithmRandomForest:
		if spec.Forest == nil {
			return nil, fmt.Errorf("candidate %s: missing forest params", spec.Name)
		}
		return NewRandomForest(*spec.Forest, seed), nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q", spec.Algorithm)
	}
}

// Trainer runs the candidate competition: one shared stratified split, k-fold
// cross-validation per candidate on the identical training partition, then a
// final fit and held-out evaluation.
type Trainer struct {
	cfg config.TrainingConfig
	log *logging.Logger
}

func NewTrainer(cfg config.TrainingConfig, log *logging.Logger) *Trainer {
	return &Trainer{cfg: cfg, log: log}
}

// Train evaluates every configured candidate against the same partitions.
// Candidates run concurrently; a per-candidate failure is recorded on its
// result and excludes it from comparison, never aborting the others.
func (t *Trainer) Train(ctx context.Context, m *Matrix) ([]model.CandidateResult, error) {
	trainIdx, testIdx, err := StratifiedSplit(m.Y, t.cfg.TestRatio, t.cfg.Seed)
	if err != nil {
		return nil, core.NewTrainingError("split", err)
	}
	folds, err := StratifiedKFold(trainIdx, m.Y, t.cfg.Folds, t.cfg.Seed)
	if err != nil {
		return nil, core.NewTrainingError("cross-validation folds", err)
	}

	t.log.Info("training %d candidates on %d train / %d test rows, %d folds, seed %d",
		len(t.cfg.Candidates), len(trainIdx), len(testIdx), t.cfg.Folds, t.cfg.Seed)

	results := make([]model.CandidateResult, len(t.cfg.Candidates))
	g, ctx := errgroup.WithContext(ctx)
	for i, spec := range t.cfg.Candidates {
		i, spec := i, spec
		g.Go(func() error {
			results[i] = t.trainOne(ctx, spec, m, trainIdx, testIdx, folds)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.Failed() {
			t.log.Warn("candidate %s excluded: %s", r.Spec.Name, r.Err)
		} else {
			t.log.Info("candidate %s: cv F1 %.4f (±%.4f), test F1 %.4f",
				r.Spec.Name, r.CV.MeanF1, r.CV.StdDevF1, r.Test.F1)
		}
	}
	return results, nil
}

func (t *Trainer) trainOne(ctx context.Context, spec model.CandidateSpec, m *Matrix,
	trainIdx, testIdx []int, folds [][]int) model.CandidateResult {

	result := model.CandidateResult{Spec: spec}
	started := time.Now()
	defer func() { result.TrainedIn = time.Since(started) }()

	cv, err := t.crossValidate(ctx, spec, m, folds)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	result.CV = cv

	clf, err := newClassifier(spec, t.cfg.Seed)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	trainX, trainY := m.Select(trainIdx)
	if err := clf.Fit(trainX, trainY); err != nil {
		result.Err = err.Error()
		return result
	}

	testX, testY := m.Select(testIdx)
	result.Test = Evaluate(testY, clf.PredictProba(testX))
	result.Importances = clf.Importances(m.Names)

	fitted, err := clf.Marshal()
	if err != nil {
		result.Err = err.Error()
		return result
	}
	result.Fitted = fitted
	return result
}

// crossValidate trains one fresh classifier per fold and records the
// positive-class F1 distribution.
func (t *Trainer) crossValidate(ctx context.Context, spec model.CandidateSpec, m *Matrix,
	folds [][]int) (model.CVStats, error) {

	foldF1 := make([]float64, 0, len(folds))
	for held := range folds {
		if err := ctx.Err(); err != nil {
			return model.CVStats{}, err
		}

		var fit []int
		for f, fold := range folds {
			if f != held {
				fit = append(fit, fold...)
			}
		}

		clf, err := newClassifier(spec, t.cfg.Seed)
		if err != nil {
			return model.CVStats{}, err
		}
		fitX, fitY := m.Select(fit)
		if err := clf.Fit(fitX, fitY); err != nil {
			return model.CVStats{}, fmt.Errorf("fold %d: %w", held, err)
		}

		heldX, heldY := m.Select(folds[held])
		foldF1 = append(foldF1, F1Score(heldY, clf.PredictProba(heldX)))
	}

	mean, err := stats.Mean(foldF1)
	if err != nil {
		return model.CVStats{}, err
	}
	stddev, err := stats.StandardDeviation(foldF1)
	if err != nil {
		return model.CVStats{}, err
	}
	return model.CVStats{
		Folds:    len(folds),
		FoldF1:   foldF1,
		MeanF1:   mean,
		StdDevF1: stddev,
	}, nil
}
