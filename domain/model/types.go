package model

import (
	"time"

	"churnpipe/domain/core"
)

// Algorithm identifies a candidate classifier. The set is closed: candidates
// are fixed at configuration time, never discovered dynamically.
type Algorithm string

const (
	AlgorithmLogisticRegression Algorithm = "logistic_regression"
	AlgorithmDecisionTree       Algorithm = "decision_tree"
	AlgorithmRandomForest       Algorithm = "random_forest"
)

// LogisticParams are fixed hyperparameters for the logistic regression
// candidate. No search happens at runtime.
type LogisticParams struct {
	LearningRate float64 `json:"learning_rate"`
	Epochs       int     `json:"epochs"`
	L2Lambda     float64 `json:"l2_lambda"`
	BalanceClass bool    `json:"balance_class"`
	Standardize  bool    `json:"standardize"`
}

// TreeParams are fixed hyperparameters for the decision tree candidate.
type TreeParams struct {
	MaxDepth        int `json:"max_depth"`
	MinSamplesSplit int `json:"min_samples_split"`
	MinSamplesLeaf  int `json:"min_samples_leaf"`
}

// ForestParams are fixed hyperparameters for the random forest candidate.
type ForestParams struct {
	Trees           int  `json:"trees"`
	MaxDepth        int  `json:"max_depth"`
	MinSamplesSplit int  `json:"min_samples_split"`
	MinSamplesLeaf  int  `json:"min_samples_leaf"`
	SqrtFeatures    bool `json:"sqrt_features"`
}

// CandidateSpec is one configured competitor: an algorithm plus its fixed
// hyperparameters. Exactly one of the param fields is set, matching Algorithm.
type CandidateSpec struct {
	Name      string          `json:"name"`
	Algorithm Algorithm       `json:"algorithm"`
	Logistic  *LogisticParams `json:"logistic,omitempty"`
	Tree      *TreeParams     `json:"tree,omitempty"`
	Forest    *ForestParams   `json:"forest,omitempty"`
}

// CVStats summarizes the cross-validation metric distribution of a candidate.
type CVStats struct {
	Folds    int       `json:"folds"`
	FoldF1   []float64 `json:"fold_f1"`
	MeanF1   float64   `json:"mean_f1"`
	StdDevF1 float64   `json:"stddev_f1"`
}

// TestMetrics are held-out evaluation metrics. F1, precision and recall are
// for the positive (churn) class.
type TestMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	ROCAUC    float64 `json:"roc_auc"`
}

// FeatureImportance ranks one feature's contribution to a fitted candidate.
type FeatureImportance struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// CandidateResult is the evaluated outcome of one candidate. Candidates are
// ephemeral: after selection only the winner's fitted state survives.
type CandidateResult struct {
	Spec        CandidateSpec       `json:"spec"`
	CV          CVStats             `json:"cv"`
	Test        TestMetrics         `json:"test"`
	Importances []FeatureImportance `json:"importances,omitempty"`
	TrainedIn   time.Duration       `json:"trained_in"`
	Err         string              `json:"error,omitempty"`

	// Fitted is the opaque serialized model state. Nil for failed candidates.
	Fitted []byte `json:"-"`
}

// Failed reports whether this candidate is excluded from comparison.
func (r CandidateResult) Failed() bool { return r.Err != "" }

// CompetitorDelta is one losing candidate's signed distance from the winner.
type CompetitorDelta struct {
	Name    string  `json:"name"`
	MeanF1  float64 `json:"cv_f1_mean"`
	TestF1  float64 `json:"test_f1"`
	DeltaF1 float64 `json:"delta_f1"` // winner minus competitor, always >= 0
}

// SelectionReport is the persisted record of a selection decision.
type SelectionReport struct {
	RunID         core.RunID        `json:"run_id"`
	Winner        string            `json:"winner"`
	WinnerMeanF1  float64           `json:"winner_cv_f1_mean"`
	WinnerTest    TestMetrics       `json:"winner_test"`
	Competitors   []CompetitorDelta `json:"competitors"`
	Justification string            `json:"justification"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

// Bundle is the externally observable training artifact: the winner's opaque
// fitted state plus the structured comparison document.
type Bundle struct {
	RunID     core.RunID         `json:"run_id"`
	Winner    CandidateResult    `json:"winner"`
	Report    SelectionReport    `json:"report"`
	AllCVF1   map[string]float64 `json:"comparison_cv_f1"`
	CreatedAt time.Time          `json:"created_at"`
}
