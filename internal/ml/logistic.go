package ml

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"churnpipe/domain/core"
	"churnpipe/domain/model"
)

// LogisticRegression is a binary classifier fit by full-batch gradient
// descent with L2 regularization. Optional per-feature standardization and
// inverse-frequency class weighting handle the scale and imbalance of the
// churn matrix.
type LogisticRegression struct {
	params model.LogisticParams

	weights []float64
	bias    float64
	means   []float64
	stds    []float64
}

func NewLogisticRegression(params model.LogisticParams) *LogisticRegression {
	return &LogisticRegression{params: params}
}

// Fit trains the weights. Deterministic: initialization is all-zero and the
// gradient pass visits rows in order, so no randomness is involved.
func (lr *LogisticRegression) Fit(x [][]float64, y []int) error {
	if len(x) == 0 {
		return core.ErrInsufficientData
	}
	n := len(x)
	d := len(x[0])

	if lr.params.Standardize {
		lr.fitScaler(x)
		x = lr.transform(x)
	}

	posWeight, negWeight := 1.0, 1.0
	if lr.params.BalanceClass {
		nPos := 0
		for _, label := range y {
			if label == 1 {
				nPos++
			}
		}
		if nPos == 0 || nPos == n {
			return core.ErrInsufficientData
		}
		// Inverse-frequency weights, normalized so their mean stays 1.
		posWeight = float64(n) / (2 * float64(nPos))
		negWeight = float64(n) / (2 * float64(n-nPos))
	}

	lr.weights = make([]float64, d)
	lr.bias = 0
	grad := make([]float64, d)

	for epoch := 0; epoch < lr.params.Epochs; epoch++ {
		for i := range grad {
			grad[i] = 0
		}
		gradBias := 0.0

		for i, row := range x {
			p := sigmoid(floats.Dot(lr.weights, row) + lr.bias)
			errTerm := p - float64(y[i])
			if y[i] == 1 {
				errTerm *= posWeight
			} else {
				errTerm *= negWeight
			}
			floats.AddScaled(grad, errTerm, row)
			gradBias += errTerm
		}

		scale := lr.params.LearningRate / float64(n)
		for j := range lr.weights {
			lr.weights[j] -= scale * (grad[j] + lr.params.L2Lambda*lr.weights[j])
		}
		lr.bias -= scale * gradBias
	}
	return nil
}

// PredictProba returns the positive-class probability for each row.
func (lr *LogisticRegression) PredictProba(x [][]float64) []float64 {
	if lr.params.Standardize {
		x = lr.transform(x)
	}
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = sigmoid(floats.Dot(lr.weights, row) + lr.bias)
	}
	return out
}

// Importances ranks features by absolute learned weight.
func (lr *LogisticRegression) Importances(names []string) []model.FeatureImportance {
	out := make([]model.FeatureImportance, 0, len(lr.weights))
	for j, w := range lr.weights {
		name := ""
		if j < len(names) {
			name = names[j]
		}
		out = append(out, model.FeatureImportance{Feature: name, Weight: math.Abs(w)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

func (lr *LogisticRegression) fitScaler(x [][]float64) {
	d := len(x[0])
	lr.means = make([]float64, d)
	lr.stds = make([]float64, d)
	col := make([]float64, len(x))
	for j := 0; j < d; j++ {
		for i, row := range x {
			col[i] = row[j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		lr.means[j] = mean
		lr.stds[j] = std
	}
}

func (lr *LogisticRegression) transform(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - lr.means[j]) / lr.stds[j]
		}
		out[i] = scaled
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
