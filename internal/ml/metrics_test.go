package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluatePerfectClassifier(t *testing.T) {
	yTrue := []int{1, 1, 0, 0}
	probs := []float64{0.9, 0.8, 0.2, 0.1}
	m := Evaluate(yTrue, probs)
	assert.Equal(t, 1.0, m.Accuracy)
	assert.Equal(t, 1.0, m.Precision)
	assert.Equal(t, 1.0, m.Recall)
	assert.Equal(t, 1.0, m.F1)
	assert.Equal(t, 1.0, m.ROCAUC)
}

func TestEvaluateKnownConfusion(t *testing.T) {
	// tp=2 fp=1 fn=1 tn=2
	yTrue := []int{1, 1, 1, 0, 0, 0}
	probs := []float64{0.9, 0.8, 0.1, 0.7, 0.2, 0.3}
	m := Evaluate(yTrue, probs)
	assert.InDelta(t, 4.0/6.0, m.Accuracy, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.F1, 1e-9)
}

func TestF1ZeroWhenNoPositivesPredicted(t *testing.T) {
	yTrue := []int{1, 1, 0, 0}
	probs := []float64{0.1, 0.2, 0.1, 0.2}
	assert.Equal(t, 0.0, F1Score(yTrue, probs))
}

func TestROCAUCRandomScoresNearHalf(t *testing.T) {
	// All scores tied: AUC must be exactly 0.5 by the tie convention.
	yTrue := []int{1, 0, 1, 0}
	probs := []float64{0.5, 0.5, 0.5, 0.5}
	assert.InDelta(t, 0.5, rocAUC(yTrue, probs), 1e-9)
}

func TestROCAUCInverted(t *testing.T) {
	yTrue := []int{1, 1, 0, 0}
	probs := []float64{0.1, 0.2, 0.8, 0.9}
	assert.InDelta(t, 0.0, rocAUC(yTrue, probs), 1e-9)
}

func TestROCAUCSingleClassDegenerate(t *testing.T) {
	auc := rocAUC([]int{1, 1}, []float64{0.3, 0.9})
	assert.False(t, math.IsNaN(auc))
	assert.Equal(t, 0.5, auc)
}
