package ml

import (
	"math"
	"sort"

	"churnpipe/domain/core"
	"churnpipe/domain/model"
)

// DecisionTree is a CART binary classifier using Gini impurity. Splits are
// exhaustive over feature thresholds, making training deterministic for a
// fixed feature set.
type DecisionTree struct {
	params model.TreeParams

	root       *treeNode
	nFeatures  int
	importance []float64

	// featureSubset restricts candidate split features; nil means all.
	// Set by the forest for per-tree feature subsampling.
	featureSubset []int
}

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode

	leaf bool
	prob float64
}

func NewDecisionTree(params model.TreeParams) *DecisionTree {
	return &DecisionTree{params: params}
}

func (t *DecisionTree) Fit(x [][]float64, y []int) error {
	if len(x) == 0 {
		return core.ErrInsufficientData
	}
	t.nFeatures = len(x[0])
	t.importance = make([]float64, t.nFeatures)

	indices := make([]int, len(x))
	for i := range indices {
		indices[i] = i
	}
	t.root = t.grow(x, y, indices, 0)
	return nil
}

func (t *DecisionTree) grow(x [][]float64, y []int, indices []int, depth int) *treeNode {
	prob := positiveRate(y, indices)
	if depth >= t.params.MaxDepth ||
		len(indices) < t.params.MinSamplesSplit ||
		prob == 0 || prob == 1 {
		return &treeNode{leaf: true, prob: prob}
	}

	feature, threshold, gain := t.bestSplit(x, y, indices)
	if gain <= 0 {
		return &treeNode{leaf: true, prob: prob}
	}

	var left, right []int
	for _, i := range indices {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < t.params.MinSamplesLeaf || len(right) < t.params.MinSamplesLeaf {
		return &treeNode{leaf: true, prob: prob}
	}

	t.importance[feature] += gain * float64(len(indices))
	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      t.grow(x, y, left, depth+1),
		right:     t.grow(x, y, right, depth+1),
	}
}

// bestSplit scans every candidate feature and threshold for the largest Gini
// impurity decrease.
func (t *DecisionTree) bestSplit(x [][]float64, y []int, indices []int) (feature int, threshold, gain float64) {
	features := t.featureSubset
	if features == nil {
		features = make([]int, t.nFeatures)
		for j := range features {
			features[j] = j
		}
	}

	parent := giniOf(y, indices)
	bestGain := 0.0
	bestFeature, bestThreshold := -1, 0.0

	values := make([]float64, 0, len(indices))
	for _, j := range features {
		values = values[:0]
		for _, i := range indices {
			values = append(values, x[i][j])
		}
		sort.Float64s(values)

		for k := 0; k+1 < len(values); k++ {
			if values[k] == values[k+1] {
				continue
			}
			thr := (values[k] + values[k+1]) / 2

			var leftY, rightY []int
			for _, i := range indices {
				if x[i][j] <= thr {
					leftY = append(leftY, i)
				} else {
					rightY = append(rightY, i)
				}
			}
			nL, nR := float64(len(leftY)), float64(len(rightY))
			if nL == 0 || nR == 0 {
				continue
			}
			weighted := (nL*giniOf(y, leftY) + nR*giniOf(y, rightY)) / float64(len(indices))
			if g := parent - weighted; g > bestGain {
				bestGain = g
				bestFeature = j
				bestThreshold = thr
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

func (t *DecisionTree) PredictProba(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		node := t.root
		for !node.leaf {
			if row[node.feature] <= node.threshold {
				node = node.left
			} else {
				node = node.right
			}
		}
		out[i] = node.prob
	}
	return out
}

// Importances ranks features by total weighted Gini decrease.
func (t *DecisionTree) Importances(names []string) []model.FeatureImportance {
	return rankImportances(t.importance, names)
}

func positiveRate(y []int, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	pos := 0
	for _, i := range indices {
		if y[i] == 1 {
			pos++
		}
	}
	return float64(pos) / float64(len(indices))
}

func giniOf(y []int, indices []int) float64 {
	p := positiveRate(y, indices)
	return 2 * p * (1 - p)
}

func rankImportances(raw []float64, names []string) []model.FeatureImportance {
	total := 0.0
	for _, v := range raw {
		total += v
	}
	out := make([]model.FeatureImportance, 0, len(raw))
	for j, v := range raw {
		name := ""
		if j < len(names) {
			name = names[j]
		}
		w := 0.0
		if total > 0 {
			w = v / total
		}
		if math.IsNaN(w) {
			w = 0
		}
		out = append(out, model.FeatureImportance{Feature: name, Weight: w})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}
