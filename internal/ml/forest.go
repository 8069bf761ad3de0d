package ml

import (
	"math"
	"math/rand"

	"churnpipe/domain/core"
	"churnpipe/domain/model"
)

// RandomForest averages bootstrap-aggregated decision trees. All randomness
// (bootstrap samples, per-tree feature subsets) flows from the seed, so the
// fitted forest is reproducible.
type RandomForest struct {
	params model.ForestParams
	seed   int64

	trees     []*DecisionTree
	nFeatures int
}

func NewRandomForest(params model.ForestParams, seed int64) *RandomForest {
	return &RandomForest{params: params, seed: seed}
}

func (f *RandomForest) Fit(x [][]float64, y []int) error {
	if len(x) == 0 {
		return core.ErrInsufficientData
	}
	f.nFeatures = len(x[0])
	rng := rand.New(rand.NewSource(f.seed))

	subsetSize := f.nFeatures
	if f.params.SqrtFeatures {
		subsetSize = int(math.Sqrt(float64(f.nFeatures)))
		if subsetSize < 1 {
			subsetSize = 1
		}
	}

	f.trees = make([]*DecisionTree, 0, f.params.Trees)
	for i := 0; i < f.params.Trees; i++ {
		sampleX, sampleY := bootstrap(rng, x, y)
		tree := NewDecisionTree(model.TreeParams{
			MaxDepth:        f.params.MaxDepth,
			MinSamplesSplit: f.params.MinSamplesSplit,
			MinSamplesLeaf:  f.params.MinSamplesLeaf,
		})
		tree.featureSubset = sampleFeatures(rng, f.nFeatures, subsetSize)
		if err := tree.Fit(sampleX, sampleY); err != nil {
			return err
		}
		f.trees = append(f.trees, tree)
	}
	return nil
}

func (f *RandomForest) PredictProba(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for _, tree := range f.trees {
		for i, p := range tree.PredictProba(x) {
			out[i] += p
		}
	}
	for i := range out {
		out[i] /= float64(len(f.trees))
	}
	return out
}

// Importances averages the per-tree Gini importances.
func (f *RandomForest) Importances(names []string) []model.FeatureImportance {
	raw := make([]float64, f.nFeatures)
	for _, tree := range f.trees {
		for j, v := range tree.importance {
			raw[j] += v
		}
	}
	return rankImportances(raw, names)
}

func bootstrap(rng *rand.Rand, x [][]float64, y []int) ([][]float64, []int) {
	n := len(x)
	sx := make([][]float64, n)
	sy := make([]int, n)
	for i := 0; i < n; i++ {
		k := rng.Intn(n)
		sx[i] = x[k]
		sy[i] = y[k]
	}
	return sx, sy
}

func sampleFeatures(rng *rand.Rand, total, size int) []int {
	if size >= total {
		return nil
	}
	perm := rng.Perm(total)
	return perm[:size]
}
