package ml

import (
	"encoding/json"

	"churnpipe/domain/model"
)

// Snapshot DTOs: the exported, serializable form of each fitted classifier.
// The fitted state in a model bundle is one of these, JSON-encoded.

type logisticSnapshot struct {
	Algorithm model.Algorithm      `json:"algorithm"`
	Params    model.LogisticParams `json:"params"`
	Weights   []float64            `json:"weights"`
	Bias      float64              `json:"bias"`
	Means     []float64            `json:"means,omitempty"`
	Stds      []float64            `json:"stds,omitempty"`
}

type treeSnapshot struct {
	Algorithm model.Algorithm  `json:"algorithm"`
	Params    model.TreeParams `json:"params"`
	Root      *nodeSnapshot    `json:"root"`
	NFeatures int              `json:"n_features"`
}

type forestSnapshot struct {
	Algorithm model.Algorithm    `json:"algorithm"`
	Params    model.ForestParams `json:"params"`
	Trees     []*nodeSnapshot    `json:"trees"`
	NFeatures int                `json:"n_features"`
}

type nodeSnapshot struct {
	Feature   int           `json:"feature,omitempty"`
	Threshold float64       `json:"threshold,omitempty"`
	Left      *nodeSnapshot `json:"left,omitempty"`
	Right     *nodeSnapshot `json:"right,omitempty"`
	Leaf      bool          `json:"leaf,omitempty"`
	Prob      float64       `json:"prob,omitempty"`
}

func (lr *LogisticRegression) Marshal() ([]byte, error) {
	return json.Marshal(logisticSnapshot{
		Algorithm: model.AlgorithmLogisticRegression,
		Params:    lr.params,
		Weights:   lr.weights,
		Bias:      lr.bias,
		Means:     lr.means,
		Stds:      lr.stds,
	})
}

func (t *DecisionTree) Marshal() ([]byte, error) {
	return json.Marshal(treeSnapshot{
		Algorithm: model.AlgorithmDecisionTree,
		Params:    t.params,
		Root:      snapshotNode(t.root),
		NFeatures: t.nFeatures,
	})
}

func (f *RandomForest) Marshal() ([]byte, error) {
	trees := make([]*nodeSnapshot, len(f.trees))
	for i, tree := range f.trees {
		trees[i] = snapshotNode(tree.root)
	}
	return json.Marshal(forestSnapshot{
		Algorithm: model.AlgorithmRandomForest,
		Params:    f.params,
		Trees:     trees,
		NFeatures: f.nFeatures,
	})
}

func snapshotNode(n *treeNode) *nodeSnapshot {
	if n == nil {
		return nil
	}
	return &nodeSnapshot{
		Feature:   n.feature,
		Threshold: n.threshold,
		Left:      snapshotNode(n.left),
		Right:     snapshotNode(n.right),
		Leaf:      n.leaf,
		Prob:      n.prob,
	}
}
