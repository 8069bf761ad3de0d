package ml

import (
	"sort"

	"churnpipe/domain/model"
)

// confusion counts for the positive (churn) class at a 0.5 threshold.
type confusion struct {
	tp, fp, tn, fn int
}

func confusionAt(yTrue []int, probs []float64, threshold float64) confusion {
	var c confusion
	for i, p := range probs {
		predicted := p >= threshold
		actual := yTrue[i] == 1
		switch {
		case predicted && actual:
			c.tp++
		case predicted && !actual:
			c.fp++
		case !predicted && actual:
			c.fn++
		default:
			c.tn++
		}
	}
	return c
}

func (c confusion) precision() float64 {
	if c.tp+c.fp == 0 {
		return 0
	}
	return float64(c.tp) / float64(c.tp+c.fp)
}

func (c confusion) recall() float64 {
	if c.tp+c.fn == 0 {
		return 0
	}
	return float64(c.tp) / float64(c.tp+c.fn)
}

func (c confusion) f1() float64 {
	p, r := c.precision(), c.recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func (c confusion) accuracy() float64 {
	total := c.tp + c.fp + c.tn + c.fn
	if total == 0 {
		return 0
	}
	return float64(c.tp+c.tn) / float64(total)
}

// F1Score is the positive-class F1 at the standard 0.5 threshold.
func F1Score(yTrue []int, probs []float64) float64 {
	return confusionAt(yTrue, probs, 0.5).f1()
}

// Evaluate computes the full held-out metric set for one candidate.
func Evaluate(yTrue []int, probs []float64) model.TestMetrics {
	c := confusionAt(yTrue, probs, 0.5)
	return model.TestMetrics{
		Accuracy:  c.accuracy(),
		Precision: c.precision(),
		Recall:    c.recall(),
		F1:        c.f1(),
		ROCAUC:    rocAUC(yTrue, probs),
	}
}

// rocAUC computes the area under the ROC curve via the rank statistic: the
// probability a random positive scores above a random negative, with ties
// counting half.
func rocAUC(yTrue []int, probs []float64) float64 {
	type scored struct {
		p   float64
		pos bool
	}
	items := make([]scored, len(probs))
	nPos, nNeg := 0, 0
	for i, p := range probs {
		pos := yTrue[i] == 1
		items[i] = scored{p: p, pos: pos}
		if pos {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}

	sort.Slice(items, func(i, j int) bool { return items[i].p < items[j].p })

	// Average ranks across tie groups, then sum positive ranks.
	ranks := make([]float64, len(items))
	for i := 0; i < len(items); {
		j := i
		for j < len(items) && items[j].p == items[i].p {
			j++
		}
		avg := float64(i+j+1) / 2 // 1-based average rank of the tie group
		for k := i; k < j; k++ {
			ranks[k] = avg
		}
		i = j
	}

	posRankSum := 0.0
	for i, it := range items {
		if it.pos {
			posRankSum += ranks[i]
		}
	}
	return (posRankSum - float64(nPos)*float64(nPos+1)/2) / (float64(nPos) * float64(nNeg))
}
