package ml

import (
	"math/rand"

	"churnpipe/domain/core"
)

// StratifiedSplit partitions row indices into train and test sets, preserving
// the label ratio in both. The shuffle is driven entirely by the seed: the
// same labels and seed always produce the same partition.
func StratifiedSplit(y []int, testRatio float64, seed int64) (train, test []int, err error) {
	pos, neg := indicesByLabel(y)
	if len(pos) == 0 || len(neg) == 0 {
		return nil, nil, core.ErrInsufficientData
	}

	rng := rand.New(rand.NewSource(seed))
	shuffle(rng, pos)
	shuffle(rng, neg)

	posTest := int(float64(len(pos)) * testRatio)
	negTest := int(float64(len(neg)) * testRatio)
	if posTest == 0 || negTest == 0 {
		return nil, nil, core.ErrInsufficientData
	}

	test = append(test, pos[:posTest]...)
	test = append(test, neg[:negTest]...)
	train = append(train, pos[posTest:]...)
	train = append(train, neg[negTest:]...)

	shuffle(rng, train)
	shuffle(rng, test)
	return train, test, nil
}

// StratifiedKFold assigns the given rows to k folds, keeping the label ratio
// of each fold close to the whole. The return value is the test-index set of
// each fold; the train set of fold i is every other fold.
func StratifiedKFold(rows []int, y []int, folds int, seed int64) ([][]int, error) {
	if folds < 2 || len(rows) < folds {
		return nil, core.ErrInsufficientData
	}

	var pos, neg []int
	for _, idx := range rows {
		if y[idx] == 1 {
			pos = append(pos, idx)
		} else {
			neg = append(neg, idx)
		}
	}

	rng := rand.New(rand.NewSource(seed))
	shuffle(rng, pos)
	shuffle(rng, neg)

	out := make([][]int, folds)
	for i, idx := range pos {
		out[i%folds] = append(out[i%folds], idx)
	}
	for i, idx := range neg {
		out[i%folds] = append(out[i%folds], idx)
	}
	for _, fold := range out {
		if len(fold) == 0 {
			return nil, core.ErrInsufficientData
		}
	}
	return out, nil
}

func indicesByLabel(y []int) (pos, neg []int) {
	for i, label := range y {
		if label == 1 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	return pos, neg
}

func shuffle(rng *rand.Rand, s []int) {
	rng.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}
