package dataset

import (
	"fmt"
	"sort"
)

// Fold is one train/test partition of sample indices.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold splits the indices of y into k folds that preserve the
// class proportions. The split is deterministic: samples of each class are
// assigned to folds in their original order, with per-class fold sizes
// taken from a round-robin walk over the sorted label vector.
//
// It fails when k < 2 or when no class has at least k samples. When some
// class has fewer than k samples the split still succeeds and sparse reports
// true; such folds miss that class in their test part.
func StratifiedKFold(y []int, k int) (folds []Fold, sparse bool, err error) {
	if k < 2 {
		return nil, false, fmt.Errorf("stratified k-fold needs at least 2 folds, got %d", k)
	}
	if len(y) < k {
		return nil, false, fmt.Errorf("cannot split %d samples into %d folds", len(y), k)
	}

	// Encode labels densely in sorted order.
	uniq := map[int]struct{}{}
	for _, v := range y {
		uniq[v] = struct{}{}
	}
	labels := make([]int, 0, len(uniq))
	for v := range uniq {
		labels = append(labels, v)
	}
	sort.Ints(labels)
	code := make(map[int]int, len(labels))
	for i, v := range labels {
		code[v] = i
	}
	encoded := make([]int, len(y))
	counts := make([]int, len(labels))
	for i, v := range y {
		encoded[i] = code[v]
		counts[encoded[i]]++
	}

	maxCount, minCount := 0, len(y)
	for _, c := range counts {
		maxCount = max(maxCount, c)
		minCount = min(minCount, c)
	}
	if maxCount < k {
		return nil, false, fmt.Errorf("cannot split into %d folds: largest class has only %d samples", k, maxCount)
	}
	sparse = minCount < k

	order := append([]int(nil), encoded...)
	sort.Ints(order)

	// allocation[f][c]: test samples of class c in fold f.
	allocation := make([][]int, k)
	for f := 0; f < k; f++ {
		allocation[f] = make([]int, len(labels))
		for i := f; i < len(order); i += k {
			allocation[f][order[i]]++
		}
	}

	testFold := make([]int, len(y))
	for c := range labels {
		var assign []int
		for f := 0; f < k; f++ {
			for n := 0; n < allocation[f][c]; n++ {
				assign = append(assign, f)
			}
		}
		next := 0
		for i, e := range encoded {
			if e == c {
				testFold[i] = assign[next]
				next++
			}
		}
	}

	folds = make([]Fold, k)
	for i, f := range testFold {
		for j := range folds {
			if j == f {
				folds[j].Test = append(folds[j].Test, i)
			} else {
				folds[j].Train = append(folds[j].Train, i)
			}
		}
	}
	return folds, sparse, nil
}
