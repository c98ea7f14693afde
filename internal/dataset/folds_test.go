package dataset

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func balancedLabels(classes, per int) []int {
	y := make([]int, 0, classes*per)
	for c := 0; c < classes; c++ {
		for i := 0; i < per; i++ {
			y = append(y, c)
		}
	}
	return y
}

func TestStratifiedKFoldBalanced(t *testing.T) {
	y := balancedLabels(4, 10)
	folds, sparse, err := StratifiedKFold(y, 5)
	require.NoError(t, err)
	assert.False(t, sparse)
	require.Len(t, folds, 5)

	seen := make([]int, len(y))
	for _, f := range folds {
		assert.Len(t, f.Test, 8)
		assert.Len(t, f.Train, 32)
		perClass := make([]int, 4)
		for _, i := range f.Test {
			perClass[y[i]]++
			seen[i]++
		}
		assert.Equal(t, []int{2, 2, 2, 2}, perClass)
	}
	for i, n := range seen {
		assert.Equal(t, 1, n, "sample %d must be tested exactly once", i)
	}
}

func TestStratifiedKFoldPartitions(t *testing.T) {
	y := []int{2, 0, 1, 0, 2, 2, 1, 0, 0, 2, 1, 1, 0}
	folds, _, err := StratifiedKFold(y, 3)
	require.NoError(t, err)

	for _, f := range folds {
		all := append(append([]int(nil), f.Train...), f.Test...)
		sort.Ints(all)
		for i, v := range all {
			assert.Equal(t, i, v)
		}
	}
}

func TestStratifiedKFoldDeterministic(t *testing.T) {
	y := []int{1, 0, 1, 0, 1, 0, 1, 0, 1, 1}
	a, _, err := StratifiedKFold(y, 2)
	require.NoError(t, err)
	b, _, err := StratifiedKFold(y, 2)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStratifiedKFoldSparseAndInvalid(t *testing.T) {
	y := append(balancedLabels(2, 6), 2, 2)
	folds, sparse, err := StratifiedKFold(y, 5)
	require.NoError(t, err)
	assert.True(t, sparse)
	assert.Len(t, folds, 5)

	_, _, err = StratifiedKFold(balancedLabels(3, 2), 5)
	assert.Error(t, err)

	_, _, err = StratifiedKFold(balancedLabels(2, 5), 1)
	assert.Error(t, err)
}
