package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridCombinationsOrder(t *testing.T) {
	g := Grid{
		"lda__solver":       {"svd", "eigen"},
		"pca__n_components": IntRange(4, 7, 2),
	}
	combos := g.Combinations()
	require.Len(t, combos, 4)
	assert.Equal(t, map[string]interface{}{"lda__solver": "svd", "pca__n_components": 4}, combos[0])
	assert.Equal(t, map[string]interface{}{"lda__solver": "svd", "pca__n_components": 6}, combos[1])
	assert.Equal(t, map[string]interface{}{"lda__solver": "eigen", "pca__n_components": 4}, combos[2])

	assert.Len(t, Grid{}.Combinations(), 1)
}

func TestWithParams(t *testing.T) {
	spec, err := WithParams(ProjectionSpec(DefaultProjectionConfig()), map[string]interface{}{
		"pca__n_components": 50,
		"lda__solver":       "eigen",
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, spec.Projection.PCA.NComponents)
	assert.Equal(t, "eigen", spec.Projection.LDA.Solver)
	assert.Equal(t, "kernel_pca", spec.Projection.PCA.Kind)

	forest, err := WithParams(ForestSpec(DefaultForestConfig()), map[string]interface{}{"max_depth": 5, "max_features": 0.5})
	require.NoError(t, err)
	assert.Equal(t, 5, *forest.Forest.MaxDepth)
	assert.Equal(t, "fraction", forest.Forest.MaxFeatures.Rule)

	_, err = WithParams(ForestSpec(DefaultForestConfig()), map[string]interface{}{"max_deep": 5})
	assert.Error(t, err)
	_, err = WithParams(ForestSpec(DefaultForestConfig()), map[string]interface{}{"lda__solver": "svd"})
	assert.Error(t, err)
	_, err = WithParams(ProjectionSpec(DefaultProjectionConfig()), map[string]interface{}{"solver": "svd"})
	assert.Error(t, err)
	_, err = WithParams(ProjectionSpec(DefaultProjectionConfig()), map[string]interface{}{"lda__solver": "qr"})
	assert.Error(t, err)
}

func TestGridSearchRefitsBest(t *testing.T) {
	x, y := blobs(3, 10, 6, 1, 11)
	base := DefaultForestConfig()
	base.NEstimators = 8
	base.RandomState = int64Ptr(3)

	res, err := GridSearch(ForestSpec(base), Grid{"max_depth": {1, 4}}, x, y, 5, 2)
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	for _, c := range res.Results {
		assert.Len(t, c.Scores, 5)
		assert.True(t, c.Mean >= 0 && c.Mean <= 1)
	}
	assert.GreaterOrEqual(t, res.Results[1].Mean, res.Results[0].Mean, "depth 1 cannot separate three classes")
	assert.Equal(t, res.BestParams["max_depth"], *res.BestSpec.Forest.MaxDepth)
	assert.Equal(t, 6, res.Best.NumFeatures())

	_, err = GridSearch(ForestSpec(base), nil, x, y, 20, 1)
	assert.Error(t, err, "more folds than samples per class")
}
