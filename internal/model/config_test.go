package model

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadForestConfig(t *testing.T) {
	path := writeFile(t, "rf.json", `{"criterion": "entropy", "max_depth": 26, "max_features": 121,
		"max_leaf_nodes": 254, "n_estimators": 141, "random_state": 100, "oob_score": true}`)
	cfg, err := LoadForestConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "entropy", cfg.Criterion)
	assert.Equal(t, 26, *cfg.MaxDepth)
	assert.Equal(t, 254, *cfg.MaxLeafNodes)
	assert.Equal(t, int64(100), *cfg.RandomState)
	assert.Equal(t, 121, cfg.MaxFeatures.Resolve(675))
	assert.Equal(t, 2, cfg.MinSamplesSplit, "defaults survive")

	var se *SerializationError
	_, err = LoadForestConfig(writeFile(t, "bad.json", `{"n_estimator": 10}`))
	assert.True(t, errors.As(err, &se), "unknown key")

	_, err = LoadForestConfig(writeFile(t, "bad.json", `{"criterion": "mse"}`))
	assert.True(t, errors.As(err, &se), "invalid value")

	_, err = LoadForestConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.As(err, &se))
}

func TestMaxFeatures(t *testing.T) {
	tests := []struct {
		json string
		dim  int
		want int
	}{
		{`"sqrt"`, 225, 15},
		{`"log2"`, 256, 8},
		{`121`, 675, 121},
		{`1000`, 675, 675},
		{`0.5`, 100, 50},
		{`1.0`, 100, 100},
		{`null`, 225, 225},
	}
	for _, tt := range tests {
		t.Run(tt.json, func(t *testing.T) {
			var m MaxFeatures
			require.NoError(t, json.Unmarshal([]byte(tt.json), &m))
			assert.Equal(t, tt.want, m.Resolve(tt.dim))

			data, err := json.Marshal(m)
			require.NoError(t, err)
			var back MaxFeatures
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, m, back)
		})
	}

	var m MaxFeatures
	assert.Error(t, json.Unmarshal([]byte(`"half"`), &m))
	assert.Error(t, json.Unmarshal([]byte(`1.5`), &m))
	assert.Error(t, json.Unmarshal([]byte(`0`), &m))
}

func TestReducerAndLDAConfigFiles(t *testing.T) {
	r, err := LoadReducerConfig(writeFile(t, "pca.json", `{"n_components": 180}`))
	require.NoError(t, err)
	assert.Equal(t, 180.0, r.NComponents)

	l, err := LoadLDAConfig(writeFile(t, "lda.json", `{"solver": "eigen"}`))
	require.NoError(t, err)
	assert.Equal(t, "eigen", l.Solver)

	_, err = LoadLDAConfig(writeFile(t, "lda.json", `{"solver": "lsqr"}`))
	assert.Error(t, err)
	_, err = LoadReducerConfig(writeFile(t, "pca.json", `{"n_components": 180, "whiten": true}`))
	assert.Error(t, err)
}

func TestParseSpec(t *testing.T) {
	spec, err := ParseSpec([]byte(`{"family": "rf", "forest": {"n_estimators": 10}}`))
	require.NoError(t, err)
	assert.Equal(t, FamilyForest, spec.Family)
	assert.Equal(t, 10, spec.Forest.NEstimators)
	assert.Equal(t, "gini", spec.Forest.Criterion)

	spec, err = ParseSpec([]byte(`{"family": "projection", "projection": {"pca": {"n_components": 50, "kind": "pca"}, "lda": {"n_components": 2}}}`))
	require.NoError(t, err)
	assert.Equal(t, "pca", spec.Projection.PCA.Kind)

	_, err = ParseSpec([]byte(`{"family": "projection"}`))
	assert.Error(t, err)
	_, err = ParseSpec([]byte(`{"family": "svm"}`))
	assert.Error(t, err)
	_, err = ParseSpec([]byte(`{"family": "forest", "forest": {}, "projection": {}}`))
	assert.Error(t, err)

	clf, err := Build(ProjectionSpec(DefaultProjectionConfig()))
	require.NoError(t, err)
	assert.IsType(t, &Projection{}, clf)
}

func TestSaveSpecRoundTrip(t *testing.T) {
	cfg := DefaultForestConfig()
	cfg.MaxDepth = intPtr(19)
	cfg.MaxFeatures = MaxFeatures{Rule: "fraction", Value: 0.25}
	path := filepath.Join(t.TempDir(), "spec.json")
	require.NoError(t, SaveSpec(path, ForestSpec(cfg)))

	back, err := LoadSpec(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, *back.Forest)
}
