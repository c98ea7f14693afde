package main

import (
	"os"
	"path/filepath"
	"testing"

	"aunp-classifier/internal/feature"
	"aunp-classifier/internal/feature/opencv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"10^4", "all"}, splitList(" 10^4, ,all "))
}

func TestOptionsJob(t *testing.T) {
	o := &options{id: "nine", data: "merged", conc: "10^5,all", targets: "E.coli", grid: `{"n_estimators": [10, 20]}`}
	job, err := o.job()
	require.NoError(t, err)
	assert.Equal(t, "nine", job.ID)
	assert.Equal(t, []string{"10^5", "all"}, job.Concentrations)
	assert.Equal(t, []string{"E.coli"}, job.Targets)
	assert.Len(t, job.Grid["n_estimators"], 2)

	o.grid = `{"n_estimators": []}`
	_, err = o.job()
	assert.Error(t, err)

	o.grid = `not json`
	_, err = o.job()
	assert.Error(t, err)
}

func TestLoadExperimentAndExtractor(t *testing.T) {
	cfg, err := loadExperiment("")
	require.NoError(t, err)
	ex, err := newExtractor(cfg)
	require.NoError(t, err)
	assert.IsType(t, &feature.NativeExtractor{}, ex)

	path := filepath.Join(t.TempDir(), "exp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: opencv\nfeature_num: 200\n"), 0644))
	cfg, err = loadExperiment(path)
	require.NoError(t, err)
	ex, err = newExtractor(cfg)
	require.NoError(t, err)
	assert.IsType(t, &opencv.Extractor{}, ex)
	assert.Equal(t, 200, ex.FeatureNum())
}

func TestRootHasEveryCommand(t *testing.T) {
	var names []string
	for _, c := range root().Subcommands {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"train", "evaluate", "dichotomies", "ordersplit", "twostep", "importance", "inspect", "version"}, names)
}
