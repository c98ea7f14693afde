package report

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"aunp-classifier/internal/evaluate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestColumns(t *testing.T) {
	cols := DefaultColumns(30)
	require.Len(t, cols, 37)
	assert.Equal(t, "number_of_pictures", cols[0])
	assert.Equal(t, "Precision_score", cols[6])
	assert.Equal(t, "Score1", cols[7])
	assert.Equal(t, "Score30", cols[36])

	assert.Equal(t, []string{"cv1", "cv2"}, ScoreColumns("cv", 2))
	assert.Len(t, AUROCColumns(), 10)
	assert.Len(t, TargetScoreColumns(30), 34)
	assert.Equal(t, []string{"concentration", "Accuracy", "Recall", "F1", "Precision"}, TwoStepColumns())
}

func TestAppendRowCreatesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables", "run_Accuracy.xlsx")
	cols := DefaultColumns(3)
	m := evaluate.Metrics{Accuracy: 0.9, Recall: 0.8, F1: 0.85, Precision: 0.875}

	require.NoError(t, AppendRow(path, cols, MetricsRow(DefaultMetadata(), "10^4", m, []float64{1, 0.5, math.NaN()})))
	require.NoError(t, AppendRow(path, cols, MetricsRow(DefaultMetadata(), "all", m, []float64{0.25, 0.75, 1})))

	tab, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, cols, tab.Columns)
	require.Len(t, tab.Rows, 2)
	assert.Equal(t, "3", tab.Rows[0][0])
	assert.Equal(t, "10^4", tab.Rows[0][2])
	assert.Equal(t, "0.9", tab.Rows[0][3])
	assert.Equal(t, "", tab.Rows[0][9], "NaN is written as an empty cell")
	assert.Equal(t, "all", tab.Rows[1][2])
	assert.Equal(t, "1", tab.Rows[1][9])
}

func TestAppendRowRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.xlsx")
	m := evaluate.Metrics{Accuracy: 1, Recall: 1, F1: 1, Precision: 1}
	require.NoError(t, AppendRow(path, TwoStepColumns(), TwoStepRow("all", m)))

	err := AppendRow(path, DefaultColumns(1), MetricsRow(DefaultMetadata(), "all", m, []float64{1}))
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, TwoStepColumns(), se.Want)

	err = AppendRow(path, TwoStepColumns(), []interface{}{"all", 1.0})
	require.True(t, errors.As(err, &se))

	tab, err := ReadTable(path)
	require.NoError(t, err)
	assert.Len(t, tab.Rows, 1, "rejected rows are not written")
}

func TestAppendRowConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auroc.xlsx")
	m := evaluate.Metrics{Accuracy: 0.5}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, AppendRow(path, AUROCColumns(), AUROCRow("E.coli", DefaultMetadata(), "all", 0.9, 0.8, m)))
		}()
	}
	wg.Wait()

	tab, err := ReadTable(path)
	require.NoError(t, err)
	assert.Len(t, tab.Rows, 4)
}

func TestWriteScatter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scatter", "run_all.csv")
	x := mat.NewDense(2, 3, []float64{1.5, -2, 9, 0.25, 3, 9})
	require.NoError(t, WriteScatter(path, []int{0, 2}, x))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0,1.5,-2\n2,0.25,3\n", string(b))

	assert.Error(t, WriteScatter(path, []int{0}, x))
	assert.Error(t, WriteScatter(path, []int{0, 1}, mat.NewDense(2, 1, nil)))
}

func TestAppendVariance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "variance", "run.txt")
	require.NoError(t, AppendVariance(path, "run_10^4", []float64{0.75, 0.25}))
	require.NoError(t, AppendVariance(path, "run_all", []float64{0.5, 0.5}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "run_10^4\t0.75\t0.25\nrun_all\t0.5\t0.5\n", string(b))
}

func TestWriteProbabilities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.csv")
	require.NoError(t, WriteProbabilities(path, []int{1, 0}, []float64{0.9, 0.125}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1,0.9\n0,0.125\n", string(b))
	assert.Error(t, WriteProbabilities(path, []int{1}, nil))
}

func TestImportanceSums(t *testing.T) {
	imp := make([]float64, 256)
	for i := range imp {
		imp[i] = 1.0 / 256
	}
	s := SplitImportances("10^5", imp, 225)
	assert.InDelta(t, 225.0/256, s.Low, 1e-12)
	assert.InDelta(t, 31.0/256, s.High, 1e-12)

	path := filepath.Join(t.TempDir(), "importance.csv")
	require.NoError(t, WriteImportanceSums(path, 225, 256, []ImportanceSum{{Concentration: "all", Low: 0.5, High: 0.5}}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, []string{",0-224,225-255", "all,0.5,0.5"}, lines)
}
