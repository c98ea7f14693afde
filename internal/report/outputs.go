package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"gonum.org/v1/gonum/mat"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCSV(path string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// WriteScatter writes one headerless line per sample: the label followed by
// the first two projected coordinates.
func WriteScatter(path string, y []int, X mat.Matrix) error {
	r, c := X.Dims()
	if r != len(y) {
		return fmt.Errorf("scatter: %d labels for %d rows", len(y), r)
	}
	if c < 2 {
		return fmt.Errorf("scatter: need two projected coordinates, got %d", c)
	}
	records := make([][]string, r)
	for i := 0; i < r; i++ {
		records[i] = []string{strconv.Itoa(y[i]), formatFloat(X.At(i, 0)), formatFloat(X.At(i, 1))}
	}
	return writeCSV(path, records)
}

// AppendVariance appends "key\tratio0\tratio1...\n" to path.
func AppendVariance(path, key string, ratios []float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer lock.Unlock()

	fields := make([]string, 0, len(ratios)+1)
	fields = append(fields, key)
	for _, v := range ratios {
		fields = append(fields, formatFloat(v))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := f.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return f.Close()
}

// WriteProbabilities writes headerless "label,score" lines for ROC plotting.
func WriteProbabilities(path string, y []int, score []float64) error {
	if len(y) != len(score) {
		return fmt.Errorf("probabilities: %d labels for %d scores", len(y), len(score))
	}
	records := make([][]string, len(y))
	for i := range y {
		records[i] = []string{strconv.Itoa(y[i]), formatFloat(score[i])}
	}
	return writeCSV(path, records)
}

// ImportanceSum is the total importance of the features below and at or
// above the split index, for one concentration.
type ImportanceSum struct {
	Concentration string
	Low           float64
	High          float64
}

// SplitImportances sums importances over [0, split) and [split, len).
func SplitImportances(concentration string, importances []float64, split int) ImportanceSum {
	s := ImportanceSum{Concentration: concentration}
	for i, v := range importances {
		if i < split {
			s.Low += v
		} else {
			s.High += v
		}
	}
	return s
}

// WriteImportanceSums writes the per-concentration split sums with a header
// naming the two feature ranges.
func WriteImportanceSums(path string, split, dim int, rows []ImportanceSum) error {
	records := [][]string{{"", fmt.Sprintf("0-%d", split-1), fmt.Sprintf("%d-%d", split, dim-1)}}
	for _, r := range rows {
		records = append(records, []string{r.Concentration, formatFloat(r.Low), formatFloat(r.High)})
	}
	return writeCSV(path, records)
}
