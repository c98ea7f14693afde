// Package report writes the evaluation artifacts of a run: append-only
// spreadsheet reports and the CSV/text side outputs used for plotting.
package report

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"aunp-classifier/internal/evaluate"

	"github.com/gofrs/flock"
	"github.com/xuri/excelize/v2"
)

// SheetName is the sheet every report is written to.
const SheetName = "Sheet1"

// SchemaError reports an append whose columns do not match the report's
// existing header, or a row whose width differs from its columns.
type SchemaError struct {
	Path string
	Want []string
	Got  []string
	Msg  string
}

func (e *SchemaError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("report %s: %s", e.Path, e.Msg)
	}
	return fmt.Sprintf("report %s: header is [%s], row has columns [%s]",
		e.Path, strings.Join(e.Want, ", "), strings.Join(e.Got, ", "))
}

// Metadata are the leading experiment columns of a report row.
type Metadata struct {
	Pictures int `yaml:"pictures"` // Pictures merged per sample
	Diameter int `yaml:"diameter"` // Particle diameters merged per sample
}

// DefaultMetadata matches the three-diameter merged acquisition.
func DefaultMetadata() Metadata {
	return Metadata{Pictures: 3, Diameter: 3}
}

// ScorePrefix names the per-fold cross-validation columns.
const ScorePrefix = "Score"

// ScoreColumns returns prefix1 ... prefixN.
func ScoreColumns(prefix string, folds int) []string {
	out := make([]string, folds)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}

// DefaultColumns is the header of a metrics plus cross-validation report.
func DefaultColumns(folds int) []string {
	cols := []string{"number_of_pictures", "diameter", "concentration",
		"Accuracy_score", "Recall", "F1_score", "Precision_score"}
	return append(cols, ScoreColumns(ScorePrefix, folds)...)
}

// AUROCColumns is the header of the per-organism AUROC/AUPR report.
func AUROCColumns() []string {
	return []string{"target", "number_of_pictures", "diameter", "concentration",
		"AUROC", "AUPR", "Accuracy_score", "Recall", "F1_score", "Precision_score"}
}

// TargetScoreColumns is the header of a per-organism cross-validation report.
func TargetScoreColumns(folds int) []string {
	cols := []string{"target", "number_of_pictures", "diameter", "concentration"}
	return append(cols, ScoreColumns(ScorePrefix, folds)...)
}

// TwoStepColumns is the header of the hierarchical pipeline report.
func TwoStepColumns() []string {
	return []string{"concentration", "Accuracy", "Recall", "F1", "Precision"}
}

// MetricsRow builds a DefaultColumns row.
func MetricsRow(meta Metadata, concentration string, m evaluate.Metrics, scores []float64) []interface{} {
	row := []interface{}{meta.Pictures, meta.Diameter, concentration, m.Accuracy, m.Recall, m.F1, m.Precision}
	for _, s := range scores {
		row = append(row, s)
	}
	return row
}

// AUROCRow builds an AUROCColumns row.
func AUROCRow(target string, meta Metadata, concentration string, auroc, aupr float64, m evaluate.Metrics) []interface{} {
	return []interface{}{target, meta.Pictures, meta.Diameter, concentration, auroc, aupr,
		m.Accuracy, m.Recall, m.F1, m.Precision}
}

// TargetScoreRow builds a TargetScoreColumns row.
func TargetScoreRow(target string, meta Metadata, concentration string, scores []float64) []interface{} {
	row := []interface{}{target, meta.Pictures, meta.Diameter, concentration}
	for _, s := range scores {
		row = append(row, s)
	}
	return row
}

// TwoStepRow builds a TwoStepColumns row.
func TwoStepRow(concentration string, m evaluate.Metrics) []interface{} {
	return []interface{}{concentration, m.Accuracy, m.Recall, m.F1, m.Precision}
}

// AppendRow appends row to the report at path, creating it with columns as
// its header when absent. An existing report must have exactly columns as
// its header. Concurrent appenders are serialised with a lock file next to
// the report.
func AppendRow(path string, columns []string, row []interface{}) error {
	if len(row) != len(columns) {
		return &SchemaError{Path: path, Msg: fmt.Sprintf("row has %d values for %d columns", len(row), len(columns))}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock report: %w", err)
	}
	defer lock.Unlock()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return create(path, columns, row)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	sheet := sheetOf(f)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}
	if len(rows) == 0 || !equalColumns(rows[0], columns) {
		var header []string
		if len(rows) > 0 {
			header = rows[0]
		}
		return &SchemaError{Path: path, Want: header, Got: columns}
	}

	if err := writeRow(f, sheet, len(rows)+1, row); err != nil {
		return err
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func create(path string, columns []string, row []interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetOf(f)
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := writeRow(f, sheet, 1, header); err != nil {
		return err
	}
	if err := writeRow(f, sheet, 2, row); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func sheetOf(f *excelize.File) string {
	if list := f.GetSheetList(); len(list) > 0 {
		return list[0]
	}
	return SheetName
}

func writeRow(f *excelize.File, sheet string, n int, row []interface{}) error {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		// Undefined scores are left as empty cells.
		if x, ok := v.(float64); ok && math.IsNaN(x) {
			v = nil
		}
		cells[i] = v
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write report row %d: %w", n, err)
	}
	return nil
}

func equalColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Table is a report read back as text cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ReadTable loads the first sheet of a report. Short rows are padded to the
// header width.
func ReadTable(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetOf(f))
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}
	t := &Table{Columns: rows[0]}
	for _, r := range rows[1:] {
		padded := make([]string, max(len(t.Columns), len(r)))
		copy(padded, r)
		t.Rows = append(t.Rows, padded)
	}
	return t, nil
}
