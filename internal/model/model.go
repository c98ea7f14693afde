// Package model implements the estimators used to classify histogram
// signatures: a random forest of CART trees and a projection pipeline
// (PCA or kernel PCA followed by linear discriminant analysis), together with
// their strict JSON configuration, grid search and versioned persistence.
package model

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Classifier is a trainable multi-class estimator over dense feature rows.
// PredictProba columns follow the order of Classes.
type Classifier interface {
	Fit(X mat.Matrix, y []int) error
	Predict(X mat.Matrix) ([]int, error)
	PredictProba(X mat.Matrix) (*mat.Dense, error)
	Classes() []int
	NumFeatures() int
	// Clone returns an unfitted estimator with the same configuration.
	Clone() Classifier
}

// Transformer maps feature rows into a derived space.
type Transformer interface {
	Transform(X mat.Matrix) (*mat.Dense, error)
}

// Importancer exposes per-feature importances of a fitted model.
type Importancer interface {
	FeatureImportances() []float64
}

// ErrNotFitted is returned when a prediction is requested before Fit.
var ErrNotFitted = errors.New("model is not fitted")

// SerializationError reports an unreadable or incompatible model artifact or
// estimator configuration.
type SerializationError struct {
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("serialization: %v", e.Err)
	}
	return fmt.Sprintf("serialization %s: %v", e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// encodeLabels returns the sorted distinct labels of y and y rewritten as
// indices into that list.
func encodeLabels(y []int) (classes, encoded []int) {
	seen := map[int]struct{}{}
	for _, v := range y {
		seen[v] = struct{}{}
	}
	classes = make([]int, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Ints(classes)

	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded = make([]int, len(y))
	for i, v := range y {
		encoded[i] = index[v]
	}
	return classes, encoded
}

// checkTraining validates a training set.
func checkTraining(X mat.Matrix, y []int, minClasses int) error {
	r, c := X.Dims()
	if r != len(y) {
		return fmt.Errorf("X has %d rows but y has %d labels", r, len(y))
	}
	if r == 0 || c == 0 {
		return fmt.Errorf("empty training set")
	}
	classes, _ := encodeLabels(y)
	if len(classes) < minClasses {
		return fmt.Errorf("need at least %d classes, got %d", minClasses, len(classes))
	}
	return nil
}

// checkInput validates the width of prediction input.
func checkInput(X mat.Matrix, features int) error {
	_, c := X.Dims()
	if c != features {
		return fmt.Errorf("input has %d features, model expects %d", c, features)
	}
	return nil
}

// argmaxRows maps each probability row to the class with the largest value.
// Ties resolve to the first class.
func argmaxRows(p *mat.Dense, classes []int) []int {
	r, _ := p.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		out[i] = classes[floats.MaxIdx(p.RawRowView(i))]
	}
	return out
}

// softmaxRows turns each row of scores into probabilities in place.
func softmaxRows(s *mat.Dense) {
	r, _ := s.Dims()
	for i := 0; i < r; i++ {
		row := s.RawRowView(i)
		m := floats.Max(row)
		for j := range row {
			row[j] = math.Exp(row[j] - m)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
}

// columnMeans returns the mean of every column of X.
func columnMeans(X mat.Matrix) []float64 {
	r, c := X.Dims()
	means := make([]float64, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			means[j] += X.At(i, j)
		}
	}
	floats.Scale(1/float64(r), means)
	return means
}

// centred returns X minus the given column means.
func centred(X mat.Matrix, means []float64) *mat.Dense {
	r, c := X.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		for j := 0; j < c; j++ {
			row[j] = X.At(i, j) - means[j]
		}
	}
	return out
}
