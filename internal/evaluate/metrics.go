// Package evaluate scores predictions: weighted classification metrics,
// confusion matrices, binary ranking scores and cross-validation.
package evaluate

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Metrics are support-weighted averages over the labels present in either
// the truth or the predictions.
type Metrics struct {
	Accuracy  float64
	Recall    float64
	F1        float64
	Precision float64
}

func checkPair(yTrue, yPred []int) error {
	if len(yTrue) != len(yPred) {
		return fmt.Errorf("label vectors differ in length: %d vs %d", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return fmt.Errorf("no labels to score")
	}
	return nil
}

// Accuracy is the fraction of exact matches.
func Accuracy(yTrue, yPred []int) (float64, error) {
	if err := checkPair(yTrue, yPred); err != nil {
		return 0, err
	}
	hit := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue)), nil
}

// Evaluate computes accuracy and the support-weighted recall, F1 and
// precision. A label that is never predicted has precision 0; a label that
// never occurs has zero weight.
func Evaluate(yTrue, yPred []int) (Metrics, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return Metrics{}, err
	}

	labels := unionLabels(yTrue, yPred)
	tp := make(map[int]float64, len(labels))
	support := make(map[int]float64, len(labels))
	predicted := make(map[int]float64, len(labels))
	for i := range yTrue {
		support[yTrue[i]]++
		predicted[yPred[i]]++
		if yTrue[i] == yPred[i] {
			tp[yTrue[i]]++
		}
	}

	var m Metrics
	m.Accuracy = acc
	n := float64(len(yTrue))
	for _, l := range labels {
		if support[l] == 0 {
			continue
		}
		w := support[l] / n
		p := safeDiv(tp[l], predicted[l])
		r := safeDiv(tp[l], support[l])
		m.Precision += w * p
		m.Recall += w * r
		m.F1 += w * safeDiv(2*p*r, p+r)
	}
	return m, nil
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func unionLabels(a, b []int) []int {
	set := make(map[int]struct{})
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		set[v] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// ConfusionMatrix counts (true, predicted) pairs: row i, column j holds the
// samples of class i predicted as class j. Labels must lie in [0, n).
func ConfusionMatrix(yTrue, yPred []int, n int) (*mat.Dense, error) {
	if err := checkPair(yTrue, yPred); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("confusion matrix needs at least one class")
	}
	cm := mat.NewDense(n, n, nil)
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= n || p < 0 || p >= n {
			return nil, fmt.Errorf("label pair (%d, %d) outside [0, %d)", t, p, n)
		}
		cm.Set(t, p, cm.At(t, p)+1)
	}
	return cm, nil
}

// Normalize divides every row by its sum. All-zero rows stay zero.
func Normalize(cm mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(cm)
	r, _ := out.Dims()
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		if s := floats.Sum(row); s > 0 {
			floats.Scale(1/s, row)
		}
	}
	return out
}

// Round rounds every entry to the given number of decimals.
func Round(m mat.Matrix, decimals int) *mat.Dense {
	out := mat.DenseCopyOf(m)
	scale := math.Pow(10, float64(decimals))
	out.Apply(func(_, _ int, v float64) float64 {
		return math.Round(v*scale) / scale
	}, out)
	return out
}
