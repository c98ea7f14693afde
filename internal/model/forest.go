package model

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"aunp-classifier/internal/parallel"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Forest is a random forest of CART trees. Each tree is grown on a
// bootstrap sample with a random feature subset considered at every split;
// class probabilities are the mean of the trees' leaf distributions.
type Forest struct {
	Config ForestConfig

	Labels      []int
	Trees       []Tree
	Dim         int
	Importances []float64
	OOB         float64 // NaN unless oob_score was requested
}

// NewForest returns an unfitted forest.
func NewForest(cfg ForestConfig) *Forest {
	return &Forest{Config: cfg, OOB: math.NaN()}
}

// workers maps the n_jobs convention onto a goroutine count for
// parallel.ForEach: 0 runs sequentially, negative values use every CPU.
func (f *Forest) workers() int {
	switch {
	case f.Config.NJobs == 0:
		return 1
	case f.Config.NJobs < 0:
		return 0
	default:
		return f.Config.NJobs
	}
}

// Fit grows the trees. With a fixed random_state the result does not depend
// on the number of workers.
func (f *Forest) Fit(X mat.Matrix, y []int) error {
	if err := f.Config.Validate(); err != nil {
		return fmt.Errorf("forest: %w", err)
	}
	if err := checkTraining(X, y, 1); err != nil {
		return fmt.Errorf("forest: %w", err)
	}
	n, d := X.Dims()
	classes, enc := encodeLabels(y)

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}

	params := treeParams{
		criterion:   f.Config.Criterion,
		classes:     len(classes),
		maxFeatures: f.Config.MaxFeatures.Resolve(d),
		minSplit:    f.Config.MinSamplesSplit,
		minLeaf:     f.Config.MinSamplesLeaf,
	}
	if f.Config.MaxDepth != nil {
		params.maxDepth = *f.Config.MaxDepth
	}
	if f.Config.MaxLeafNodes != nil {
		params.maxLeafNodes = *f.Config.MaxLeafNodes
	}

	seed := time.Now().UnixNano()
	if f.Config.RandomState != nil {
		seed = *f.Config.RandomState
	}
	master := rand.New(rand.NewSource(seed))
	seeds := make([]int64, f.Config.NEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]Tree, len(seeds))
	importances := make([][]float64, len(seeds))
	inBag := make([][]bool, len(seeds))
	bootstrap := f.Config.bootstrap()

	err := parallel.ForEach(len(seeds), f.workers(), func(t int) error {
		rng := rand.New(rand.NewSource(seeds[t]))
		w := make([]float64, n)
		if bootstrap {
			for i := 0; i < n; i++ {
				w[rng.Intn(n)]++
			}
		} else {
			for i := range w {
				w[i] = 1
			}
		}
		bag := make([]bool, n)
		idx := make([]int, 0, n)
		for i, v := range w {
			if v > 0 {
				bag[i] = true
				idx = append(idx, i)
			}
		}
		trees[t], importances[t] = growTree(rows, enc, w, idx, params, rng)
		inBag[t] = bag
		return nil
	})
	if err != nil {
		return err
	}

	total := make([]float64, d)
	for _, imp := range importances {
		if s := floats.Sum(imp); s > 0 {
			floats.AddScaled(total, 1/s, imp)
		}
	}
	if s := floats.Sum(total); s > 0 {
		floats.Scale(1/s, total)
	}

	f.Labels = classes
	f.Trees = trees
	f.Dim = d
	f.Importances = total
	f.OOB = math.NaN()
	if f.Config.OOBScore {
		f.OOB = f.oobScore(rows, enc, inBag)
	}
	return nil
}

// oobScore is the accuracy of predicting each sample with only the trees
// that did not see it. Samples that were in every bag are skipped.
func (f *Forest) oobScore(rows [][]float64, enc []int, inBag [][]bool) float64 {
	correct, scored := 0, 0
	votes := make([]float64, len(f.Labels))
	for i, row := range rows {
		for c := range votes {
			votes[c] = 0
		}
		used := false
		for t := range f.Trees {
			if inBag[t][i] {
				continue
			}
			floats.Add(votes, f.Trees[t].leaf(row).Value)
			used = true
		}
		if !used {
			continue
		}
		scored++
		if floats.MaxIdx(votes) == enc[i] {
			correct++
		}
	}
	if scored == 0 {
		return math.NaN()
	}
	return float64(correct) / float64(scored)
}

// PredictProba implements Classifier.
func (f *Forest) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if f.Trees == nil {
		return nil, ErrNotFitted
	}
	if err := checkInput(X, f.Dim); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, len(f.Labels), nil)
	row := make([]float64, f.Dim)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		dst := out.RawRowView(i)
		for t := range f.Trees {
			floats.Add(dst, f.Trees[t].leaf(row).Value)
		}
		floats.Scale(1/float64(len(f.Trees)), dst)
	}
	return out, nil
}

// Predict implements Classifier.
func (f *Forest) Predict(X mat.Matrix) ([]int, error) {
	p, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxRows(p, f.Labels), nil
}

// Classes implements Classifier.
func (f *Forest) Classes() []int { return append([]int(nil), f.Labels...) }

// NumFeatures implements Classifier.
func (f *Forest) NumFeatures() int { return f.Dim }

// Clone implements Classifier.
func (f *Forest) Clone() Classifier { return NewForest(f.Config) }

// FeatureImportances returns the normalised mean impurity decrease of each
// feature. The values sum to 1 unless no tree made a split.
func (f *Forest) FeatureImportances() []float64 {
	return append([]float64(nil), f.Importances...)
}

// OOBScore returns the out-of-bag accuracy, or NaN when it was not computed.
func (f *Forest) OOBScore() float64 { return f.OOB }
