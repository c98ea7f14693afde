package model

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// blobs returns per-class Gaussian clusters whose centres are spread along
// the first features.
func blobs(classes, per, dim int, spread float64, seed int64) (*mat.Dense, []int) {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(classes*per, dim, nil)
	y := make([]int, 0, classes*per)
	for c := 0; c < classes; c++ {
		for i := 0; i < per; i++ {
			row := x.RawRowView(c*per + i)
			for j := range row {
				row[j] = rng.NormFloat64() * spread
			}
			row[c%dim] += 10
			row[(c+1)%dim] += 5 * float64(c)
			y = append(y, c)
		}
	}
	return x, y
}

func trainAccuracy(t *testing.T, clf Classifier, x mat.Matrix, y []int) float64 {
	t.Helper()
	pred, err := clf.Predict(x)
	require.NoError(t, err)
	return accuracy(y, pred)
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestForestSeparatesBlobs(t *testing.T) {
	x, y := blobs(3, 20, 8, 1, 1)
	cfg := DefaultForestConfig()
	cfg.NEstimators = 25
	cfg.RandomState = int64Ptr(100)
	cfg.OOBScore = true

	f := NewForest(cfg)
	require.NoError(t, f.Fit(x, y))
	assert.Equal(t, []int{0, 1, 2}, f.Classes())
	assert.Equal(t, 8, f.NumFeatures())
	assert.GreaterOrEqual(t, trainAccuracy(t, f, x, y), 0.95)

	imp := f.FeatureImportances()
	assert.Len(t, imp, 8)
	assert.InDelta(t, 1.0, floats.Sum(imp), 1e-9)

	oob := f.OOBScore()
	assert.False(t, math.IsNaN(oob))
	assert.True(t, oob >= 0 && oob <= 1)

	p, err := f.PredictProba(x)
	require.NoError(t, err)
	for i := 0; i < len(y); i++ {
		assert.InDelta(t, 1.0, floats.Sum(p.RawRowView(i)), 1e-9)
	}
}

func TestForestDeterministicAcrossWorkers(t *testing.T) {
	x, y := blobs(3, 15, 6, 2, 2)
	cfg := DefaultForestConfig()
	cfg.NEstimators = 12
	cfg.RandomState = int64Ptr(7)

	cfg.NJobs = 1
	a := NewForest(cfg)
	require.NoError(t, a.Fit(x, y))
	cfg.NJobs = 4
	b := NewForest(cfg)
	require.NoError(t, b.Fit(x, y))

	pa, err := a.PredictProba(x)
	require.NoError(t, err)
	pb, err := b.PredictProba(x)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pa, pb))
	assert.Equal(t, a.FeatureImportances(), b.FeatureImportances())
}

func TestForestGrowthLimits(t *testing.T) {
	x, y := blobs(4, 15, 6, 3, 3)
	cfg := DefaultForestConfig()
	cfg.NEstimators = 5
	cfg.RandomState = int64Ptr(1)
	cfg.MaxLeafNodes = intPtr(4)
	cfg.Criterion = "entropy"

	f := NewForest(cfg)
	require.NoError(t, f.Fit(x, y))
	for _, tree := range f.Trees {
		assert.LessOrEqual(t, tree.Leaves(), 4)
	}

	cfg.MaxLeafNodes = nil
	cfg.MaxDepth = intPtr(2)
	f = NewForest(cfg)
	require.NoError(t, f.Fit(x, y))
	for _, tree := range f.Trees {
		assert.LessOrEqual(t, tree.Depth(), 2)
	}
}

func TestForestRejectsBadInput(t *testing.T) {
	x, y := blobs(2, 5, 3, 1, 4)
	f := NewForest(DefaultForestConfig())
	_, err := f.Predict(x)
	assert.ErrorIs(t, err, ErrNotFitted)

	assert.Error(t, f.Fit(x, y[:3]))

	require.NoError(t, f.Fit(x, y))
	_, err = f.Predict(mat.NewDense(1, 4, nil))
	assert.Error(t, err)

	bad := DefaultForestConfig()
	bad.Criterion = "mse"
	assert.Error(t, NewForest(bad).Fit(x, y))
}

func TestPCAExplainedVariance(t *testing.T) {
	x, _ := blobs(3, 10, 5, 1, 5)

	all := &PCA{}
	require.NoError(t, all.Fit(x))
	assert.Equal(t, 5, all.NumComponents())
	assert.InDelta(t, 1.0, floats.Sum(all.ExplainedVarianceRatio), 1e-9)
	for i := 1; i < len(all.ExplainedVariance); i++ {
		assert.GreaterOrEqual(t, all.ExplainedVariance[i-1], all.ExplainedVariance[i])
	}

	frac := &PCA{Config: ReducerConfig{Kind: "pca", NComponents: 0.5}}
	require.NoError(t, frac.Fit(x))
	assert.Less(t, frac.NumComponents(), 5)

	z, err := frac.Transform(x)
	require.NoError(t, err)
	r, c := z.Dims()
	assert.Equal(t, 30, r)
	assert.Equal(t, frac.NumComponents(), c)
}

func TestKernelPCALinearMatchesPCA(t *testing.T) {
	x, _ := blobs(2, 8, 4, 1, 6)
	p := &PCA{Config: ReducerConfig{Kind: "pca", NComponents: 2}}
	require.NoError(t, p.Fit(x))
	k := &KernelPCA{Config: ReducerConfig{NComponents: 2}}
	require.NoError(t, k.Fit(x))

	zp, err := p.Transform(x)
	require.NoError(t, err)
	zk, err := k.Transform(x)
	require.NoError(t, err)

	// Same axes up to sign.
	for c := 0; c < 2; c++ {
		a, b := mat.Col(nil, c, zp), mat.Col(nil, c, zk)
		if floats.Dot(a, b) < 0 {
			floats.Scale(-1, b)
		}
		assert.True(t, floats.EqualApprox(a, b, 1e-6))
	}
}

func TestKernelPCAKernels(t *testing.T) {
	x, _ := blobs(2, 6, 3, 1, 7)
	for _, kernel := range []string{"linear", "rbf", "poly", "sigmoid", "cosine"} {
		t.Run(kernel, func(t *testing.T) {
			k := &KernelPCA{Config: ReducerConfig{Kernel: kernel}}
			require.NoError(t, k.Fit(x))
			assert.Greater(t, k.NumComponents(), 0)
			z, err := k.Transform(mat.DenseCopyOf(x.Slice(0, 2, 0, 3)))
			require.NoError(t, err)
			r, _ := z.Dims()
			assert.Equal(t, 2, r)
		})
	}
	assert.Error(t, (&KernelPCA{Config: ReducerConfig{Kernel: "laplace"}}).Fit(x))
}

func TestLDASolvers(t *testing.T) {
	x, y := blobs(3, 15, 5, 1, 8)
	for _, solver := range []string{"svd", "eigen"} {
		t.Run(solver, func(t *testing.T) {
			l := NewLDA(LDAConfig{Solver: solver})
			require.NoError(t, l.Fit(x, y))
			assert.Equal(t, 1.0, trainAccuracy(t, l, x, y))

			ratio := l.ExplainedVarianceRatio()
			assert.Len(t, ratio, 2)
			assert.GreaterOrEqual(t, ratio[0], ratio[1])
			assert.InDelta(t, 1.0, floats.Sum(ratio), 1e-6)

			z, err := l.Transform(x)
			require.NoError(t, err)
			_, c := z.Dims()
			assert.Equal(t, 2, c)
		})
	}
}

func TestLDAShrinkage(t *testing.T) {
	// More features than samples: the covariance is singular.
	x, y := blobs(2, 6, 20, 1, 9)
	s := 0.3
	l := NewLDA(LDAConfig{Solver: "eigen", Shrinkage: &s})
	require.NoError(t, l.Fit(x, y))
	assert.Equal(t, 1.0, trainAccuracy(t, l, x, y))

	assert.Error(t, NewLDA(LDAConfig{Solver: "svd", Shrinkage: &s}).Fit(x, y))
}

func TestProjectionPipeline(t *testing.T) {
	x, y := blobs(4, 12, 10, 1, 10)
	cfg := ProjectionConfig{
		PCA: ReducerConfig{Kind: "kernel_pca", NComponents: 6},
		LDA: LDAConfig{Solver: "svd", NComponents: 2},
	}
	p := NewProjection(cfg)
	require.NoError(t, p.Fit(x, y))
	assert.Equal(t, 1.0, trainAccuracy(t, p, x, y))

	z, err := p.Transform(x)
	require.NoError(t, err)
	r, c := z.Dims()
	assert.Equal(t, 48, r)
	assert.Equal(t, 2, c)
	assert.Len(t, p.LDA().ExplainedVarianceRatio(), 2)

	clone := p.Clone()
	assert.Equal(t, 0, clone.NumFeatures())
	_, err = clone.Predict(x)
	assert.ErrorIs(t, err, ErrNotFitted)
}
