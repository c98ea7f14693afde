package model

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Reducer is the unsupervised first step of a projection pipeline.
type Reducer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (*mat.Dense, error)
	NumComponents() int
}

// newReducer builds the reducer named by cfg.Kind.
func newReducer(cfg ReducerConfig) Reducer {
	if cfg.Kind == "pca" {
		return &PCA{Config: cfg}
	}
	return &KernelPCA{Config: cfg}
}

// PCA is principal component analysis computed from the SVD of the centred
// data.
type PCA struct {
	Config ReducerConfig

	Mean                   []float64
	Components             *mat.Dense // k x features
	ExplainedVariance      []float64
	ExplainedVarianceRatio []float64
}

// Fit learns the principal axes of X.
func (p *PCA) Fit(X mat.Matrix) error {
	n, d := X.Dims()
	if n < 2 || d == 0 {
		return fmt.Errorf("pca: need at least 2 samples, got %d", n)
	}
	p.Mean = columnMeans(X)
	xc := centred(X, p.Mean)

	var svd mat.SVD
	if ok := svd.Factorize(xc, mat.SVDThin); !ok {
		return fmt.Errorf("pca: SVD failed to converge")
	}
	s := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)

	variance := make([]float64, len(s))
	for i, sv := range s {
		variance[i] = sv * sv / float64(n-1)
	}
	total := floats.Sum(variance)

	k := len(s)
	switch nc := p.Config.NComponents; {
	case nc >= 1:
		k = min(int(nc), k)
	case nc > 0:
		// Smallest k reaching the requested share of the variance.
		acc := 0.0
		for i, vr := range variance {
			acc += vr
			if total > 0 && acc/total >= nc {
				k = i + 1
				break
			}
		}
	}

	p.Components = mat.NewDense(k, d, nil)
	p.ExplainedVariance = make([]float64, k)
	p.ExplainedVarianceRatio = make([]float64, k)
	for i := 0; i < k; i++ {
		col := mat.Col(nil, i, &v)
		flipSign(col)
		p.Components.SetRow(i, col)
		p.ExplainedVariance[i] = variance[i]
		if total > 0 {
			p.ExplainedVarianceRatio[i] = variance[i] / total
		}
	}
	return nil
}

// Transform projects X onto the principal axes.
func (p *PCA) Transform(X mat.Matrix) (*mat.Dense, error) {
	if p.Components == nil {
		return nil, ErrNotFitted
	}
	if err := checkInput(X, len(p.Mean)); err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Mul(centred(X, p.Mean), p.Components.T())
	return &out, nil
}

// NumComponents returns the number of retained axes.
func (p *PCA) NumComponents() int {
	if p.Components == nil {
		return 0
	}
	r, _ := p.Components.Dims()
	return r
}

// flipSign makes the entry with the largest magnitude positive, so that
// axes are reproducible across decompositions.
func flipSign(v []float64) {
	best := 0
	for i := range v {
		if math.Abs(v[i]) > math.Abs(v[best]) {
			best = i
		}
	}
	if len(v) > 0 && v[best] < 0 {
		floats.Scale(-1, v)
	}
}

type kernelKind string

const (
	kernelLinear  kernelKind = "linear"
	kernelRBF     kernelKind = "rbf"
	kernelPoly    kernelKind = "poly"
	kernelSigmoid kernelKind = "sigmoid"
	kernelCosine  kernelKind = "cosine"
)

func parseKernel(s string) (kernelKind, error) {
	switch k := kernelKind(strings.ToLower(s)); k {
	case "":
		return kernelLinear, nil
	case kernelLinear, kernelRBF, kernelPoly, kernelSigmoid, kernelCosine:
		return k, nil
	default:
		return "", fmt.Errorf("unknown kernel %q", s)
	}
}

// KernelPCA is PCA in the feature space of a kernel, computed from the
// eigendecomposition of the centred Gram matrix.
type KernelPCA struct {
	Config ReducerConfig

	Kernel string
	Gamma  float64
	Degree int
	Coef0  float64

	TrainX  *mat.Dense
	KMeans  []float64  // Column means of the training Gram matrix
	KMean   float64    // Grand mean of the training Gram matrix
	Alphas  *mat.Dense // n x k eigenvectors scaled by 1/sqrt(lambda)
	Lambdas []float64
}

// Fit learns the kernel principal axes of X. Components with non-positive
// eigenvalues are dropped.
func (k *KernelPCA) Fit(X mat.Matrix) error {
	n, d := X.Dims()
	if n < 2 || d == 0 {
		return fmt.Errorf("kernel pca: need at least 2 samples, got %d", n)
	}
	kind, err := parseKernel(k.Config.Kernel)
	if err != nil {
		return err
	}
	k.Kernel = string(kind)
	k.Gamma = 1 / float64(d)
	if k.Config.Gamma != nil {
		k.Gamma = *k.Config.Gamma
	}
	k.Degree = 3
	if k.Config.Degree > 0 {
		k.Degree = k.Config.Degree
	}
	k.Coef0 = 1
	if k.Config.Coef0 != nil {
		k.Coef0 = *k.Config.Coef0
	}
	k.TrainX = mat.DenseCopyOf(X)

	gram := k.gram(k.TrainX)
	k.KMeans = columnMeans(gram)
	k.KMean = floats.Sum(k.KMeans) / float64(n)
	kc := k.centre(gram)

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, (kc.At(i, j)+kc.At(j, i))/2)
		}
	}
	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return fmt.Errorf("kernel pca: eigendecomposition failed")
	}
	values := es.Values(nil)
	var vectors mat.Dense
	es.VectorsTo(&vectors)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })

	tol := 1e-10 * math.Max(values[order[0]], 1e-300)
	var keep []int
	for _, i := range order {
		if values[i] > tol {
			keep = append(keep, i)
		}
	}
	if want := int(k.Config.NComponents); want > 0 && want < len(keep) {
		keep = keep[:want]
	}
	if len(keep) == 0 {
		return fmt.Errorf("kernel pca: kernel matrix has no positive eigenvalues")
	}

	k.Alphas = mat.NewDense(n, len(keep), nil)
	k.Lambdas = make([]float64, len(keep))
	for c, i := range keep {
		col := mat.Col(nil, i, &vectors)
		flipSign(col)
		floats.Scale(1/math.Sqrt(values[i]), col)
		k.Alphas.SetCol(c, col)
		k.Lambdas[c] = values[i]
	}
	return nil
}

// Transform projects X onto the kernel principal axes.
func (k *KernelPCA) Transform(X mat.Matrix) (*mat.Dense, error) {
	if k.Alphas == nil {
		return nil, ErrNotFitted
	}
	_, d := k.TrainX.Dims()
	if err := checkInput(X, d); err != nil {
		return nil, err
	}
	kc := k.centre(k.gram(X))
	var out mat.Dense
	out.Mul(kc, k.Alphas)
	return &out, nil
}

// NumComponents returns the number of retained axes.
func (k *KernelPCA) NumComponents() int {
	return len(k.Lambdas)
}

// gram evaluates the kernel between the rows of X and the training rows.
func (k *KernelPCA) gram(X mat.Matrix) *mat.Dense {
	m, _ := X.Dims()
	n, _ := k.TrainX.Dims()
	var g mat.Dense
	g.Mul(X, k.TrainX.T())

	var xn, tn []float64
	if kernelKind(k.Kernel) == kernelRBF || kernelKind(k.Kernel) == kernelCosine {
		xn = rowSquaredNorms(X)
		tn = rowSquaredNorms(k.TrainX)
	}

	for i := 0; i < m; i++ {
		row := g.RawRowView(i)
		for j := 0; j < n; j++ {
			dot := row[j]
			switch kernelKind(k.Kernel) {
			case kernelRBF:
				row[j] = math.Exp(-k.Gamma * math.Max(xn[i]+tn[j]-2*dot, 0))
			case kernelPoly:
				row[j] = math.Pow(k.Gamma*dot+k.Coef0, float64(k.Degree))
			case kernelSigmoid:
				row[j] = math.Tanh(k.Gamma*dot + k.Coef0)
			case kernelCosine:
				if den := math.Sqrt(xn[i] * tn[j]); den > 0 {
					row[j] = dot / den
				} else {
					row[j] = 0
				}
			}
		}
	}
	return &g
}

// centre applies training-set centring to a kernel block whose columns are
// training samples.
func (k *KernelPCA) centre(g *mat.Dense) *mat.Dense {
	m, n := g.Dims()
	out := mat.NewDense(m, n, nil)
	for i := 0; i < m; i++ {
		row := g.RawRowView(i)
		rowMean := floats.Sum(row) / float64(n)
		dst := out.RawRowView(i)
		for j := 0; j < n; j++ {
			dst[j] = row[j] - k.KMeans[j] - rowMean + k.KMean
		}
	}
	return out
}

func rowSquaredNorms(X mat.Matrix) []float64 {
	r, c := X.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			out[i] += v * v
		}
	}
	return out
}
