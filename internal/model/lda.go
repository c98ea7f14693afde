package model

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LDA is linear discriminant analysis with a covariance matrix shared by all
// classes. It classifies with the linear discriminant functions and projects
// onto the directions that maximise between-class over within-class scatter.
type LDA struct {
	Config LDAConfig

	Labels    []int
	Priors    []float64
	Means     *mat.Dense // classes x features
	XBar      []float64
	Coef      *mat.Dense // classes x features
	Intercept []float64
	Scalings  *mat.Dense // features x axes
	// VarianceRatio is the share of between-class variance explained by each
	// retained axis.
	VarianceRatio []float64
}

// NewLDA returns an unfitted LDA.
func NewLDA(cfg LDAConfig) *LDA {
	return &LDA{Config: cfg}
}

// Fit estimates class means, the shared covariance and the discriminant axes.
func (l *LDA) Fit(X mat.Matrix, y []int) error {
	if err := checkTraining(X, y, 2); err != nil {
		return fmt.Errorf("lda: %w", err)
	}
	if err := l.Config.Validate(); err != nil {
		return fmt.Errorf("lda: %w", err)
	}
	n, d := X.Dims()
	classes, enc := encodeLabels(y)
	k := len(classes)

	counts := make([]float64, k)
	means := mat.NewDense(k, d, nil)
	for i := 0; i < n; i++ {
		counts[enc[i]]++
		row := means.RawRowView(enc[i])
		for j := 0; j < d; j++ {
			row[j] += X.At(i, j)
		}
	}
	priors := make([]float64, k)
	for c := 0; c < k; c++ {
		floats.Scale(1/counts[c], means.RawRowView(c))
		priors[c] = counts[c] / float64(n)
	}
	xbar := make([]float64, d)
	for c := 0; c < k; c++ {
		floats.AddScaled(xbar, priors[c], means.RawRowView(c))
	}

	// Within-class scatter.
	within := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		row := within.RawRowView(i)
		mu := means.RawRowView(enc[i])
		for j := 0; j < d; j++ {
			row[j] = X.At(i, j) - mu[j]
		}
	}
	sw := mat.NewSymDense(d, nil)
	sw.SymOuterK(1/float64(n), within.T())

	if l.Config.Shrinkage != nil {
		s := *l.Config.Shrinkage
		mu := mat.Trace(sw) / float64(d)
		for i := 0; i < d; i++ {
			for j := i; j < d; j++ {
				v := (1 - s) * sw.At(i, j)
				if i == j {
					v += s * mu
				}
				sw.SetSym(i, j, v)
			}
		}
	}

	// Between-class scatter.
	centredMeans := mat.NewDense(k, d, nil)
	for c := 0; c < k; c++ {
		row := centredMeans.RawRowView(c)
		copy(row, means.RawRowView(c))
		floats.Sub(row, xbar)
		floats.Scale(math.Sqrt(priors[c]), row)
	}
	sb := mat.NewSymDense(d, nil)
	sb.SymOuterK(1, centredMeans.T())

	whiten, precision, err := l.whitening(sw)
	if err != nil {
		return err
	}

	var coef mat.Dense
	coef.Mul(means, precision)
	intercept := make([]float64, k)
	for c := 0; c < k; c++ {
		intercept[c] = -0.5*floats.Dot(means.RawRowView(c), coef.RawRowView(c)) + math.Log(priors[c])
	}

	scalings, ratio, err := discriminantAxes(whiten, sb)
	if err != nil {
		return err
	}
	axes := min(k-1, len(ratio))
	if l.Config.NComponents > 0 {
		axes = min(axes, l.Config.NComponents)
	}
	l.Scalings = mat.DenseCopyOf(scalings.Slice(0, d, 0, axes))
	l.VarianceRatio = ratio[:axes]

	l.Labels = classes
	l.Priors = priors
	l.Means = means
	l.XBar = xbar
	l.Coef = &coef
	l.Intercept = intercept
	return nil
}

// whitening returns W with W^T Sw W = I on the retained subspace, and the
// (pseudo-)inverse of Sw used by the discriminant functions.
func (l *LDA) whitening(sw *mat.SymDense) (*mat.Dense, *mat.Dense, error) {
	d := sw.SymmetricDim()

	if l.Config.Solver == "eigen" {
		// Regularise just enough for a Cholesky factorisation.
		ridge := 1e-6 * math.Max(mat.Trace(sw)/float64(d), 1e-12)
		reg := mat.NewSymDense(d, nil)
		reg.CopySym(sw)
		for i := 0; i < d; i++ {
			reg.SetSym(i, i, reg.At(i, i)+ridge)
		}
		var chol mat.Cholesky
		if ok := chol.Factorize(reg); !ok {
			return nil, nil, fmt.Errorf("lda: within-class covariance is not positive definite")
		}
		var inv mat.SymDense
		if err := chol.InverseTo(&inv); err != nil {
			return nil, nil, fmt.Errorf("lda: failed to invert covariance: %w", err)
		}
		// W = L^-T gives W^T reg W = I.
		var lower mat.TriDense
		chol.LTo(&lower)
		var lowerInv mat.TriDense
		if err := lowerInv.InverseTri(&lower); err != nil {
			return nil, nil, fmt.Errorf("lda: failed to invert Cholesky factor: %w", err)
		}
		w := mat.DenseCopyOf(lowerInv.T())
		return w, mat.DenseCopyOf(&inv), nil
	}

	var es mat.EigenSym
	if ok := es.Factorize(sw, true); !ok {
		return nil, nil, fmt.Errorf("lda: eigendecomposition of covariance failed")
	}
	values := es.Values(nil)
	var vectors mat.Dense
	es.VectorsTo(&vectors)

	rel := 1e-8
	if l.Config.Tol > 0 {
		rel = l.Config.Tol * l.Config.Tol
	}
	top := floats.Max(values)
	var keep []int
	for i, v := range values {
		if v > rel*top && v > 0 {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, nil, fmt.Errorf("lda: within-class covariance is zero")
	}
	w := mat.NewDense(d, len(keep), nil)
	for c, i := range keep {
		col := mat.Col(nil, i, &vectors)
		floats.Scale(1/math.Sqrt(values[i]), col)
		w.SetCol(c, col)
	}
	var precision mat.Dense
	precision.Mul(w, w.T())
	return w, &precision, nil
}

// discriminantAxes solves the between/within eigenproblem in the whitened
// space and returns the axes in input space with their variance ratios,
// ordered by decreasing eigenvalue.
func discriminantAxes(w *mat.Dense, sb *mat.SymDense) (*mat.Dense, []float64, error) {
	_, r := w.Dims()
	var tmp, b mat.Dense
	tmp.Mul(sb, w)
	b.Mul(w.T(), &tmp)

	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			sym.SetSym(i, j, (b.At(i, j)+b.At(j, i))/2)
		}
	}
	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, nil, fmt.Errorf("lda: eigendecomposition of between-class scatter failed")
	}
	values := es.Values(nil)
	var vectors mat.Dense
	es.VectorsTo(&vectors)

	order := make([]int, r)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })

	total := 0.0
	for _, v := range values {
		if v > 0 {
			total += v
		}
	}
	u := mat.NewDense(r, r, nil)
	ratio := make([]float64, r)
	for c, i := range order {
		col := mat.Col(nil, i, &vectors)
		flipSign(col)
		u.SetCol(c, col)
		if total > 0 && values[i] > 0 {
			ratio[c] = values[i] / total
		}
	}
	var axes mat.Dense
	axes.Mul(w, u)
	return &axes, ratio, nil
}

// Transform projects X onto the discriminant axes.
func (l *LDA) Transform(X mat.Matrix) (*mat.Dense, error) {
	if l.Scalings == nil {
		return nil, ErrNotFitted
	}
	if err := checkInput(X, len(l.XBar)); err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Mul(centred(X, l.XBar), l.Scalings)
	return &out, nil
}

// DecisionFunction returns the linear discriminant scores, one column per
// class.
func (l *LDA) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if l.Coef == nil {
		return nil, ErrNotFitted
	}
	if err := checkInput(X, len(l.XBar)); err != nil {
		return nil, err
	}
	var scores mat.Dense
	scores.Mul(X, l.Coef.T())
	r, _ := scores.Dims()
	for i := 0; i < r; i++ {
		floats.Add(scores.RawRowView(i), l.Intercept)
	}
	return &scores, nil
}

// PredictProba implements Classifier.
func (l *LDA) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	scores, err := l.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	softmaxRows(scores)
	return scores, nil
}

// Predict implements Classifier.
func (l *LDA) Predict(X mat.Matrix) ([]int, error) {
	scores, err := l.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	return argmaxRows(scores, l.Labels), nil
}

// Classes implements Classifier.
func (l *LDA) Classes() []int { return append([]int(nil), l.Labels...) }

// NumFeatures implements Classifier.
func (l *LDA) NumFeatures() int { return len(l.XBar) }

// Clone implements Classifier.
func (l *LDA) Clone() Classifier { return NewLDA(l.Config) }

// ExplainedVarianceRatio returns the variance share of each retained axis.
func (l *LDA) ExplainedVarianceRatio() []float64 {
	return append([]float64(nil), l.VarianceRatio...)
}
