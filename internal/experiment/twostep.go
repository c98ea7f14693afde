package experiment

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"aunp-classifier/internal/dataset"
	"aunp-classifier/internal/evaluate"
	"aunp-classifier/internal/hierarchy"
	"aunp-classifier/internal/model"
	"aunp-classifier/internal/report"

	"gonum.org/v1/gonum/mat"
)

// TwoStepName tags the tables and figures of the chained pipeline.
const TwoStepName = "two_step"

// SplitPrefix names the per-order species folders: <data>/split_in_<order>.
const SplitPrefix = "split_in_"

// OrderSplit trains the species model of every composite order on
// <data>/split_in_<order>, saving it as <id>_<order>_<concentration>.
func (r *Runner) OrderSplit(ctx context.Context, job Job) ([]Result, error) {
	id := r.id(job)

	var results []Result
	for _, order := range r.catalog.Composite() {
		if !selected(job.Targets, order) {
			continue
		}
		dir := r.cfg.Data(job.Data, SplitPrefix+order)
		table := filepath.Join(r.cfg.TablesDir(), key(id, order, "Accuracy")+".xlsx")

		for _, conc := range r.concentrations(job) {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			res, err := r.assess(job, id, key(id, order, conc), dir, conc, table,
				map[string]string{"order": order, "concentration": conc})
			if err != nil {
				return results, err
			}
			res.Target = order
			res.Concentration = conc
			results = append(results, *res)
		}
	}
	return results, nil
}

// TwoStep chains the saved order model <id>_<c> with the species models
// <id>_<order>_<c> over <data>/test and appends one row per concentration to
// <id>_two_step.xlsx with TwoStepColumns.
func (r *Runner) TwoStep(ctx context.Context, job Job) ([]Result, error) {
	id := r.id(job)
	table := filepath.Join(r.cfg.TablesDir(), key(id, TwoStepName)+".xlsx")

	var results []Result
	for _, conc := range r.concentrations(job) {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := r.twoStep(job, id, conc, table)
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	return results, nil
}

func (r *Runner) twoStep(job Job, id, conc, table string) (*Result, error) {
	k := key(id, TwoStepName, conc)
	test, err := r.load(r.cfg.Data(job.Data, r.cfg.Test), conc)
	if err != nil {
		return nil, err
	}

	router, err := r.router(id, conc, test)
	if err != nil {
		return nil, err
	}
	pred, err := router.PredictIndices(test.X)
	if err != nil {
		return nil, err
	}

	truth := make([]int, test.Len())
	for i, y := range test.Y {
		idx, ok := r.catalog.SpeciesIndex(test.Classes[y])
		if !ok {
			return nil, &dataset.MismatchError{What: "test class", Want: r.catalog.WithBlank(), Got: test.Classes[y]}
		}
		truth[i] = idx
	}

	m, err := evaluate.Evaluate(truth, pred)
	if err != nil {
		return nil, err
	}
	names := r.catalog.WithBlank()
	cm, err := evaluate.ConfusionMatrix(truth, pred, len(names))
	if err != nil {
		return nil, err
	}
	cm, keep := compact(cm)
	labels := make([]string, len(keep))
	for i, idx := range keep {
		labels[i] = r.catalog.Abbr(names[idx])
	}
	if err := r.saveHeatmap(k, cm, labels); err != nil {
		return nil, err
	}

	if err := report.AppendRow(table, report.TwoStepColumns(), report.TwoStepRow(conc, m)); err != nil {
		return nil, err
	}
	r.log.Info("experiment", "two-step pipeline assessed", map[string]interface{}{"model": k, "accuracy": m.Accuracy})
	return &Result{
		Key:           k,
		Concentration: conc,
		Metrics:       m,
		CVMean:        math.NaN(),
		CVStd:         math.NaN(),
		AUROC:         math.NaN(),
		AUPR:          math.NaN(),
	}, nil
}

// router loads the order model and the species model of every composite
// order the order model can predict.
func (r *Runner) router(id, conc string, test *dataset.Dataset) (*hierarchy.Router, error) {
	order, err := model.Load(r.modelPath(key(id, conc)))
	if err != nil {
		return nil, err
	}
	if err := r.checkSpace(order, test); err != nil {
		return nil, err
	}

	router := hierarchy.New(r.catalog, order.Model, order.Header.Classes)
	for _, name := range order.Header.Classes {
		if !r.catalog.IsComposite(name) {
			continue
		}
		sub, err := model.Load(r.modelPath(key(id, name, conc)))
		if err != nil {
			return nil, fmt.Errorf("%s species model: %w", name, err)
		}
		if err := r.checkSpace(sub, test); err != nil {
			return nil, err
		}
		if err := router.Register(name, sub.Model, sub.Header.Classes); err != nil {
			return nil, err
		}
	}
	return router, nil
}

// checkSpace compares an artifact's feature space with ds. Class lists differ
// by construction in the two-step pipeline and are not compared.
func (r *Runner) checkSpace(art *model.Artifact, ds *dataset.Dataset) error {
	h := art.Header
	if h.Mode != ds.Mode {
		return &dataset.MismatchError{What: "image mode", Want: h.Mode, Got: ds.Mode}
	}
	if h.FeatureNum != ds.FeatureNum {
		return &dataset.MismatchError{What: "feature_num", Want: h.FeatureNum, Got: ds.FeatureNum}
	}
	if h.FeatureDim != ds.Dim() {
		return &dataset.MismatchError{What: "feature dimension", Want: h.FeatureDim, Got: ds.Dim()}
	}
	return nil
}

// compact drops the classes that occur neither as truth nor as prediction,
// returning the reduced matrix and the kept indices.
func compact(cm *mat.Dense) (*mat.Dense, []int) {
	n, _ := cm.Dims()
	var keep []int
	for i := 0; i < n; i++ {
		if mat.Sum(cm.RowView(i)) > 0 || mat.Sum(cm.ColView(i)) > 0 {
			keep = append(keep, i)
		}
	}
	out := mat.NewDense(len(keep), len(keep), nil)
	for a, i := range keep {
		for b, j := range keep {
			out.Set(a, b, cm.At(i, j))
		}
	}
	return out, keep
}
