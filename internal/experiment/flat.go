package experiment

import (
	"context"
	"math"
	"path/filepath"

	"aunp-classifier/internal/evaluate"
	"aunp-classifier/internal/model"
	"aunp-classifier/internal/report"
)

// Flat trains one multi-class model per concentration on <data>/train,
// scores it on <data>/test and appends a metrics and cross-validation row to
// <id>_Accuracy.xlsx. Projection models also write the scatter CSV and the
// LDA variance line.
func (r *Runner) Flat(ctx context.Context, job Job) ([]Result, error) {
	id := r.id(job)
	dir := r.cfg.Data(job.Data)
	table := filepath.Join(r.cfg.TablesDir(), id+"_Accuracy.xlsx")

	var results []Result
	for _, conc := range r.concentrations(job) {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		k := key(id, conc)
		res, err := r.assess(job, id, k, dir, conc, table, map[string]string{"concentration": conc})
		if err != nil {
			return results, err
		}
		res.Concentration = conc
		results = append(results, *res)
	}
	return results, nil
}

// Evaluate is Flat over saved models: nothing is trained.
func (r *Runner) Evaluate(ctx context.Context, job Job) ([]Result, error) {
	job.Reuse = true
	return r.Flat(ctx, job)
}

// assess obtains the model named k for the train/test pair under dir, writes
// its heatmap and projection outputs, and appends a DefaultColumns row to
// table.
func (r *Runner) assess(job Job, id, k, dir, conc, table string, tags map[string]string) (*Result, error) {
	train, test, err := r.loadPair(dir, conc)
	if err != nil {
		return nil, err
	}
	clf, best, err := r.obtain(job, k, train, test, tags)
	if err != nil {
		return nil, err
	}

	pred, err := clf.Predict(test.X)
	if err != nil {
		return nil, err
	}
	m, err := evaluate.Evaluate(test.Y, pred)
	if err != nil {
		return nil, err
	}
	scores, err := r.cv(clf, test, evaluate.ScoringAccuracy)
	if err != nil {
		return nil, err
	}

	if err := r.heatmap(k, test, pred); err != nil {
		return nil, err
	}
	if p, ok := clf.(*model.Projection); ok {
		if err := r.projectionOutputs(id, k, p, train, test); err != nil {
			return nil, err
		}
	}
	if err := report.AppendRow(table, report.DefaultColumns(len(scores)),
		report.MetricsRow(r.cfg.Metadata, conc, m, scores)); err != nil {
		return nil, err
	}

	mean, std, _ := evaluate.Summary(scores)
	r.log.Info("experiment", "model assessed", map[string]interface{}{
		"model":    k,
		"accuracy": m.Accuracy,
		"cv_mean":  mean,
		"train":    train.Len(),
		"test":     test.Len(),
	})
	return &Result{
		Key:        k,
		Metrics:    m,
		CVMean:     mean,
		CVStd:      std,
		AUROC:      math.NaN(),
		AUPR:       math.NaN(),
		BestParams: best,
	}, nil
}

