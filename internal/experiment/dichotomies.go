package experiment

import (
	"context"
	"path/filepath"

	"aunp-classifier/internal/evaluate"
	"aunp-classifier/internal/report"
	"aunp-classifier/internal/taxonomy"

	"gonum.org/v1/gonum/mat"
)

// Dichotomies trains one binary model per organism on <data>/<organism>.
// The blank organism only runs unfiltered. Per model it appends:
//
//   - an AUROC/AUPR row to <id>_AUROC_AUPR.xlsx,
//   - a metrics and cross-validated accuracy row to <id>_<organism>_Accuracy.xlsx,
//   - cross-validated AUROC and AUPR rows to <id>_AUROC.xlsx and <id>_AUPR.xlsx,
//
// and writes the class-0 probabilities of the test set for ROC plotting.
func (r *Runner) Dichotomies(ctx context.Context, job Job) ([]Result, error) {
	id := r.id(job)
	tables := r.cfg.TablesDir()

	var results []Result
	for _, organism := range r.catalog.WithBlank() {
		if !selected(job.Targets, organism) {
			continue
		}
		concs := r.concentrations(job)
		if organism == r.catalog.Blank() {
			concs = []string{taxonomy.AllConcentrations}
		}

		for _, conc := range concs {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			res, err := r.dichotomy(job, id, organism, conc, tables)
			if err != nil {
				return results, err
			}
			results = append(results, *res)
		}
	}
	return results, nil
}

func (r *Runner) dichotomy(job Job, id, organism, conc, tables string) (*Result, error) {
	k := key(id, organism, conc)
	train, test, err := r.loadPair(r.cfg.Data(job.Data, organism), conc)
	if err != nil {
		return nil, err
	}
	clf, best, err := r.obtain(job, k, train, test, map[string]string{"target": organism, "concentration": conc})
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
	truth, score, err := evaluate.PositiveScores(clf, test.X, test.Y)
	if err != nil {
		return nil, err
	}
	auroc, err := evaluate.ROCAUC(truth, score)
	if err != nil {
		return nil, err
	}
	aupr, err := evaluate.AveragePrecision(truth, score)
	if err != nil {
		return nil, err
	}

	accScores, err := r.cv(clf, test, evaluate.ScoringAccuracy)
	if err != nil {
		return nil, err
	}
	rocScores, err := r.cv(clf, test, evaluate.ScoringROCAUC)
	if err != nil {
		return nil, err
	}
	prScores, err := r.cv(clf, test, evaluate.ScoringAveragePrecision)
	if err != nil {
		return nil, err
	}

	proba, err := clf.PredictProba(test.X)
	if err != nil {
		return nil, err
	}

	if err := r.heatmap(k, test, pred); err != nil {
		return nil, err
	}
	if err := report.WriteProbabilities(filepath.Join(r.cfg.ProbabilityDir(), k+".csv"), test.Y, mat.Col(nil, 0, proba)); err != nil {
		return nil, err
	}

	meta := r.cfg.Metadata
	rows := []struct {
		path    string
		columns []string
		row     []interface{}
	}{
		{filepath.Join(tables, id+"_AUROC_AUPR.xlsx"), report.AUROCColumns(), report.AUROCRow(organism, meta, conc, auroc, aupr, m)},
		{filepath.Join(tables, key(id, organism, "Accuracy")+".xlsx"), report.DefaultColumns(len(accScores)), report.MetricsRow(meta, conc, m, accScores)},
		{filepath.Join(tables, id+"_AUROC.xlsx"), report.TargetScoreColumns(len(rocScores)), report.TargetScoreRow(organism, meta, conc, rocScores)},
		{filepath.Join(tables, id+"_AUPR.xlsx"), report.TargetScoreColumns(len(prScores)), report.TargetScoreRow(organism, meta, conc, prScores)},
	}
	for _, w := range rows {
		if err := report.AppendRow(w.path, w.columns, w.row); err != nil {
			return nil, err
		}
	}

	mean, std, _ := evaluate.Summary(accScores)
	r.log.Info("experiment", "dichotomy assessed", map[string]interface{}{
		"model": k,
		"auroc": auroc,
		"aupr":  aupr,
	})
	return &Result{
		Key:           k,
		Target:        organism,
		Concentration: conc,
		Metrics:       m,
		CVMean:        mean,
		CVStd:         std,
		AUROC:         auroc,
		AUPR:          aupr,
		BestParams:    best,
	}, nil
}
