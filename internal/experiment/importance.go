package experiment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"aunp-classifier/internal/feature"
	"aunp-classifier/internal/model"
	"aunp-classifier/internal/render"
	"aunp-classifier/internal/report"
)

// ImportanceTop is the number of features drawn in an importance chart.
const ImportanceTop = 40

// Importance refits the forest of each concentration on <data>/train and
// splits its feature importances at the default truncation: bins below
// feature.DefaultFeatureNum against the saturated tail. Features are always
// extracted with all feature.Bins bins, whatever the experiment's
// feature_num. It writes one bar chart per concentration and
// <id>_feature_importance.csv with the sums.
func (r *Runner) Importance(ctx context.Context, job Job) ([]report.ImportanceSum, error) {
	id := r.id(job)
	split := feature.DefaultFeatureNum
	full := r.extractor.WithFeatureNum(feature.Bins)

	var sums []report.ImportanceSum
	dim := 0
	for _, conc := range r.concentrations(job) {
		if err := ctx.Err(); err != nil {
			return sums, err
		}
		k := key(id, conc)
		train, err := r.loadWith(full, r.cfg.Data(job.Data, r.cfg.Train), conc)
		if err != nil {
			return sums, err
		}

		clf, err := r.importanceModel(k)
		if err != nil {
			return sums, err
		}
		if err := clf.Fit(train.X, train.Y); err != nil {
			return sums, fmt.Errorf("train %s: %w", k, err)
		}
		imp, ok := clf.(model.Importancer)
		if !ok {
			return sums, fmt.Errorf("%s: %T has no feature importances", k, clf)
		}
		values := imp.FeatureImportances()
		dim = len(values)

		opts := render.DefaultOptions()
		opts.Title = "Feature importance " + conc
		img, err := render.ImportanceBars(values, split, ImportanceTop, opts)
		if err != nil {
			return sums, err
		}
		if err := render.SavePNG(filepath.Join(r.cfg.ImagesDir(), key(id, "feature_importance", conc)+".png"), img); err != nil {
			return sums, err
		}
		sums = append(sums, report.SplitImportances(conc, values, split))
	}

	if len(sums) > 0 {
		path := filepath.Join(r.cfg.TablesDir(), key(id, "feature_importance")+".csv")
		if err := report.WriteImportanceSums(path, split, dim, sums); err != nil {
			return sums, err
		}
	}
	return sums, nil
}

// importanceModel returns an unfitted forest configured like the saved model
// k, or built from the experiment's spec when none was saved.
func (r *Runner) importanceModel(k string) (model.Classifier, error) {
	art, err := model.Load(r.modelPath(k))
	if err == nil {
		return art.Model.Clone(), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	spec, err := r.spec(k)
	if err != nil {
		return nil, err
	}
	if spec.Family != model.FamilyForest {
		return nil, fmt.Errorf("feature importances need a forest, got %s", spec.Family)
	}
	return model.Build(spec)
}
