// Package experiment runs the classification studies end to end: it loads
// the image folders of each concentration, trains or reloads the models and
// writes figures, side outputs and report rows.
package experiment

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"aunp-classifier/internal/config"
	"aunp-classifier/internal/dataset"
	"aunp-classifier/internal/evaluate"
	"aunp-classifier/internal/feature"
	"aunp-classifier/internal/logger"
	"aunp-classifier/internal/model"
	"aunp-classifier/internal/render"
	"aunp-classifier/internal/report"
	"aunp-classifier/internal/taxonomy"

	"gonum.org/v1/gonum/mat"
)

// ModelExt is the file extension of saved model artifacts.
const ModelExt = ".model"

// Job selects what one run covers. Zero fields fall back to the experiment
// file.
type Job struct {
	ID             string     // Artifact prefix
	Data           string     // Folder below the data root
	Concentrations []string   // Concentration filters, in run order
	Targets        []string   // Organisms or orders to cover; empty means all
	Grid           model.Grid // Parameter grid searched before the final fit
	Reuse          bool       // Evaluate saved models instead of training
}

// Result summarises one trained or evaluated model.
type Result struct {
	Key           string
	Target        string
	Concentration string
	Metrics       evaluate.Metrics
	CVMean        float64
	CVStd         float64
	AUROC         float64 // NaN unless the model is binary
	AUPR          float64
	BestParams    map[string]interface{}
}

// Runner executes jobs against one experiment file.
type Runner struct {
	cfg       *config.Experiment
	catalog   *taxonomy.Catalog
	extractor feature.Extractor
	log       logger.Logger
}

// New returns a runner. A nil logger discards events.
func New(cfg *config.Experiment, catalog *taxonomy.Catalog, extractor feature.Extractor, log logger.Logger) *Runner {
	return &Runner{cfg: cfg, catalog: catalog, extractor: extractor, log: logger.OrNop(log)}
}

func (r *Runner) id(job Job) string {
	if job.ID != "" {
		return job.ID
	}
	return r.cfg.ID
}

func (r *Runner) concentrations(job Job) []string {
	if len(job.Concentrations) > 0 {
		return job.Concentrations
	}
	return r.cfg.ConcentrationsOr(r.catalog.Concentrations())
}

func (r *Runner) grid(job Job) model.Grid {
	if job.Grid != nil {
		return job.Grid
	}
	return r.cfg.Grid
}

func selected(targets []string, name string) bool {
	if len(targets) == 0 {
		return true
	}
	for _, t := range targets {
		if t == name {
			return true
		}
	}
	return false
}

func key(parts ...string) string {
	return strings.Join(parts, "_")
}

func (r *Runner) modelPath(k string) string {
	return filepath.Join(r.cfg.ModelsDir(), k+ModelExt)
}

func (r *Runner) load(dir, concentration string) (*dataset.Dataset, error) {
	return r.loadWith(r.extractor, dir, concentration)
}

func (r *Runner) loadWith(ex feature.Extractor, dir, concentration string) (*dataset.Dataset, error) {
	return dataset.Load(dir, dataset.Options{
		Extractor:     ex,
		Concentration: concentration,
		Blank:         r.catalog.Blank(),
		Workers:       r.cfg.Workers,
		Logger:        r.log,
	})
}

// loadPair loads dir/train and dir/test and checks they share a feature
// space and class list.
func (r *Runner) loadPair(dir, concentration string) (train, test *dataset.Dataset, err error) {
	train, err = r.load(filepath.Join(dir, r.cfg.Train), concentration)
	if err != nil {
		return nil, nil, err
	}
	test, err = r.load(filepath.Join(dir, r.cfg.Test), concentration)
	if err != nil {
		return nil, nil, err
	}
	if err := dataset.CheckCompatible(train, test); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

// spec returns the estimator spec of the model named k: a tuned parameter
// file in the params directory when one exists, else the experiment's spec.
// Forest parameter files hold bare forest settings.
func (r *Runner) spec(k string) (model.Spec, error) {
	base, err := r.cfg.Spec()
	if err != nil {
		return model.Spec{}, err
	}
	path := filepath.Join(r.cfg.ParamsDir(), k+".json")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return base, nil
	}
	r.log.Debug("experiment", "using tuned parameters", map[string]interface{}{"path": path})
	if base.Family == model.FamilyForest {
		cfg, err := model.LoadForestConfig(path)
		if err != nil {
			return model.Spec{}, err
		}
		return model.ForestSpec(cfg), nil
	}
	return model.LoadSpec(path)
}

// fit trains the model named k on train, searching grid first when it is
// non-empty, and saves it.
func (r *Runner) fit(k string, train *dataset.Dataset, grid model.Grid, tags map[string]string) (model.Classifier, map[string]interface{}, error) {
	spec, err := r.spec(k)
	if err != nil {
		return nil, nil, err
	}

	var clf model.Classifier
	var best map[string]interface{}
	if len(grid) > 0 {
		res, err := model.GridSearch(spec, grid, train.X, train.Y, r.cfg.GridFolds, r.cfg.Workers)
		if err != nil {
			return nil, nil, err
		}
		for _, c := range res.Results {
			r.log.Debug("experiment", "grid candidate", map[string]interface{}{"model": k, "params": c.Params, "mean": c.Mean, "std": c.Std})
		}
		r.log.Info("experiment", "grid search done", map[string]interface{}{"model": k, "best": res.BestParams, "score": res.BestScore})
		clf, spec, best = res.Best, res.BestSpec, res.BestParams
	} else {
		clf, err = model.Build(spec)
		if err != nil {
			return nil, nil, err
		}
		if err := clf.Fit(train.X, train.Y); err != nil {
			return nil, nil, fmt.Errorf("train %s: %w", k, err)
		}
	}

	if f, ok := clf.(*model.Forest); ok && !math.IsNaN(f.OOBScore()) {
		r.log.Info("experiment", "out-of-bag score", map[string]interface{}{"model": k, "oob": f.OOBScore()})
	}

	meta := model.MetaFor(train, spec)
	meta.Tags = tags
	if err := model.Save(r.modelPath(k), clf, meta); err != nil {
		return nil, nil, err
	}
	return clf, best, nil
}

// reload reads the saved model named k and checks it against ds.
func (r *Runner) reload(k string, ds *dataset.Dataset) (model.Classifier, error) {
	art, err := model.Load(r.modelPath(k))
	if err != nil {
		return nil, err
	}
	if err := art.Check(ds); err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}
	return art.Model, nil
}

// obtain trains or reloads the model named k.
func (r *Runner) obtain(job Job, k string, train, test *dataset.Dataset, tags map[string]string) (model.Classifier, map[string]interface{}, error) {
	if job.Reuse {
		clf, err := r.reload(k, test)
		return clf, nil, err
	}
	return r.fit(k, train, r.grid(job), tags)
}

// heatmap saves the confusion matrix of pred against test under images/k.png.
func (r *Runner) heatmap(k string, test *dataset.Dataset, pred []int) error {
	cm, err := evaluate.ConfusionMatrix(test.Y, pred, len(test.Classes))
	if err != nil {
		return err
	}
	return r.saveHeatmap(k, cm, r.catalog.Abbrs(test.Classes))
}

func (r *Runner) saveHeatmap(k string, cm mat.Matrix, labels []string) error {
	img, err := render.ConfusionHeatmap(cm, labels, render.DefaultOptions())
	if err != nil {
		return err
	}
	return render.SavePNG(filepath.Join(r.cfg.ImagesDir(), k+".png"), img)
}

// cv cross-validates an unfitted copy of clf on the test set.
func (r *Runner) cv(clf model.Classifier, test *dataset.Dataset, scoring evaluate.Scoring) ([]float64, error) {
	return evaluate.CrossValScore(clf.Clone(), test.X, test.Y, scoring, evaluate.CVOptions{
		Folds:   r.cfg.CVFolds,
		Workers: r.cfg.Workers,
		Logger:  r.log,
	})
}

// projectionOutputs writes the scatter CSV of the discriminant projection
// over train and test, and appends the LDA explained variance ratio.
func (r *Runner) projectionOutputs(id, k string, p *model.Projection, train, test *dataset.Dataset) error {
	all, err := train.Concat(test)
	if err != nil {
		return err
	}
	z, err := p.Transform(all.X)
	if err != nil {
		return err
	}
	if _, c := z.Dims(); c >= 2 {
		if err := report.WriteScatter(filepath.Join(r.cfg.ScatterDir(), k+".csv"), all.Y, z); err != nil {
			return err
		}
	} else {
		r.log.Warning("experiment", "projection has fewer than two axes, no scatter written", map[string]interface{}{"model": k})
	}
	return report.AppendVariance(filepath.Join(r.cfg.VarianceDir(), id+".txt"), k, p.LDA().ExplainedVarianceRatio())
}
