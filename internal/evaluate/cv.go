package evaluate

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"aunp-classifier/internal/dataset"
	"aunp-classifier/internal/logger"
	"aunp-classifier/internal/model"
	"aunp-classifier/internal/parallel"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Scoring names a cross-validation score.
type Scoring string

const (
	ScoringAccuracy         Scoring = "accuracy"
	ScoringROCAUC           Scoring = "roc_auc"
	ScoringAveragePrecision Scoring = "average_precision"
)

// ParseScoring validates a scoring name.
func ParseScoring(s string) (Scoring, error) {
	switch sc := Scoring(strings.ToLower(strings.TrimSpace(s))); sc {
	case ScoringAccuracy, ScoringROCAUC, ScoringAveragePrecision:
		return sc, nil
	default:
		return "", fmt.Errorf("unknown scoring %q", s)
	}
}

// CVOptions controls CrossValScore.
type CVOptions struct {
	Folds   int // Stratified folds, default 30
	Workers int // Parallel folds; <= 0 means one per CPU
	Logger  logger.Logger
}

// DefaultFolds is the fold count of the reported cross-validation scores.
const DefaultFolds = 30

// CrossValScore fits a fresh clone of clf on the training part of every
// stratified fold and scores it on the held-out part. A fold whose score is
// undefined (a single class in its test part) yields NaN; fitting errors
// abort the run.
func CrossValScore(clf model.Classifier, X mat.Matrix, y []int, scoring Scoring, opts CVOptions) ([]float64, error) {
	log := logger.OrNop(opts.Logger)
	k := opts.Folds
	if k == 0 {
		k = DefaultFolds
	}
	folds, sparse, err := dataset.StratifiedKFold(y, k)
	if err != nil {
		return nil, fmt.Errorf("cross validation: %w", err)
	}
	if sparse {
		log.Warning("evaluate", "some class has fewer members than folds", map[string]interface{}{"folds": k})
	}

	scores := make([]float64, len(folds))
	err = parallel.ForEach(len(folds), opts.Workers, func(i int) error {
		f := folds[i]
		est := clf.Clone()
		if err := est.Fit(dataset.Rows(X, f.Train), dataset.Labels(y, f.Train)); err != nil {
			return fmt.Errorf("fold %d: %w", i, err)
		}
		s, err := score(est, dataset.Rows(X, f.Test), dataset.Labels(y, f.Test), scoring)
		if errors.Is(err, ErrUndefined) {
			log.Warning("evaluate", "fold score undefined", map[string]interface{}{"fold": i, "scoring": string(scoring)})
			s, err = math.NaN(), nil
		}
		if err != nil {
			return fmt.Errorf("fold %d: %w", i, err)
		}
		scores[i] = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

func score(clf model.Classifier, X mat.Matrix, y []int, scoring Scoring) (float64, error) {
	switch scoring {
	case ScoringAccuracy:
		pred, err := clf.Predict(X)
		if err != nil {
			return 0, err
		}
		return Accuracy(y, pred)
	case ScoringROCAUC, ScoringAveragePrecision:
		truth, s, err := PositiveScores(clf, X, y)
		if err != nil {
			return 0, err
		}
		if scoring == ScoringROCAUC {
			return ROCAUC(truth, s)
		}
		return AveragePrecision(truth, s)
	default:
		return 0, fmt.Errorf("unknown scoring %q", scoring)
	}
}

// PositiveScores returns the binarised truth and the predicted probability
// of the positive class, which is the larger of the two labels the model
// was trained on.
func PositiveScores(clf model.Classifier, X mat.Matrix, y []int) ([]int, []float64, error) {
	classes := clf.Classes()
	if len(classes) != 2 {
		if len(classes) < 2 {
			return nil, nil, ErrUndefined
		}
		return nil, nil, fmt.Errorf("ranking scores need a binary model, got %d classes", len(classes))
	}
	p, err := clf.PredictProba(X)
	if err != nil {
		return nil, nil, err
	}
	return Binarize(y, classes[1]), mat.Col(nil, 1, p), nil
}

// Summary is the mean and population standard deviation of the defined
// scores, and how many were defined.
func Summary(scores []float64) (mean, std float64, n int) {
	valid := make([]float64, 0, len(scores))
	for _, s := range scores {
		if !math.IsNaN(s) {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return math.NaN(), math.NaN(), 0
	}
	mean, std = stat.PopMeanStdDev(valid, nil)
	return mean, std, len(valid)
}
