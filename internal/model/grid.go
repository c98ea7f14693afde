package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"aunp-classifier/internal/dataset"
	"aunp-classifier/internal/parallel"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Grid maps parameter paths to candidate values. Projection parameters use
// step prefixes ("pca__n_components", "lda__solver"); forest parameters use
// the bare configuration key ("max_depth").
type Grid map[string][]interface{}

// Keys returns the parameter paths in sorted order.
func (g Grid) Keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Combinations enumerates every parameter assignment. Keys are sorted and
// the last key varies fastest, so the order is stable across runs.
func (g Grid) Combinations() []map[string]interface{} {
	keys := g.Keys()
	combos := []map[string]interface{}{{}}
	for _, k := range keys {
		var next []map[string]interface{}
		for _, base := range combos {
			for _, v := range g[k] {
				c := make(map[string]interface{}, len(base)+1)
				for bk, bv := range base {
					c[bk] = bv
				}
				c[k] = v
				next = append(next, c)
			}
		}
		combos = next
	}
	return combos
}

// IntRange returns start, start+step, ... below stop as grid values.
func IntRange(start, stop, step int) []interface{} {
	var out []interface{}
	for v := start; v < stop; v += step {
		out = append(out, v)
	}
	return out
}

// WithParams returns a copy of spec with params applied. The result is
// validated with the same strict decoding as configuration files, so an
// unknown parameter name is an error.
func WithParams(spec Spec, params map[string]interface{}) (Spec, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return Spec{}, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Spec{}, err
	}

	for key, value := range params {
		path, err := paramPath(spec.Family, key)
		if err != nil {
			return Spec{}, err
		}
		node := doc
		for _, p := range path[:len(path)-1] {
			child, ok := node[p].(map[string]interface{})
			if !ok {
				child = map[string]interface{}{}
				node[p] = child
			}
			node = child
		}
		node[path[len(path)-1]] = value
	}

	data, err = json.Marshal(doc)
	if err != nil {
		return Spec{}, err
	}
	out, err := ParseSpec(data)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid parameters %v: %w", params, err)
	}
	return out, nil
}

func paramPath(family Family, key string) ([]string, error) {
	if step, name, ok := strings.Cut(key, "__"); ok {
		if family != FamilyProjection {
			return nil, fmt.Errorf("parameter %q names a pipeline step, but the model is a %s", key, family)
		}
		switch step {
		case "pca", "lda":
			return []string{"projection", step, name}, nil
		}
		return nil, fmt.Errorf("unknown pipeline step %q in %q", step, key)
	}
	if family != FamilyForest {
		return nil, fmt.Errorf("parameter %q needs a step prefix (pca__ or lda__)", key)
	}
	return []string{"forest", key}, nil
}

// GridCandidate is the cross-validated result of one parameter assignment.
type GridCandidate struct {
	Params map[string]interface{}
	Spec   Spec
	Scores []float64
	Mean   float64
	Std    float64
}

// GridResult holds every candidate and the best estimator refitted on the
// full training set.
type GridResult struct {
	Best       Classifier
	BestSpec   Spec
	BestParams map[string]interface{}
	BestScore  float64
	Results    []GridCandidate
}

// GridSearch scores every combination of grid over stratified k-fold
// accuracy, picks the highest mean (the first candidate wins ties) and
// refits it on all of X.
func GridSearch(spec Spec, grid Grid, X mat.Matrix, y []int, k, workers int) (*GridResult, error) {
	folds, _, err := dataset.StratifiedKFold(y, k)
	if err != nil {
		return nil, fmt.Errorf("grid search: %w", err)
	}

	combos := grid.Combinations()
	candidates := make([]GridCandidate, len(combos))
	for i, params := range combos {
		s, err := WithParams(spec, params)
		if err != nil {
			return nil, err
		}
		candidates[i] = GridCandidate{Params: params, Spec: s, Scores: make([]float64, len(folds))}
	}

	err = parallel.ForEach(len(candidates)*len(folds), workers, func(job int) error {
		c, f := job/len(folds), job%len(folds)
		clf, err := Build(candidates[c].Spec)
		if err != nil {
			return err
		}
		fold := folds[f]
		if err := clf.Fit(dataset.Rows(X, fold.Train), dataset.Labels(y, fold.Train)); err != nil {
			return fmt.Errorf("candidate %v fold %d: %w", candidates[c].Params, f, err)
		}
		pred, err := clf.Predict(dataset.Rows(X, fold.Test))
		if err != nil {
			return err
		}
		candidates[c].Scores[f] = accuracy(dataset.Labels(y, fold.Test), pred)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("grid search: %w", err)
	}

	best := -1
	for i := range candidates {
		candidates[i].Mean, candidates[i].Std = stat.PopMeanStdDev(candidates[i].Scores, nil)
		if best < 0 || candidates[i].Mean > candidates[best].Mean {
			best = i
		}
	}

	clf, err := Build(candidates[best].Spec)
	if err != nil {
		return nil, err
	}
	if err := clf.Fit(X, y); err != nil {
		return nil, fmt.Errorf("grid search refit: %w", err)
	}
	return &GridResult{
		Best:       clf,
		BestSpec:   candidates[best].Spec,
		BestParams: candidates[best].Params,
		BestScore:  candidates[best].Mean,
		Results:    candidates,
	}, nil
}

func accuracy(truth, pred []int) float64 {
	if len(truth) == 0 {
		return math.NaN()
	}
	hit := 0
	for i := range truth {
		if truth[i] == pred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(truth))
}
