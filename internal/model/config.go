package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
)

// Family names an estimator family.
type Family string

const (
	FamilyForest     Family = "forest"
	FamilyProjection Family = "projection"
)

// ParseFamily validates a family name.
func ParseFamily(s string) (Family, error) {
	switch f := Family(strings.ToLower(strings.TrimSpace(s))); f {
	case FamilyForest, FamilyProjection:
		return f, nil
	case "rf", "random_forest":
		return FamilyForest, nil
	case "pca_lda", "lda":
		return FamilyProjection, nil
	default:
		return "", fmt.Errorf("unknown model family %q", s)
	}
}

// MaxFeatures is the per-split feature budget of a forest: "sqrt", "log2",
// an absolute count, a fraction of the features, or all features.
type MaxFeatures struct {
	Rule  string  // sqrt, log2, count, fraction or all
	Value float64 // Count or fraction for the numeric rules
}

// Resolve returns the number of features to draw for a problem of dim
// features. The result is clamped to [1, dim].
func (m MaxFeatures) Resolve(dim int) int {
	var n int
	switch m.Rule {
	case "sqrt", "":
		n = int(math.Sqrt(float64(dim)))
	case "log2":
		n = int(math.Log2(float64(dim)))
	case "count":
		n = int(m.Value)
	case "fraction":
		n = int(m.Value * float64(dim))
	default:
		n = dim
	}
	return max(1, min(n, dim))
}

func (m MaxFeatures) MarshalJSON() ([]byte, error) {
	switch m.Rule {
	case "all":
		return []byte("null"), nil
	case "count":
		return json.Marshal(int(m.Value))
	case "fraction":
		// Keep a decimal point so the value decodes back as a fraction.
		s := fmt.Sprintf("%g", m.Value)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return []byte(s), nil
	case "":
		return json.Marshal("sqrt")
	default:
		return json.Marshal(m.Rule)
	}
}

func (m *MaxFeatures) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*m = MaxFeatures{Rule: "all"}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		switch name {
		case "sqrt", "log2":
			*m = MaxFeatures{Rule: name}
			return nil
		case "auto":
			*m = MaxFeatures{Rule: "sqrt"}
			return nil
		}
		return fmt.Errorf("max_features: unknown rule %q", name)
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("max_features: %w", err)
	}
	if strings.ContainsAny(s, ".eE") {
		if v <= 0 || v > 1 {
			return fmt.Errorf("max_features: fraction %v outside (0, 1]", v)
		}
		*m = MaxFeatures{Rule: "fraction", Value: v}
		return nil
	}
	if v < 1 {
		return fmt.Errorf("max_features: count %v must be positive", v)
	}
	*m = MaxFeatures{Rule: "count", Value: v}
	return nil
}

// ForestConfig holds random forest hyperparameters. Field names follow the
// keys of the estimator configuration files.
type ForestConfig struct {
	NEstimators     int         `json:"n_estimators"`
	Criterion       string      `json:"criterion"` // gini, entropy or log_loss
	MaxDepth        *int        `json:"max_depth"` // nil grows until pure
	MaxFeatures     MaxFeatures `json:"max_features"`
	MaxLeafNodes    *int        `json:"max_leaf_nodes"` // set: best-first growth
	MinSamplesSplit int         `json:"min_samples_split"`
	MinSamplesLeaf  int         `json:"min_samples_leaf"`
	Bootstrap       *bool       `json:"bootstrap"`
	OOBScore        bool        `json:"oob_score"`
	RandomState     *int64      `json:"random_state"`
	NJobs           int         `json:"n_jobs"` // 0 or 1 sequential, -1 all CPUs
}

// DefaultForestConfig returns the library defaults for a forest.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		NEstimators:     100,
		Criterion:       "gini",
		MaxFeatures:     MaxFeatures{Rule: "sqrt"},
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
}

// Validate checks ranges and names.
func (c ForestConfig) Validate() error {
	if c.NEstimators < 1 {
		return fmt.Errorf("n_estimators must be >= 1, got %d", c.NEstimators)
	}
	switch c.Criterion {
	case "gini", "entropy", "log_loss":
	default:
		return fmt.Errorf("unknown criterion %q", c.Criterion)
	}
	if c.MaxDepth != nil && *c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be >= 1, got %d", *c.MaxDepth)
	}
	if c.MaxLeafNodes != nil && *c.MaxLeafNodes < 2 {
		return fmt.Errorf("max_leaf_nodes must be >= 2, got %d", *c.MaxLeafNodes)
	}
	if c.MinSamplesSplit < 2 {
		return fmt.Errorf("min_samples_split must be >= 2, got %d", c.MinSamplesSplit)
	}
	if c.MinSamplesLeaf < 1 {
		return fmt.Errorf("min_samples_leaf must be >= 1, got %d", c.MinSamplesLeaf)
	}
	if c.OOBScore && !c.bootstrap() {
		return fmt.Errorf("oob_score requires bootstrap")
	}
	return nil
}

func (c ForestConfig) bootstrap() bool {
	return c.Bootstrap == nil || *c.Bootstrap
}

// ReducerConfig configures the dimensionality-reduction step of a
// projection pipeline.
type ReducerConfig struct {
	Kind        string   `json:"kind,omitempty"`         // kernel_pca (default) or pca
	NComponents float64  `json:"n_components,omitempty"` // 0 keeps all; PCA accepts a variance fraction in (0, 1)
	Kernel      string   `json:"kernel,omitempty"`       // linear (default), rbf, poly, sigmoid, cosine
	Gamma       *float64 `json:"gamma,omitempty"`        // nil means 1/features
	Degree      int      `json:"degree,omitempty"`
	Coef0       *float64 `json:"coef0,omitempty"`
}

// Validate checks ranges and names.
func (c ReducerConfig) Validate() error {
	switch c.Kind {
	case "", "kernel_pca":
		if c.NComponents != math.Trunc(c.NComponents) {
			return fmt.Errorf("kernel_pca n_components must be an integer, got %v", c.NComponents)
		}
		if _, err := parseKernel(c.Kernel); err != nil {
			return err
		}
	case "pca":
		if c.Kernel != "" {
			return fmt.Errorf("pca does not take a kernel")
		}
		if c.NComponents > 1 && c.NComponents != math.Trunc(c.NComponents) {
			return fmt.Errorf("pca n_components must be an integer or a fraction, got %v", c.NComponents)
		}
	default:
		return fmt.Errorf("unknown reducer %q", c.Kind)
	}
	if c.NComponents < 0 {
		return fmt.Errorf("n_components must be >= 0, got %v", c.NComponents)
	}
	if c.Degree < 0 {
		return fmt.Errorf("degree must be >= 0, got %d", c.Degree)
	}
	return nil
}

// LDAConfig configures linear discriminant analysis.
type LDAConfig struct {
	Solver      string   `json:"solver,omitempty"`       // svd (default) or eigen
	NComponents int      `json:"n_components,omitempty"` // 0 keeps classes-1
	Shrinkage   *float64 `json:"shrinkage,omitempty"`    // eigen solver only, in [0, 1]
	Tol         float64  `json:"tol,omitempty"`
}

// Validate checks ranges and names.
func (c LDAConfig) Validate() error {
	switch c.Solver {
	case "", "svd":
		if c.Shrinkage != nil {
			return fmt.Errorf("shrinkage is not supported by the svd solver")
		}
	case "eigen":
	default:
		return fmt.Errorf("unknown lda solver %q", c.Solver)
	}
	if c.NComponents < 0 {
		return fmt.Errorf("lda n_components must be >= 0, got %d", c.NComponents)
	}
	if c.Shrinkage != nil && (*c.Shrinkage < 0 || *c.Shrinkage > 1) {
		return fmt.Errorf("shrinkage must be in [0, 1], got %v", *c.Shrinkage)
	}
	if c.Tol < 0 {
		return fmt.Errorf("tol must be >= 0")
	}
	return nil
}

// ProjectionConfig configures a reducer followed by LDA.
type ProjectionConfig struct {
	PCA ReducerConfig `json:"pca"`
	LDA LDAConfig     `json:"lda"`
}

// Validate checks both steps.
func (c ProjectionConfig) Validate() error {
	if err := c.PCA.Validate(); err != nil {
		return fmt.Errorf("pca: %w", err)
	}
	if err := c.LDA.Validate(); err != nil {
		return fmt.Errorf("lda: %w", err)
	}
	return nil
}

// DefaultProjectionConfig is the kernel PCA + LDA pipeline used for the
// flat nine-class models.
func DefaultProjectionConfig() ProjectionConfig {
	return ProjectionConfig{
		PCA: ReducerConfig{Kind: "kernel_pca", NComponents: 180},
		LDA: LDAConfig{Solver: "svd", NComponents: 2},
	}
}

// Spec is a complete, serialisable estimator description.
type Spec struct {
	Family     Family            `json:"family"`
	Forest     *ForestConfig     `json:"forest,omitempty"`
	Projection *ProjectionConfig `json:"projection,omitempty"`
}

// Validate checks that exactly the block matching Family is present.
func (s Spec) Validate() error {
	switch s.Family {
	case FamilyForest:
		if s.Forest == nil {
			return fmt.Errorf("forest family without forest block")
		}
		if s.Projection != nil {
			return fmt.Errorf("forest family with projection block")
		}
		return s.Forest.Validate()
	case FamilyProjection:
		if s.Projection == nil {
			return fmt.Errorf("projection family without projection block")
		}
		if s.Forest != nil {
			return fmt.Errorf("projection family with forest block")
		}
		return s.Projection.Validate()
	default:
		return fmt.Errorf("unknown model family %q", s.Family)
	}
}

// ForestSpec wraps a forest configuration.
func ForestSpec(c ForestConfig) Spec {
	return Spec{Family: FamilyForest, Forest: &c}
}

// ProjectionSpec wraps a projection configuration.
func ProjectionSpec(c ProjectionConfig) Spec {
	return Spec{Family: FamilyProjection, Projection: &c}
}

// decodeStrict decodes one JSON document, rejecting unknown keys and
// trailing data.
func decodeStrict(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON document")
	}
	return nil
}

// LoadForestConfig reads a forest hyperparameter file. Missing keys keep
// their defaults; unknown keys are rejected.
func LoadForestConfig(path string) (ForestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ForestConfig{}, &SerializationError{Path: path, Err: err}
	}
	cfg := DefaultForestConfig()
	if err := decodeStrict(data, &cfg); err != nil {
		return ForestConfig{}, &SerializationError{Path: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return ForestConfig{}, &SerializationError{Path: path, Err: err}
	}
	return cfg, nil
}

// LoadReducerConfig reads a reducer parameter file such as
// {"n_components": 180}.
func LoadReducerConfig(path string) (ReducerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ReducerConfig{}, &SerializationError{Path: path, Err: err}
	}
	var cfg ReducerConfig
	if err := decodeStrict(data, &cfg); err != nil {
		return ReducerConfig{}, &SerializationError{Path: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return ReducerConfig{}, &SerializationError{Path: path, Err: err}
	}
	return cfg, nil
}

// LoadLDAConfig reads an LDA parameter file such as {"solver": "eigen"}.
func LoadLDAConfig(path string) (LDAConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LDAConfig{}, &SerializationError{Path: path, Err: err}
	}
	var cfg LDAConfig
	if err := decodeStrict(data, &cfg); err != nil {
		return LDAConfig{}, &SerializationError{Path: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return LDAConfig{}, &SerializationError{Path: path, Err: err}
	}
	return cfg, nil
}

// LoadSpec reads a full estimator description.
func LoadSpec(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, &SerializationError{Path: path, Err: err}
	}
	spec, err := ParseSpec(data)
	if err != nil {
		return Spec{}, &SerializationError{Path: path, Err: err}
	}
	return spec, nil
}

// ParseSpec decodes and validates a spec document. A forest block starts
// from DefaultForestConfig.
func ParseSpec(data []byte) (Spec, error) {
	var raw struct {
		Family     Family            `json:"family"`
		Forest     json.RawMessage   `json:"forest,omitempty"`
		Projection *ProjectionConfig `json:"projection,omitempty"`
	}
	if err := decodeStrict(data, &raw); err != nil {
		return Spec{}, err
	}
	family, err := ParseFamily(string(raw.Family))
	if err != nil {
		return Spec{}, err
	}
	spec := Spec{Family: family, Projection: raw.Projection}
	if len(raw.Forest) > 0 && string(raw.Forest) != "null" {
		cfg := DefaultForestConfig()
		if err := decodeStrict(raw.Forest, &cfg); err != nil {
			return Spec{}, fmt.Errorf("forest: %w", err)
		}
		spec.Forest = &cfg
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// SaveSpec writes spec as indented JSON.
func SaveSpec(path string, spec Spec) error {
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal spec: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write spec: %w", err)
	}
	return nil
}

// Build returns an unfitted classifier for spec.
func Build(spec Spec) (Classifier, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	switch spec.Family {
	case FamilyForest:
		return NewForest(*spec.Forest), nil
	default:
		return NewProjection(*spec.Projection), nil
	}
}
