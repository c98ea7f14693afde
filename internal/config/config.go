// Package config loads experiment files: where the image folders live, where
// run outputs go, and how features are extracted and models evaluated.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"aunp-classifier/internal/feature"
	"aunp-classifier/internal/model"
	"aunp-classifier/internal/report"
	"aunp-classifier/internal/taxonomy"

	"gopkg.in/yaml.v3"
)

// Outputs are the directories run artifacts are written to. Relative paths
// are resolved against Root.
type Outputs struct {
	Root        string `yaml:"root"`
	Models      string `yaml:"models"`
	Tables      string `yaml:"tables"`
	Images      string `yaml:"images"`
	Scatter     string `yaml:"scatter"`
	Variance    string `yaml:"variance"`
	Probability string `yaml:"probability"`
	Params      string `yaml:"params"`
}

// Experiment is one experiment file.
type Experiment struct {
	ID       string `yaml:"id"`        // Prefix of every artifact name
	DataRoot string `yaml:"data_root"` // Folder holding train/ and test/
	Train    string `yaml:"train"`
	Test     string `yaml:"test"`

	Outputs Outputs `yaml:"outputs"`

	Mode       string `yaml:"mode"`        // single or merged
	FeatureNum int    `yaml:"feature_num"` // Histogram bins kept per channel
	Backend    string `yaml:"backend"`     // native or opencv

	Concentrations []string `yaml:"concentrations"` // Empty means the catalog's list
	CVFolds        int      `yaml:"cv_folds"`
	GridFolds      int      `yaml:"grid_folds"`
	Workers        int      `yaml:"workers"`

	Family string     `yaml:"family"` // Estimator family when Model is empty
	Model  string     `yaml:"model"`  // Estimator spec JSON
	Grid   model.Grid `yaml:"grid"`

	Metadata report.Metadata `yaml:"metadata"`
	LogLevel string          `yaml:"log_level"`

	Taxonomy *taxonomy.Spec `yaml:"taxonomy"`

	path string
}

// Default returns the settings of the merged-image random-forest runs.
func Default() *Experiment {
	return &Experiment{
		ID:       "nine_merged",
		DataRoot: "data",
		Train:    "train",
		Test:     "test",
		Outputs: Outputs{
			Root:        ".",
			Models:      "model",
			Tables:      "table",
			Images:      "image",
			Scatter:     "scatter",
			Variance:    "variance",
			Probability: "probability",
			Params:      "params",
		},
		Mode:       "merged",
		FeatureNum: feature.DefaultFeatureNum,
		Backend:    string(feature.BackendNative),
		CVFolds:    30,
		GridFolds:  10,
		Family:     string(model.FamilyForest),
		Metadata:   report.DefaultMetadata(),
		LogLevel:   "info",
	}
}

// Load reads an experiment file over Default. Unknown keys are rejected.
func Load(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	exp, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	exp.path = path
	return exp, nil
}

// Parse decodes experiment YAML over Default and validates it.
func Parse(data []byte) (*Experiment, error) {
	exp := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(exp); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid experiment file: %w", err)
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

// Save writes the experiment as YAML.
func (e *Experiment) Save(path string) error {
	data, err := yaml.Marshal(e)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks every enumerated field.
func (e *Experiment) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is empty")
	}
	if _, err := feature.ParseMode(e.Mode); err != nil {
		return err
	}
	if _, err := feature.ParseBackend(e.Backend); err != nil {
		return err
	}
	if e.Model == "" {
		if _, err := model.ParseFamily(e.Family); err != nil {
			return err
		}
	}
	if e.CVFolds < 2 {
		return fmt.Errorf("cv_folds must be at least 2, got %d", e.CVFolds)
	}
	if e.GridFolds < 2 {
		return fmt.Errorf("grid_folds must be at least 2, got %d", e.GridFolds)
	}
	if e.Taxonomy != nil {
		if _, err := taxonomy.New(*e.Taxonomy); err != nil {
			return err
		}
	}
	return nil
}

// Catalog builds the taxonomy, applying the override block when present.
func (e *Experiment) Catalog() (*taxonomy.Catalog, error) {
	if e.Taxonomy == nil {
		return taxonomy.Default(), nil
	}
	return taxonomy.New(*e.Taxonomy)
}

// ImageMode returns the parsed image mode.
func (e *Experiment) ImageMode() feature.Mode {
	m, _ := feature.ParseMode(e.Mode)
	return m
}

// ConcentrationsOr returns the configured concentrations, or fallback.
func (e *Experiment) ConcentrationsOr(fallback []string) []string {
	if len(e.Concentrations) > 0 {
		return append([]string(nil), e.Concentrations...)
	}
	return fallback
}

// Spec returns the estimator spec: the JSON file named by Model, or the
// family defaults.
func (e *Experiment) Spec() (model.Spec, error) {
	if e.Model != "" {
		return model.LoadSpec(e.Resolve(e.Model))
	}
	family, err := model.ParseFamily(e.Family)
	if err != nil {
		return model.Spec{}, err
	}
	if family == model.FamilyProjection {
		return model.ProjectionSpec(model.DefaultProjectionConfig()), nil
	}
	return model.ForestSpec(model.DefaultForestConfig()), nil
}

// Resolve makes p absolute relative to the experiment file's directory.
func (e *Experiment) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || e.path == "" {
		return p
	}
	return filepath.Join(filepath.Dir(e.path), p)
}

// Data returns a path below the data root.
func (e *Experiment) Data(elem ...string) string {
	return filepath.Join(append([]string{e.Resolve(e.DataRoot)}, elem...)...)
}

func (e *Experiment) output(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(e.Resolve(e.Outputs.Root), dir)
}

// ModelsDir and its siblings return resolved output directories.
func (e *Experiment) ModelsDir() string      { return e.output(e.Outputs.Models) }
func (e *Experiment) TablesDir() string      { return e.output(e.Outputs.Tables) }
func (e *Experiment) ImagesDir() string      { return e.output(e.Outputs.Images) }
func (e *Experiment) ScatterDir() string     { return e.output(e.Outputs.Scatter) }
func (e *Experiment) VarianceDir() string    { return e.output(e.Outputs.Variance) }
func (e *Experiment) ProbabilityDir() string { return e.output(e.Outputs.Probability) }
func (e *Experiment) ParamsDir() string      { return e.output(e.Outputs.Params) }
