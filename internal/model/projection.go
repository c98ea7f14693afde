package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Projection is a reducer (PCA or kernel PCA) followed by LDA. It classifies
// with the LDA and transforms into the discriminant space for scatter plots.
type Projection struct {
	Config  ProjectionConfig
	Reducer Reducer
	Disc    *LDA
	Dim     int
}

// NewProjection returns an unfitted pipeline.
func NewProjection(cfg ProjectionConfig) *Projection {
	return &Projection{Config: cfg}
}

// Fit fits the reducer on X and the LDA on the reduced rows.
func (p *Projection) Fit(X mat.Matrix, y []int) error {
	if err := checkTraining(X, y, 2); err != nil {
		return fmt.Errorf("projection: %w", err)
	}
	if err := p.Config.Validate(); err != nil {
		return fmt.Errorf("projection: %w", err)
	}
	reducer := newReducer(p.Config.PCA)
	if err := reducer.Fit(X); err != nil {
		return err
	}
	z, err := reducer.Transform(X)
	if err != nil {
		return err
	}
	disc := NewLDA(p.Config.LDA)
	if err := disc.Fit(z, y); err != nil {
		return err
	}
	_, p.Dim = X.Dims()
	p.Reducer = reducer
	p.Disc = disc
	return nil
}

func (p *Projection) reduce(X mat.Matrix) (*mat.Dense, error) {
	if p.Disc == nil {
		return nil, ErrNotFitted
	}
	if err := checkInput(X, p.Dim); err != nil {
		return nil, err
	}
	return p.Reducer.Transform(X)
}

// Transform maps X into the discriminant space.
func (p *Projection) Transform(X mat.Matrix) (*mat.Dense, error) {
	z, err := p.reduce(X)
	if err != nil {
		return nil, err
	}
	return p.Disc.Transform(z)
}

// Predict implements Classifier.
func (p *Projection) Predict(X mat.Matrix) ([]int, error) {
	z, err := p.reduce(X)
	if err != nil {
		return nil, err
	}
	return p.Disc.Predict(z)
}

// PredictProba implements Classifier.
func (p *Projection) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	z, err := p.reduce(X)
	if err != nil {
		return nil, err
	}
	return p.Disc.PredictProba(z)
}

// Classes implements Classifier.
func (p *Projection) Classes() []int {
	if p.Disc == nil {
		return nil
	}
	return p.Disc.Classes()
}

// NumFeatures implements Classifier.
func (p *Projection) NumFeatures() int { return p.Dim }

// Clone implements Classifier.
func (p *Projection) Clone() Classifier { return NewProjection(p.Config) }

// LDA returns the fitted discriminant step.
func (p *Projection) LDA() *LDA { return p.Disc }
