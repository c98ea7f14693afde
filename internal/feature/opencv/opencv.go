// Package opencv provides the OpenCV-backed histogram extractor.
package opencv

import (
	"errors"
	"fmt"
	"image"

	"aunp-classifier/internal/dataset"
	"aunp-classifier/internal/feature"
	aunpimage "aunp-classifier/internal/image"

	"gocv.io/x/gocv"
)

// Extractor reads, resizes and histograms with OpenCV.
type Extractor struct {
	mode       feature.Mode
	featureNum int
}

var _ feature.Extractor = (*Extractor)(nil)

// New returns an OpenCV extractor.
func New(mode feature.Mode, featureNum int) *Extractor {
	return &Extractor{mode: mode, featureNum: feature.ClampFeatureNum(featureNum)}
}

func (e *Extractor) Mode() feature.Mode { return e.mode }
func (e *Extractor) FeatureNum() int    { return e.featureNum }

// WithFeatureNum implements feature.Extractor.
func (e *Extractor) WithFeatureNum(featureNum int) feature.Extractor {
	return New(e.mode, featureNum)
}

// Extract implements feature.Extractor.
func (e *Extractor) Extract(path string) (feature.Vector, error) {
	src := gocv.IMRead(path, gocv.IMReadUnchanged)
	if src.Empty() {
		src.Close()
		return nil, &dataset.LoadError{Path: path, Err: errors.New("failed to decode image")}
	}
	defer src.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	size := image.Point{X: aunpimage.CanonicalSize, Y: aunpimage.CanonicalSize}
	if err := gocv.Resize(src, &resized, size, 0, 0, gocv.InterpolationLinear); err != nil {
		return nil, &dataset.LoadError{Path: path, Err: fmt.Errorf("resize: %w", err)}
	}

	// 16-bit acquisitions are scaled into the 8-bit histogram range.
	if t := resized.Type(); t == gocv.MatTypeCV16UC1 || t == gocv.MatTypeCV16UC3 {
		target := gocv.MatTypeCV8UC1
		if t == gocv.MatTypeCV16UC3 {
			target = gocv.MatTypeCV8UC3
		}
		scaled := gocv.NewMat()
		defer scaled.Close()
		if err := resized.ConvertToWithParams(&scaled, target, 1.0/256.0, 0); err != nil {
			return nil, &dataset.LoadError{Path: path, Err: fmt.Errorf("scale to 8 bit: %w", err)}
		}
		return MatVector(scaled, e.mode, e.featureNum)
	}

	return MatVector(resized, e.mode, e.featureNum)
}

// MatVector builds the feature vector of an 8-bit Mat with CalcHist.
func MatVector(mat gocv.Mat, mode feature.Mode, featureNum int) (feature.Vector, error) {
	if mode == feature.Merged && mat.Channels() != 3 {
		return nil, fmt.Errorf("merged mode needs a 3-channel image, got %d channel(s)", mat.Channels())
	}

	n := feature.ClampFeatureNum(featureNum)
	out := make(feature.Vector, 0, feature.Dim(mode, n))

	mask := gocv.NewMat() // empty mask
	defer mask.Close()

	for c := 0; c < mode.Channels(); c++ {
		hist := gocv.NewMat()
		if err := gocv.CalcHist([]gocv.Mat{mat}, []int{c}, mask, &hist, []int{feature.Bins}, []float64{0, feature.Bins}, false); err != nil {
			hist.Close()
			return nil, fmt.Errorf("histogram of channel %d: %w", c, err)
		}
		for i := 0; i < n; i++ {
			out = append(out, float64(hist.GetFloatAt(i, 0)))
		}
		hist.Close()
	}
	return out, nil
}
