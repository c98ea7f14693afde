package feature

import (
	"fmt"
	"strings"

	aunpimage "aunp-classifier/internal/image"
)

// Extractor turns an image file into a feature vector: decode, resize to the
// canonical 256x256, then histogram.
type Extractor interface {
	Extract(path string) (Vector, error)
	Mode() Mode
	FeatureNum() int
	// WithFeatureNum returns an extractor of the same mode and backend that
	// keeps featureNum bins per channel.
	WithFeatureNum(featureNum int) Extractor
}

// Backend names an extractor implementation.
type Backend string

const (
	BackendNative Backend = "native" // Pure Go decoding and resizing
	BackendOpenCV Backend = "opencv" // gocv IMRead / Resize / CalcHist
)

// ParseBackend validates a backend name. Empty selects the native backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BackendNative, nil
	case BackendNative, BackendOpenCV:
		return b, nil
	default:
		return "", fmt.Errorf("unknown extraction backend %q", s)
	}
}

// NewNative returns the pure Go extractor.
func NewNative(mode Mode, featureNum int) *NativeExtractor {
	return &NativeExtractor{mode: mode, featureNum: ClampFeatureNum(featureNum)}
}

// NativeExtractor decodes with the standard image decoders (TIFF via
// golang.org/x/image) and resizes with x/image/draw.
type NativeExtractor struct {
	mode       Mode
	featureNum int
}

func (e *NativeExtractor) Mode() Mode      { return e.mode }
func (e *NativeExtractor) FeatureNum() int { return e.featureNum }

// WithFeatureNum implements Extractor.
func (e *NativeExtractor) WithFeatureNum(featureNum int) Extractor {
	return NewNative(e.mode, featureNum)
}

// Extract implements Extractor.
func (e *NativeExtractor) Extract(path string) (Vector, error) {
	sample, err := aunpimage.Load(path)
	if err != nil {
		return nil, err
	}
	img := aunpimage.Canonical(sample.Image, aunpimage.CanonicalSize)
	return Extract(img, e.mode, e.featureNum)
}
