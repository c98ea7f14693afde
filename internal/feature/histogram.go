// Package feature turns microscopy images into fixed-length grayscale
// histogram vectors.
//
// A single-channel vector holds the first featureNum bins of a 256-bin
// intensity histogram. A merged vector is the concatenation of the three
// per-channel vectors in channel order 0, 1, 2.
package feature

import (
	"fmt"
	"image"
	"strings"

	aunpimage "aunp-classifier/internal/image"
)

// Bins is the number of histogram bins over the 8-bit intensity range.
const Bins = 256

// DefaultFeatureNum keeps bins 0-224, dropping the saturated tail.
const DefaultFeatureNum = 225

// Vector is a histogram feature vector of bin counts.
type Vector []float64

// Mode selects how many channels contribute to a vector.
type Mode int

const (
	Single Mode = iota // One grayscale channel
	Merged             // Three channels, one per particle diameter
)

func (m Mode) String() string {
	switch m {
	case Single:
		return "single"
	case Merged:
		return "merged"
	default:
		return "unknown"
	}
}

// Channels returns the number of channels read in this mode.
func (m Mode) Channels() int {
	if m == Merged {
		return 3
	}
	return 1
}

// ParseMode parses "single" or "merged" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return Single, nil
	case "merged":
		return Merged, nil
	default:
		return Single, fmt.Errorf("unknown image mode %q (want single or merged)", s)
	}
}

// ClampFeatureNum maps requests above the bin count, or non-positive ones, to
// the full histogram.
func ClampFeatureNum(featureNum int) int {
	if featureNum <= 0 || featureNum > Bins {
		return Bins
	}
	return featureNum
}

// Dim returns the vector length produced for mode and featureNum.
func Dim(mode Mode, featureNum int) int {
	return mode.Channels() * ClampFeatureNum(featureNum)
}

// Counts returns the full 256-bin histogram of one channel.
func Counts(img image.Image, channel int) ([Bins]float64, error) {
	var hist [Bins]float64
	values, err := aunpimage.Intensities(img, channel)
	if err != nil {
		return hist, err
	}
	for _, v := range values {
		hist[v]++
	}
	return hist, nil
}

// Histogram returns the first featureNum bins of one channel's histogram.
func Histogram(img image.Image, channel, featureNum int) (Vector, error) {
	hist, err := Counts(img, channel)
	if err != nil {
		return nil, err
	}
	n := ClampFeatureNum(featureNum)
	out := make(Vector, n)
	copy(out, hist[:n])
	return out, nil
}

// Extract builds the feature vector of img for mode. It does not resize;
// callers pass canonical images.
func Extract(img image.Image, mode Mode, featureNum int) (Vector, error) {
	if mode == Merged && aunpimage.ChannelCount(img) != 3 {
		return nil, fmt.Errorf("merged mode needs a 3-channel image, got %d channel(s)", aunpimage.ChannelCount(img))
	}

	out := make(Vector, 0, Dim(mode, featureNum))
	for c := 0; c < mode.Channels(); c++ {
		h, err := Histogram(img, c, featureNum)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", c, err)
		}
		out = append(out, h...)
	}
	return out, nil
}

// Sum returns the total count held in v.
func (v Vector) Sum() float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}
