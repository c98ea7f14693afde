// Package image provides microscopy image loading, canonical resizing and
// per-channel intensity access.
package image

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// CanonicalSize is the width and height every image is resized to before its
// histogram is taken, so that histograms from different source resolutions
// are comparable.
const CanonicalSize = 256

// Sample is a decoded microscopy image.
type Sample struct {
	Path     string      // Original file path
	Image    image.Image // Decoded pixel data
	Format   string      // Decoder name ("tiff", "png", ...)
	Channels int         // 1 for grayscale, 3 for color
	Meta     Meta        // Fields parsed from the file name
}

// Meta holds the acquisition fields encoded in a file name such as
// "E.coli_13nm_10^4_003.tif".
type Meta struct {
	Organism      string
	Diameter      string // e.g. "13nm"
	Concentration string // e.g. "10^4"
	Replicate     int    // -1 when absent
}

// Load decodes the image at path.
func Load(path string) (*Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return &Sample{
		Path:     path,
		Image:    img,
		Format:   format,
		Channels: ChannelCount(img),
		Meta:     ParseName(filepath.Base(path)),
	}, nil
}

// ChannelCount returns 1 for grayscale color models and 3 otherwise.
func ChannelCount(img image.Image) int {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return 1
	default:
		return 3
	}
}

// Canonical resizes img to size x size with bilinear interpolation. Grayscale
// images stay grayscale (8-bit); everything else becomes RGBA. An image that
// already has the target size and an 8-bit layout is returned unchanged.
func Canonical(img image.Image, size int) image.Image {
	b := img.Bounds()
	rect := image.Rect(0, 0, size, size)

	if ChannelCount(img) == 1 {
		if g, ok := img.(*image.Gray); ok && b.Dx() == size && b.Dy() == size {
			return g
		}
		dst := image.NewGray(rect)
		draw.BiLinear.Scale(dst, rect, img, b, draw.Src, nil)
		return dst
	}

	if rgba, ok := img.(*image.RGBA); ok && b.Dx() == size && b.Dy() == size {
		return rgba
	}
	dst := image.NewRGBA(rect)
	draw.BiLinear.Scale(dst, rect, img, b, draw.Src, nil)
	return dst
}

// Intensities returns the 8-bit values of one channel in row-major order.
//
// Channel indices follow the OpenCV BGR convention: for a color image channel
// 0 is blue, 1 is green and 2 is red. Merged three-particle images are written
// with the first particle image in channel 0, so both extraction backends see
// the same channel order. Grayscale images only have channel 0.
func Intensities(img image.Image, channel int) ([]uint8, error) {
	b := img.Bounds()
	out := make([]uint8, 0, b.Dx()*b.Dy())

	switch src := img.(type) {
	case *image.Gray:
		if channel != 0 {
			return nil, fmt.Errorf("grayscale image has no channel %d", channel)
		}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):src.PixOffset(b.Max.X, y)]
			out = append(out, row...)
		}
		return out, nil
	case *image.RGBA:
		if channel < 0 || channel > 2 {
			return nil, fmt.Errorf("color image has no channel %d", channel)
		}
		offset := 2 - channel // BGR index -> RGBA byte offset
		for y := b.Min.Y; y < b.Max.Y; y++ {
			i := src.PixOffset(b.Min.X, y)
			for x := b.Min.X; x < b.Max.X; x++ {
				out = append(out, src.Pix[i+offset])
				i += 4
			}
		}
		return out, nil
	}

	// Generic path for other layouts.
	gray := ChannelCount(img) == 1
	if gray && channel != 0 {
		return nil, fmt.Errorf("grayscale image has no channel %d", channel)
	}
	if !gray && (channel < 0 || channel > 2) {
		return nil, fmt.Errorf("color image has no channel %d", channel)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if gray {
				out = append(out, color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
				continue
			}
			r, g, bl, _ := img.At(x, y).RGBA()
			v := [3]uint32{bl, g, r}[channel]
			out = append(out, uint8(v>>8))
		}
	}
	return out, nil
}

var (
	diameterPattern      = regexp.MustCompile(`^\d+(\.\d+)?nm$`)
	concentrationPattern = regexp.MustCompile(`^10\^\d+$`)
	replicatePattern     = regexp.MustCompile(`^\d+$`)
)

// ParseName extracts organism, particle diameter, concentration and replicate
// number from an underscore-separated file name. Missing fields stay empty.
func ParseName(name string) Meta {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	meta := Meta{Replicate: -1}

	for i, tok := range strings.Split(base, "_") {
		switch {
		case tok == "":
			continue
		case diameterPattern.MatchString(tok):
			meta.Diameter = tok
		case concentrationPattern.MatchString(tok):
			meta.Concentration = tok
		case replicatePattern.MatchString(tok):
			if n, err := strconv.Atoi(tok); err == nil {
				meta.Replicate = n
			}
		case i == 0:
			meta.Organism = tok
		}
	}
	return meta
}

// SupportedFormats returns the list of supported image formats.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// IsTIFF reports whether path has a TIFF extension. Dataset folders only
// contribute TIFF files.
func IsTIFF(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".tif" || ext == ".tiff"
}
