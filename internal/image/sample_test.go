package image

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		name string
		want Meta
	}{
		{"E.coli_13nm_10^4_003.tif", Meta{Organism: "E.coli", Diameter: "13nm", Concentration: "10^4", Replicate: 3}},
		{"10^5_12.tif", Meta{Concentration: "10^5", Replicate: 12}},
		{"blank_3.tif", Meta{Organism: "blank", Replicate: 3}},
		{"S.aureus.tif", Meta{Organism: "S.aureus", Replicate: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseName(tt.name))
		})
	}
}

func TestIntensitiesUsesBGROrder(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	img.Set(1, 0, color.RGBA{R: 4, G: 5, B: 6, A: 255})

	b, err := Intensities(img, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint8{3, 6}, b)

	r, err := Intensities(img, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 4}, r)

	_, err = Intensities(img, 3)
	assert.Error(t, err)
}

func TestIntensitiesGeneric(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 2, 1))
	img.SetGray16(0, 0, color.Gray16{Y: 0x1200})
	img.SetGray16(1, 0, color.Gray16{Y: 0xff00})

	v, err := Intensities(img, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0x12, 0xff}, v)

	_, err = Intensities(img, 1)
	assert.Error(t, err)
}

func TestCanonicalKeepsLayout(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 300, 120))
	out := Canonical(gray, CanonicalSize)
	assert.IsType(t, &image.Gray{}, out)
	assert.Equal(t, image.Rect(0, 0, CanonicalSize, CanonicalSize), out.Bounds())

	rgb := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	out = Canonical(rgb, CanonicalSize)
	assert.IsType(t, &image.RGBA{}, out)
	assert.Equal(t, 3, ChannelCount(out))

	same := image.NewGray(image.Rect(0, 0, CanonicalSize, CanonicalSize))
	assert.Same(t, same, Canonical(same, CanonicalSize))
}

func TestLoadTIFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "S.aureus_60nm_10^6_010.tif")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, image.NewGray(image.Rect(0, 0, 10, 10)), nil))
	require.NoError(t, f.Close())

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tiff", s.Format)
	assert.Equal(t, 1, s.Channels)
	assert.Equal(t, "60nm", s.Meta.Diameter)

	_, err = Load(filepath.Join(t.TempDir(), "missing.tif"))
	assert.Error(t, err)
	assert.True(t, IsTIFF(path))
	assert.False(t, IsTIFF("x.png"))
}
