package feature

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

// gradientGray returns a w x h gray image whose pixel value is (x+y) % 256.
func gradientGray(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) % 256)})
		}
	}
	return img
}

func TestHistogramLengthAndSum(t *testing.T) {
	img := gradientGray(40, 30)
	for _, n := range []int{1, 100, 225, 256} {
		v, err := Histogram(img, 0, n)
		require.NoError(t, err)
		assert.Len(t, v, n)
		assert.LessOrEqual(t, v.Sum(), float64(40*30))
	}

	full, err := Histogram(img, 0, 256)
	require.NoError(t, err)
	assert.Equal(t, float64(40*30), full.Sum())
}

func TestHistogramClampsLargeFeatureNum(t *testing.T) {
	img := gradientGray(16, 16)
	v, err := Histogram(img, 0, 400)
	require.NoError(t, err)
	assert.Len(t, v, Bins)

	v, err = Histogram(img, 0, 0)
	require.NoError(t, err)
	assert.Len(t, v, Bins)
}

func TestHistogramTruncatesTail(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 1))
	img.Pix = []uint8{0, 10, 230, 255}

	v, err := Histogram(img, 0, DefaultFeatureNum)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.Sum(), "bins 230 and 255 fall outside the first 225")
	assert.Equal(t, 1.0, v[0])
	assert.Equal(t, 1.0, v[10])
}

func TestExtractMergedIsChannelConcatenation(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = 30 // R -> channel 2
		img.Pix[i+1] = 20 // G -> channel 1
		img.Pix[i+2] = 10 // B -> channel 0
		img.Pix[i+3] = 255
	}

	n := 50
	v, err := Extract(img, Merged, n)
	require.NoError(t, err)
	require.Len(t, v, 3*n)

	for c := 0; c < 3; c++ {
		h, err := Histogram(img, c, n)
		require.NoError(t, err)
		assert.Equal(t, h, v[c*n:(c+1)*n], "channel %d", c)
	}
	assert.Equal(t, 64.0, v[10])
	assert.Equal(t, 64.0, v[n+20])
	assert.Equal(t, 64.0, v[2*n+30])
}

func TestExtractMergedRejectsGray(t *testing.T) {
	_, err := Extract(gradientGray(4, 4), Merged, 225)
	assert.Error(t, err)
}

func TestNativeExtractorResizesToCanonical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "E.coli_13nm_10^4_001.tif")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, gradientGray(100, 60), nil))
	require.NoError(t, f.Close())

	v, err := NewNative(Single, 256).Extract(path)
	require.NoError(t, err)
	assert.Len(t, v, 256)
	assert.Equal(t, float64(256*256), v.Sum())

	v, err = NewNative(Single, 225).Extract(path)
	require.NoError(t, err)
	assert.Len(t, v, 225)
}

func TestWithFeatureNumKeepsMode(t *testing.T) {
	ex := NewNative(Merged, 225).WithFeatureNum(Bins)
	assert.Equal(t, Merged, ex.Mode())
	assert.Equal(t, Bins, ex.FeatureNum())
	assert.IsType(t, &NativeExtractor{}, ex)
}

func TestParseModeAndBackend(t *testing.T) {
	m, err := ParseMode("Merged")
	require.NoError(t, err)
	assert.Equal(t, Merged, m)
	assert.Equal(t, 3*225, Dim(m, 225))

	_, err = ParseMode("stacked")
	assert.Error(t, err)

	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendNative, b)
	_, err = ParseBackend("cuda")
	assert.Error(t, err)
}
