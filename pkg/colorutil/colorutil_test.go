package colorutil

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColormapEnds(t *testing.T) {
	assert.Equal(t, color.RGBA{0xff, 0xf5, 0xf0, 0xff}, Reds.At(0))
	assert.Equal(t, color.RGBA{0x67, 0x00, 0x0d, 0xff}, Reds.At(1))
	assert.Equal(t, Reds.At(0), Reds.At(-3))
	assert.Equal(t, Reds.At(1), Reds.At(7))
	assert.Equal(t, Reds.At(0), Reds.At(math.NaN()))
	assert.Equal(t, color.RGBA{0xfb, 0x6a, 0x4a, 0xff}, Reds.At(0.5), "midpoint is the middle stop")
	assert.Equal(t, Black, Colormap{}.At(0.5))
}

func TestByName(t *testing.T) {
	assert.Equal(t, "Blues", ByName("Blues").Name)
	assert.Equal(t, "Reds", ByName("Reds").Name)
	assert.Equal(t, "Reds", ByName("viridis").Name)
}

func TestLerpAndText(t *testing.T) {
	assert.Equal(t, color.RGBA{128, 128, 128, 255}, Lerp(Black, White, 0.5))
	assert.Equal(t, White, TextOn(Reds.At(1)))
	assert.Equal(t, Black, TextOn(Reds.At(0)))
	assert.InDelta(t, 1.0, Luminance(White), 1e-9)
}
