// Package colorutil provides shared color utilities for figure rendering.
package colorutil

import (
	"image/color"
	"math"
)

// Common colors used throughout the figures.
var (
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Grid  = color.RGBA{R: 200, G: 200, B: 200, A: 255}

	// Importance bar colors for features inside and outside the truncated range.
	Gold     = color.RGBA{R: 0xF2, G: 0xBA, B: 0x02, A: 255}
	PaleBlue = color.RGBA{R: 0xDA, G: 0xE3, B: 0xF4, A: 255}
)

// Colormap maps a value in [0, 1] onto a color.
type Colormap struct {
	Name  string
	stops []color.RGBA
}

// Reds is the sequential white-to-dark-red ColorBrewer palette.
var Reds = Colormap{
	Name: "Reds",
	stops: []color.RGBA{
		{0xff, 0xf5, 0xf0, 0xff},
		{0xfe, 0xe0, 0xd2, 0xff},
		{0xfc, 0xbb, 0xa1, 0xff},
		{0xfc, 0x92, 0x72, 0xff},
		{0xfb, 0x6a, 0x4a, 0xff},
		{0xef, 0x3b, 0x2c, 0xff},
		{0xcb, 0x18, 0x1d, 0xff},
		{0xa5, 0x0f, 0x15, 0xff},
		{0x67, 0x00, 0x0d, 0xff},
	},
}

// Blues is the sequential white-to-dark-blue ColorBrewer palette.
var Blues = Colormap{
	Name: "Blues",
	stops: []color.RGBA{
		{0xf7, 0xfb, 0xff, 0xff},
		{0xde, 0xeb, 0xf7, 0xff},
		{0xc6, 0xdb, 0xef, 0xff},
		{0x9e, 0xca, 0xe1, 0xff},
		{0x6b, 0xae, 0xd6, 0xff},
		{0x42, 0x92, 0xc6, 0xff},
		{0x21, 0x71, 0xb5, 0xff},
		{0x08, 0x51, 0x9c, 0xff},
		{0x08, 0x30, 0x6b, 0xff},
	},
}

// ByName returns the colormap with the given name, or Reds.
func ByName(name string) Colormap {
	switch name {
	case Blues.Name:
		return Blues
	default:
		return Reds
	}
}

// At returns the color for v after clamping it to [0, 1]. NaN maps to the
// lowest stop.
func (c Colormap) At(v float64) color.RGBA {
	if len(c.stops) == 0 {
		return Black
	}
	if math.IsNaN(v) || v <= 0 {
		return c.stops[0]
	}
	if v >= 1 {
		return c.stops[len(c.stops)-1]
	}

	pos := v * float64(len(c.stops)-1)
	i := int(pos)
	return Lerp(c.stops[i], c.stops[i+1], pos-float64(i))
}

// Lerp linearly interpolates between a and b.
func Lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}

// Luminance returns the relative luminance (0-1) of c.
func Luminance(c color.RGBA) float64 {
	return (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255.0
}

// TextOn picks black or white text for legibility on the background bg.
func TextOn(bg color.RGBA) color.RGBA {
	if Luminance(bg) < 0.5 {
		return White
	}
	return Black
}
