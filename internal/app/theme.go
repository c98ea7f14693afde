package app

import (
	"image/color"

	"aunp-classifier/pkg/colorutil"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// ViewerTheme colours the viewer after the figures it shows: accents come
// from the heatmap colormap and selections use the importance gold. Text and
// padding are tighter than the default so wide report sheets fit.
type ViewerTheme struct {
	fyne.Theme
}

var _ fyne.Theme = (*ViewerTheme)(nil)

// Sizes that differ from the base theme.
const (
	textSize         = 13
	paddingSize      = 3
	innerPaddingSize = 6
)

// NewViewerTheme wraps the default theme.
func NewViewerTheme() *ViewerTheme {
	return &ViewerTheme{Theme: theme.DefaultTheme()}
}

func (t *ViewerTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	dark := variant == theme.VariantDark
	switch name {
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		if dark {
			return colorutil.Reds.At(0.55)
		}
		return colorutil.Reds.At(0.85)
	case theme.ColorNameSelection:
		g := colorutil.Gold
		return color.NRGBA{R: g.R, G: g.G, B: g.B, A: 0x66}
	case theme.ColorNameHyperlink:
		return colorutil.Blues.At(0.8)
	case theme.ColorNameHeaderBackground:
		if !dark {
			return colorutil.Reds.At(0.05)
		}
	}
	return t.Theme.Color(name, variant)
}

func (t *ViewerTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameText:
		return textSize
	case theme.SizeNamePadding:
		return paddingSize
	case theme.SizeNameInnerPadding:
		return innerPaddingSize
	}
	return t.Theme.Size(name)
}
