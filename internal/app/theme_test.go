package app

import (
	"image/color"
	"testing"

	"aunp-classifier/pkg/colorutil"

	"fyne.io/fyne/v2"
	fynetest "fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/theme"
	"github.com/stretchr/testify/assert"
)

func TestViewerThemeColors(t *testing.T) {
	fynetest.NewTempApp(t)
	th := NewViewerTheme()
	base := theme.DefaultTheme()

	assert.Equal(t, colorutil.Reds.At(0.85), th.Color(theme.ColorNamePrimary, theme.VariantLight))
	assert.Equal(t, colorutil.Reds.At(0.55), th.Color(theme.ColorNamePrimary, theme.VariantDark))
	assert.Equal(t, color.NRGBA{R: 0xF2, G: 0xBA, B: 0x02, A: 0x66}, th.Color(theme.ColorNameSelection, theme.VariantLight))
	assert.Equal(t, colorutil.Reds.At(0.05), th.Color(theme.ColorNameHeaderBackground, theme.VariantLight))

	assert.Equal(t, base.Color(theme.ColorNameHeaderBackground, theme.VariantDark),
		th.Color(theme.ColorNameHeaderBackground, theme.VariantDark))
	assert.Equal(t, base.Color(theme.ColorNameBackground, theme.VariantLight),
		th.Color(theme.ColorNameBackground, theme.VariantLight))
}

func TestViewerThemeSizes(t *testing.T) {
	th := NewViewerTheme()
	base := theme.DefaultTheme()

	assert.Equal(t, float32(13), th.Size(theme.SizeNameText))
	assert.Equal(t, float32(3), th.Size(theme.SizeNamePadding))
	assert.Equal(t, float32(6), th.Size(theme.SizeNameInnerPadding))
	assert.Equal(t, base.Size(theme.SizeNameScrollBar), th.Size(theme.SizeNameScrollBar))
	assert.NotNil(t, th.Font(fyne.TextStyle{Bold: true}))
}
