// Package render draws the evaluation figures: confusion-matrix heatmaps
// and feature-importance bar charts.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sort"

	"aunp-classifier/internal/evaluate"
	"aunp-classifier/pkg/colorutil"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/mat"
)

// Options configures figure layout.
type Options struct {
	CellSize  int    // Heatmap cell edge in pixels
	BarHeight int    // Bar thickness in pixels
	BarLength int    // Length of the longest bar in pixels
	Margin    int    // Blank border around the plot area
	Decimals  int    // Rounding applied to heatmap annotations
	Colormap  string // Heatmap colormap name
	Title     string
}

// DefaultOptions returns the layout used for saved figures.
func DefaultOptions() Options {
	return Options{
		CellSize:  56,
		BarHeight: 12,
		BarLength: 400,
		Margin:    16,
		Decimals:  3,
		Colormap:  "Reds",
	}
}

var face = basicfont.Face7x13

const (
	glyphW = 7
	lineH  = 13
)

func textWidth(s string) int {
	return font.MeasureString(face, s).Ceil()
}

// drawText draws s with its top-left corner at (x, y).
func drawText(img *image.RGBA, x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(s)
}

// drawVertical draws s top-to-bottom, one glyph per line, centred on x.
func drawVertical(img *image.RGBA, x, y int, s string, c color.Color) {
	for i, r := range s {
		drawText(img, x-glyphW/2, y+i*lineH, string(r), c)
	}
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func strokeRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), c)
	fillRect(img, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), c)
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), c)
	fillRect(img, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), c)
}

func longest(labels []string) int {
	w := 0
	for _, l := range labels {
		w = max(w, textWidth(l))
	}
	return w
}

// ConfusionHeatmap draws the row-normalised confusion matrix cm with its
// cells coloured on [0, 1] and annotated with the rounded value. Rows are
// true labels, columns predicted labels.
func ConfusionHeatmap(cm mat.Matrix, labels []string, opts Options) (*image.RGBA, error) {
	r, c := cm.Dims()
	if r != c {
		return nil, fmt.Errorf("confusion matrix is %dx%d, want square", r, c)
	}
	if len(labels) != r {
		return nil, fmt.Errorf("%d labels for %d classes", len(labels), r)
	}
	if opts.CellSize <= 0 {
		opts.CellSize = DefaultOptions().CellSize
	}
	values := evaluate.Round(evaluate.Normalize(cm), opts.Decimals)
	cmap := colorutil.ByName(opts.Colormap)

	const yTitle, xTitle = "True labels", "Predicted labels"
	cell := opts.CellSize
	rowLabelW := longest(labels) + 6
	top := opts.Margin
	if opts.Title != "" {
		top += lineH + 6
	}
	left := opts.Margin + glyphW + 6 + rowLabelW
	gridW := cell * c
	colLabelH := longest(labels) + 6
	width := left + gridW + opts.Margin
	height := top + gridW + colLabelH + lineH + 6 + opts.Margin
	if h := top + len(yTitle)*lineH + opts.Margin; h > height {
		height = h
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fillRect(img, img.Bounds(), colorutil.White)
	if opts.Title != "" {
		drawText(img, (width-textWidth(opts.Title))/2, opts.Margin, opts.Title, colorutil.Black)
	}

	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := values.At(i, j)
			bg := cmap.At(v)
			rect := image.Rect(left+j*cell, top+i*cell, left+(j+1)*cell, top+(i+1)*cell)
			fillRect(img, rect, bg)
			s := fmt.Sprintf("%.*f", opts.Decimals, v)
			drawText(img, rect.Min.X+(cell-textWidth(s))/2, rect.Min.Y+(cell-lineH)/2, s, colorutil.TextOn(bg))
		}
	}
	strokeRect(img, image.Rect(left, top, left+gridW, top+gridW), colorutil.Black)

	for i, l := range labels {
		y := top + i*cell + (cell-lineH)/2
		drawText(img, left-6-textWidth(l), y, l, colorutil.Black)
	}
	for j, l := range labels {
		// Column labels run downwards under their column.
		drawVertical(img, left+j*cell+cell/2, top+gridW+4, truncate(l, colLabelH/lineH), colorutil.Black)
	}

	drawText(img, left+(gridW-textWidth(xTitle))/2, top+gridW+colLabelH+4, xTitle, colorutil.Black)
	drawVertical(img, opts.Margin+glyphW/2, top+(gridW-len(yTitle)*lineH)/2, yTitle, colorutil.Black)
	return img, nil
}

func truncate(s string, n int) string {
	if n < 1 {
		n = 1
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}

// ImportanceBars draws the top features by importance as horizontal bars,
// largest first. Features with an index below split are drawn in gold, the
// rest in pale blue.
func ImportanceBars(importances []float64, split, top int, opts Options) (*image.RGBA, error) {
	if len(importances) == 0 {
		return nil, fmt.Errorf("no importances to draw")
	}
	if top <= 0 || top > len(importances) {
		top = len(importances)
	}
	def := DefaultOptions()
	if opts.BarHeight <= 0 {
		opts.BarHeight = def.BarHeight
	}
	if opts.BarLength <= 0 {
		opts.BarLength = def.BarLength
	}

	order := make([]int, len(importances))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return importances[order[a]] > importances[order[b]] })
	order = order[:top]

	peak := importances[order[0]]
	labelW := textWidth(fmt.Sprint(len(importances)-1)) + 6
	step := max(opts.BarHeight+4, lineH+2)
	header := 0
	if opts.Title != "" {
		header = lineH + 6
	}
	width := opts.Margin*2 + labelW + opts.BarLength + textWidth("0.0000") + 6
	height := opts.Margin*2 + header + step*top

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fillRect(img, img.Bounds(), colorutil.White)
	if opts.Title != "" {
		drawText(img, (width-textWidth(opts.Title))/2, opts.Margin, opts.Title, colorutil.Black)
	}

	x0 := opts.Margin + labelW
	for k, idx := range order {
		y := opts.Margin + header + k*step
		name := fmt.Sprint(idx)
		drawText(img, x0-6-textWidth(name), y+(step-lineH)/2, name, colorutil.Black)

		bar := colorutil.PaleBlue
		if idx < split {
			bar = colorutil.Gold
		}
		n := 0
		if peak > 0 {
			n = int(float64(opts.BarLength) * importances[idx] / peak)
		}
		by := y + (step-opts.BarHeight)/2
		if n > 0 {
			fillRect(img, image.Rect(x0, by, x0+n, by+opts.BarHeight), bar)
		}
		drawText(img, x0+n+4, y+(step-lineH)/2, fmt.Sprintf("%.4f", importances[idx]), colorutil.Black)
	}
	fillRect(img, image.Rect(x0, opts.Margin+header, x0+1, height-opts.Margin), colorutil.Black)
	return img, nil
}

// SavePNG writes img to path, creating its directory.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create figure directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create figure: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode figure: %w", err)
	}
	return f.Close()
}
