package panels

import (
	"fmt"

	"aunp-classifier/internal/app"
	"aunp-classifier/internal/report"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// Minimum and maximum table column widths, in pixels.
const (
	minColumnWidth = 60
	maxColumnWidth = 220
	charWidth      = 8
)

// NewFigureView shows a PNG figure scaled to fit.
func NewFigureView(path string) fyne.CanvasObject {
	img := fynecanvas.NewImageFromFile(path)
	img.FillMode = fynecanvas.ImageFillContain
	img.SetMinSize(fyne.NewSize(320, 320))
	return img
}

// NewTableView shows a report sheet with its header row.
func NewTableView(tab *report.Table) fyne.CanvasObject {
	table := widget.NewTable(
		func() (int, int) {
			return len(tab.Rows), len(tab.Columns)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("0.000")
		},
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			obj.(*widget.Label).SetText(cellText(tab, id.Row, id.Col))
		},
	)
	table.ShowHeaderRow = true
	table.CreateHeader = func() fyne.CanvasObject {
		return widget.NewLabelWithStyle("header", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	}
	table.UpdateHeader = func(id widget.TableCellID, obj fyne.CanvasObject) {
		if id.Col >= 0 && id.Col < len(tab.Columns) {
			obj.(*widget.Label).SetText(tab.Columns[id.Col])
		}
	}
	for col, w := range columnWidths(tab) {
		table.SetColumnWidth(col, w)
	}
	return table
}

// NewEntryView shows the figure or table of entry, or a label with the
// error when the file cannot be read.
func NewEntryView(entry app.Entry) fyne.CanvasObject {
	title := widget.NewLabelWithStyle(entry.Rel, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	var body fyne.CanvasObject
	switch entry.Kind {
	case app.KindTable:
		tab, err := report.ReadTable(entry.Path)
		if err != nil {
			body = widget.NewLabel(fmt.Sprintf("Cannot read table: %v", err))
			break
		}
		body = NewTableView(tab)
	default:
		body = NewFigureView(entry.Path)
	}
	return container.NewBorder(title, nil, nil, nil, body)
}

func cellText(tab *report.Table, row, col int) string {
	if row < 0 || row >= len(tab.Rows) || col < 0 || col >= len(tab.Rows[row]) {
		return ""
	}
	return tab.Rows[row][col]
}

// columnWidths sizes each column to its longest cell, within bounds.
func columnWidths(tab *report.Table) []float32 {
	widths := make([]float32, len(tab.Columns))
	for col, name := range tab.Columns {
		n := len(name)
		for _, row := range tab.Rows {
			if col < len(row) && len(row[col]) > n {
				n = len(row[col])
			}
		}
		w := float32(n*charWidth + 16)
		if w < minColumnWidth {
			w = minColumnWidth
		}
		if w > maxColumnWidth {
			w = maxColumnWidth
		}
		widths[col] = w
	}
	return widths
}
