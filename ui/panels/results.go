// Package panels provides UI panels for the results viewer.
package panels

import (
	"fmt"

	"aunp-classifier/internal/app"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// ResultsPanel lists the figures and tables of the results directory.
type ResultsPanel struct {
	state     *app.State
	container fyne.CanvasObject

	list    *widget.List
	filter  *widget.Select
	summary *widget.Label

	visible []int // Indices into the state's entries that pass the filter
}

const (
	filterAll     = "All"
	filterFigures = "Figures"
	filterTables  = "Tables"
)

// NewResultsPanel creates a new results panel.
func NewResultsPanel(state *app.State) *ResultsPanel {
	rp := &ResultsPanel{state: state}

	rp.list = widget.NewList(
		func() int {
			return len(rp.visible)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("table/result_name.xlsx")
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			label := obj.(*widget.Label)
			entries, _ := state.Snapshot()
			if id < len(rp.visible) && rp.visible[id] < len(entries) {
				label.SetText(entries[rp.visible[id]].Rel)
			}
		},
	)
	rp.list.OnSelected = func(id widget.ListItemID) {
		if id < len(rp.visible) {
			_ = state.Select(rp.visible[id])
		}
	}

	rp.summary = widget.NewLabel("No results directory")

	// SetSelected fires OnChanged, so list and summary must exist first.
	rp.filter = widget.NewSelect([]string{filterAll, filterFigures, filterTables}, func(string) {
		rp.Refresh()
	})
	rp.filter.SetSelected(filterAll)

	rp.container = container.NewBorder(container.NewVBox(rp.filter, rp.summary), nil, nil, nil, rp.list)

	state.On(app.EventResultsLoaded, func(interface{}) {
		rp.Refresh()
	})
	return rp
}

// Container returns the panel's root object.
func (rp *ResultsPanel) Container() fyne.CanvasObject {
	return rp.container
}

// Refresh re-applies the filter to the state's entries.
func (rp *ResultsPanel) Refresh() {
	entries, selected := rp.state.Snapshot()
	rp.visible = filterEntries(entries, rp.filter.Selected)

	figures, tables := 0, 0
	for _, e := range entries {
		if e.Kind == app.KindTable {
			tables++
		} else {
			figures++
		}
	}
	rp.summary.SetText(fmt.Sprintf("%d figures, %d tables", figures, tables))

	rp.list.UnselectAll()
	rp.list.Refresh()
	for i, idx := range rp.visible {
		if idx == selected {
			rp.list.Select(i)
			break
		}
	}
}

// filterEntries returns the indices of the entries shown under filter.
func filterEntries(entries []app.Entry, filter string) []int {
	var out []int
	for i, e := range entries {
		switch {
		case filter == filterFigures && e.Kind != app.KindFigure:
			continue
		case filter == filterTables && e.Kind != app.KindTable:
			continue
		}
		out = append(out, i)
	}
	return out
}
