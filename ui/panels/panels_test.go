package panels

import (
	"testing"

	"aunp-classifier/internal/app"
	"aunp-classifier/internal/report"

	"github.com/stretchr/testify/assert"
)

func TestFilterEntries(t *testing.T) {
	entries := []app.Entry{
		{Rel: "image/a.png", Kind: app.KindFigure},
		{Rel: "table/a.xlsx", Kind: app.KindTable},
		{Rel: "image/b.png", Kind: app.KindFigure},
	}
	assert.Equal(t, []int{0, 1, 2}, filterEntries(entries, filterAll))
	assert.Equal(t, []int{0, 2}, filterEntries(entries, filterFigures))
	assert.Equal(t, []int{1}, filterEntries(entries, filterTables))
	assert.Nil(t, filterEntries(nil, filterAll))
}

func TestCellTextAndColumnWidths(t *testing.T) {
	tab := &report.Table{
		Columns: []string{"concentration", "Score1"},
		Rows:    [][]string{{"10^4", "0.96666666666666667"}, {"all"}},
	}
	assert.Equal(t, "10^4", cellText(tab, 0, 0))
	assert.Equal(t, "", cellText(tab, 1, 1), "short rows read as empty")
	assert.Equal(t, "", cellText(tab, 5, 0))

	widths := columnWidths(tab)
	assert.Equal(t, []float32{13*charWidth + 16, 19*charWidth + 16}, widths)

	tab.Columns = []string{"x"}
	tab.Rows = nil
	assert.Equal(t, []float32{minColumnWidth}, columnWidths(tab))
}
