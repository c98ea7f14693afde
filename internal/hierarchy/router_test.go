package hierarchy

import (
	"errors"
	"testing"

	"aunp-classifier/internal/dataset"
	"aunp-classifier/internal/taxonomy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// columnPredictor predicts the integer stored in one column and records the
// rows it was asked about.
type columnPredictor struct {
	col  int
	seen [][]float64
}

func (p *columnPredictor) Predict(X mat.Matrix) ([]int, error) {
	r, c := X.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		out[i] = int(X.At(i, p.col))
		row := make([]float64, c)
		mat.Row(row, i, X)
		p.seen = append(p.seen, row)
	}
	return out, nil
}

// Orders in the default catalog: Bacillales, Enterobacteriales, E.faecalis,
// S.cerevisiae, xBlank.
func TestRouterPreservesRowOrder(t *testing.T) {
	cat := taxonomy.Default()
	// col 0: order index, col 1: family index, col 2: row id.
	x := mat.NewDense(6, 3, []float64{
		1, 1, 0, // Enterobacteriales -> E.coli
		0, 2, 1, // Bacillales -> S.aureus
		2, 0, 2, // E.faecalis
		1, 4, 3, // Enterobacteriales -> xBlank
		4, 0, 4, // xBlank
		0, 0, 5, // Bacillales -> B.licheniformis
	})

	bac := &columnPredictor{col: 1}
	ent := &columnPredictor{col: 1}
	r := New(cat, &columnPredictor{col: 0}, nil)
	require.NoError(t, r.Register("Bacillales", bac, nil))
	require.NoError(t, r.Register("Enterobacteriales", ent, nil))
	assert.Equal(t, []string{"Bacillales", "Enterobacteriales"}, r.Registered())

	got, err := r.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, []string{"E.coli", "S.aureus", "E.faecalis", "xBlank", "xBlank", "B.licheniformis"}, got)

	// Each family model sees only its own rows, in input order.
	require.Len(t, bac.seen, 2)
	assert.Equal(t, 1.0, bac.seen[0][2])
	assert.Equal(t, 5.0, bac.seen[1][2])
	require.Len(t, ent.seen, 2)
	assert.Equal(t, 0.0, ent.seen[0][2])
	assert.Equal(t, 3.0, ent.seen[1][2])

	idx, err := r.PredictIndices(x)
	require.NoError(t, err)
	eco, _ := cat.SpeciesIndex("E.coli")
	blank, _ := cat.SpeciesIndex("xBlank")
	assert.Equal(t, eco, idx[0])
	assert.Equal(t, blank, idx[4])
}

func TestRouterMissingSubmodel(t *testing.T) {
	cat := taxonomy.Default()
	r := New(cat, &columnPredictor{col: 0}, nil)
	require.NoError(t, r.Register("Bacillales", &columnPredictor{col: 1}, nil))

	_, err := r.Predict(mat.NewDense(2, 2, []float64{0, 0, 1, 0}))
	var me *MissingSubmodelError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "Enterobacteriales", me.Order)

	// No composite rows: no sub-model is needed.
	got, err := New(cat, &columnPredictor{col: 0}, nil).Predict(mat.NewDense(2, 1, []float64{2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []string{"E.faecalis", "S.cerevisiae"}, got)
}

func TestRouterIndexOutOfRange(t *testing.T) {
	cat := taxonomy.Default()
	r := New(cat, &columnPredictor{col: 0}, nil)
	require.NoError(t, r.Register("Bacillales", &columnPredictor{col: 1}, nil))

	var mm *dataset.MismatchError
	_, err := r.Predict(mat.NewDense(1, 2, []float64{9, 0}))
	assert.True(t, errors.As(err, &mm))

	_, err = r.Predict(mat.NewDense(1, 2, []float64{0, 7}))
	assert.True(t, errors.As(err, &mm))

	assert.Error(t, r.Register("E.faecalis", &columnPredictor{}, nil), "leaf orders take no sub-model")
}

func TestRouterCustomNames(t *testing.T) {
	cat := taxonomy.Default()
	// Order model trained on sorted folder names.
	names := []string{"Bacillales", "E.faecalis", "Enterobacteriales", "S.cerevisiae", "xBlank"}
	r := New(cat, &columnPredictor{col: 0}, names)
	require.NoError(t, r.Register("Enterobacteriales", &columnPredictor{col: 1}, []string{"E.cloacae", "E.coli", "S.enterica", "S.marcescens", "xBlank"}))

	got, err := r.Predict(mat.NewDense(2, 2, []float64{1, 0, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []string{"E.faecalis", "S.marcescens"}, got)
}
