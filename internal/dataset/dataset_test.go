package dataset

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aunp-classifier/internal/feature"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/mat"
)

// writeGray writes a small grayscale TIFF filled with one intensity.
func writeGray(t *testing.T, path string, v uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, img, nil))
	require.NoError(t, f.Close())
}

// buildTree creates root/<class>/<class>_<conc>_<i>.tif for each class and
// concentration.
func buildTree(t *testing.T, classes, concs []string, perConc int) string {
	t.Helper()
	root := t.TempDir()
	for ci, class := range classes {
		dir := filepath.Join(root, class)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for _, conc := range concs {
			for i := 0; i < perConc; i++ {
				name := fmt.Sprintf("%s_13nm_%s_%03d.tif", class, conc, i)
				writeGray(t, filepath.Join(dir, name), uint8(ci*40+i))
			}
		}
	}
	return root
}

func TestLoadLabelsFollowSortedClassNames(t *testing.T) {
	root := buildTree(t, []string{"S.aureus", "E.coli", "xBlank"}, []string{"10^4", "10^5"}, 2)

	ds, err := Load(root, Options{Extractor: feature.NewNative(feature.Single, 225), Concentration: "all", Blank: "xBlank"})
	require.NoError(t, err)

	assert.Equal(t, []string{"E.coli", "S.aureus", "xBlank"}, ds.Classes)
	assert.Equal(t, 12, ds.Len())
	assert.Equal(t, 225, ds.Dim())
	assert.Equal(t, []int{4, 4, 4}, ds.ClassCounts())
	for _, y := range ds.Y {
		assert.True(t, y >= 0 && y < len(ds.Classes))
	}

	again, err := Load(root, Options{Extractor: feature.NewNative(feature.Single, 225), Concentration: "all", Blank: "xBlank", Workers: 1})
	require.NoError(t, err)
	assert.Equal(t, ds.Y, again.Y)
	assert.Equal(t, ds.Files, again.Files)
	assert.True(t, mat.Equal(ds.X, again.X))
}

func TestLoadConcentrationFilterDropsBlank(t *testing.T) {
	root := buildTree(t, []string{"E.coli", "S.aureus", "xBlank"}, []string{"10^4", "10^5"}, 3)

	ds, err := Load(root, Options{Extractor: feature.NewNative(feature.Single, 256), Concentration: "10^5", Blank: "xBlank"})
	require.NoError(t, err)
	assert.Equal(t, []string{"E.coli", "S.aureus"}, ds.Classes)
	assert.Equal(t, 6, ds.Len())
	for _, f := range ds.Files {
		assert.Contains(t, filepath.Base(f), "10^5")
	}
}

func TestLoadErrors(t *testing.T) {
	ext := feature.NewNative(feature.Single, 225)

	_, err := Load(filepath.Join(t.TempDir(), "missing"), Options{Extractor: ext})
	var le *LoadError
	assert.True(t, errors.As(err, &le))

	root := buildTree(t, []string{"E.coli"}, []string{"10^4"}, 1)
	_, err = Load(root, Options{Extractor: ext, Concentration: "10^6"})
	assert.True(t, errors.As(err, &le), "no file matches the concentration")

	require.NoError(t, os.WriteFile(filepath.Join(root, "E.coli", "broken.tif"), []byte("not a tiff"), 0o644))
	_, err = Load(root, Options{Extractor: ext, Concentration: "all"})
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "broken.tif", filepath.Base(le.Path))

	_, err = Load(root, Options{})
	assert.Error(t, err)
}

// decodeFailure fails every file with a LoadError, the way the OpenCV
// extractor reports an unreadable image.
type decodeFailure struct{ feature.Extractor }

func (decodeFailure) Extract(path string) (feature.Vector, error) {
	return nil, &LoadError{Path: path, Err: errors.New("failed to decode image")}
}

func TestLoadKeepsExtractorLoadError(t *testing.T) {
	root := buildTree(t, []string{"E.coli"}, []string{"10^4"}, 1)
	ext := decodeFailure{feature.NewNative(feature.Single, 225)}

	_, err := Load(root, Options{Extractor: ext, Concentration: "all"})
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "failed to decode image", le.Err.Error())
	assert.Equal(t, 1, strings.Count(err.Error(), "load "))
}

func TestMergedModeRejectsGrayscale(t *testing.T) {
	root := buildTree(t, []string{"E.coli"}, []string{"10^4"}, 1)
	_, err := Load(root, Options{Extractor: feature.NewNative(feature.Merged, 225), Concentration: "all"})
	assert.Error(t, err)
}

func TestCheckCompatible(t *testing.T) {
	root := buildTree(t, []string{"E.coli", "S.aureus"}, []string{"10^4"}, 2)
	a, err := Load(root, Options{Extractor: feature.NewNative(feature.Single, 225), Concentration: "all"})
	require.NoError(t, err)
	b, err := Load(root, Options{Extractor: feature.NewNative(feature.Single, 200), Concentration: "all"})
	require.NoError(t, err)

	assert.NoError(t, CheckCompatible(a, a))
	var me *MismatchError
	assert.True(t, errors.As(CheckCompatible(a, b), &me))

	c := a.Subset([]int{0, 1})
	c.Classes = []string{"E.coli", "B.licheniformis"}
	assert.True(t, errors.As(CheckCompatible(a, c), &me))
	assert.Equal(t, "class list", me.What)
}

func TestSubsetAndConcat(t *testing.T) {
	root := buildTree(t, []string{"E.coli", "S.aureus"}, []string{"10^4"}, 3)
	ds, err := Load(root, Options{Extractor: feature.NewNative(feature.Single, 225), Concentration: "all"})
	require.NoError(t, err)

	sub := ds.Subset([]int{5, 0})
	assert.Equal(t, []int{1, 0}, sub.Y)
	assert.Equal(t, ds.X.RawRowView(5), sub.X.RawRowView(0))

	both, err := sub.Concat(ds)
	require.NoError(t, err)
	assert.Equal(t, 8, both.Len())
	assert.Equal(t, ds.X.RawRowView(0), both.X.RawRowView(2))

	empty := ds.Subset(nil)
	assert.Equal(t, 0, empty.Len())
}

func TestRowsAndLabels(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	r := Rows(x, []int{2, 0})
	assert.Equal(t, []float64{5, 6, 1, 2}, r.RawMatrix().Data)
	assert.Equal(t, []int{7, 9}, Labels([]int{9, 8, 7}, []int{2, 0}))
}
