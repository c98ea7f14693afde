// Package dataset builds labelled feature matrices from per-class image
// folders and splits them into stratified folds.
//
// Class labels are indices into the lexicographically sorted list of class
// directory names, so the same folder tree always yields the same labels no
// matter how the filesystem enumerates it.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"aunp-classifier/internal/feature"
	aunpimage "aunp-classifier/internal/image"
	"aunp-classifier/internal/logger"
	"aunp-classifier/internal/parallel"
	"aunp-classifier/internal/taxonomy"

	"gonum.org/v1/gonum/mat"
)

// Options controls one dataset pass.
type Options struct {
	Extractor     feature.Extractor
	Concentration string // Substring filter, or taxonomy.AllConcentrations
	Blank         string // Blank/control directory excluded when filtering
	Workers       int    // Extraction goroutines; <= 0 means one per CPU
	Logger        logger.Logger
}

// Dataset is a feature matrix with a parallel label vector.
type Dataset struct {
	X          *mat.Dense
	Y          []int
	Classes    []string // Class names, indexed by label
	Files      []string // Source file of each row
	Mode       feature.Mode
	FeatureNum int
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Y)
}

// Dim returns the feature dimension.
func (d *Dataset) Dim() int {
	if d.X == nil {
		return 0
	}
	_, c := d.X.Dims()
	return c
}

// ClassCounts returns the number of samples per label.
func (d *Dataset) ClassCounts() []int {
	counts := make([]int, len(d.Classes))
	for _, y := range d.Y {
		counts[y]++
	}
	return counts
}

// Filtered reports whether concentration activates the file-name filter.
func Filtered(concentration string) bool {
	return concentration != "" && concentration != taxonomy.AllConcentrations
}

// Classes lists the class directories of root in label order.
func Classes(root, concentration, blank string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &LoadError{Path: root, Err: err}
	}

	var classes []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if Filtered(concentration) && e.Name() == blank {
			continue
		}
		classes = append(classes, e.Name())
	}
	if len(classes) == 0 {
		return nil, &LoadError{Path: root, Err: fmt.Errorf("no class directories")}
	}
	sort.Strings(classes)
	return classes, nil
}

// Files lists the TIFF files of one class directory that pass the
// concentration filter, sorted by name.
func Files(dir, concentration string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{Path: dir, Err: err}
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !aunpimage.IsTIFF(e.Name()) {
			continue
		}
		if Filtered(concentration) && !strings.Contains(e.Name(), concentration) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, &LoadError{Path: dir, Err: fmt.Errorf("no images match concentration %q", concentration)}
	}
	sort.Strings(files)
	return files, nil
}

// Load walks root, extracts a feature vector from every matching image and
// returns the assembled dataset.
func Load(root string, opts Options) (*Dataset, error) {
	if opts.Extractor == nil {
		return nil, fmt.Errorf("dataset: no extractor configured")
	}
	log := logger.OrNop(opts.Logger)

	classes, err := Classes(root, opts.Concentration, opts.Blank)
	if err != nil {
		return nil, err
	}

	var files []string
	var labels []int
	for label, class := range classes {
		classFiles, err := Files(filepath.Join(root, class), opts.Concentration)
		if err != nil {
			return nil, err
		}
		for _, f := range classFiles {
			files = append(files, f)
			labels = append(labels, label)
		}
	}

	dim := feature.Dim(opts.Extractor.Mode(), opts.Extractor.FeatureNum())
	x := mat.NewDense(len(files), dim, nil)

	err = parallel.ForEach(len(files), opts.Workers, func(i int) error {
		v, err := opts.Extractor.Extract(files[i])
		if err != nil {
			var le *LoadError
			if errors.As(err, &le) {
				return err
			}
			return &LoadError{Path: files[i], Err: err}
		}
		if len(v) != dim {
			return &MismatchError{What: "feature dimension of " + files[i], Want: dim, Got: len(v)}
		}
		x.SetRow(i, v)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("dataset", "loaded dataset", map[string]interface{}{
		"root":          root,
		"concentration": opts.Concentration,
		"samples":       len(files),
		"classes":       len(classes),
		"dim":           dim,
	})

	return &Dataset{
		X:          x,
		Y:          labels,
		Classes:    classes,
		Files:      files,
		Mode:       opts.Extractor.Mode(),
		FeatureNum: opts.Extractor.FeatureNum(),
	}, nil
}

// CheckCompatible verifies that test can be scored by a model trained on
// train: same mode, truncation, dimension and class list.
func CheckCompatible(train, test *Dataset) error {
	if train.Mode != test.Mode {
		return &MismatchError{What: "image mode", Want: train.Mode, Got: test.Mode}
	}
	if train.FeatureNum != test.FeatureNum {
		return &MismatchError{What: "feature_num", Want: train.FeatureNum, Got: test.FeatureNum}
	}
	if train.Dim() != test.Dim() {
		return &MismatchError{What: "feature dimension", Want: train.Dim(), Got: test.Dim()}
	}
	if strings.Join(train.Classes, "\x00") != strings.Join(test.Classes, "\x00") {
		return &MismatchError{What: "class list", Want: train.Classes, Got: test.Classes}
	}
	return nil
}

// Subset returns the rows at idx as a new dataset.
func (d *Dataset) Subset(idx []int) *Dataset {
	var x *mat.Dense
	if len(idx) > 0 {
		x = Rows(d.X, idx)
	}
	y := make([]int, len(idx))
	var files []string
	if d.Files != nil {
		files = make([]string, len(idx))
	}
	for i, r := range idx {
		y[i] = d.Y[r]
		if files != nil {
			files[i] = d.Files[r]
		}
	}
	return &Dataset{X: x, Y: y, Classes: d.Classes, Files: files, Mode: d.Mode, FeatureNum: d.FeatureNum}
}

// Concat stacks d and other (train then test, as for projection scatters).
func (d *Dataset) Concat(other *Dataset) (*Dataset, error) {
	if err := CheckCompatible(d, other); err != nil {
		return nil, err
	}
	x := mat.NewDense(d.Len()+other.Len(), d.Dim(), nil)
	x.Stack(d.X, other.X)
	y := append(append([]int(nil), d.Y...), other.Y...)
	files := append(append([]string(nil), d.Files...), other.Files...)
	return &Dataset{X: x, Y: y, Classes: d.Classes, Files: files, Mode: d.Mode, FeatureNum: d.FeatureNum}, nil
}

// Rows returns the rows of x at idx as a new matrix.
func Rows(x mat.Matrix, idx []int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		for j := 0; j < c; j++ {
			out.Set(i, j, x.At(r, j))
		}
	}
	return out
}

// Labels returns y at idx.
func Labels(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}
