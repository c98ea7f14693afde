package model

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"aunp-classifier/internal/dataset"
	"aunp-classifier/internal/feature"
	"aunp-classifier/internal/version"
)

const (
	artifactMagic = "AUNP-MODEL"

	// FormatVersion is bumped whenever the encoded estimator layout changes.
	FormatVersion = 1
)

func init() {
	gob.Register(&Forest{})
	gob.Register(&Projection{})
	gob.Register(&LDA{})
	gob.Register(&PCA{})
	gob.Register(&KernelPCA{})
}

// Header identifies a model artifact and the feature space it was trained
// on. It is written before the estimator so it can be inspected cheaply.
type Header struct {
	Magic         string
	FormatVersion int
	Kind          Family
	FeatureDim    int
	FeatureNum    int
	Mode          feature.Mode
	Classes       []string
	Spec          Spec
	Tags          map[string]string
	CreatedBy     string
	CreatedAt     time.Time
	Checksum      uint32
}

// Meta describes the training data of a model being saved.
type Meta struct {
	Mode       feature.Mode
	FeatureNum int
	Classes    []string
	Spec       Spec
	Tags       map[string]string // Free-form labels, e.g. concentration or order
}

// MetaFor builds the metadata of a model trained on ds.
func MetaFor(ds *dataset.Dataset, spec Spec) Meta {
	return Meta{Mode: ds.Mode, FeatureNum: ds.FeatureNum, Classes: ds.Classes, Spec: spec}
}

// Artifact is a loaded model with its header.
type Artifact struct {
	Header Header
	Model  Classifier
}

type payload struct {
	Model Classifier
}

func (h *Header) checksum() uint32 {
	fields := []string{
		h.Magic,
		strconv.Itoa(h.FormatVersion),
		string(h.Kind),
		strconv.Itoa(h.FeatureDim),
		strconv.Itoa(h.FeatureNum),
		h.Mode.String(),
		strings.Join(h.Classes, "\x1f"),
	}
	return crc32.ChecksumIEEE([]byte(strings.Join(fields, "\x1e")))
}

// kindOf returns the family of a fitted classifier.
func kindOf(clf Classifier) (Family, error) {
	switch clf.(type) {
	case *Forest:
		return FamilyForest, nil
	case *Projection:
		return FamilyProjection, nil
	default:
		return "", fmt.Errorf("unsupported classifier type %T", clf)
	}
}

// Save writes clf as a gzip-compressed gob stream: a Header followed by the
// estimator.
func Save(path string, clf Classifier, meta Meta) error {
	kind, err := kindOf(clf)
	if err != nil {
		return &SerializationError{Path: path, Err: err}
	}
	if clf.NumFeatures() == 0 {
		return &SerializationError{Path: path, Err: ErrNotFitted}
	}
	if n := len(clf.Classes()); n != len(meta.Classes) {
		return &SerializationError{Path: path, Err: fmt.Errorf("model has %d classes but %d class names were given", n, len(meta.Classes))}
	}

	h := Header{
		Magic:         artifactMagic,
		FormatVersion: FormatVersion,
		Kind:          kind,
		FeatureDim:    clf.NumFeatures(),
		FeatureNum:    meta.FeatureNum,
		Mode:          meta.Mode,
		Classes:       meta.Classes,
		Spec:          meta.Spec,
		Tags:          meta.Tags,
		CreatedBy:     "aunp " + version.String(),
		CreatedAt:     time.Now().UTC(),
	}
	h.Checksum = h.checksum()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create model directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}

	zw := gzip.NewWriter(f)
	enc := gob.NewEncoder(zw)
	err = enc.Encode(&h)
	if err == nil {
		err = enc.Encode(&payload{Model: clf})
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return &SerializationError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move model into place: %w", err)
	}
	return nil
}

// ReadHeader decodes only the header of an artifact.
func ReadHeader(path string) (*Header, error) {
	a, err := load(path, false)
	if err != nil {
		return nil, err
	}
	return &a.Header, nil
}

// Load reads an artifact written by Save.
func Load(path string) (*Artifact, error) {
	return load(path, true)
}

func load(path string, withModel bool) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SerializationError{Path: path, Err: err}
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, &SerializationError{Path: path, Err: fmt.Errorf("not a model artifact: %w", err)}
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var a Artifact
	if err := dec.Decode(&a.Header); err != nil {
		return nil, &SerializationError{Path: path, Err: fmt.Errorf("failed to decode header: %w", err)}
	}
	h := &a.Header
	if h.Magic != artifactMagic {
		return nil, &SerializationError{Path: path, Err: errors.New("not a model artifact")}
	}
	if h.FormatVersion != FormatVersion {
		return nil, &SerializationError{Path: path, Err: fmt.Errorf("format version %d, this build reads %d", h.FormatVersion, FormatVersion)}
	}
	if h.Checksum != h.checksum() {
		return nil, &SerializationError{Path: path, Err: errors.New("header checksum mismatch")}
	}
	if !withModel {
		return &a, nil
	}

	var p payload
	if err := dec.Decode(&p); err != nil {
		return nil, &SerializationError{Path: path, Err: fmt.Errorf("failed to decode model: %w", err)}
	}
	if p.Model == nil {
		return nil, &SerializationError{Path: path, Err: errors.New("artifact holds no model")}
	}
	if p.Model.NumFeatures() != h.FeatureDim {
		return nil, &SerializationError{Path: path, Err: fmt.Errorf("model expects %d features, header says %d", p.Model.NumFeatures(), h.FeatureDim)}
	}
	a.Model = p.Model
	return &a, nil
}

// Check verifies that ds lives in the feature space the model was trained
// on and carries the same class list.
func (a *Artifact) Check(ds *dataset.Dataset) error {
	h := a.Header
	if ds.Mode != h.Mode {
		return &dataset.MismatchError{What: "image mode", Want: h.Mode, Got: ds.Mode}
	}
	if ds.FeatureNum != h.FeatureNum {
		return &dataset.MismatchError{What: "feature_num", Want: h.FeatureNum, Got: ds.FeatureNum}
	}
	if ds.Dim() != h.FeatureDim {
		return &dataset.MismatchError{What: "feature dimension", Want: h.FeatureDim, Got: ds.Dim()}
	}
	if strings.Join(ds.Classes, "\x00") != strings.Join(h.Classes, "\x00") {
		return &dataset.MismatchError{What: "class list", Want: h.Classes, Got: ds.Classes}
	}
	return nil
}

// ClassName maps a predicted label to its class name.
func (a *Artifact) ClassName(label int) (string, error) {
	if label < 0 || label >= len(a.Header.Classes) {
		return "", &dataset.MismatchError{What: "class index", Want: fmt.Sprintf("[0, %d)", len(a.Header.Classes)), Got: label}
	}
	return a.Header.Classes[label], nil
}
