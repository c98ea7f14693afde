package dataset

import "fmt"

// LoadError reports a missing or empty class directory, or an image that
// could not be read or decoded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// MismatchError reports two dataset passes (or a dataset and a model) whose
// feature spaces or label sets disagree.
type MismatchError struct {
	What string
	Want interface{}
	Got  interface{}
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s mismatch: want %v, got %v", e.What, e.Want, e.Got)
}
