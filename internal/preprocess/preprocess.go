// Package preprocess implements the fit/transform steps used to prepare the
// heart-failure dataset: median and most-frequent imputation, standard
// scaling, one-hot encoding, and a seeded stratified train/test split.
//
// Numeric data is carried in gonum *mat.Dense matrices with NaN marking a
// missing value. Categorical data is carried column-major as strings with ""
// marking a missing value.
package preprocess

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrAllMissing is returned when a column has no observed value to fit.
	ErrAllMissing = errors.New("preprocess: all values missing")
	// ErrNotNumeric is returned for text that does not parse as a number in
	// a numeric column.
	ErrNotNumeric = errors.New("preprocess: non-numeric value")
	// ErrUnknownCategory is returned by an encoder configured with
	// HandleUnknown "error" when it meets a category not seen during Fit.
	ErrUnknownCategory = errors.New("preprocess: unknown category")
	// ErrStratify is returned when the labels cannot be split as requested.
	ErrStratify = errors.New("preprocess: cannot stratify")
	// ErrNotFitted is returned by Transform before Fit.
	ErrNotFitted = errors.New("preprocess: transformer not fitted")
)

// Source yields a column of raw values by name. *dataset.Frame satisfies it;
// missing values are "".
type Source interface {
	Strings(name string) ([]string, error)
}

// Transformer is a numeric fit/transform step.
type Transformer interface {
	Fit(X *mat.Dense) error
	Transform(X *mat.Dense) (*mat.Dense, error)
}

// Pipeline chains Transformers; each step is fitted on the output of the
// previous one.
type Pipeline struct {
	steps []Transformer
}

// NewPipeline returns a Pipeline running steps in order.
func NewPipeline(steps ...Transformer) *Pipeline {
	return &Pipeline{steps: steps}
}

// Fit fits every step in turn.
func (p *Pipeline) Fit(X *mat.Dense) error {
	_, err := p.FitTransform(X)
	return err
}

// Transform applies every fitted step.
func (p *Pipeline) Transform(X *mat.Dense) (*mat.Dense, error) {
	var err error
	for _, step := range p.steps {
		if X, err = step.Transform(X); err != nil {
			return nil, err
		}
	}
	return X, nil
}

// FitTransform fits each step and feeds its output to the next.
func (p *Pipeline) FitTransform(X *mat.Dense) (*mat.Dense, error) {
	var err error
	for _, step := range p.steps {
		if err = step.Fit(X); err != nil {
			return nil, err
		}
		if X, err = step.Transform(X); err != nil {
			return nil, err
		}
	}
	return X, nil
}

// ParseNumeric converts raw values of column to floats. "" and "NaN" are
// missing and become NaN; any other unparsable text is ErrNotNumeric.
func ParseNumeric(column string, values []string) ([]float64, error) {
	out := make([]float64, len(values))
	for i, raw := range values {
		s := strings.TrimSpace(raw)
		if s == "" {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q row %d: %q", ErrNotNumeric, column, i+1, raw)
		}
		out[i] = v
	}
	return out, nil
}

// NumericMatrix reads names from src into a rows×len(names) matrix.
func NumericMatrix(src Source, names []string) (*mat.Dense, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("preprocess: no numeric columns")
	}
	var X *mat.Dense
	for j, name := range names {
		raw, err := src.Strings(name)
		if err != nil {
			return nil, err
		}
		col, err := ParseNumeric(name, raw)
		if err != nil {
			return nil, err
		}
		if X == nil {
			if len(col) == 0 {
				return nil, fmt.Errorf("preprocess: column %q has no rows", name)
			}
			X = mat.NewDense(len(col), len(names), nil)
		}
		if len(col) != X.RawMatrix().Rows {
			return nil, fmt.Errorf("preprocess: column %q has %d rows, want %d", name, len(col), X.RawMatrix().Rows)
		}
		X.SetCol(j, col)
	}
	return X, nil
}

// SelectRows returns the rows of X at idx, in that order.
func SelectRows(X *mat.Dense, idx []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		out.SetRow(i, X.RawRowView(r))
	}
	return out
}

// hstack concatenates matrices left to right, skipping nil blocks.
func hstack(blocks ...*mat.Dense) (*mat.Dense, error) {
	var out *mat.Dense
	for _, b := range blocks {
		if b == nil {
			continue
		}
		if out == nil {
			out = mat.DenseCopyOf(b)
			continue
		}
		if out.RawMatrix().Rows != b.RawMatrix().Rows {
			return nil, fmt.Errorf("preprocess: cannot concatenate %d and %d rows", out.RawMatrix().Rows, b.RawMatrix().Rows)
		}
		var joined mat.Dense
		joined.Augment(out, b)
		out = &joined
	}
	if out == nil {
		return nil, fmt.Errorf("preprocess: no feature blocks")
	}
	return out, nil
}
