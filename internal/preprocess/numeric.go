package preprocess

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MedianImputer replaces NaN with the per-column median of the observed
// values seen during Fit. For an even count the median is the mean of the
// two middle values.
type MedianImputer struct {
	// Columns names the input columns for error messages; optional.
	Columns []string
	Medians []float64
}

// Fit computes column medians. A column with no observed value fails with
// ErrAllMissing.
func (m *MedianImputer) Fit(X *mat.Dense) error {
	r, c := X.Dims()
	m.Medians = make([]float64, c)
	buf := make([]float64, 0, r)
	for j := 0; j < c; j++ {
		buf = buf[:0]
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) == 0 {
			m.Medians = nil
			return fmt.Errorf("%w: column %s", ErrAllMissing, columnName(m.Columns, j))
		}
		m.Medians[j] = median(buf)
	}
	return nil
}

// Transform returns a copy of X with NaN replaced by the fitted medians.
func (m *MedianImputer) Transform(X *mat.Dense) (*mat.Dense, error) {
	if m.Medians == nil {
		return nil, ErrNotFitted
	}
	r, c := X.Dims()
	if c != len(m.Medians) {
		return nil, fmt.Errorf("preprocess: imputer fitted on %d columns, got %d", len(m.Medians), c)
	}
	out := mat.DenseCopyOf(X)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(out.At(i, j)) {
				out.Set(i, j, m.Medians[j])
			}
		}
	}
	return out, nil
}

func median(vals []float64) float64 {
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

// StandardScaler centers each column on its mean and divides by its
// population standard deviation. Zero-variance columns are divided by 1.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

// Fit computes column means and population standard deviations. X must not
// contain NaN; impute first.
func (s *StandardScaler) Fit(X *mat.Dense) error {
	r, c := X.Dims()
	s.Mean = make([]float64, c)
	s.Std = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		if math.IsNaN(mean) {
			s.Mean, s.Std = nil, nil
			return fmt.Errorf("preprocess: scaler: column %d contains NaN", j)
		}
		if std == 0 {
			std = 1
		}
		s.Mean[j], s.Std[j] = mean, std
	}
	return nil
}

// Transform returns (X - Mean) / Std column-wise.
func (s *StandardScaler) Transform(X *mat.Dense) (*mat.Dense, error) {
	if s.Mean == nil {
		return nil, ErrNotFitted
	}
	r, c := X.Dims()
	if c != len(s.Mean) {
		return nil, fmt.Errorf("preprocess: scaler fitted on %d columns, got %d", len(s.Mean), c)
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Std[j]
	}, X)
	return out, nil
}

// NewNumericPipeline returns median imputation followed by standard scaling.
func NewNumericPipeline(columns []string) *Pipeline {
	return NewPipeline(&MedianImputer{Columns: columns}, &StandardScaler{})
}

func columnName(names []string, j int) string {
	if j < len(names) {
		return fmt.Sprintf("%q", names[j])
	}
	return fmt.Sprintf("%d", j)
}
