package preprocess

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// HandleUnknown values for OneHotEncoder.
const (
	UnknownIgnore = "ignore"
	UnknownError  = "error"
)

// MostFrequentImputer replaces "" with the most frequent observed value of
// each column. Ties go to the smallest value in category order.
type MostFrequentImputer struct {
	Columns []string
	Fill    []string
}

// Fit computes the fill value per column. cols is column-major.
func (m *MostFrequentImputer) Fit(cols [][]string) error {
	m.Fill = make([]string, len(cols))
	for j, col := range cols {
		counts := map[string]int{}
		for _, v := range col {
			if v != "" {
				counts[v]++
			}
		}
		if len(counts) == 0 {
			m.Fill = nil
			return fmt.Errorf("%w: column %s", ErrAllMissing, columnName(m.Columns, j))
		}
		values := make([]string, 0, len(counts))
		for v := range counts {
			values = append(values, v)
		}
		sortCategories(values)
		best := values[0]
		for _, v := range values[1:] {
			if counts[v] > counts[best] {
				best = v
			}
		}
		m.Fill[j] = best
	}
	return nil
}

// Transform returns a copy of cols with "" replaced by the fitted values.
func (m *MostFrequentImputer) Transform(cols [][]string) ([][]string, error) {
	if m.Fill == nil {
		return nil, ErrNotFitted
	}
	if len(cols) != len(m.Fill) {
		return nil, fmt.Errorf("preprocess: imputer fitted on %d columns, got %d", len(m.Fill), len(cols))
	}
	out := make([][]string, len(cols))
	for j, col := range cols {
		out[j] = make([]string, len(col))
		for i, v := range col {
			if v == "" {
				v = m.Fill[j]
			}
			out[j][i] = v
		}
	}
	return out, nil
}

// OneHotEncoder expands each categorical column into one indicator column
// per category observed during Fit. Categories are sorted; when every
// category of a column parses as a number they sort numerically.
type OneHotEncoder struct {
	Columns []string
	// HandleUnknown is UnknownIgnore (all-zero indicators) or UnknownError.
	HandleUnknown string
	Categories    [][]string

	index []map[string]int
}

// Fit records the sorted categories of each column.
func (e *OneHotEncoder) Fit(cols [][]string) error {
	switch e.HandleUnknown {
	case "", UnknownIgnore, UnknownError:
	default:
		return fmt.Errorf("preprocess: handle_unknown must be %q or %q, got %q", UnknownIgnore, UnknownError, e.HandleUnknown)
	}
	e.Categories = make([][]string, len(cols))
	e.index = make([]map[string]int, len(cols))
	for j, col := range cols {
		seen := map[string]struct{}{}
		for _, v := range col {
			seen[v] = struct{}{}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sortCategories(cats)
		e.Categories[j] = cats
		e.index[j] = make(map[string]int, len(cats))
		for k, c := range cats {
			e.index[j][c] = k
		}
	}
	return nil
}

// Width is the total number of indicator columns.
func (e *OneHotEncoder) Width() int {
	w := 0
	for _, c := range e.Categories {
		w += len(c)
	}
	return w
}

// FeatureNames returns "<column>_<category>" for every indicator column.
func (e *OneHotEncoder) FeatureNames() []string {
	names := make([]string, 0, e.Width())
	for j, cats := range e.Categories {
		col := strings.Trim(columnName(e.Columns, j), `"`)
		for _, c := range cats {
			names = append(names, col+"_"+c)
		}
	}
	return names
}

// Transform encodes cols. Each output row has exactly one 1 per input column,
// except for unknown categories under UnknownIgnore, which encode as zeros.
func (e *OneHotEncoder) Transform(cols [][]string) (*mat.Dense, error) {
	if e.index == nil {
		return nil, ErrNotFitted
	}
	if len(cols) != len(e.Categories) {
		return nil, fmt.Errorf("preprocess: encoder fitted on %d columns, got %d", len(e.Categories), len(cols))
	}
	rows := 0
	if len(cols) > 0 {
		rows = len(cols[0])
	}
	if rows == 0 || e.Width() == 0 {
		return nil, fmt.Errorf("preprocess: encoder: empty input")
	}
	out := mat.NewDense(rows, e.Width(), nil)
	offset := 0
	for j, col := range cols {
		if len(col) != rows {
			return nil, fmt.Errorf("preprocess: column %s has %d rows, want %d", columnName(e.Columns, j), len(col), rows)
		}
		for i, v := range col {
			k, ok := e.index[j][v]
			if !ok {
				if e.HandleUnknown == UnknownError {
					return nil, fmt.Errorf("%w: column %s row %d: %q", ErrUnknownCategory, columnName(e.Columns, j), i+1, v)
				}
				continue
			}
			out.Set(i, offset+k, 1)
		}
		offset += len(e.Categories[j])
	}
	return out, nil
}

// CategoricalPipeline is most-frequent imputation followed by one-hot
// encoding.
type CategoricalPipeline struct {
	Imputer *MostFrequentImputer
	Encoder *OneHotEncoder
}

// NewCategoricalPipeline builds the pipeline for columns.
func NewCategoricalPipeline(columns []string, handleUnknown string) *CategoricalPipeline {
	return &CategoricalPipeline{
		Imputer: &MostFrequentImputer{Columns: columns},
		Encoder: &OneHotEncoder{Columns: columns, HandleUnknown: handleUnknown},
	}
}

// FitTransform fits both steps on cols and returns the encoded matrix.
func (p *CategoricalPipeline) FitTransform(cols [][]string) (*mat.Dense, error) {
	if err := p.Imputer.Fit(cols); err != nil {
		return nil, err
	}
	filled, err := p.Imputer.Transform(cols)
	if err != nil {
		return nil, err
	}
	if err := p.Encoder.Fit(filled); err != nil {
		return nil, err
	}
	return p.Encoder.Transform(filled)
}

// Transform applies the fitted steps.
func (p *CategoricalPipeline) Transform(cols [][]string) (*mat.Dense, error) {
	filled, err := p.Imputer.Transform(cols)
	if err != nil {
		return nil, err
	}
	return p.Encoder.Transform(filled)
}

// sortCategories sorts numerically when every value parses as a number and
// lexicographically otherwise.
func sortCategories(vals []string) {
	nums := make(map[string]float64, len(vals))
	for _, v := range vals {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			sort.Strings(vals)
			return
		}
		nums[v] = f
	}
	sort.Slice(vals, func(a, b int) bool {
		if nums[vals[a]] != nums[vals[b]] {
			return nums[vals[a]] < nums[vals[b]]
		}
		return vals[a] < vals[b]
	})
}
