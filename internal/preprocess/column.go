package preprocess

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ColumnTransformer runs the numeric pipeline over one block of columns and
// the categorical pipeline over another, then concatenates the results
// numeric-first. Columns in neither block are dropped.
type ColumnTransformer struct {
	NumericColumns     []string
	CategoricalColumns []string

	Numeric     *Pipeline
	Categorical *CategoricalPipeline
}

// NewColumnTransformer wires the default pipelines for the two blocks.
func NewColumnTransformer(numeric, categorical []string, handleUnknown string) *ColumnTransformer {
	return &ColumnTransformer{
		NumericColumns:     numeric,
		CategoricalColumns: categorical,
		Numeric:            NewNumericPipeline(numeric),
		Categorical:        NewCategoricalPipeline(categorical, handleUnknown),
	}
}

// FitTransform fits both pipelines on src and returns the combined matrix.
func (ct *ColumnTransformer) FitTransform(src Source) (*mat.Dense, error) {
	return ct.run(src, true)
}

// Transform applies the fitted pipelines to src.
func (ct *ColumnTransformer) Transform(src Source) (*mat.Dense, error) {
	return ct.run(src, false)
}

// Width is the number of output columns after fitting.
func (ct *ColumnTransformer) Width() int {
	w := len(ct.NumericColumns)
	if len(ct.CategoricalColumns) > 0 {
		w += ct.Categorical.Encoder.Width()
	}
	return w
}

// FeatureNames returns the numeric column names followed by the one-hot
// indicator names.
func (ct *ColumnTransformer) FeatureNames() []string {
	names := append([]string{}, ct.NumericColumns...)
	if len(ct.CategoricalColumns) > 0 {
		names = append(names, ct.Categorical.Encoder.FeatureNames()...)
	}
	return names
}

func (ct *ColumnTransformer) run(src Source, fit bool) (*mat.Dense, error) {
	if len(ct.NumericColumns) == 0 && len(ct.CategoricalColumns) == 0 {
		return nil, fmt.Errorf("preprocess: column transformer has no columns")
	}

	var num, cat *mat.Dense
	if len(ct.NumericColumns) > 0 {
		X, err := NumericMatrix(src, ct.NumericColumns)
		if err != nil {
			return nil, err
		}
		if fit {
			num, err = ct.Numeric.FitTransform(X)
		} else {
			num, err = ct.Numeric.Transform(X)
		}
		if err != nil {
			return nil, fmt.Errorf("numeric block: %w", err)
		}
	}

	if len(ct.CategoricalColumns) > 0 {
		cols := make([][]string, len(ct.CategoricalColumns))
		for j, name := range ct.CategoricalColumns {
			vals, err := src.Strings(name)
			if err != nil {
				return nil, err
			}
			cols[j] = vals
		}
		var err error
		if fit {
			cat, err = ct.Categorical.FitTransform(cols)
		} else {
			cat, err = ct.Categorical.Transform(cols)
		}
		if err != nil {
			return nil, fmt.Errorf("categorical block: %w", err)
		}
	}
	return hstack(num, cat)
}
