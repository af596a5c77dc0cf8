// Package dataset turns a materialized query result into a gota DataFrame
// and writes prepared matrices back out as CSV.
//
// Every cell is held as text; numeric interpretation belongs to the
// preprocessing stage so that a bad value can be reported with its column
// and row.
package dataset

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"heartprep/internal/storage"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"
)

// ErrMissingColumn is returned when a requested column is absent from the
// frame. The wrapping error lists every missing name.
var ErrMissingColumn = errors.New("dataset: missing column")

// ErrNoRows is returned for an empty query result.
var ErrNoRows = errors.New("dataset: query returned no rows")

const nanToken = "NaN"

// Frame is a text-typed DataFrame with a known row count.
type Frame struct {
	df dataframe.DataFrame
}

// FromResult builds a Frame from rs. SQL NULL becomes a missing value.
func FromResult(rs *storage.ResultSet) (*Frame, error) {
	if rs == nil || len(rs.Columns) == 0 {
		return nil, fmt.Errorf("dataset: result has no columns")
	}
	if len(rs.Rows) == 0 {
		return nil, ErrNoRows
	}

	records := make([][]string, 0, len(rs.Rows)+1)
	records = append(records, append([]string{}, rs.Columns...))
	for i, row := range rs.Rows {
		if len(row) != len(rs.Columns) {
			return nil, fmt.Errorf("dataset: row %d has %d values for %d columns", i+1, len(row), len(rs.Columns))
		}
		rec := make([]string, len(row))
		for j, v := range row {
			s, err := Stringify(v)
			if err != nil {
				return nil, fmt.Errorf("dataset: row %d column %q: %w", i+1, rs.Columns[j], err)
			}
			rec[j] = s
		}
		records = append(records, rec)
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{nanToken}),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("dataset: %w", df.Err)
	}
	return &Frame{df: df}, nil
}

// Stringify renders a driver value as text. nil renders as the missing
// marker; time values use RFC 3339.
func Stringify(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return nanToken, nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int:
		return strconv.Itoa(x), nil
	case float64:
		if math.IsNaN(x) {
			return nanToken, nil
		}
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	case time.Time:
		return x.Format(time.RFC3339), nil
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return "", err
		}
		if _, again := dv.(driver.Valuer); again {
			return "", fmt.Errorf("unsupported value type %T", v)
		}
		return Stringify(dv)
	case fmt.Stringer:
		return x.String(), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// Nrow returns the number of rows.
func (f *Frame) Nrow() int { return f.df.Nrow() }

// Names returns the column names in order.
func (f *Frame) Names() []string { return f.df.Names() }

// Select returns a Frame restricted to names, in that order. Every missing
// name is reported in one ErrMissingColumn error.
func (f *Frame) Select(names []string) (*Frame, error) {
	if err := f.Require(names); err != nil {
		return nil, err
	}
	sub := f.df.Select(names)
	if sub.Err != nil {
		return nil, fmt.Errorf("dataset: select: %w", sub.Err)
	}
	return &Frame{df: sub}, nil
}

// Require reports every name in names that the frame lacks.
func (f *Frame) Require(names []string) error {
	return RequireColumns(f.df.Names(), names)
}

// RequireColumns reports, in one ErrMissingColumn error, every name in want
// that is absent from have.
func RequireColumns(have, want []string) error {
	set := make(map[string]struct{}, len(have))
	for _, n := range have {
		set[n] = struct{}{}
	}
	var missing []string
	for _, n := range want {
		if _, ok := set[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
}

// Strings returns the values of column name. Missing values are "".
func (f *Frame) Strings(name string) ([]string, error) {
	if err := f.Require([]string{name}); err != nil {
		return nil, err
	}
	col := f.df.Col(name)
	vals := col.Records()
	for i, isNaN := range col.IsNaN() {
		if isNaN {
			vals[i] = ""
		}
	}
	return vals, nil
}

// WriteMatrix writes m as CSV with the given header row. Values use the
// shortest representation that round-trips.
func WriteMatrix(w io.Writer, header []string, m mat.Matrix) error {
	r, c := m.Dims()
	if len(header) != c {
		return fmt.Errorf("dataset: %d header names for %d columns", len(header), c)
	}
	cols := make([]series.Series, c)
	for j := 0; j < c; j++ {
		vals := make([]string, r)
		for i := 0; i < r; i++ {
			vals[i] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		cols[j] = series.New(vals, series.String, header[j])
	}
	return writeFrame(w, cols)
}

// WriteColumn writes a single named column as CSV.
func WriteColumn(w io.Writer, name string, values []string) error {
	return writeFrame(w, []series.Series{series.New(values, series.String, name)})
}

func writeFrame(w io.Writer, cols []series.Series) error {
	df := dataframe.New(cols...)
	if df.Err != nil {
		return fmt.Errorf("dataset: %w", df.Err)
	}
	if err := df.WriteCSV(w, dataframe.WriteHeader(true)); err != nil {
		return fmt.Errorf("dataset: write csv: %w", err)
	}
	return nil
}
