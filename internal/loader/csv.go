package loader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DefaultNullTokens are the cell values loaded as SQL NULL. They match the
// missing-value markers common spreadsheet and dataframe tools emit.
var DefaultNullTokens = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None", "n/a",
	"nan", "null",
}

// Table is a decoded CSV file: the header row and every data row as raw
// strings, each row exactly len(Header) wide.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadCSV decodes r with enc (nil means UTF-8), drops a leading UTF-8 BOM,
// and parses it with comma as the delimiter. The first record is the header.
// Rows whose width differs from the header are rejected with their line
// number.
func ReadCSV(r io.Reader, enc encoding.Encoding, comma rune) (*Table, error) {
	cr := newReader(r, enc, comma)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv: empty input, no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("csv: header: %w", err)
	}

	t := &Table{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

func newReader(r io.Reader, enc encoding.Encoding, comma rune) *csv.Reader {
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	cr := csv.NewReader(br)
	if comma != 0 {
		cr.Comma = comma
	}
	return cr
}

// Values converts the string rows to insert arguments. Cells matching one of
// nullTokens become nil; everything else is passed through as text for the
// driver to coerce.
func (t *Table) Values(nullTokens []string) [][]any {
	nulls := make(map[string]struct{}, len(nullTokens))
	for _, tok := range nullTokens {
		nulls[tok] = struct{}{}
	}
	out := make([][]any, len(t.Rows))
	for i, rec := range t.Rows {
		row := make([]any, len(rec))
		for j, cell := range rec {
			if _, isNull := nulls[cell]; isNull {
				row[j] = nil
				continue
			}
			row[j] = cell
		}
		out[i] = row
	}
	return out
}
