package loader

import (
	"errors"
	"fmt"
	"io"
	"os"

	"heartprep/internal/features"

	"golang.org/x/text/encoding"
)

// HeaderMapping describes how one source header lands in the table.
type HeaderMapping struct {
	Source string `json:"source"`
	Target string `json:"target"`
	// Mapped is true when the rename map covered Source.
	Mapped bool `json:"mapped"`
	// Duplicate is true when another header already produced Target.
	Duplicate bool `json:"duplicate"`
}

// Inspect maps header through set without failing on duplicates, so every
// collision can be reported at once.
func Inspect(header []string, set features.Set) []HeaderMapping {
	out := make([]HeaderMapping, len(header))
	seen := make(map[string]bool, len(header))
	for i, raw := range header {
		m := HeaderMapping{Source: raw}
		m.Target, m.Mapped = set.Target(raw)
		m.Duplicate = seen[m.Target]
		seen[m.Target] = true
		out[i] = m
	}
	return out
}

// ReadHeader returns the header row of the CSV file at path.
func ReadHeader(path string, enc encoding.Encoding, comma rune) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	defer f.Close()

	header, err := newReader(f, enc, comma).Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("loader: %s: csv: empty input, no header row", path)
	}
	if err != nil {
		return nil, fmt.Errorf("loader: %s: csv: header: %w", path, err)
	}
	return header, nil
}
