package prepare

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"heartprep/internal/dataset"

	"github.com/zeebo/xxh3"
	"gonum.org/v1/gonum/mat"
)

// Manifest describes one run's artifacts.
type Manifest struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Table     string    `json:"table"`
	Label     string    `json:"label"`
	Seed      int64     `json:"seed"`
	TestSize  float64   `json:"test_size"`

	Artifacts []Artifact `json:"artifacts"`

	UnsupervisedFeatures []string            `json:"unsupervised_features"`
	SupervisedFeatures   []string            `json:"supervised_features"`
	Categories           map[string][]string `json:"categories"`
}

// Artifact is one written CSV file.
type Artifact struct {
	File string `json:"file"`
	Rows int    `json:"rows"`
	Cols int    `json:"cols"`
	// XXH3 is the hex xxh3-64 digest of the file contents.
	XXH3 string `json:"xxh3"`
}

func manifestHeader(runID string, opts Options) Manifest {
	return Manifest{
		RunID:                runID,
		CreatedAt:            time.Now().UTC(),
		Table:                opts.Table,
		Label:                opts.Features.Label,
		Seed:                 opts.Seed,
		TestSize:             opts.TestSize,
		UnsupervisedFeatures: opts.Features.Unsupervised,
	}
}

// Write persists m into dir, replacing any previous artifacts, and writes
// manifest.json last. A previous manifest is removed first, so dir holds a
// manifest only when every file it lists was written by the same run. base
// supplies the run metadata.
func Write(dir string, m *Matrices, base Manifest) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare: output dir: %w", err)
	}
	if err := os.Remove(filepath.Join(dir, FileManifest)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("prepare: remove stale manifest: %w", err)
	}

	man := base
	man.SupervisedFeatures = m.SupervisedFeatures
	man.Categories = m.Categories
	man.Artifacts = nil

	positional := func(x *mat.Dense) []string {
		_, c := x.Dims()
		h := make([]string, c)
		for i := range h {
			h[i] = strconv.Itoa(i)
		}
		return h
	}

	unsupHeader := base.UnsupervisedFeatures
	if _, c := m.Unsupervised.Dims(); len(unsupHeader) != c {
		unsupHeader = positional(m.Unsupervised)
	}

	steps := []struct {
		file string
		rows int
		cols int
		emit func(*bytes.Buffer) error
	}{
		{FileUnsupervised, rowsOf(m.Unsupervised), colsOf(m.Unsupervised), func(b *bytes.Buffer) error {
			return dataset.WriteMatrix(b, unsupHeader, m.Unsupervised)
		}},
		{FileXTrain, rowsOf(m.XTrain), colsOf(m.XTrain), func(b *bytes.Buffer) error {
			return dataset.WriteMatrix(b, positional(m.XTrain), m.XTrain)
		}},
		{FileYTrain, len(m.YTrain), 1, func(b *bytes.Buffer) error {
			return dataset.WriteColumn(b, labelHeader(base), m.YTrain)
		}},
		{FileXTest, rowsOf(m.XTest), colsOf(m.XTest), func(b *bytes.Buffer) error {
			return dataset.WriteMatrix(b, positional(m.XTest), m.XTest)
		}},
		{FileYTest, len(m.YTest), 1, func(b *bytes.Buffer) error {
			return dataset.WriteColumn(b, labelHeader(base), m.YTest)
		}},
	}

	for _, s := range steps {
		var buf bytes.Buffer
		if err := s.emit(&buf); err != nil {
			return nil, fmt.Errorf("prepare: %s: %w", s.file, err)
		}
		if err := os.WriteFile(filepath.Join(dir, s.file), buf.Bytes(), 0o644); err != nil {
			return nil, fmt.Errorf("prepare: %w", err)
		}
		man.Artifacts = append(man.Artifacts, Artifact{
			File: s.file,
			Rows: s.rows,
			Cols: s.cols,
			XXH3: fmt.Sprintf("%016x", xxh3.Hash(buf.Bytes())),
		})
	}

	b, err := json.MarshalIndent(&man, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("prepare: manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileManifest), append(b, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	return &man, nil
}

// labelHeader is the label column name recorded for the run.
func labelHeader(m Manifest) string {
	if m.Label != "" {
		return m.Label
	}
	return "mortality"
}

func rowsOf(x mat.Matrix) int {
	r, _ := x.Dims()
	return r
}

func colsOf(x mat.Matrix) int {
	_, c := x.Dims()
	return c
}
