// Package prepare implements the prepare job: read the configured columns
// from the store, build the unsupervised and supervised matrices, split the
// supervised data into stratified train and test sets, and write the CSV
// artifacts plus a manifest describing them.
package prepare

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"heartprep/internal/dataset"
	"heartprep/internal/features"
	"heartprep/internal/metrics"
	"heartprep/internal/preprocess"
	"heartprep/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

const job = "prepare"

// Artifact file names written to Options.OutputDir.
const (
	FileUnsupervised = "prepared_unsupervised.csv"
	FileXTrain       = "X_train_sup.csv"
	FileYTrain       = "y_train_sup.csv"
	FileXTest        = "X_test.csv"
	FileYTest        = "y_test.csv"
	FileManifest     = "manifest.json"
)

// Options configures one prepare run.
type Options struct {
	Table     string
	OutputDir string
	TestSize  float64
	Seed      int64
	// HandleUnknown is preprocess.UnknownIgnore or preprocess.UnknownError.
	HandleUnknown string
	Features      features.Set
}

// Opener opens the source repository.
type Opener func(ctx context.Context) (storage.Repository, error)

// Matrices are the in-memory results of a run, before persistence.
type Matrices struct {
	Unsupervised *mat.Dense
	XTrain       *mat.Dense
	XTest        *mat.Dense
	YTrain       []string
	YTest        []string
	// SupervisedFeatures names the supervised columns after encoding.
	SupervisedFeatures []string
	// Categories holds the fitted one-hot categories per categorical column.
	Categories map[string][]string
}

// Result reports a successful run.
type Result struct {
	Matrices *Matrices
	Manifest *Manifest
	Duration time.Duration
}

// Run executes the prepare job end to end.
func Run(ctx context.Context, opts Options, open Opener, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()
	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	done := metrics.Timer(job, "query")
	frame, err := query(ctx, opts, open)
	done(err)
	if err != nil {
		return nil, err
	}
	metrics.RecordRows(job, "read", int64(frame.Nrow()))
	log.Info("prepare: data queried", zap.String("table", opts.Table), zap.Int("rows", frame.Nrow()))

	done = metrics.Timer(job, "transform")
	m, err := Build(frame, opts)
	done(err)
	if err != nil {
		return nil, err
	}
	ur, uc := m.Unsupervised.Dims()
	tr, tc := m.XTrain.Dims()
	log.Info("prepare: datasets ready",
		zap.Int("unsupervised_rows", ur),
		zap.Int("unsupervised_cols", uc),
		zap.Int("train_rows", tr),
		zap.Int("test_rows", len(m.YTest)),
		zap.Int("supervised_cols", tc))

	done = metrics.Timer(job, "write")
	man, err := Write(opts.OutputDir, m, manifestHeader(runID, opts))
	done(err)
	if err != nil {
		return nil, err
	}
	metrics.RecordRows(job, "prepared", int64(ur))
	metrics.RecordRows(job, "train", int64(tr))
	metrics.RecordRows(job, "test", int64(len(m.YTest)))

	res := &Result{Matrices: m, Manifest: man, Duration: time.Since(start)}
	log.Info("prepare: artifacts written",
		zap.String("output_dir", opts.OutputDir),
		zap.Int("files", len(man.Artifacts)+1),
		zap.Duration("elapsed", res.Duration))
	return res, nil
}

// query checks the table has every wanted column and reads the projection.
// The repository is released before any preprocessing starts.
func query(ctx context.Context, opts Options, open Opener) (*dataset.Frame, error) {
	repo, err := open(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare: connect: %w", err)
	}
	defer repo.Close()

	cols := opts.Features.QueryColumns()
	have, err := repo.Columns(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare: query: %w", err)
	}
	if err := dataset.RequireColumns(have, cols); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	rs, err := repo.SelectColumns(ctx, cols)
	if err != nil {
		return nil, fmt.Errorf("prepare: query: %w", err)
	}

	frame, err := dataset.FromResult(rs)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	if err := frame.Require(cols); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	return frame, nil
}

// Build runs every preprocessing step over frame. The supervised transformer
// is fitted on all rows before the split.
func Build(frame *dataset.Frame, opts Options) (*Matrices, error) {
	fs := opts.Features
	if err := frame.Require(append(fs.Supervised(), fs.Label)); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}

	X, err := preprocess.NumericMatrix(frame, fs.Unsupervised)
	if err != nil {
		return nil, fmt.Errorf("prepare: unsupervised: %w", err)
	}
	unsup, err := preprocess.NewNumericPipeline(fs.Unsupervised).FitTransform(X)
	if err != nil {
		return nil, fmt.Errorf("prepare: unsupervised: %w", err)
	}

	ct := preprocess.NewColumnTransformer(fs.Numeric, fs.Categorical, opts.HandleUnknown)
	sup, err := ct.FitTransform(frame)
	if err != nil {
		return nil, fmt.Errorf("prepare: supervised: %w", err)
	}

	rawLabels, err := frame.Strings(fs.Label)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	labels := make([]string, len(rawLabels))
	for i, l := range rawLabels {
		labels[i] = canonicalLabel(l)
	}

	split, err := preprocess.StratifiedSplit(labels, opts.TestSize, opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("prepare: split on %q: %w", fs.Label, err)
	}

	cats := make(map[string][]string, len(fs.Categorical))
	for j, name := range fs.Categorical {
		cats[name] = ct.Categorical.Encoder.Categories[j]
	}

	return &Matrices{
		Unsupervised:       unsup,
		XTrain:             preprocess.SelectRows(sup, split.Train),
		XTest:              preprocess.SelectRows(sup, split.Test),
		YTrain:             pick(labels, split.Train),
		YTest:              pick(labels, split.Test),
		SupervisedFeatures: ct.FeatureNames(),
		Categories:         cats,
	}, nil
}

// canonicalLabel renders numeric labels in their shortest form so "1",
// "1.0" and "01" fall in one class.
func canonicalLabel(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return s
}

func pick(vals []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = vals[j]
	}
	return out
}
