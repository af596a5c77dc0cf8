// Package loader implements the load job: read a CSV file, rename its header
// through the feature set's rename map, and insert every row into the
// configured table with one INSERT per row inside a single transaction.
package loader

import (
	"context"
	"fmt"
	"os"
	"time"

	"heartprep/internal/features"
	"heartprep/internal/metrics"
	"heartprep/internal/storage"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
)

const job = "load"

// Options configures one load run.
type Options struct {
	CSVPath string
	// Table is used for logging and the Summary; the repository already
	// targets it.
	Table    string
	Encoding encoding.Encoding
	Comma    rune
	Features features.Set
	// NullTokens overrides DefaultNullTokens when non-nil.
	NullTokens []string
	// ProgressEvery logs progress after this many inserts; 0 disables it.
	ProgressEvery int
}

// Opener opens the destination repository. It is called only after the CSV
// has been read and renamed successfully.
type Opener func(ctx context.Context) (storage.Repository, error)

// Summary reports a successful run.
type Summary struct {
	Rows     int64
	Table    string
	Columns  []string
	Duration time.Duration
}

// Run executes the load job. The repository returned by open is closed on
// every exit path. On failure nothing is committed.
func Run(ctx context.Context, opts Options, open Opener, log *zap.Logger) (Summary, error) {
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()

	done := metrics.Timer(job, "read")
	tbl, columns, err := readAndRename(opts)
	done(err)
	if err != nil {
		return Summary{}, err
	}
	metrics.RecordRows(job, "read", int64(len(tbl.Rows)))
	log.Info("loader: csv read",
		zap.String("path", opts.CSVPath),
		zap.Int("rows", len(tbl.Rows)),
		zap.Int("columns", len(columns)))

	done = metrics.Timer(job, "connect")
	repo, err := open(ctx)
	done(err)
	if err != nil {
		return Summary{}, fmt.Errorf("loader: connect: %w", err)
	}
	defer repo.Close()

	nullTokens := opts.NullTokens
	if nullTokens == nil {
		nullTokens = DefaultNullTokens
	}

	done = metrics.Timer(job, "insert")
	n, err := storage.LoadRows(ctx, repo, columns, tbl.Values(nullTokens), opts.ProgressEvery,
		func(executed int64) {
			log.Info("loader: progress", zap.Int64("executed", executed), zap.Int("total", len(tbl.Rows)))
		})
	done(err)
	if err != nil {
		log.Error("loader: insert failed, transaction rolled back",
			zap.String("table", opts.Table), zap.Error(err))
		return Summary{}, fmt.Errorf("loader: %w", err)
	}
	metrics.RecordRows(job, "inserted", n)

	sum := Summary{Rows: n, Table: opts.Table, Columns: columns, Duration: time.Since(start)}
	log.Info("loader: rows inserted",
		zap.Int64("rows", sum.Rows),
		zap.String("table", sum.Table),
		zap.Duration("elapsed", sum.Duration))
	return sum, nil
}

func readAndRename(opts Options) (*Table, []string, error) {
	f, err := os.Open(opts.CSVPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loader: %w", err)
	}
	defer f.Close()

	tbl, err := ReadCSV(f, opts.Encoding, opts.Comma)
	if err != nil {
		return nil, nil, fmt.Errorf("loader: %s: %w", opts.CSVPath, err)
	}
	columns, err := opts.Features.Rename(tbl.Header)
	if err != nil {
		return nil, nil, fmt.Errorf("loader: %w", err)
	}
	return tbl, columns, nil
}
