package storage

import (
	"context"
	"errors"
	"fmt"
)

// ProgressFn is called after every progressEvery successful inserts with the
// running total of executed (not yet committed) statements.
type ProgressFn func(executed int64)

// LoadRows inserts rows into repo one statement per row inside a single
// transaction and commits once at the end.
//
// Failure is all-or-nothing: the first insert error aborts the remaining
// rows and rolls the transaction back, so nothing is committed and the
// returned count is 0. On success the returned count equals len(rows).
func LoadRows(
	ctx context.Context,
	repo Repository,
	columns []string,
	rows [][]any,
	progressEvery int,
	progress ProgressFn,
) (int64, error) {
	if repo == nil {
		return 0, fmt.Errorf("repository must not be nil")
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("columns must not be empty")
	}

	tx, err := repo.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}

	var executed int64
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, rollback(ctx, tx, fmt.Errorf("row %d: %d values for %d columns", i+1, len(row), len(columns)))
		}
		if err := tx.Insert(ctx, columns, row); err != nil {
			return 0, rollback(ctx, tx, fmt.Errorf("insert row %d: %w", i+1, err))
		}
		executed++
		if progress != nil && progressEvery > 0 && executed%int64(progressEvery) == 0 {
			progress(executed)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, rollback(ctx, tx, fmt.Errorf("commit: %w", err))
	}
	return executed, nil
}

// rollback aborts tx and joins any rollback failure onto cause.
func rollback(ctx context.Context, tx Tx, cause error) error {
	if rbErr := tx.Rollback(ctx); rbErr != nil {
		return errors.Join(cause, fmt.Errorf("rollback: %w", rbErr))
	}
	return cause
}
