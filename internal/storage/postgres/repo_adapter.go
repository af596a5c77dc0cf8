package postgres

import (
	"context"

	"heartprep/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo adds Close, backed by the cleanup func from NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close releases the pool. Safe to call more than once.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
		w.closeFn = nil
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}
