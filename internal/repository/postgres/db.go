package postgresrepo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultTxRetries = 3

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool       *pgxpool.Pool
	maxRetries int
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:       pool,
		maxRetries: defaultTxRetries,
	}
}

// RunTx runs fn inside a transaction and retries it on serialization failures
// and deadlocks. fn must therefore be free of side effects outside the
// transaction.
//
// The default isolation is READ COMMITTED: writers take explicit row locks and
// every statement after a lock observes the latest committed state.
func (s *Store) RunTx(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx DB) error,
) error {
	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err = s.runTx(ctx, opts, fn)
		if err == nil || !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
	}

	return err
}

// runTx runs fn exactly once inside a transaction.
func (s *Store) runTx(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx DB) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) Ledger() *LedgerRepo   { return &LedgerRepo{store: s} }
func (s *Store) Query() *QueryRepo     { return &QueryRepo{pool: s.pool} }
func (s *Store) Catalog() *CatalogRepo { return &CatalogRepo{store: s} }
