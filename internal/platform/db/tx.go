package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// writeLockKey is the advisory lock class shared by every mutating
// operation. The store is single-writer: a transaction that cannot take
// the lock fails fast with ErrStoreBusy instead of queueing.
const writeLockKey = 78221

// ErrStoreBusy indicates the exclusive write transaction could not be
// acquired. The caller may retry the whole operation from scratch.
var ErrStoreBusy = errors.New("store busy")

// WithTx executes a function within a read transaction.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// WithWriteTx executes a function within the exclusive write transaction.
// The advisory lock is transaction scoped, so a rollback or commit always
// releases it.
func WithWriteTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var locked bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, writeLockKey).Scan(&locked); err != nil {
		return fmt.Errorf("platform/db: acquire write lock: %w", err)
	}
	if !locked {
		return ErrStoreBusy
	}

	if err := fn(tx); err != nil {
		return translateBusy(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// translateBusy maps lock acquisition failures from NOWAIT row locks to
// ErrStoreBusy so callers see one busy signal regardless of which lock
// could not be taken.
func translateBusy(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "55P03" {
		return ErrStoreBusy
	}
	return err
}
