package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// withTx runs fn inside a transaction. fn returning an error rolls the
// transaction back; a commit failure is reported to the caller.
func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	if pool == nil {
		return errors.New("postgres pool is nil")
	}
	if err := pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, fn); err != nil {
		return fmt.Errorf("tx: %w", err)
	}
	return nil
}
