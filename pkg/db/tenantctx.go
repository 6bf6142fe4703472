package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"bldgate/pkg/modelcache"
	"bldgate/pkg/tenant"
)

// Beginner starts transactions; satisfied by *pgxpool.Pool.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BeginTx starts a transaction scoped to the tenant bound to ctx: search_path is
// pinned to the tenant schema for the lifetime of the transaction and the
// tenant's compiled model is returned for table lookups.
// Call tx.Rollback(ctx) on error paths; Commit on success.
func BeginTx(ctx context.Context, pool Beginner, models *modelcache.Cache) (pgx.Tx, *modelcache.Model, error) {
	m, err := models.ForContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	if _, err := tx.Exec(ctx, "SELECT set_config('search_path', $1, true)", m.SearchPath()); err != nil {
		_ = tx.Rollback(ctx)
		return nil, nil, MapSchemaError(err)
	}
	return tx, m, nil
}

// Postgres error codes for a schema or table that does not exist.
const (
	codeInvalidSchemaName = "3F000"
	codeUndefinedTable    = "42P01"
)

// MapSchemaError turns missing-schema and missing-table errors into
// tenant.ErrInvalidTenant; other errors are returned unchanged.
func MapSchemaError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeInvalidSchemaName, codeUndefinedTable:
			return fmt.Errorf("%w: %s", tenant.ErrInvalidTenant, pgErr.Message)
		}
	}
	return err
}
