package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"bldgate/pkg/modelcache"
	"bldgate/pkg/tenant"
)

func TestMapSchemaError(t *testing.T) {
	for _, code := range []string{"3F000", "42P01"} {
		err := MapSchemaError(fmt.Errorf("query: %w", &pgconn.PgError{Code: code, Message: "relation missing"}))
		assert.ErrorIs(t, err, tenant.ErrInvalidTenant, code)
	}
	other := &pgconn.PgError{Code: "23505"}
	assert.Same(t, error(other), MapSchemaError(other))

	plain := errors.New("conn reset")
	assert.Equal(t, plain, MapSchemaError(plain))
}

type noBegin struct{ called bool }

func (n *noBegin) Begin(context.Context) (pgx.Tx, error) {
	n.called = true
	return nil, errors.New("unexpected")
}

func TestBeginTxRequiresTenant(t *testing.T) {
	pool := &noBegin{}
	_, _, err := BeginTx(context.Background(), pool, modelcache.New("postgres", nil))
	assert.ErrorIs(t, err, tenant.ErrNoTenantBound)
	assert.False(t, pool.called)
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "***@db:5432/bms", redactDSN("postgres://u:p@db:5432/bms"))
	assert.Equal(t, "postgres:///bms", redactDSN("postgres:///bms"))
}
