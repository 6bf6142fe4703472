// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgRegistry implements Registry backed by the global.building table.
type pgRegistry struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresRegistry constructs a PostgreSQL-backed building registry.
func NewPostgresRegistry(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Registry {
	return &pgRegistry{dbPool: dbPool, log: log}
}

// EnsureSchema creates the global registry table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE SCHEMA IF NOT EXISTS global;
CREATE TABLE IF NOT EXISTS global.building (
  id uuid PRIMARY KEY,
  code varchar(30) NOT NULL,
  schema_name varchar(128) NOT NULL,
  building_name varchar(150) NOT NULL,
  status smallint NOT NULL DEFAULT 1,
  create_at timestamptz NOT NULL DEFAULT NOW(),
  update_at timestamptz
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_building_code ON global.building(code);
CREATE UNIQUE INDEX IF NOT EXISTS uq_building_schema ON global.building(schema_name);
`)
	return err
}

// SeedFromEnv upserts registry rows from a TENANT_SEED_JSON style document:
//
//	[{"id":"...","code":"BLD01","schema_name":"bld-01","building_name":"...","status":1}]
//
// Rows without an id get a fresh uuid.
func SeedFromEnv(ctx context.Context, dbPool *pgxpool.Pool, jsonSeed string) error {
	if jsonSeed == "" {
		return nil
	}
	var entries []seedEntry
	if err := json.Unmarshal([]byte(jsonSeed), &entries); err != nil {
		return fmt.Errorf("parse tenant seed: %w", err)
	}
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if _, err := dbPool.Exec(ctx, `INSERT INTO global.building(id,code,schema_name,building_name,status)
		  VALUES ($1,$2,$3,$4,$5)
		  ON CONFLICT (schema_name) DO UPDATE SET code=EXCLUDED.code,building_name=EXCLUDED.building_name,status=EXCLUDED.status,update_at=NOW()`,
			e.ID, e.Code, e.SchemaName, e.Name, e.Status); err != nil {
			return fmt.Errorf("seed building %s: %w", e.SchemaName, err)
		}
	}
	return nil
}

// Lookup fetches a building by schema name.
func (p *pgRegistry) Lookup(ctx context.Context, schema string) (Entry, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT id::text,code,schema_name,building_name,status FROM global.building WHERE schema_name=$1`, schema)
	var (
		e      Entry
		status int16
	)
	if err := row.Scan(&e.ID, &e.Code, &e.SchemaName, &e.Name, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("lookup building %q: %w", schema, err)
	}
	e.Active = status == StatusActive
	return e, nil
}

// ListActive returns all active buildings ordered by schema name.
func (p *pgRegistry) ListActive(ctx context.Context) ([]Entry, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT id::text,code,schema_name,building_name FROM global.building WHERE status=$1 ORDER BY schema_name`, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list buildings: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e := Entry{Active: true}
		if err := rows.Scan(&e.ID, &e.Code, &e.SchemaName, &e.Name); err != nil {
			return nil, fmt.Errorf("scan building: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
