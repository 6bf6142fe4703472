package buildingapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bldgate/pkg/db"
	"bldgate/pkg/modelcache"
)

// Tables maps entities to their per-tenant table names.
var Tables = modelcache.Mapping{
	"resident": "resident",
	"staff":    "staff",
}

// PGStore keeps every building in its own Postgres schema.
type PGStore struct {
	pool   *pgxpool.Pool
	models *modelcache.Cache
}

func NewPGStore(pool *pgxpool.Pool, models *modelcache.Cache) *PGStore {
	return &PGStore{pool: pool, models: models}
}

// EnsureTenantSchema creates the schema and tables for one building (idempotent).
func EnsureTenantSchema(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	m := modelcache.Compile(modelcache.KeyFor("postgres", schema), Tables)
	resident, _ := m.Table("resident")
	staff, _ := m.Table("staff")
	_, err := pool.Exec(ctx, fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %s;
CREATE TABLE IF NOT EXISTS %s (
  id uuid PRIMARY KEY,
  full_name varchar(150) NOT NULL,
  unit varchar(30) NOT NULL DEFAULT '',
  email varchar(150),
  phone varchar(30)
);
CREATE TABLE IF NOT EXISTS %s (
  id uuid PRIMARY KEY,
  full_name varchar(150) NOT NULL,
  email varchar(150),
  phone varchar(30),
  role varchar(50) NOT NULL DEFAULT '',
  create_at timestamptz NOT NULL DEFAULT NOW()
);`, m.SearchPath(), resident, staff))
	return err
}

func (s *PGStore) withTx(ctx context.Context, fn func(tx pgx.Tx, m *modelcache.Model) error) error {
	tx, m, err := db.BeginTx(ctx, s.pool, s.models)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx, m); err != nil {
		return db.MapSchemaError(err)
	}
	return tx.Commit(ctx)
}

func (s *PGStore) ListResidents(ctx context.Context) ([]Resident, error) {
	var out []Resident
	err := s.withTx(ctx, func(tx pgx.Tx, m *modelcache.Model) error {
		tbl, err := m.Table("resident")
		if err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `SELECT id::text, full_name, unit, COALESCE(email,''), COALESCE(phone,'') FROM `+tbl+` ORDER BY full_name`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r Resident
			if err := rows.Scan(&r.ID, &r.Name, &r.Unit, &r.Email, &r.Phone); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

func (s *PGStore) GetResident(ctx context.Context, id string) (Resident, error) {
	var r Resident
	err := s.withTx(ctx, func(tx pgx.Tx, m *modelcache.Model) error {
		tbl, err := m.Table("resident")
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `SELECT id::text, full_name, unit, COALESCE(email,''), COALESCE(phone,'') FROM `+tbl+` WHERE id::text=$1`, id).
			Scan(&r.ID, &r.Name, &r.Unit, &r.Email, &r.Phone)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	return r, err
}

func (s *PGStore) ListStaff(ctx context.Context) ([]Staff, error) {
	var out []Staff
	err := s.withTx(ctx, func(tx pgx.Tx, m *modelcache.Model) error {
		tbl, err := m.Table("staff")
		if err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `SELECT id::text, full_name, COALESCE(email,''), COALESCE(phone,''), role FROM `+tbl+` ORDER BY full_name`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var st Staff
			if err := rows.Scan(&st.ID, &st.Name, &st.Email, &st.Phone, &st.Role); err != nil {
				return err
			}
			out = append(out, st)
		}
		return rows.Err()
	})
	return out, err
}

func (s *PGStore) CreateStaff(ctx context.Context, st Staff) (Staff, error) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	err := s.withTx(ctx, func(tx pgx.Tx, m *modelcache.Model) error {
		tbl, err := m.Table("staff")
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO `+tbl+`(id, full_name, email, phone, role) VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''),$5)`,
			st.ID, st.Name, st.Email, st.Phone, st.Role)
		return err
	})
	return st, err
}

func (s *PGStore) DeleteStaff(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx pgx.Tx, m *modelcache.Model) error {
		tbl, err := m.Table("staff")
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM `+tbl+` WHERE id::text=$1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PGStore) IdentityInUse(ctx context.Context, email, phone string) (bool, error) {
	var inUse bool
	err := s.withTx(ctx, func(tx pgx.Tx, m *modelcache.Model) error {
		resident, err := m.Table("resident")
		if err != nil {
			return err
		}
		staff, err := m.Table("staff")
		if err != nil {
			return err
		}
		return tx.QueryRow(ctx, `SELECT EXISTS (
  SELECT 1 FROM `+resident+` WHERE ($1 <> '' AND lower(email)=lower($1)) OR ($2 <> '' AND phone=$2)
  UNION ALL
  SELECT 1 FROM `+staff+` WHERE ($1 <> '' AND lower(email)=lower($1)) OR ($2 <> '' AND phone=$2)
)`, email, phone).Scan(&inUse)
	})
	return inUse, err
}
