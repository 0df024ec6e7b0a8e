package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/trezcool/campusgrid/core"
	"github.com/trezcool/campusgrid/core/ingest"
)

// Store runs ingestion transactions on postgres.
type Store struct {
	db *sql.DB
}

var _ ingest.Store = (*Store)(nil) // interface compliance check

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Begin(ctx context.Context) (core.DBTransactor, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	return tx, nil
}

// LockTable takes an advisory lock keyed on the table name, released on commit/rollback.
func (s *Store) LockTable(ctx context.Context, tx core.DBExecutor, table string) error {
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", table); err != nil {
		return errors.Wrapf(err, "locking table %q", table)
	}
	return nil
}
