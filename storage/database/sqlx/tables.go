package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/campusgrid/core"
	"github.com/trezcool/campusgrid/core/ingest"
)

// tableReader reads ingested tables, whose columns are only known at runtime.
type tableReader struct {
	db *sqlx.DB
}

var _ ingest.TableReader = (*tableReader)(nil) // interface compliance check

func NewTableReader(db *sql.DB) *tableReader {
	return &tableReader{db: sqlx.NewDb(db, "postgres")}
}

func (repo tableReader) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

func (repo tableReader) ReadTable(ctx context.Context, table string, exec ...core.DBExecutor) (ingest.TableData, error) {
	ex := repo.getExec(exec)
	ident := pq.QuoteIdentifier(table)

	var exists bool
	if err := ex.QueryRowContext(ctx, "SELECT to_regclass($1) IS NOT NULL", ident).Scan(&exists); err != nil {
		return ingest.TableData{}, errors.Wrap(err, "checking table")
	}
	if !exists {
		return ingest.TableData{}, ingest.ErrTableNotFound
	}

	rows, err := ex.QueryContext(ctx, "SELECT * FROM "+ident+" ORDER BY "+pq.QuoteIdentifier(ingest.IdentityColumn))
	if err != nil {
		return ingest.TableData{}, errors.Wrap(err, "querying table")
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return ingest.TableData{}, errors.Wrap(err, "reading columns")
	}
	data := ingest.TableData{Columns: cols, Rows: make([]map[string]interface{}, 0)}
	for rows.Next() {
		row := make(map[string]interface{}, len(cols))
		if err = sqlx.MapScan(rows, row); err != nil {
			return ingest.TableData{}, errors.Wrap(err, "scanning row")
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		data.Rows = append(data.Rows, row)
	}
	if err = rows.Err(); err != nil {
		return ingest.TableData{}, errors.Wrap(err, "reading rows")
	}
	return data, nil
}
