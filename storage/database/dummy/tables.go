package dummydb

import (
	"context"

	"github.com/trezcool/campusgrid/core"
	"github.com/trezcool/campusgrid/core/ingest"
)

type tableReader struct {
	db *DB
}

var _ ingest.TableReader = (*tableReader)(nil) // interface compliance check

func NewTableReader(db *DB) ingest.TableReader {
	return &tableReader{db: db}
}

func (r *tableReader) ReadTable(_ context.Context, name string, _ ...core.DBExecutor) (ingest.TableData, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t, ok := r.db.tables[name]
	if !ok {
		return ingest.TableData{}, ingest.ErrTableNotFound
	}

	data := ingest.TableData{
		Columns: append([]string{ingest.IdentityColumn}, t.columns...),
		Rows:    make([]map[string]interface{}, 0, len(t.rows)),
	}
	for _, rw := range t.rows {
		m := make(map[string]interface{}, len(t.columns)+1)
		m[ingest.IdentityColumn] = rw.id
		for _, col := range t.columns {
			if v, ok := rw.values[col]; ok && v.Valid {
				m[col] = v.String
			} else {
				m[col] = nil
			}
		}
		data.Rows = append(data.Rows, m)
	}
	return data, nil
}
