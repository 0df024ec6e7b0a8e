package core

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"
)

type (
	// DBExecutor runs statements on a connection pool or inside a transaction.
	// It satisfies sqlboiler's boil.ContextExecutor.
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	// DBTransactor is an ingestion transaction: the table is created and loaded before Commit.
	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

// DBOrdering orders a listing by Field.
type DBOrdering struct {
	Field     string
	Ascending bool
}

// ParseOrdering parses "field1,-field2" orderings; a leading "-" orders descending. Blank fields are skipped.
func ParseOrdering(val string) []DBOrdering {
	var orderings []DBOrdering
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = strings.TrimSpace(field[1:]) // drop "-"
		}
		if field == "" {
			continue
		}
		orderings = append(orderings, DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings
}

// String renders the ORDER BY term, with the field quoted as an identifier.
func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return pq.QuoteIdentifier(ord.Field) + " " + direction
}
