package dummydb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campusgrid/core"
	"github.com/trezcool/campusgrid/core/ingest"
)

var (
	errNotSupported = errors.New("dummydb: queries are not supported")
	errTxDone       = sql.ErrTxDone

	identPattern = `"((?:[^"]|"")*)"`
	dropRegex    = regexp.MustCompile(`^DROP TABLE IF EXISTS ` + identPattern + `$`)
	createRegex  = regexp.MustCompile(`^CREATE TABLE IF NOT EXISTS ` + identPattern + ` \((.*)\)$`)
	insertRegex  = regexp.MustCompile(`^INSERT INTO ` + identPattern + ` \((.*)\) VALUES (.*)$`)
	colDefRegex  = regexp.MustCompile(`^` + identPattern + ` (.+)$`)
)

type (
	// DB is an in-memory stand-in for the postgres store.
	// It understands the DROP / CREATE / INSERT statements issued by the ingestion loader.
	DB struct {
		mu       sync.Mutex
		tables   map[string]*table
		stmts    []Statement
		txSeq    int
		execHook func(ctx context.Context, stmt string) error

		uploadLog *uploadLogTable
	}

	// Statement is an executed statement and the transaction it ran in.
	Statement struct {
		Tx  int
		SQL string
	}

	table struct {
		columns []string // without the identity column
		rows    []row
		seq     int64
	}

	row struct {
		id     int64
		values map[string]null.String
	}

	tx struct {
		db      *DB
		id      int
		touched map[string]*table // nil value: dropped
		done    bool
	}
)

var (
	_ ingest.Store      = (*DB)(nil) // interface compliance check
	_ core.DBTransactor = (*tx)(nil)
)

func Open() (*DB, error) {
	db := &DB{
		tables:    make(map[string]*table),
		uploadLog: &uploadLogTable{table: make(map[string]*ingest.UploadLog)},
	}
	return db, nil
}

// SetExecHook sets a function called before every statement; a non-nil error fails the statement.
func (db *DB) SetExecHook(hook func(ctx context.Context, stmt string) error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.execHook = hook
}

// Statements returns the statements executed so far, in order.
func (db *DB) Statements() []Statement {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]Statement(nil), db.stmts...)
}

// RowCount returns the number of committed rows of `name`, or -1 if the table does not exist.
func (db *DB) RowCount(name string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[name]
	if !ok {
		return -1
	}
	return len(t.rows)
}

func (db *DB) Begin(ctx context.Context) (core.DBTransactor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.txSeq++
	return &tx{db: db, id: db.txSeq, touched: make(map[string]*table)}, nil
}

// LockTable is a no-op: in-process runs are already serialized by the ingestion service.
func (db *DB) LockTable(ctx context.Context, _ core.DBExecutor, _ string) error {
	return ctx.Err()
}

func (t *table) clone() *table {
	c := &table{columns: append([]string(nil), t.columns...), seq: t.seq}
	c.rows = append([]row(nil), t.rows...)
	return c
}

func (t *table) hasColumn(name string) bool {
	for _, c := range t.columns {
		if c == name {
			return true
		}
	}
	return false
}

// lookup returns the table as seen by the transaction. db.mu must be held.
func (tx *tx) lookup(name string) (*table, bool) {
	if t, ok := tx.touched[name]; ok {
		return t, t != nil
	}
	t, ok := tx.db.tables[name]
	if !ok {
		return nil, false
	}
	c := t.clone()
	tx.touched[name] = c
	return c, true
}

func (tx *tx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if tx.done {
		return nil, errTxDone
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx.db.mu.Lock()
	hook := tx.db.execHook
	tx.db.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, query); err != nil {
			return nil, err
		}
	}

	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	tx.db.stmts = append(tx.db.stmts, Statement{Tx: tx.id, SQL: query})

	switch {
	case dropRegex.MatchString(query):
		name := unquote(dropRegex.FindStringSubmatch(query)[1])
		tx.touched[name] = nil
		return driver.RowsAffected(0), nil

	case createRegex.MatchString(query):
		m := createRegex.FindStringSubmatch(query)
		name := unquote(m[1])
		if _, exists := tx.lookup(name); exists {
			return driver.RowsAffected(0), nil
		}
		t := &table{}
		for _, def := range splitList(m[2]) {
			dm := colDefRegex.FindStringSubmatch(def)
			if dm == nil {
				return nil, errors.Errorf("dummydb: invalid column definition %q", def)
			}
			if col := unquote(dm[1]); col != ingest.IdentityColumn {
				t.columns = append(t.columns, col)
			}
		}
		tx.touched[name] = t
		return driver.RowsAffected(0), nil

	case insertRegex.MatchString(query):
		m := insertRegex.FindStringSubmatch(query)
		name := unquote(m[1])
		t, ok := tx.lookup(name)
		if !ok {
			return nil, errors.Errorf("relation %q does not exist", name)
		}
		cols := splitList(m[2])
		for i, c := range cols {
			cols[i] = unquoteIdent(c)
			if !t.hasColumn(cols[i]) {
				return nil, errors.Errorf("column %q of relation %q does not exist", cols[i], name)
			}
		}
		if len(cols) == 0 || len(args)%len(cols) != 0 {
			return nil, errors.Errorf("dummydb: %d args for %d columns", len(args), len(cols))
		}
		n := len(args) / len(cols)
		for r := 0; r < n; r++ {
			t.seq++
			rw := row{id: t.seq, values: make(map[string]null.String, len(cols))}
			for i, col := range cols {
				v, err := toNullString(args[r*len(cols)+i])
				if err != nil {
					return nil, err
				}
				rw.values[col] = v
			}
			t.rows = append(t.rows, rw)
		}
		return driver.RowsAffected(n), nil
	}
	return nil, errors.Errorf("dummydb: unsupported statement %q", query)
}

func (tx *tx) Exec(query string, args ...interface{}) (sql.Result, error) {
	return tx.ExecContext(context.Background(), query, args...)
}

func (tx *tx) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errNotSupported
}

func (tx *tx) Query(string, ...interface{}) (*sql.Rows, error) {
	return nil, errNotSupported
}

// QueryRowContext is not supported: the returned *sql.Row is nil.
func (tx *tx) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

func (tx *tx) QueryRow(string, ...interface{}) *sql.Row {
	return nil
}

func (tx *tx) Commit() error {
	if tx.done {
		return errTxDone
	}
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	tx.done = true
	for name, t := range tx.touched {
		if t == nil {
			delete(tx.db.tables, name)
		} else {
			tx.db.tables[name] = t
		}
	}
	return nil
}

func (tx *tx) Rollback() error {
	if tx.done {
		return errTxDone
	}
	tx.done = true
	return nil
}

// unquoteIdent unquotes a "quoted" identifier.
func unquoteIdent(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return unquote(s)
}

func unquote(ident string) string {
	return strings.ReplaceAll(ident, `""`, `"`)
}

// splitList splits a comma-separated list of quoted identifiers / definitions.
func splitList(s string) []string {
	var parts []string
	var b strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == ',' && !inQuote:
			parts = append(parts, strings.TrimSpace(b.String()))
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if rest := strings.TrimSpace(b.String()); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

func toNullString(arg interface{}) (null.String, error) {
	switch v := arg.(type) {
	case nil:
		return null.String{}, nil
	case null.String:
		return v, nil
	case string:
		return null.StringFrom(v), nil
	case driver.Valuer:
		val, err := v.Value()
		if err != nil {
			return null.String{}, err
		}
		return toNullString(val)
	default:
		return null.StringFrom(fmt.Sprint(v)), nil
	}
}
