package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/boil"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/campusgrid/core"
)

// maxBindParams is the postgres limit of bind parameters per statement.
const maxBindParams = 65535

const defaultBatchSize = 500

// Loader persists normalized rows into their inferred table.
type Loader struct {
	batchSize int
	logger    core.Logger
	debug     bool // log every statement
}

func NewLoader(batchSize int, logger core.Logger, debug bool) *Loader {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Loader{batchSize: batchSize, logger: logger, debug: debug}
}

// Load creates (or replaces) `table` and inserts `rows` in batched multi-row INSERTs.
// Missing row values are NULL; values of unknown columns fail with a SchemaMismatchError.
// More than MaxColumns columns fail with a TooManyColumnsError before anything runs.
// `exec` is expected to be a transaction: Load does not roll back the statements it already ran.
func (l *Loader) Load(
	ctx context.Context,
	exec boil.ContextExecutor,
	table string,
	cols []ColumnSpec,
	rows []NormalizedRow,
	mode Mode,
) (int, error) {
	if len(cols) > MaxColumns {
		return 0, TooManyColumnsError(len(cols))
	}
	if err := checkRows(cols, rows); err != nil {
		return 0, err
	}

	for _, stmt := range CreateStatements(table, cols, mode) {
		if err := l.exec(ctx, exec, stmt); err != nil {
			return 0, StorageError(err, "creating table "+table)
		}
	}
	if len(cols) == 0 {
		return 0, nil
	}

	perBatch := l.batchSize
	if limit := maxBindParams / len(cols); perBatch > limit {
		perBatch = limit
	}

	var inserted int
	for start := 0; start < len(rows); start += perBatch {
		end := start + perBatch
		if end > len(rows) {
			end = len(rows)
		}
		stmt, args := insertStatement(table, cols, rows[start:end])
		if err := l.exec(ctx, exec, stmt, args...); err != nil {
			return inserted, StorageError(err, fmt.Sprintf("inserting rows %d-%d into %s", start+1, end, table))
		}
		inserted += end - start
	}
	return inserted, nil
}

func (l *Loader) exec(ctx context.Context, exec boil.ContextExecutor, stmt string, args ...interface{}) error {
	if l.debug && l.logger != nil {
		l.logger.Debug(renderStatement(stmt, args))
	}
	_, err := queries.Raw(stmt, args...).ExecContext(ctx, exec)
	return err
}

func checkRows(cols []ColumnSpec, rows []NormalizedRow) error {
	known := make(map[string]bool, len(cols))
	for _, col := range cols {
		known[col.Name] = true
	}
	for i, row := range rows {
		for name := range row {
			if !known[name] {
				return SchemaMismatchError(name, i+1)
			}
		}
	}
	return nil
}

// insertStatement builds a parameterized multi-row INSERT:
// INSERT INTO "t" ("a", "b") VALUES ($1,$2),($3,$4)
func insertStatement(table string, cols []ColumnSpec, rows []NormalizedRow) (string, []interface{}) {
	idents := make([]string, len(cols))
	for i, col := range cols {
		idents[i] = pq.QuoteIdentifier(col.Name)
	}

	values := make([]string, len(rows))
	args := make([]interface{}, 0, len(rows)*len(cols))
	for i, row := range rows {
		values[i] = "(" + strmangle.Placeholders(true, len(cols), len(args)+1, 1) + ")"
		for _, col := range cols {
			args = append(args, row[col.Name]) // zero null.String is NULL
		}
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s",
		pq.QuoteIdentifier(table),
		strings.Join(idents, ", "),
		strings.Join(values, ","),
	)
	return stmt, args
}

var placeholderRegex = regexp.MustCompile(`\$\d+`)

// renderStatement interpolates the args of a statement, for logging only.
func renderStatement(stmt string, args []interface{}) string {
	if len(args) == 0 {
		return stmt
	}
	return placeholderRegex.ReplaceAllStringFunc(stmt, func(ph string) string {
		i, err := strconv.Atoi(ph[1:])
		if err != nil || i < 1 || i > len(args) {
			return ph
		}
		switch v := args[i-1].(type) {
		case null.String:
			if v.Valid {
				return QuoteLiteral(v.String)
			}
			return "NULL"
		case nil:
			return "NULL"
		default:
			return QuoteLiteral(fmt.Sprint(v))
		}
	})
}
