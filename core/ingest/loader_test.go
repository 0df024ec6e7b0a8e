package ingest_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campusgrid/core/ingest"
	"github.com/trezcool/campusgrid/storage/database/dummy"
	"github.com/trezcool/campusgrid/tests"
)

func rowsOf(n int) []ingest.NormalizedRow {
	rows := make([]ingest.NormalizedRow, n)
	for i := range rows {
		rows[i] = ingest.NormalizedRow{"room": null.StringFrom("R" + strings.Repeat("1", i+1))}
	}
	return rows
}

func load(t *testing.T, db *dummydb.DB, loader *ingest.Loader, cols []ingest.ColumnSpec, rows []ingest.NormalizedRow, mode ingest.Mode) (int, error) {
	ctx := context.Background()
	tx, err := db.Begin(ctx)
	require.NoError(t, err)

	n, err := loader.Load(ctx, tx, "classrooms", cols, rows, mode)
	if err != nil {
		require.NoError(t, tx.Rollback())
		return n, err
	}
	require.NoError(t, tx.Commit())
	return n, nil
}

func TestLoader_Load(t *testing.T) {
	cols := []ingest.ColumnSpec{{Name: "room"}, {Name: "capacity"}}

	t.Run("too many columns", func(t *testing.T) {
		db, _ := dummydb.Open()
		loader := ingest.NewLoader(2, new(testutil.Logger), false)

		wide := make([]ingest.ColumnSpec, 65536)
		for i := range wide {
			wide[i] = ingest.ColumnSpec{Name: fmt.Sprintf("c%d", i)}
		}
		n, err := load(t, db, loader, wide, rowsOf(0), ingest.ModeReplace)
		assert.True(t, ingest.IsKind(err, ingest.ErrTooManyColumns), "Load() error = %v, want too_many_columns", err)
		assert.Zero(t, n)
		assert.Empty(t, db.Statements())
	})

	t.Run("creates before inserting, in batches", func(t *testing.T) {
		db, _ := dummydb.Open()
		loader := ingest.NewLoader(2, new(testutil.Logger), false)

		n, err := load(t, db, loader, cols, rowsOf(5), ingest.ModeReplace)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, 5, db.RowCount("classrooms"))

		stmts := db.Statements()
		require.Len(t, stmts, 5)
		assert.True(t, strings.HasPrefix(stmts[0].SQL, "DROP TABLE"))
		assert.True(t, strings.HasPrefix(stmts[1].SQL, "CREATE TABLE"))
		for _, s := range stmts[2:] {
			assert.True(t, strings.HasPrefix(s.SQL, "INSERT INTO"))
		}
	})

	t.Run("replace vs ensure", func(t *testing.T) {
		db, _ := dummydb.Open()
		loader := ingest.NewLoader(100, new(testutil.Logger), false)

		for i := 0; i < 2; i++ {
			_, err := load(t, db, loader, cols, rowsOf(3), ingest.ModeReplace)
			require.NoError(t, err)
			assert.Equal(t, 3, db.RowCount("classrooms"))
		}
		for i := 1; i <= 2; i++ {
			_, err := load(t, db, loader, cols, rowsOf(3), ingest.ModeEnsure)
			require.NoError(t, err)
			assert.Equal(t, 3+3*i, db.RowCount("classrooms"))
		}
	})

	t.Run("unknown column", func(t *testing.T) {
		db, _ := dummydb.Open()
		loader := ingest.NewLoader(100, new(testutil.Logger), false)
		rows := rowsOf(2)
		rows[1]["floor"] = null.StringFrom("2")

		_, err := load(t, db, loader, cols, rows, ingest.ModeReplace)
		assert.True(t, ingest.IsKind(err, ingest.ErrSchemaMismatch), "Load() error = %v", err)
		assert.Empty(t, db.Statements(), "no statement runs before the rows are checked")
		assert.Equal(t, -1, db.RowCount("classrooms"))
	})

	t.Run("bind parameter limit", func(t *testing.T) {
		db, _ := dummydb.Open()
		loader := ingest.NewLoader(500, new(testutil.Logger), false)

		wide := make([]ingest.ColumnSpec, 1500) // 43 rows per statement
		for i := range wide {
			wide[i] = ingest.ColumnSpec{Name: fmt.Sprintf("c%d", i)}
		}

		n, err := load(t, db, loader, wide, make([]ingest.NormalizedRow, 100), ingest.ModeEnsure)
		require.NoError(t, err)
		assert.Equal(t, 100, n)
		assert.Len(t, db.Statements(), 1+3)
	})

	t.Run("debug logs statements", func(t *testing.T) {
		db, _ := dummydb.Open()
		logger := new(testutil.Logger)
		loader := ingest.NewLoader(100, logger, true)
		rows := []ingest.NormalizedRow{{"room": null.StringFrom("O'Neil Hall")}}

		_, err := load(t, db, loader, cols, rows, ingest.ModeEnsure)
		require.NoError(t, err)
		debug := logger.Messages("debug")
		require.Len(t, debug, 2)
		assert.Equal(t, `INSERT INTO "classrooms" ("room", "capacity") VALUES ('O''Neil Hall',NULL)`, debug[1])
	})
}
