package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func TestInsertStatement(t *testing.T) {
	cols := []ColumnSpec{{Name: "room"}, {Name: "capacity"}}
	rows := []NormalizedRow{
		{"room": null.StringFrom("A101"), "capacity": null.StringFrom("30")},
		{"room": null.StringFrom("B2")},
	}

	stmt, args := insertStatement("classrooms", cols, rows)
	assert.Equal(t, `INSERT INTO "classrooms" ("room", "capacity") VALUES ($1,$2),($3,$4)`, stmt)
	assert.Equal(t, []interface{}{
		null.StringFrom("A101"), null.StringFrom("30"),
		null.StringFrom("B2"), null.String{},
	}, args)

	t.Run("single column", func(t *testing.T) {
		stmt, args := insertStatement("t", []ColumnSpec{{Name: "a"}}, []NormalizedRow{{}, {}, {}})
		assert.Equal(t, `INSERT INTO "t" ("a") VALUES ($1),($2),($3)`, stmt)
		assert.Len(t, args, 3)
	})
}

func TestRenderStatement(t *testing.T) {
	args := make([]interface{}, 11)
	for i := range args {
		args[i] = null.StringFrom("v")
	}
	args[0] = null.StringFrom("O'Brien")
	args[1] = null.String{}
	args[10] = null.StringFrom("$1")

	got := renderStatement(`INSERT INTO "t" ("a") VALUES ($1),($2),($3),($4),($5),($6),($7),($8),($9),($10),($11)`, args)
	assert.Equal(t,
		`INSERT INTO "t" ("a") VALUES ('O''Brien'),(NULL),('v'),('v'),('v'),('v'),('v'),('v'),('v'),('v'),('$1')`,
		got,
	)
}
