package ingest

import (
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campusgrid/core"
)

// Mode is the table-creation mode of an ingestion run.
type Mode string

const (
	// ModeEnsure creates the table if missing and appends rows on repeated uploads.
	ModeEnsure Mode = "ensure"
	// ModeReplace drops the table, recreates it and fully reloads it.
	ModeReplace Mode = "replace"
)

func (m Mode) Valid() bool {
	return m == ModeEnsure || m == ModeReplace
}

// Kind of rows normalization applied to a domain's sheets.
type Kind string

const (
	KindTabular Kind = "tabular"
	KindRoster  Kind = "roster"
)

type (
	// ColumnSpec is one destination column derived from a header label.
	ColumnSpec struct {
		Name  string `json:"name"`
		Label string `json:"label"`
	}

	// Cell is a raw spreadsheet value: nil (empty), string or float64 (numeric value).
	Cell interface{}

	// Sheet is the first sheet of a SourceWorkbook.
	Sheet struct {
		Name   string
		Header []string
		Rows   [][]Cell // possibly ragged
	}

	// NormalizedRow maps a sanitized column name to its value (or NULL).
	NormalizedRow map[string]null.String

	// RosterEntry is one flattened (team, week, day) occupancy of the staff roster.
	RosterEntry struct {
		Week int
		Team string
		Day  string
		Date string
		Name string
	}

	// Domain is a named upload target.
	Domain struct {
		Name        string `json:"name"`
		Table       string `json:"table"`
		Mode        Mode   `json:"mode"`
		Partitioned bool   `json:"partitioned"` // one table per term label (filename)
		Kind        Kind   `json:"kind"`
	}

	// Request is an ingestion run request.
	// A Source file is parsed within the run; Sheet is used as is otherwise.
	Request struct {
		Domain     string
		Sheet      Sheet
		Source     io.Reader
		SourceName string // uploaded file name, logged instead of Filename
		Filename   string // term / partition label
		Mode       Mode   // overrides the domain mode if set
	}

	// Result is the outcome of a successful ingestion run.
	Result struct {
		RunID    string       `json:"run_id"`
		Table    string       `json:"table"`
		Mode     Mode         `json:"mode"`
		Columns  []ColumnSpec `json:"columns"`
		RowCount int          `json:"rows"`
	}
)

// ColumnNames returns the sanitized names of the columns.
func (r Result) ColumnNames() []string {
	return columnNames(r.Columns)
}

func columnNames(cols []ColumnSpec) []string {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	return names
}

// Upload log statuses
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type (
	// UploadLog records one ingestion run.
	UploadLog struct {
		ID           string      `json:"id" db:"id" boil:"id"`
		Domain       string      `json:"domain" db:"domain" boil:"domain"`
		TableName    string      `json:"table" db:"table_name" boil:"table_name"`
		FileName     string      `json:"filename" db:"file_name" boil:"file_name"`
		Mode         string      `json:"mode" db:"mode" boil:"mode"`
		Status       string      `json:"status" db:"status" boil:"status"`
		RowsIngested int         `json:"rows" db:"rows_ingested" boil:"rows_ingested"`
		Error        null.String `json:"error" db:"error" boil:"error"`
		ErrorKind    null.String `json:"error_kind" db:"error_kind" boil:"error_kind"`
		StartedAt    time.Time   `json:"started_at" db:"started_at" boil:"started_at"`
		FinishedAt   null.Time   `json:"finished_at" db:"finished_at" boil:"finished_at"`
	}

	// UploadLogFilter filters upload logs; zero values are ignored.
	UploadLogFilter struct {
		Domain string `json:"domain" query:"domain" validate:"omitempty,alphanum_"`
		Status string `json:"status" query:"status" validate:"omitempty,oneof=pending success failure"`
		Limit  int    `json:"limit" query:"limit" validate:"omitempty,min=1,max=500"`
	}

	// TableData is the content of an ingested table.
	TableData struct {
		Columns []string                 `json:"columns"`
		Rows    []map[string]interface{} `json:"rows"`
	}
)

// Event is published after every ingestion run.
type Event struct {
	Type       string    `json:"type"` // ingestion.completed | ingestion.failed
	RunID      string    `json:"run_id"`
	Domain     string    `json:"domain"`
	Table      string    `json:"table"`
	Mode       Mode      `json:"mode"`
	Rows       int       `json:"rows"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventCompleted = "ingestion.completed"
	EventFailed    = "ingestion.failed"
)

// Validate cleans and validates the filter.
func (f *UploadLogFilter) Validate(validate *validator.Validate) error {
	f.Domain = core.CleanString(f.Domain, true /* lower */)
	f.Status = core.CleanString(f.Status, true /* lower */)
	return validate.Struct(f)
}
