package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

func TestFormatSerialDate(t *testing.T) {
	tests := []struct {
		serial float64
		want   string
	}{
		{serial: 25569, want: "1970-01-01"},
		{serial: 45658, want: "2025-01-01"},
		{serial: 45658.5, want: "2025-01-01"},
		{serial: 45658.999, want: "2025-01-01"},
		{serial: 61, want: "1900-03-01"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSerialDate(tt.serial), "serial %v", tt.serial)
	}
}

func TestFormatSerialTime(t *testing.T) {
	tests := []struct {
		serial float64
		want   string
	}{
		{serial: 0.375, want: "09:00"},
		{serial: 0.5208333333333334, want: "12:30"},
		{serial: 45658.75, want: "18:00"},
		{serial: 45700.2, want: "04:48"},
		{serial: 45658.999, want: "23:58"}, // 23:58:33.6, seconds truncated
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSerialTime(tt.serial), "serial %v", tt.serial)
	}
}

func TestFormatSerialDate_roundTrip(t *testing.T) {
	for serial := 1; serial <= 80000; serial += 7 {
		date, err := time.Parse("2006-01-02", FormatSerialDate(float64(serial)))
		require.NoError(t, err)
		if got := SerialFromTime(date); got != float64(serial) {
			t.Fatalf("serial %d -> %s -> %v", serial, date.Format("2006-01-02"), got)
		}
	}
}

func TestIsBlankRow(t *testing.T) {
	tests := []struct {
		name  string
		cells []Cell
		want  bool
	}{
		{name: "empty", want: true},
		{name: "nils", cells: []Cell{nil, nil}, want: true},
		{name: "empty strings", cells: []Cell{"", nil, ""}, want: true},
		{name: "whitespace", cells: []Cell{" "}, want: false},
		{name: "zero", cells: []Cell{nil, 0.0}, want: false},
		{name: "value", cells: []Cell{"", "A101"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBlankRow(tt.cells))
		})
	}
}

func TestNormalizeRow(t *testing.T) {
	cols := []ColumnSpec{{Name: "course"}, {Name: "start_date"}, {Name: "start_time"}, {Name: "seats"}, {Name: "note"}}

	tests := []struct {
		name     string
		cells    []Cell
		want     NormalizedRow
		wantKind ErrorKind
	}{
		{
			name:  "serial dates and times",
			cells: []Cell{"CS101", 45658.0, 0.375, 30.0, "it's"},
			want: NormalizedRow{
				"course":     null.StringFrom("CS101"),
				"start_date": null.StringFrom("2025-01-01"),
				"start_time": null.StringFrom("09:00"),
				"seats":      null.StringFrom("30"),
				"note":       null.StringFrom("it's"),
			},
		},
		{
			name:  "formatted strings are kept",
			cells: []Cell{"CS102", "Jan 6, 2025", "9:00 AM", "thirty", nil},
			want: NormalizedRow{
				"course":     null.StringFrom("CS102"),
				"start_date": null.StringFrom("Jan 6, 2025"),
				"start_time": null.StringFrom("9:00 AM"),
				"seats":      null.StringFrom("thirty"),
				"note":       null.String{},
			},
		},
		{
			name:  "ragged row padded with NULL",
			cells: []Cell{"CS103", nil, nil, 12.5},
			want: NormalizedRow{
				"course":     null.StringFrom("CS103"),
				"start_date": null.String{},
				"start_time": null.String{},
				"seats":      null.StringFrom("12.5"),
				"note":       null.String{},
			},
		},
		{
			name:  "bool",
			cells: []Cell{"CS104", nil, nil, nil, true},
			want: NormalizedRow{
				"course":     null.StringFrom("CS104"),
				"start_date": null.String{},
				"start_time": null.String{},
				"seats":      null.String{},
				"note":       null.StringFrom("true"),
			},
		},
		{name: "extra cell", cells: []Cell{"CS105", nil, nil, nil, nil, "oops"}, wantKind: ErrSchemaMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRow(cols, tt.cells, 2)
			if tt.wantKind != "" {
				assert.True(t, IsKind(err, tt.wantKind), "NormalizeRow() error = %v, wantKind %v", err, tt.wantKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("trailing blank extra cells", func(t *testing.T) {
		_, err := NormalizeRow(cols, []Cell{"CS106", nil, nil, nil, nil, "", nil}, 2)
		assert.NoError(t, err)
	})
}

func TestNormalizeRows(t *testing.T) {
	cols := []ColumnSpec{{Name: "room"}, {Name: "capacity"}}
	rows := [][]Cell{
		{"A101", 30.0},
		{nil, ""},
		{},
		{"", 12.0},
		{" "},
	}

	got, err := NormalizeRows(cols, rows)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "A101", got[0]["room"].String)
	assert.True(t, got[1]["room"].Valid, "empty string is not NULL")
	assert.Equal(t, "", got[1]["room"].String)
	assert.Equal(t, "12", got[1]["capacity"].String)
	assert.Equal(t, " ", got[2]["room"].String)
	assert.False(t, got[2]["capacity"].Valid)

	t.Run("error row number", func(t *testing.T) {
		_, err := NormalizeRows(cols, [][]Cell{{"A101"}, {}, {"A102", 1.0, "x"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row 4")
	})
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, "'plain'", QuoteLiteral("plain"))
	assert.Equal(t, "'O''Brien'", QuoteLiteral("O'Brien"))
	assert.Equal(t, "''''''", QuoteLiteral("''"))
}
