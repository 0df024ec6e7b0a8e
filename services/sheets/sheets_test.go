package sheets

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campusgrid/core"
	"github.com/trezcool/campusgrid/core/ingest"
	"github.com/trezcool/campusgrid/tests"
)

func TestParseXLSX(t *testing.T) {
	book := testutil.Workbook(t, "Rooms",
		[]interface{}{},
		[]interface{}{"Room", "Capacity", "Open Date", "Accessible"},
		[]interface{}{"A101", 30, 45658.5, true},
		[]interface{}{},
		[]interface{}{"B202", nil, "TBD"},
		[]interface{}{"2025", 1.25},
	)

	sheet, err := ParseXLSX(bytes.NewReader(book))
	require.NoError(t, err)
	assert.Equal(t, "Rooms", sheet.Name)
	assert.Equal(t, []string{"Room", "Capacity", "Open Date", "Accessible"}, sheet.Header)

	// trailing empty rows are dropped by excelize, inner ones are kept
	require.Len(t, sheet.Rows, 4)
	assert.Equal(t, []ingest.Cell{"A101", 30.0, 45658.5, "true"}, sheet.Rows[0])
	assert.True(t, ingest.IsBlankRow(sheet.Rows[1]))
	assert.Equal(t, []ingest.Cell{"B202", nil, "TBD"}, sheet.Rows[2])
	assert.Equal(t, []ingest.Cell{"2025", 1.25}, sheet.Rows[3], "numeric-looking strings stay strings")
}

func TestParseXLSX_invalid(t *testing.T) {
	_, err := ParseXLSX(bytes.NewReader([]byte("not a zip")))
	_, ok := errors.Cause(err).(*core.ValidationError)
	assert.True(t, ok, "ParseXLSX() error = %v", err)
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		wantHeader []string
		wantRows   [][]ingest.Cell
	}{
		{
			name:       "utf-8",
			data:       []byte("Room,Capacity\nA101,30\n,\nB202\n"),
			wantHeader: []string{"Room", "Capacity"},
			wantRows:   [][]ingest.Cell{{"A101", "30"}, {nil, nil}, {"B202"}},
		},
		{
			name:       "utf-8 bom",
			data:       append([]byte{0xEF, 0xBB, 0xBF}, []byte("Salle,Capacité\nA,1\n")...),
			wantHeader: []string{"Salle", "Capacité"},
			wantRows:   [][]ingest.Cell{{"A", "1"}},
		},
		{
			name:       "utf-16le bom",
			data:       []byte{0xFF, 0xFE, 'R', 0, ',', 0, 'C', 0, '\n', 0, 'a', 0, ',', 0, 'b', 0, '\n', 0},
			wantHeader: []string{"R", "C"},
			wantRows:   [][]ingest.Cell{{"a", "b"}},
		},
		{
			name:       "latin-1",
			data:       []byte("Salle,Capacit\xe9\nA,1\n"),
			wantHeader: []string{"Salle", "Capacité"},
			wantRows:   [][]ingest.Cell{{"A", "1"}},
		},
		{
			name:       "quoted",
			data:       []byte("Name,Note\n\"O'Neil, Hall\",\"said \"\"hi\"\"\"\n"),
			wantHeader: []string{"Name", "Note"},
			wantRows:   [][]ingest.Cell{{"O'Neil, Hall", `said "hi"`}},
		},
		{name: "empty", data: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet, err := ParseCSV(bytes.NewReader(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantHeader, sheet.Header)
			assert.Equal(t, tt.wantRows, sheet.Rows)
		})
	}
}

func TestParse(t *testing.T) {
	book := testutil.Workbook(t, "", []interface{}{"Room"}, []interface{}{"A101"})
	csvData := testutil.CSV([]string{"Room"}, []string{"A101"})

	tests := []struct {
		name        string
		filename    string
		data        []byte
		wantName    string
		wantInvalid bool
	}{
		{name: "xlsx", filename: "Rooms.XLSX", data: book, wantName: "Sheet1"},
		{name: "csv", filename: "rooms.csv", data: csvData, wantName: "csv"},
		{name: "sniffed xlsx", data: book, wantName: "Sheet1"},
		{name: "sniffed csv", data: csvData, wantName: "csv"},
		{name: "unsupported", filename: "rooms.pdf", data: csvData, wantInvalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet, err := Parse(tt.filename, bytes.NewReader(tt.data))
			if tt.wantInvalid {
				_, ok := errors.Cause(err).(*core.ValidationError)
				assert.True(t, ok, "Parse() error = %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, sheet.Name)
			assert.Equal(t, []string{"Room"}, sheet.Header)
			assert.Equal(t, [][]ingest.Cell{{"A101"}}, sheet.Rows)
		})
	}
}
