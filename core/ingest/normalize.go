package ingest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
)

// serialEpochOffset is the number of days between the spreadsheet epoch (1899-12-30) and the unix epoch.
const serialEpochOffset = 25569

const msPerDay = 86400000

var (
	dateColumnRegex = regexp.MustCompile(`(?i)date`)
	timeColumnRegex = regexp.MustCompile(`(?i)time`)
)

// serialToTime converts a spreadsheet serial date to a UTC time (millisecond precision).
func serialToTime(serial float64) time.Time {
	ms := math.Round((serial - serialEpochOffset) * msPerDay)
	return time.UnixMilli(int64(ms)).UTC()
}

// FormatSerialDate formats a spreadsheet serial date as YYYY-MM-DD.
func FormatSerialDate(serial float64) string {
	return serialToTime(serial).Format("2006-01-02")
}

// FormatSerialTime formats the time-of-day of a spreadsheet serial date as HH:MM (seconds truncated).
func FormatSerialTime(serial float64) string {
	return serialToTime(serial).Format("15:04")
}

// SerialFromTime is the inverse of the serial date conversion.
func SerialFromTime(t time.Time) float64 {
	return float64(t.UnixMilli())/msPerDay + serialEpochOffset
}

// IsBlankRow tells whether every cell of the row is nil or an empty string.
func IsBlankRow(cells []Cell) bool {
	for _, c := range cells {
		if !isBlankCell(c) {
			return false
		}
	}
	return true
}

func isBlankCell(c Cell) bool {
	if c == nil {
		return true
	}
	s, ok := c.(string)
	return ok && s == ""
}

// formatCell renders a cell for the given column.
// Numeric cells are converted to dates in "date" columns and to times of day in "time" columns.
func formatCell(column string, c Cell) null.String {
	switch v := c.(type) {
	case nil:
		return null.String{}
	case string:
		return null.StringFrom(v)
	case float64:
		switch {
		case dateColumnRegex.MatchString(column):
			return null.StringFrom(FormatSerialDate(v))
		case timeColumnRegex.MatchString(column):
			return null.StringFrom(FormatSerialTime(v))
		default:
			return null.StringFrom(strconv.FormatFloat(v, 'f', -1, 64))
		}
	case int:
		return formatCell(column, float64(v))
	case bool:
		return null.StringFrom(strconv.FormatBool(v))
	case time.Time:
		if timeColumnRegex.MatchString(column) && !dateColumnRegex.MatchString(column) {
			return null.StringFrom(v.UTC().Format("15:04"))
		}
		return null.StringFrom(v.UTC().Format("2006-01-02"))
	default:
		return null.StringFrom(fmt.Sprint(v))
	}
}

// NormalizeRow maps positional cells onto the columns. Missing trailing cells are NULL.
// `rowNum` is the 1-based sheet row number, used in error messages.
func NormalizeRow(cols []ColumnSpec, cells []Cell, rowNum int) (NormalizedRow, error) {
	row := make(NormalizedRow, len(cols))
	for i, col := range cols {
		var c Cell
		if i < len(cells) {
			c = cells[i]
		}
		row[col.Name] = formatCell(col.Name, c)
	}
	for j := len(cols); j < len(cells); j++ {
		if !isBlankCell(cells[j]) {
			return nil, SchemaMismatchError(fmt.Sprintf("column %d", j+1), rowNum)
		}
	}
	return row, nil
}

// NormalizeRows drops blank rows and normalizes the others, keeping their order.
// Data rows are assumed to start right after the header row.
func NormalizeRows(cols []ColumnSpec, rows [][]Cell) ([]NormalizedRow, error) {
	out := make([]NormalizedRow, 0, len(rows))
	for i, cells := range rows {
		if IsBlankRow(cells) {
			continue
		}
		row, err := NormalizeRow(cols, cells, i+2)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// QuoteLiteral renders `s` as a SQL string literal (single quotes doubled).
// Statements are always executed with bind parameters; this is only used to log them.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
