package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"

	"github.com/trezcool/campusgrid/core"
)

// IdentityColumn is the auto-increment column of every inferred table.
const IdentityColumn = "id"

const maxIdentifierLen = 63 // postgres NAMEDATALEN - 1

// MaxColumns is the widest sheet a table can hold: postgres caps tables at 1600 columns, identity included.
const MaxColumns = 1599

// sheetExtensions are stripped from term labels; any other "." is part of the label.
var sheetExtensions = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xltx": true,
	".xltm": true,
	".csv":  true,
	".txt":  true,
}

var (
	sanitizeRegex  = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}.&]`)
	tableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	nonIdentRegex  = regexp.MustCompile(`[^a-z0-9_]`)
)

// Sanitize derives a column name from a header label:
// trimmed, whitespace / "." / "&" replaced with "_", lowercased.
func Sanitize(label string) string {
	s := strings.TrimFunc(norm.NFC.String(label), isSpace)
	s = sanitizeRegex.ReplaceAllString(s, "_")
	return strings.ToLower(s)
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// headerLabels names blank header labels "__empty", "__empty_1", ...
func headerLabels(header []string) []string {
	labels := make([]string, len(header))
	blanks := 0
	for i, h := range header {
		if strings.TrimSpace(h) != "" {
			labels[i] = h
			continue
		}
		if blanks == 0 {
			labels[i] = "__empty"
		} else {
			labels[i] = fmt.Sprintf("__empty_%d", blanks)
		}
		blanks++
	}
	return labels
}

// InferColumns derives the ordered ColumnSpecs of a header row.
// Labels mapping to the same column name (or to the identity column) fail with a DuplicateColumnError.
func InferColumns(header []string) ([]ColumnSpec, error) {
	if len(header) > MaxColumns {
		return nil, TooManyColumnsError(len(header))
	}
	labels := headerLabels(header)
	cols := make([]ColumnSpec, 0, len(labels))
	seen := map[string]string{identKey(IdentityColumn): IdentityColumn + " (identity column)"}

	for _, label := range labels {
		name := Sanitize(label)
		key := identKey(name)
		if other, ok := seen[key]; ok {
			return nil, DuplicateColumnError(name, label, other)
		}
		seen[key] = label
		cols = append(cols, ColumnSpec{Name: name, Label: label})
	}
	return cols, nil
}

// identKey is the identifier postgres actually stores (names are truncated past 63 bytes).
func identKey(name string) string {
	if len(name) <= maxIdentifierLen {
		return name
	}
	return name[:maxIdentifierLen]
}

// InferSchema derives the ColumnSpecs of a sheet.
// A sheet without a header or without any non-blank data row fails with a NoDataError.
func InferSchema(header []string, rows [][]Cell) ([]ColumnSpec, error) {
	if len(header) == 0 || countDataRows(rows) == 0 {
		return nil, NoDataError()
	}
	return InferColumns(header)
}

func countDataRows(rows [][]Cell) int {
	var n int
	for _, row := range rows {
		if !IsBlankRow(row) {
			n++
		}
	}
	return n
}

// CreateStatements returns the statements bringing `table` to the shape of `cols`.
func CreateStatements(table string, cols []ColumnSpec, mode Mode) []string {
	ident := pq.QuoteIdentifier(table)

	defs := make([]string, 0, len(cols)+1)
	defs = append(defs, pq.QuoteIdentifier(IdentityColumn)+" SERIAL PRIMARY KEY")
	for _, col := range cols {
		defs = append(defs, pq.QuoteIdentifier(col.Name)+" TEXT")
	}
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", ident, strings.Join(defs, ", "))

	if mode == ModeReplace {
		return []string{"DROP TABLE IF EXISTS " + ident, create}
	}
	return []string{create}
}

// ValidateTableName checks `name` is a plain lowercase SQL identifier.
func ValidateTableName(name string) error {
	if len(name) > maxIdentifierLen || !tableNameRegex.MatchString(name) {
		return core.NewValidationError(
			errors.Errorf("invalid table name %q", name),
			core.FieldError{Field: "filename", Error: "must produce a table name of lowercase letters, digits and underscores (max 63)"},
		)
	}
	return nil
}

// PartitionLabel derives a term label from an upload filename,
// eg. "Winter 2025.xlsx" -> "winter_2025", "Sem. 1" -> "sem__1".
func PartitionLabel(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	if ext := filepath.Ext(base); sheetExtensions[strings.ToLower(ext)] {
		base = strings.TrimSuffix(base, ext)
	}
	return nonIdentRegex.ReplaceAllString(Sanitize(base), "_")
}

// TableName resolves the destination table of a domain upload.
func TableName(d Domain, filename string) (string, error) {
	table := d.Table
	if d.Partitioned {
		label := PartitionLabel(filename)
		if label == "" {
			return "", core.NewValidationError(
				errors.New("filename is required"),
				core.FieldError{Field: "filename", Error: "this field is required"},
			)
		}
		table += "_" + label
	}
	if err := ValidateTableName(table); err != nil {
		return "", err
	}
	return table, nil
}
