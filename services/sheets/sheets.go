// Package sheets parses uploaded workbooks (.xlsx, .csv) into ingestion sheets.
package sheets

import (
	"bufio"
	"bytes"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/campusgrid/core"
	"github.com/trezcool/campusgrid/core/ingest"
)

var zipMagic = []byte("PK\x03\x04")

func invalidFile(err error, msg string) error {
	return core.NewValidationError(err, core.FieldError{Field: "file", Error: msg})
}

// Parse reads the first sheet of an uploaded workbook; the format is picked from the filename extension.
func Parse(filename string, r io.Reader) (ingest.Sheet, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return ParseXLSX(r)
	case ".csv", ".txt":
		return ParseCSV(r)
	case "":
		br := bufio.NewReader(r)
		if magic, _ := br.Peek(len(zipMagic)); bytes.Equal(magic, zipMagic) {
			return ParseXLSX(br)
		}
		return ParseCSV(br)
	default:
		return ingest.Sheet{}, invalidFile(
			errors.Errorf("unsupported file type %q", ext),
			"unsupported file type (expected .xlsx or .csv)",
		)
	}
}

// ParseXLSX reads the first sheet of an .xlsx workbook.
// The first non-empty row is the header; numeric cells are float64, empty cells nil.
func ParseXLSX(r io.Reader) (ingest.Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ingest.Sheet{}, invalidFile(errors.Wrap(err, "opening workbook"), "invalid spreadsheet")
	}
	defer func() { _ = f.Close() }()

	names := f.GetSheetList()
	if len(names) == 0 {
		return ingest.Sheet{}, ingest.NoDataError()
	}
	sheet := ingest.Sheet{Name: names[0]}

	rows, err := f.GetRows(sheet.Name, excelize.Options{RawCellValue: true})
	if err != nil {
		return ingest.Sheet{}, invalidFile(errors.Wrapf(err, "reading sheet %s", sheet.Name), "invalid spreadsheet")
	}

	first := true
	for rowIdx, row := range rows {
		if first {
			if isEmptyRow(row) {
				continue // leading empty rows
			}
			sheet.Header = append([]string(nil), row...)
			first = false
			continue
		}

		cells := make([]ingest.Cell, len(row))
		for colIdx, val := range row {
			if val == "" {
				continue
			}
			cells[colIdx], err = xlsxCell(f, sheet.Name, colIdx+1, rowIdx+1, val)
			if err != nil {
				return ingest.Sheet{}, err
			}
		}
		sheet.Rows = append(sheet.Rows, cells)
	}
	return sheet, nil
}

// xlsxCell types a raw cell value: numbers as float64, booleans as "true"/"false", the rest as strings.
func xlsxCell(f *excelize.File, sheet string, col, row int, raw string) (ingest.Cell, error) {
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, errors.Wrap(err, "naming cell")
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return nil, invalidFile(errors.Wrapf(err, "reading cell %s", axis), "invalid spreadsheet")
	}

	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n, nil
		}
	case excelize.CellTypeBool:
		return strconv.FormatBool(raw == "1" || strings.EqualFold(raw, "true")), nil
	}
	return raw, nil
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
