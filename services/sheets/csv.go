package sheets

import (
	"bytes"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/trezcool/campusgrid/core/ingest"
)

// decode converts csv bytes to UTF-8: a BOM selects UTF-8 / UTF-16 (LE or BE),
// BOM-less input that is not valid UTF-8 is read as latin-1.
func decode(data []byte) ([]byte, error) {
	if hasBOM(data) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		return out, err
	}
	if utf8.Valid(data) {
		return data, nil
	}
	return charmap.ISO8859_1.NewDecoder().Bytes(data)
}

func hasBOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(data, []byte{0xFF, 0xFE}) ||
		bytes.HasPrefix(data, []byte{0xFE, 0xFF})
}

// ParseCSV reads a csv file: the first non-empty record is the header, empty fields are nil.
// All values are kept as strings.
func ParseCSV(r io.Reader) (ingest.Sheet, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return ingest.Sheet{}, errors.Wrap(err, "reading csv")
	}
	data, err := decode(raw)
	if err != nil {
		return ingest.Sheet{}, invalidFile(errors.Wrap(err, "decoding csv"), "invalid text encoding")
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // ragged rows are padded / checked by the normalizer
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return ingest.Sheet{}, invalidFile(errors.Wrap(err, "parsing csv"), "invalid csv")
	}

	sheet := ingest.Sheet{Name: "csv"}
	first := true
	for _, rec := range records {
		if first {
			if isEmptyRow(rec) {
				continue
			}
			sheet.Header = rec
			first = false
			continue
		}
		cells := make([]ingest.Cell, len(rec))
		for i, v := range rec {
			if v != "" {
				cells[i] = v
			}
		}
		sheet.Rows = append(sheet.Rows, cells)
	}
	return sheet, nil
}
