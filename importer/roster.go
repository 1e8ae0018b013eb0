/*
Package importer reads student rosters from spreadsheets.

PURPOSE:
  Teachers keep class lists in Excel. ReadRoster pulls the student names
  out of the first worksheet so state.Store.ImportRoster can add them in
  one step. Grades are not read from the workbook.

COLUMN DETECTION:
  The first row is a header when one of its cells, lower-cased and without
  accents, contains "nombre", "estudiante" or "name". That column is used
  and the header row skipped. Otherwise every row is read from column A.
  Rows naming a "docente" or "estudiante" are labels, not students, and
  are skipped.

NAMES:
  ParseName splits each name into nombres and apellidos for the
  student's profile.
*/
package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrNoWorksheet is returned for a workbook without sheets.
var ErrNoWorksheet = errors.New("no worksheet found")

var headerKeywords = []string{"nombre", "estudiante", "name"}

var labelKeywords = []string{"docente", "estudiante"}

// ReadRoster returns the trimmed, de-duplicated, non-empty names of the
// first worksheet in sheet order.
func ReadRoster(r io.Reader) ([]string, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = file.Close() }()

	sheet := file.GetSheetName(0)
	if sheet == "" {
		return nil, ErrNoWorksheet
	}
	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return Names(rows), nil
}

// Names extracts student names from raw rows.
func Names(rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}

	col, start := 0, 0
	if idx := headerColumn(rows[0]); idx >= 0 {
		col, start = idx, 1
	}

	seen := map[string]bool{}
	var names []string
	for _, row := range rows[start:] {
		name := cellValue(row, col)
		if name == "" || seen[name] || isLabel(name) {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func isLabel(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range labelKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func headerColumn(row []string) int {
	for i, cell := range row {
		h := normalizeHeader(cell)
		for _, kw := range headerKeywords {
			if strings.Contains(h, kw) {
				return i
			}
		}
	}
	return -1
}

// normalizeHeader lower-cases and strips diacritics.
func normalizeHeader(header string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, header)
	if err != nil {
		out = header
	}
	return strings.ToLower(strings.TrimSpace(out))
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.Join(strings.Fields(row[idx]), " ")
}
