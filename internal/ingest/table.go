// Package ingest turns uploaded CSV and spreadsheet files into tables of
// string cells and extracts scoring records from them.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"tax_analysis/internal/scoring"
)

var ErrUnreadableFormat = errors.New("unreadable file format")

const DefaultPreviewRows = 5

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a parsed upload: a header row and the data rows below it.
// Rows may be shorter or longer than Columns.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Parse reads data as CSV when filename ends in .csv and as a spreadsheet otherwise.
func Parse(data []byte, filename string) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrUnreadableFormat)
	}

	var (
		records [][]string
		err     error
	)
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		records, err = readCSV(data)
	} else {
		records, err = readSpreadsheet(data)
	}
	if err != nil {
		return nil, err
	}

	records = dropBlankRows(records)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrUnreadableFormat)
	}

	return &Table{
		Columns: normalizeHeader(records[0]),
		Rows:    records[1:],
	}, nil
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: csv: %w", ErrUnreadableFormat, err)
	}
	return records, nil
}

func readSpreadsheet(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: spreadsheet: %w", ErrUnreadableFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: spreadsheet has no sheets", ErrUnreadableFormat)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: spreadsheet sheet %q: %w", ErrUnreadableFormat, sheets[0], err)
	}
	return rows, nil
}

func dropBlankRows(records [][]string) [][]string {
	out := records[:0]
	for _, rec := range records {
		for _, cell := range rec {
			if strings.TrimSpace(cell) != "" {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

// normalizeHeader trims names, fills blanks with "Unnamed: i" and
// suffixes repeated names with ".1", ".2" and so on.
func normalizeHeader(header []string) []string {
	cols := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		cols[i] = name
	}
	return cols
}

// Cell returns the value of column col in row i, or "" when the row is short.
func (t *Table) Cell(i, col int) string {
	if col < 0 || i < 0 || i >= len(t.Rows) || col >= len(t.Rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[i][col])
}

// Preview returns up to n leading rows as column to value maps.
func (t *Table) Preview(n int) []map[string]string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	preview := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		preview = append(preview, t.RowMap(i))
	}
	return preview
}

// RowMap returns row i keyed by column name.
func (t *Table) RowMap(i int) map[string]string {
	m := make(map[string]string, len(t.Columns))
	for c, name := range t.Columns {
		m[name] = t.Cell(i, c)
	}
	return m
}

// Records extracts scoring rows. Column names match case-insensitively;
// missing or non-numeric amounts read as zero.
func (t *Table) Records() []scoring.Row {
	var (
		income   = t.columnIndex("income")
		taxPaid  = t.columnIndex("tax_paid")
		txID     = t.columnIndex("pan_number", "transaction_id")
		amount   = t.columnIndex("amount")
		category = t.columnIndex("category")
		typ      = t.columnIndex("type")
	)

	rows := make([]scoring.Row, len(t.Rows))
	for i := range t.Rows {
		row := scoring.Row{
			Income:   parseNumber(t.Cell(i, income)),
			TaxPaid:  parseNumber(t.Cell(i, taxPaid)),
			Amount:   parseNumber(t.Cell(i, amount)),
			Category: t.Cell(i, category),
			Type:     t.Cell(i, typ),
		}
		if id := t.Cell(i, txID); id != "" {
			row.TransactionID = &id
		}
		rows[i] = row
	}
	return rows
}

// columnIndex returns the index of the first column matching any of names, or -1.
func (t *Table) columnIndex(names ...string) int {
	for _, name := range names {
		for i, col := range t.Columns {
			if strings.EqualFold(col, name) {
				return i
			}
		}
	}
	return -1
}

func parseNumber(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
