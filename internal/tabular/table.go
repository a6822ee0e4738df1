// Package tabular reads and writes two-dimensional tabular files (CSV and
// XLSX spreadsheets) with a header row naming the columns.
package tabular

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies a tabular file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var (
	// ErrEmptyFile is returned when a file has no header row.
	ErrEmptyFile = errors.New("empty file")

	// ErrUnsupportedFormat is returned for file types that cannot be read or written.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Table is a header row plus data rows. Rows may be ragged.
type Table struct {
	Header []string
	Rows   [][]string

	// Delimiter is the CSV field separator the table was read with, 0 for
	// spreadsheets.
	Delimiter rune
}

// DecimalComma reports whether numeric cells use a comma as the decimal
// point. Spreadsheet apps in comma-decimal locales export CSV with ';'.
func (t *Table) DecimalComma() bool {
	return t.Delimiter == ';'
}

// FormatFromName picks the format from a file name extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// ParseFormat converts a query value ("csv", "excel", "xlsx") to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type used for downloads.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Records returns the data rows keyed by header name.
// Empty rows are skipped and short rows are padded with empty strings.
// Columns with a blank header are dropped.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		if isEmptyRow(row) {
			continue
		}
		rec := make(map[string]any, len(t.Header))
		for i, h := range t.Header {
			if h == "" {
				continue
			}
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = ""
			}
		}
		out = append(out, rec)
	}
	return out
}

// Limit returns a copy of the table holding at most n rows. n <= 0 means all rows.
func (t *Table) Limit(n int) *Table {
	if n <= 0 || n >= len(t.Rows) {
		return t
	}
	return &Table{Header: t.Header, Rows: t.Rows[:n], Delimiter: t.Delimiter}
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// cleanHeader trims whitespace, a UTF-8 BOM and surrounding quotes from header cells.
func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\uFEFF")
		h = strings.TrimSpace(h)
		h = strings.Trim(h, `"'`)
		out[i] = h
	}
	return out
}
