package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// ErrUnknownEncoding is returned for encoding names that are not supported.
var ErrUnknownEncoding = errors.New("encoding error: unknown source encoding")

// ReadOptions controls how a file is decoded.
type ReadOptions struct {
	// Encoding of CSV input: "utf-8" (default), "windows-1252", "iso-8859-1" or "shift_jis".
	Encoding string

	// Sheet to read from a spreadsheet. Defaults to the first sheet.
	Sheet string
}

// Read parses r in the given format.
func Read(r io.Reader, format Format, opts ReadOptions) (*Table, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r, opts.Encoding)
	case FormatXLSX:
		return ReadXLSX(r, opts.Sheet)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// LookupEncoding returns the decoder for a named encoding, or nil for UTF-8.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1, nil
	case "shift_jis", "sjis":
		return japanese.ShiftJIS, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
}

// ReadCSV parses CSV data. The delimiter is ',' unless the header line
// contains more ';' than ',' (spreadsheet exports in European locales).
func ReadCSV(r io.Reader, enc string) (*Table, error) {
	e, err := LookupEncoding(enc)
	if err != nil {
		return nil, err
	}
	if e != nil {
		r = transform.NewReader(r, e.NewDecoder())
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(sanitizeUTF8(data), []byte("\uFEFF"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = detectDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	t, err := fromRecords(records)
	if err != nil {
		return nil, err
	}
	t.Delimiter = cr.Comma
	return t, nil
}

// ReadXLSX parses a spreadsheet workbook.
func ReadXLSX(r io.Reader, sheet string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyFile
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return fromRecords(rows)
}

// fromRecords uses the first non-empty record as the header.
func fromRecords(records [][]string) (*Table, error) {
	for i, rec := range records {
		if isEmptyRow(rec) {
			continue
		}
		return &Table{Header: cleanHeader(rec), Rows: records[i+1:]}, nil
	}
	return nil, ErrEmptyFile
}

func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

// sanitizeUTF8 replaces invalid byte sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
		} else {
			buf.WriteRune(r)
		}
		data = data[size:]
	}

	return buf.Bytes()
}
