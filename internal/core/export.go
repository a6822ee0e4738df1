package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/JonMunkholm/stockdash/internal/tabular"
)

// ExportOptions limits an export.
type ExportOptions struct {
	Limit int // Rows; 0 exports every record
}

// Exported is a rendered export. Truncated reports that records beyond
// Limit were left out.
type Exported struct {
	*tabular.Table
	Truncated bool
}

// Export renders up to opts.Limit records of typeName as a table. Sensitive
// fields are left out, values are formatted with FormatValue.
func (m *Mutator) Export(ctx context.Context, typeName string, opts ExportOptions) (*Exported, error) {
	rt, err := m.registry.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	if opts.Limit < 0 {
		return nil, invalid("limit", strconv.Itoa(opts.Limit), "must not be negative")
	}

	list := ListOptions{}
	if opts.Limit > 0 {
		list.Limit = opts.Limit + 1
	}
	recs, err := m.store.List(ctx, rt, list)
	if err != nil {
		return nil, err
	}

	out := &Exported{}
	if opts.Limit > 0 && len(recs) > opts.Limit {
		recs = recs[:opts.Limit]
		out.Truncated = true
	}
	out.Table = ExportTable(rt, recs)
	return out, nil
}

// ExportTable lays recs out under rt's non-sensitive columns.
func ExportTable(rt *RecordType, recs []Record) *tabular.Table {
	fields := make([]Field, 0, len(rt.Fields))
	for _, f := range rt.Fields {
		if !f.Sensitive {
			fields = append(fields, f)
		}
	}

	t := &tabular.Table{Header: make([]string, len(fields))}
	for i, f := range fields {
		t.Header[i] = f.Name
	}
	t.Rows = make([][]string, len(recs))
	for r, rec := range recs {
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = FormatValue(f, rec[f.Name])
		}
		t.Rows[r] = row
	}
	return t
}

// ExportFileName names a download: <table>_<YYYYMMDD_HHMMSS>.<ext>.
func ExportFileName(rt *RecordType, format tabular.Format, now time.Time) string {
	return fmt.Sprintf("%s_%s%s", rt.TableName(), now.Format("20060102_150405"), format.Extension())
}
