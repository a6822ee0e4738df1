package stockimport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/stockdash/internal/core"
	"github.com/JonMunkholm/stockdash/internal/core/tables"
	"github.com/JonMunkholm/stockdash/internal/logging"
	"github.com/JonMunkholm/stockdash/internal/tabular"
)

// ErrDepartmentRequired is returned when a stock sheet names no sales department.
var ErrDepartmentRequired = errors.New("required field is empty: a sales department is mandatory")

// Period identifies the stock take a sheet belongs to.
type Period struct {
	DepartmentID int64
	Start        time.Time
	End          time.Time
}

// Importer runs the sheet pipelines through a core.Mutator.
type Importer struct {
	m        *core.Mutator
	products *core.Typed[tables.Product]
	records  *core.Typed[tables.StockRecord]
}

// New creates an Importer. The mutator's registry must hold the tables types.
func New(m *core.Mutator) *Importer {
	return &Importer{
		m:        m,
		products: core.NewTyped[tables.Product](m, tables.Products, tables.ProductCodec{}),
		records:  core.NewTyped[tables.StockRecord](m, tables.StockRecords, tables.StockRecordCodec{}),
	}
}

// ImportStockSheet inserts one stock row per sheet row. Products and the
// period's stock record are found or created inside each row's savepoint, so
// a failed row leaves nothing behind.
func (im *Importer) ImportStockSheet(ctx context.Context, t *tabular.Table, p Period, opts ...core.ImportOption) (*core.ImportResult, error) {
	if p.DepartmentID == 0 {
		return nil, ErrDepartmentRequired
	}
	if p.End.Before(p.Start) {
		return nil, core.ValidationErrors{{Field: "end_date", Value: p.End.Format(core.DateLayout), Message: "invalid date: end date is before start date"}}
	}
	if _, err := im.m.Get(ctx, tables.SalesDepartments, p.DepartmentID); err != nil {
		return nil, fmt.Errorf("sales department %d: %w", p.DepartmentID, err)
	}
	if err := checkColumns(t.Header, ColumnName, ColumnPackaging, ColumnStock); err != nil {
		return nil, err
	}

	logging.WithFields(ctx, "department_id", p.DepartmentID).
		Debug("stock sheet accepted", "rows", len(t.Rows))

	preprocess := func(ctx context.Context, _ *core.RecordType, row core.RawRow) (core.RawRow, error) {
		productID, err := im.resolveProduct(ctx, row)
		if err != nil {
			return nil, err
		}
		recordID, err := im.resolveStockRecord(ctx, p)
		if err != nil {
			return nil, err
		}
		return core.RawRow{
			"id_product":      productID,
			"id_stock_record": recordID,
			"quantity":        row[ColumnStock],
		}, nil
	}

	opts = append(opts, core.WithPreprocess(preprocess))
	return im.m.ImportBatch(ctx, tables.Stocks, core.RowsFromTable(t), core.ModeInsert, opts...)
}

// ImportPriceSheet upserts products from a price list: name, packaging and
// unit price. Rows match existing products on name, quantity and unit.
func (im *Importer) ImportPriceSheet(ctx context.Context, t *tabular.Table, opts ...core.ImportOption) (*core.ImportResult, error) {
	if err := checkColumns(t.Header, ColumnName, ColumnPackaging, ColumnPrice); err != nil {
		return nil, err
	}

	preprocess := func(_ context.Context, _ *core.RecordType, row core.RawRow) (core.RawRow, error) {
		qty, unit, err := ParsePackaging(fmt.Sprint(row[ColumnPackaging]))
		if err != nil {
			return nil, err
		}
		return core.RawRow{
			"name":     row[ColumnName],
			"quantity": qty,
			"unit":     unit,
			"price":    row[ColumnPrice],
		}, nil
	}

	opts = append(opts, core.WithPreprocess(preprocess))
	return im.m.ImportBatch(ctx, tables.Products, core.RowsFromTable(t), core.ModeUpsert, opts...)
}

// resolveProduct finds the product named by row, creating it when missing.
func (im *Importer) resolveProduct(ctx context.Context, row core.RawRow) (int64, error) {
	name, _ := row[ColumnName].(string)
	if name = strings.TrimSpace(name); name == "" {
		return 0, fmt.Errorf("required field is empty: %s", ColumnName)
	}
	qty, unit, err := ParsePackaging(fmt.Sprint(row[ColumnPackaging]))
	if err != nil {
		return 0, err
	}

	found, err := im.products.List(ctx, core.ListOptions{
		Where: core.Record{"name": name, "quantity": qty, "unit": unit},
		Limit: 1,
	})
	if err != nil {
		return 0, err
	}
	if len(found) > 0 {
		return found[0].ID, nil
	}

	created, err := im.products.Create(ctx, tables.Product{Name: name, Quantity: qty, Unit: unit})
	if err != nil && created.ID == 0 {
		return 0, fmt.Errorf("create product %q: %w", name, err)
	}
	return created.ID, nil
}

// resolveStockRecord finds the stock record of p, creating it when missing.
func (im *Importer) resolveStockRecord(ctx context.Context, p Period) (int64, error) {
	found, err := im.records.List(ctx, core.ListOptions{
		Where: core.Record{
			"id_sales_department": p.DepartmentID,
			"start_date":          p.Start,
			"end_date":            p.End,
		},
		Limit: 1,
	})
	if err != nil {
		return 0, err
	}
	if len(found) > 0 {
		return found[0].ID, nil
	}

	created, err := im.records.Create(ctx, tables.StockRecord{
		SalesDepartmentID: p.DepartmentID,
		StartDate:         p.Start,
		EndDate:           p.End,
	})
	if err != nil && created.ID == 0 {
		return 0, fmt.Errorf("create stock record: %w", err)
	}
	return created.ID, nil
}

func checkColumns(header []string, want ...string) error {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, w := range want {
		if !have[w] {
			missing = append(missing, w)
		}
	}
	if len(missing) > 0 {
		return core.ValidationErrors{{Field: "header", Value: strings.Join(header, ", "), Message: "missing required column: " + strings.Join(missing, ", ")}}
	}
	return nil
}
