package core_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stockdash/internal/core"
	"github.com/JonMunkholm/stockdash/internal/core/tables"
	"github.com/JonMunkholm/stockdash/internal/tabular"
)

func TestExport(t *testing.T) {
	m, _ := newMutator(t)
	ctx := context.Background()
	for _, name := range []string{"Rice", "Oil", "Sugar"} {
		mustCreate(t, m, tables.Products, map[string]any{"name": name, "quantity": "1.5", "unit": "kg"})
	}

	table, err := m.Export(ctx, tables.Products, core.ExportOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "quantity", "price", "unit", "created_at"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"1", "Rice", "1.50", "", "kg"}, table.Rows[0][:5])

	assert.True(t, table.Truncated)

	all, err := m.Export(ctx, tables.Products, core.ExportOptions{})
	require.NoError(t, err)
	assert.Len(t, all.Rows, 3)
	assert.False(t, all.Truncated)

	exact, err := m.Export(ctx, tables.Products, core.ExportOptions{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, exact.Rows, 3)
	assert.False(t, exact.Truncated)

	_, err = m.Export(ctx, tables.Products, core.ExportOptions{Limit: -1})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestExport_NoLimitExportsEverything(t *testing.T) {
	m, store := newMutator(t)
	ctx := context.Background()
	rt, err := m.Registry().Lookup(tables.SalesDepartments)
	require.NoError(t, err)

	const n = 10050
	for i := 0; i < n; i++ {
		_, err := store.Insert(ctx, rt, core.Record{"name": fmt.Sprintf("dept-%05d", i)})
		require.NoError(t, err)
	}

	all, err := m.Export(ctx, tables.SalesDepartments, core.ExportOptions{})
	require.NoError(t, err)
	assert.Len(t, all.Rows, n)
	assert.False(t, all.Truncated)
}

func TestExport_SkipsSensitiveFields(t *testing.T) {
	m, _ := newMutator(t)
	mustCreate(t, m, tables.Users, map[string]any{
		"email": "ana@example.com", "first_name": "Ana", "last_name": "Diallo", "password": "s3cret-pass",
	})

	table, err := m.Export(context.Background(), tables.Users, core.ExportOptions{})
	require.NoError(t, err)
	assert.NotContains(t, table.Header, "password")
	require.Len(t, table.Rows, 1)
	assert.Contains(t, table.Rows[0], "[]")
}

func TestExportFileName(t *testing.T) {
	rt, err := core.Default.Lookup(tables.StockRecords)
	require.NoError(t, err)
	now := time.Date(2024, 3, 15, 9, 5, 7, 0, time.UTC)

	assert.Equal(t, "stock_records_20240315_090507.csv", core.ExportFileName(rt, tabular.FormatCSV, now))
	assert.Equal(t, "stock_records_20240315_090507.xlsx", core.ExportFileName(rt, tabular.FormatXLSX, now))
}

func TestFormatValue(t *testing.T) {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	ts := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, "", core.FormatValue(core.Field{Kind: core.KindString}, nil))
	assert.Equal(t, "2024-03-15", core.FormatValue(core.Field{Kind: core.KindDate}, date))
	assert.Equal(t, "2024-03-15T10:30:00", core.FormatValue(core.Field{Kind: core.KindDateTime}, ts))
	assert.Equal(t, "true", core.FormatValue(core.Field{Kind: core.KindBool}, true))
	assert.Equal(t, "42", core.FormatValue(core.Field{Kind: core.KindInteger}, int64(42)))
}

func TestDisplayContext(t *testing.T) {
	m, store := newMutator(t)
	ctx := context.Background()
	mustCreate(t, m, tables.SalesDepartments, map[string]any{"name": "Nord"})
	stockRecord := mustCreate(t, m, tables.StockRecords, map[string]any{
		"id_sales_department": 1, "start_date": "2024-02-01", "end_date": "2024-02-07",
	})
	product := mustCreate(t, m, tables.Products, map[string]any{"name": "Rice", "quantity": "10.256", "unit": "kg"})
	stock := mustCreate(t, m, tables.Stocks, map[string]any{
		"id_product": product["id"], "id_stock_record": stockRecord["id"], "quantity": 12,
	})

	rt, err := m.Registry().Lookup(tables.Stocks)
	require.NoError(t, err)
	assert.Equal(t, "Rice (10.26 kg) (Nord (01/02/2024 - 07/02/2024))",
		core.DisplayContext(ctx, m.Registry(), store, rt, stock))

	stock["id_product"] = int64(99)
	assert.Equal(t, "#99 (Nord (01/02/2024 - 07/02/2024))",
		core.DisplayContext(ctx, m.Registry(), store, rt, stock))
}
