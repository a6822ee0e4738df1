package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stockdash/internal/core"
	"github.com/JonMunkholm/stockdash/internal/core/tables"
	"github.com/JonMunkholm/stockdash/internal/postgres"
	"github.com/JonMunkholm/stockdash/internal/postgres/testhelper"
)

func newMutator(t *testing.T) (*core.Mutator, *postgres.AuditRepo) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	testhelper.Truncate(t, pool, "stocks", "stock_records", "sales_departments", "products", "users", "audit_log")

	reg := core.NewRegistry()
	require.NoError(t, tables.RegisterAll(reg))

	audit := postgres.NewAuditRepo(pool)
	m := core.NewMutator(reg, postgres.NewStore(pool), postgres.NewTxManager(pool), core.WithAuditSink(audit))
	return m, audit
}

func TestIntegration_UpsertQuantizesDecimal(t *testing.T) {
	m, audit := newMutator(t)
	ctx := context.Background()

	rows := []core.RawRow{{"name": "Rice", "quantity": "10.256", "unit": "kg"}}
	res, err := m.ImportBatch(ctx, tables.Products, rows, core.ModeUpsert)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 0, res.Failed)

	// The same row again matches on the natural key.
	res, err = m.ImportBatch(ctx, tables.Products, rows, core.ModeUpsert)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	recs, err := m.List(ctx, tables.Products, core.ListOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Rice", recs[0]["name"])
	assert.Equal(t, "10.26", core.FormatValue(mustField(t, m, "quantity"), recs[0]["quantity"]))

	entries, err := audit.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, core.ActionImport, entries[0].Action)
	assert.Equal(t, res.BatchID, entries[0].BatchID)
}

func TestIntegration_RowErrorRollsBackOnlyThatRow(t *testing.T) {
	m, _ := newMutator(t)
	ctx := context.Background()

	_, err := m.Create(ctx, tables.SalesDepartments, map[string]any{"name": "Nord"})
	require.NoError(t, err)

	rows := []core.RawRow{
		{"name": "Sud"},
		{"name": "Nord"},
		{"name": "Est"},
	}
	res, err := m.ImportBatch(ctx, tables.SalesDepartments, rows, core.ModeInsert)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)

	recs, err := m.List(ctx, tables.SalesDepartments, core.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestIntegration_ReplaceFailsWhenReferenced(t *testing.T) {
	m, _ := newMutator(t)
	ctx := context.Background()

	dept, err := m.Create(ctx, tables.SalesDepartments, map[string]any{"name": "Nord"})
	require.NoError(t, err)
	_, err = m.Create(ctx, tables.StockRecords, map[string]any{
		"id_sales_department": dept["id"],
		"start_date":          "2024-01-01",
		"end_date":            "2024-01-31",
	})
	require.NoError(t, err)

	_, err = m.ImportBatch(ctx, tables.SalesDepartments, []core.RawRow{{"name": "Sud"}}, core.ModeReplace)
	require.Error(t, err)

	recs, err := m.List(ctx, tables.SalesDepartments, core.ListOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Nord", recs[0]["name"])
}

func mustField(t *testing.T, m *core.Mutator, name string) core.Field {
	t.Helper()
	rt, err := m.Registry().Lookup(tables.Products)
	require.NoError(t, err)
	f, ok := rt.Field(name)
	require.True(t, ok)
	return f
}
