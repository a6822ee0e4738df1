package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stockdash/internal/core"
	"github.com/JonMunkholm/stockdash/internal/core/tables"
	"github.com/JonMunkholm/stockdash/internal/tabular"
)

func TestImportBatch_UpsertRice(t *testing.T) {
	m, store := newMutator(t)
	ctx := context.Background()
	rows := []core.RawRow{{"name": "Rice", "quantity": "10.256", "unit": "kg"}}

	first, err := m.ImportBatch(ctx, tables.Products, rows, core.ModeUpsert)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Succeeded)
	assert.Equal(t, 1, first.Created)

	second, err := m.ImportBatch(ctx, tables.Products, rows, core.ModeUpsert)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Succeeded)
	assert.Equal(t, 1, second.Updated)
	assert.NotEqual(t, first.BatchID, second.BatchID)

	recs, err := m.List(ctx, tables.Products, core.ListOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "10.26", dec(t, recs[0]["quantity"]))

	entries, err := store.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, core.ActionImport, entries[0].Action)
	assert.Equal(t, second.BatchID, entries[0].BatchID)
}

func TestImportBatch_DecimalComma(t *testing.T) {
	m, _ := newMutator(t)
	ctx := context.Background()
	table := &tabular.Table{
		Header:    []string{"name", "quantity", "unit", "price"},
		Rows:      [][]string{{"Rice", "1.234,5", "kg", "1,234"}, {"Oil", "1,234.5", "l", "2"}},
		Delimiter: ';',
	}

	result, err := m.ImportBatch(ctx, tables.Products, core.RowsFromTable(table), core.ModeInsert,
		core.TableOptions(table)...)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded, result.Errors)

	rec, err := m.Get(ctx, tables.Products, 1)
	require.NoError(t, err)
	assert.Equal(t, "1234.50", dec(t, rec["quantity"]))
	assert.Equal(t, "1.23", dec(t, rec["price"]))

	rec, err = m.Get(ctx, tables.Products, 2)
	require.NoError(t, err)
	assert.Equal(t, "1234.50", dec(t, rec["quantity"]), "grouped thousands still read as such")

	rec, err = m.Get(ctx, tables.Products, 1)
	require.NoError(t, err)
	assert.Equal(t, "1234.50", dec(t, rec["quantity"]))
	assert.Equal(t, "1.23", dec(t, rec["price"]))
}

func TestImportBatch_InsertRowErrors(t *testing.T) {
	m, _ := newMutator(t)
	ctx := context.Background()
	rows := []core.RawRow{
		{"name": "Nord"},
		{"name": "Nord"},
		{"name": ""},
		{"name": "Sud", "colour": "blue"},
	}

	result, err := m.ImportBatch(ctx, tables.SalesDepartments, rows, core.ModeInsert, core.WithSource("depts.csv"))
	require.NoError(t, err)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Message, "already exists")
	assert.Equal(t, 3, result.Errors[1].Row)
	assert.Equal(t, []string{"unknown columns ignored: colour"}, result.Warnings)

	recs, err := m.List(ctx, tables.SalesDepartments, core.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestImportBatch_Update(t *testing.T) {
	m, _ := newMutator(t)
	ctx := context.Background()
	mustCreate(t, m, tables.Products, map[string]any{"name": "Rice", "quantity": "10", "unit": "kg"})

	rows := []core.RawRow{
		{"id": "1", "price": "1500", "quantity": ""},
		{"id": "7", "price": "1"},
		{"price": "2"},
	}
	result, err := m.ImportBatch(ctx, tables.Products, rows, core.ModeUpdate)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, 3, result.Errors[1].Row)

	rec, err := m.Get(ctx, tables.Products, 1)
	require.NoError(t, err)
	assert.Equal(t, "1500.00", dec(t, rec["price"]))
	assert.Equal(t, "10.00", dec(t, rec["quantity"]), "a blank cell keeps the stored value")
}

func TestImportBatch_Replace(t *testing.T) {
	m, store := newMutator(t)
	ctx := context.Background()
	mustCreate(t, m, tables.Products, map[string]any{"name": "Old", "quantity": "1", "unit": "kg"})

	rows := []core.RawRow{
		{"name": "Rice", "quantity": "25", "unit": "kg"},
		{"name": "Oil", "quantity": "1.5", "unit": "l"},
	}
	result, err := m.ImportBatch(ctx, tables.Products, rows, core.ModeReplace)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Deleted)
	assert.Equal(t, 2, result.Created)

	recs, err := m.List(ctx, tables.Products, core.ListOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Rice", recs[0]["name"])

	entries, err := store.ListAudit(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, core.ActionReplace, entries[0].Action)
	assert.Equal(t, core.SeverityCritical, entries[0].Severity)
}

func TestImportBatch_ReplaceReferenced(t *testing.T) {
	m, _ := newMutator(t)
	ctx := context.Background()
	mustCreate(t, m, tables.SalesDepartments, map[string]any{"name": "Nord"})
	mustCreate(t, m, tables.StockRecords, map[string]any{
		"id_sales_department": 1, "start_date": "2024-01-01", "end_date": "2024-01-31",
	})

	_, err := m.ImportBatch(ctx, tables.SalesDepartments, []core.RawRow{{"name": "Sud"}}, core.ModeReplace)
	require.ErrorIs(t, err, core.ErrValidation)

	recs, err := m.List(ctx, tables.SalesDepartments, core.ListOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Nord", recs[0]["name"])
}

func TestImportBatch_Preprocess(t *testing.T) {
	m, _ := newMutator(t)
	ctx := context.Background()

	pre := func(_ context.Context, _ *core.RecordType, row core.RawRow) (core.RawRow, error) {
		if row["skip"] == "x" {
			return nil, errors.New("skipped by preprocess")
		}
		return core.RawRow{"name": row["NOM"]}, nil
	}
	rows := []core.RawRow{{"NOM": "Nord"}, {"NOM": "Sud", "skip": "x"}}

	result, err := m.ImportBatch(ctx, tables.SalesDepartments, rows, core.ModeInsert, core.WithPreprocess(pre))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "skipped by preprocess", result.Errors[0].Message)
	assert.Empty(t, result.Warnings)
}

func TestImportBatch_HookErrorKeepsResult(t *testing.T) {
	m, _ := newMutator(t)
	m.RegisterHooks(tables.SalesDepartments, core.Hooks{
		OnCreate: func(context.Context, core.Record) error { return errors.New("sync failed") },
	})

	result, err := m.ImportBatch(context.Background(), tables.SalesDepartments,
		[]core.RawRow{{"name": "Nord"}, {"name": "Sud"}}, core.ModeInsert)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Succeeded)

	var he *core.HookError
	assert.ErrorAs(t, err, &he)
	assert.ErrorIs(t, err, core.ErrHook)
}

func TestImportBatch_Cancelled(t *testing.T) {
	m, _ := newMutator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.ImportBatch(ctx, tables.SalesDepartments, []core.RawRow{{"name": "Nord"}}, core.ModeInsert)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImportBatch_BadMode(t *testing.T) {
	m, _ := newMutator(t)
	_, err := m.ImportBatch(context.Background(), tables.Products, nil, core.ImportMode("merge"))
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestPreflight(t *testing.T) {
	m, _ := newMutator(t)

	tests := []struct {
		name      string
		header    []string
		mode      core.ImportMode
		wantOK    bool
		wantWarns int
	}{
		{name: "complete", header: []string{"name", "quantity", "unit"}, mode: core.ModeInsert, wantOK: true},
		{name: "missing quantity", header: []string{"name"}, mode: core.ModeUpsert, wantOK: false},
		{name: "update needs only the key", header: []string{"id", "price"}, mode: core.ModeUpdate, wantOK: true},
		{name: "update without key", header: []string{"name", "quantity"}, mode: core.ModeUpdate, wantOK: false},
		{name: "unknown column", header: []string{"name", "quantity", "colour"}, mode: core.ModeInsert, wantOK: true, wantWarns: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pf, err := m.Preflight(tables.Products, tt.header, nil, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, pf.OK(), pf.Errors)
			assert.Len(t, pf.Warnings, tt.wantWarns)
		})
	}
}

func TestPreflight_NullCounts(t *testing.T) {
	m, _ := newMutator(t)
	header := []string{"id", "name", "quantity", "price"}
	rows := []core.RawRow{
		{"id": "", "name": "Rice", "quantity": "10", "price": ""},
		{"id": "", "name": " ", "quantity": "", "price": "2"},
		{"id": "7", "name": "", "quantity": "5", "price": ""},
	}

	t.Run("insert", func(t *testing.T) {
		pf, err := m.Preflight(tables.Products, header, rows, core.ModeInsert)
		require.NoError(t, err)
		assert.Equal(t, 3, pf.Rows)
		assert.Equal(t, map[string]int{"name": 2, "quantity": 1}, pf.NullCounts)
		require.Len(t, pf.Errors, 2)
		assert.Contains(t, pf.Errors[0], `"name" has 2 empty values`)
		assert.Contains(t, pf.Errors[1], `"quantity" has 1 empty values`)
		assert.False(t, pf.OK())
	})

	t.Run("update", func(t *testing.T) {
		pf, err := m.Preflight(tables.Products, header, rows, core.ModeUpdate)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"id": 2, "name": 2, "quantity": 1}, pf.NullCounts)
		require.Len(t, pf.Errors, 1)
		assert.Contains(t, pf.Errors[0], `"id"`)
		assert.Len(t, pf.Warnings, 2)
	})

	t.Run("upsert only warns", func(t *testing.T) {
		pf, err := m.Preflight(tables.Products, header, rows, core.ModeUpsert)
		require.NoError(t, err)
		assert.True(t, pf.OK(), pf.Errors)
		assert.Len(t, pf.Warnings, 2)
	})

	t.Run("clean rows", func(t *testing.T) {
		pf, err := m.Preflight(tables.Products, header, rows[:1], core.ModeInsert)
		require.NoError(t, err)
		assert.True(t, pf.OK())
		assert.Nil(t, pf.NullCounts)
	})

	t.Run("bad mode", func(t *testing.T) {
		_, err := m.Preflight(tables.Products, header, rows, core.ImportMode("merge"))
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}

func TestRowsFromTable(t *testing.T) {
	rows := core.RowsFromTable(&tabular.Table{
		Header: []string{"name", "quantity"},
		Rows:   [][]string{{"Rice", "10"}, {"Oil"}},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, core.RawRow{"name": "Rice", "quantity": "10"}, rows[0])
	assert.Equal(t, "Oil", rows[1]["name"])
}

func TestParseImportMode(t *testing.T) {
	mode, err := core.ParseImportMode("")
	require.NoError(t, err)
	assert.Equal(t, core.ModeInsert, mode)

	mode, err = core.ParseImportMode("replace")
	require.NoError(t, err)
	assert.Equal(t, core.ModeReplace, mode)

	_, err = core.ParseImportMode("merge")
	assert.Error(t, err)
}
