package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stockdash/internal/core"
	"github.com/JonMunkholm/stockdash/internal/core/tables"
	"github.com/JonMunkholm/stockdash/internal/memstore"
)

func newMutator(t *testing.T) (*core.Mutator, *memstore.Store) {
	t.Helper()
	reg := core.NewRegistry()
	require.NoError(t, tables.RegisterAll(reg))
	store := memstore.New(reg)
	return core.NewMutator(reg, store, store, core.WithAuditSink(store)), store
}

func mustCreate(t *testing.T, m *core.Mutator, typ string, raw map[string]any) core.Record {
	t.Helper()
	rec, err := m.Create(context.Background(), typ, raw)
	require.NoError(t, err)
	return rec
}

func dec(t *testing.T, v any) string {
	t.Helper()
	d, ok := v.(decimal.Decimal)
	require.True(t, ok, "want decimal.Decimal, got %T", v)
	return d.StringFixed(2)
}

func TestMutator_CreateGet(t *testing.T) {
	m, _ := newMutator(t)
	ctx := context.Background()

	created := mustCreate(t, m, tables.Products, map[string]any{"name": " Rice ", "quantity": "10.256", "unit": "KG"})
	assert.Equal(t, int64(1), created["id"])
	assert.Equal(t, "10.26", dec(t, created["quantity"]))

	got, err := m.Get(ctx, tables.Products, "1")
	require.NoError(t, err)
	assert.Equal(t, created["name"], got["name"])
	assert.Equal(t, "kg", got["unit"])
	assert.Nil(t, got["price"])
	assert.NotNil(t, got["created_at"])
}

func TestMutator_Create_Errors(t *testing.T) {
	m, _ := newMutator(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		typ       string
		raw       map[string]any
		wantErr   error
		wantField string
	}{
		{
			name:      "missing required field",
			typ:       tables.Products,
			raw:       map[string]any{"name": "Rice"},
			wantErr:   core.ErrValidation,
			wantField: "quantity",
		},
		{
			name:      "bad number",
			typ:       tables.Products,
			raw:       map[string]any{"name": "Rice", "quantity": "ten"},
			wantErr:   core.ErrValidation,
			wantField: "quantity",
		},
		{
			name:      "too many digits",
			typ:       tables.Products,
			raw:       map[string]any{"name": "Rice", "quantity": "123456789"},
			wantErr:   core.ErrValidation,
			wantField: "quantity",
		},
		{
			name:      "enum outside the list",
			typ:       tables.Products,
			raw:       map[string]any{"name": "Rice", "quantity": "1", "unit": "sac"},
			wantErr:   core.ErrValidation,
			wantField: "unit",
		},
		{
			name:      "dangling foreign key",
			typ:       tables.StockRecords,
			raw:       map[string]any{"id_sales_department": 99, "start_date": "2024-01-01", "end_date": "2024-01-31"},
			wantErr:   core.ErrValidation,
			wantField: "id_sales_department",
		},
		{
			name:    "unknown type",
			typ:     "nope",
			raw:     map[string]any{},
			wantErr: core.ErrUnknownType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Create(ctx, tt.typ, tt.raw)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantField != "" {
				var verrs core.ValidationErrors
				require.ErrorAs(t, err, &verrs)
				assert.Contains(t, verrs.Fields(), tt.wantField)
			}
		})
	}
}

func TestMutator_Create_Duplicate(t *testing.T) {
	m, _ := newMutator(t)
	mustCreate(t, m, tables.SalesDepartments, map[string]any{"name": "Nord"})

	_, err := m.Create(context.Background(), tables.SalesDepartments, map[string]any{"name": "Nord"})
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestMutator_Update(t *testing.T) {
	m, _ := newMutator(t)
	ctx := context.Background()
	mustCreate(t, m, tables.Products, map[string]any{"name": "Rice", "quantity": "10", "unit": "kg"})

	t.Run("partial", func(t *testing.T) {
		rec, err := m.Update(ctx, tables.Products, 1, map[string]any{"price": "2250.555"})
		require.NoError(t, err)
		assert.Equal(t, "2250.56", dec(t, rec["price"]))
		assert.Equal(t, "10.00", dec(t, rec["quantity"]))
	})

	t.Run("primary key is fixed", func(t *testing.T) {
		_, err := m.Update(ctx, tables.Products, 1, map[string]any{"id": 2})
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("clearing a required field", func(t *testing.T) {
		_, err := m.Update(ctx, tables.Products, 1, map[string]any{"quantity": nil})
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("missing record", func(t *testing.T) {
		_, err := m.Update(ctx, tables.Products, 42, map[string]any{"price": "1"})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestMutator_Delete(t *testing.T) {
	m, _ := newMutator(t)
	ctx := context.Background()
	for _, name := range []string{"Nord", "Sud", "Est"} {
		mustCreate(t, m, tables.SalesDepartments, map[string]any{"name": name})
	}

	t.Run("all or nothing", func(t *testing.T) {
		_, err := m.Delete(ctx, tables.SalesDepartments, 1, 99)
		require.ErrorIs(t, err, core.ErrNotFound)

		_, err = m.Get(ctx, tables.SalesDepartments, 1)
		assert.NoError(t, err, "first id must survive the failed batch")
	})

	t.Run("returns removed records", func(t *testing.T) {
		removed, err := m.Delete(ctx, tables.SalesDepartments, "1", "2")
		require.NoError(t, err)
		require.Len(t, removed, 2)
		assert.Equal(t, "Nord", removed[0]["name"])

		_, err = m.Get(ctx, tables.SalesDepartments, 1)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("duplicate ids", func(t *testing.T) {
		ouest := mustCreate(t, m, tables.SalesDepartments, map[string]any{"name": "Ouest"})
		removed, err := m.Delete(ctx, tables.SalesDepartments, "4", 4, ouest["id"])
		require.NoError(t, err)
		require.Len(t, removed, 1)
		assert.Equal(t, "Ouest", removed[0]["name"])
	})

	t.Run("referenced record", func(t *testing.T) {
		mustCreate(t, m, tables.StockRecords, map[string]any{
			"id_sales_department": 3, "start_date": "2024-01-01", "end_date": "2024-01-31",
		})
		_, err := m.Delete(ctx, tables.SalesDepartments, 3)
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}

func TestMutator_List(t *testing.T) {
	m, _ := newMutator(t)
	ctx := context.Background()
	for _, name := range []string{"A", "B", "C", "D"} {
		mustCreate(t, m, tables.SalesDepartments, map[string]any{"name": name})
	}

	page, err := m.List(ctx, tables.SalesDepartments, core.ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "B", page[0]["name"])
	assert.Equal(t, "C", page[1]["name"])

	found, err := m.List(ctx, tables.SalesDepartments, core.ListOptions{Where: core.Record{"id": "4"}})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "D", found[0]["name"])

	_, err = m.List(ctx, tables.SalesDepartments, core.ListOptions{Where: core.Record{"colour": "red"}})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestMutator_Hooks(t *testing.T) {
	m, _ := newMutator(t)
	ctx := context.Background()

	var events []string
	hookErr := errors.New("directory unavailable")
	m.RegisterHooks(tables.SalesDepartments, core.Hooks{
		OnCreate: func(_ context.Context, rec core.Record) error {
			events = append(events, "create "+rec["name"].(string))
			return nil
		},
		OnUpdate: func(context.Context, core.Record) error {
			return hookErr
		},
		OnDelete: func(_ context.Context, ev core.DeleteEvent) error {
			events = append(events, "delete")
			assert.Equal(t, []any{int64(1)}, ev.IDs)
			return nil
		},
	})

	mustCreate(t, m, tables.SalesDepartments, map[string]any{"name": "Nord"})

	rec, err := m.Update(ctx, tables.SalesDepartments, 1, map[string]any{"name": "Nord-Est"})
	var he *core.HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "update", he.Event)
	assert.ErrorIs(t, err, hookErr)
	assert.Equal(t, "Nord-Est", rec["name"], "committed record comes back with the hook error")

	stored, err := m.Get(ctx, tables.SalesDepartments, 1)
	require.NoError(t, err)
	assert.Equal(t, "Nord-Est", stored["name"])

	_, err = m.Delete(ctx, tables.SalesDepartments, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"create Nord", "delete"}, events)
}

func TestMutator_AuditTrail(t *testing.T) {
	m, store := newMutator(t)
	ctx := core.ContextWithActor(context.Background(), "ana@example.com")
	ctx = core.ContextWithIPAddress(ctx, "192.0.2.1")

	_, err := m.Create(ctx, tables.SalesDepartments, map[string]any{"name": "Nord"})
	require.NoError(t, err)
	_, err = m.Delete(ctx, tables.SalesDepartments, 1)
	require.NoError(t, err)

	entries, err := store.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, core.ActionDelete, entries[0].Action)
	assert.Equal(t, core.SeverityHigh, entries[0].Severity)
	assert.Equal(t, core.ActionCreate, entries[1].Action)
	assert.Equal(t, "ana@example.com", entries[1].Actor)
	assert.Equal(t, "192.0.2.1", entries[1].IPAddress)
	assert.Equal(t, "1", entries[1].RecordID)
	assert.Equal(t, "Nord", entries[1].Detail)
}
