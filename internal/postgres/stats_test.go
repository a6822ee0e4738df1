package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stockdash/internal/core"
	"github.com/JonMunkholm/stockdash/internal/postgres"
)

func TestStore_StockPeriods(t *testing.T) {
	mock := newMock(t)
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 7, 0, 0, 0, 0, time.UTC)
	sd := 2.5

	rows := pgxmock.NewRows([]string{
		"stock_record_id", "department", "start_date", "end_date",
		"total", "mean", "std_dev", "max", "lines", "products",
	}).
		AddRow(int64(2), "Nord", start, end, int64(30), 10.0, &sd, int64(12), int64(3), int64(3)).
		AddRow(int64(1), "Sud", start, end, int64(4), 4.0, nil, int64(4), int64(1), int64(1))
	mock.ExpectQuery(`SELECT r.id AS stock_record_id, (.+) FROM stocks s `+
		`JOIN stock_records r ON r.id = s.id_stock_record `+
		`JOIN sales_departments d ON d.id = r.id_sales_department `+
		`WHERE r.id IN \(\$1,\$2\) AND d.id IN \(\$3\) `+
		`GROUP BY r.id, d.name, r.start_date, r.end_date ORDER BY r.start_date DESC, r.id`).
		WithArgs(int64(1), int64(2), int64(5)).
		WillReturnRows(rows)

	got, err := postgres.NewStore(mock).StockPeriods(context.Background(), core.StockFilter{
		StockRecordIDs: []int64{1, 2},
		DepartmentIDs:  []int64{5},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Nord", got[0].Department)
	assert.Equal(t, int64(30), got[0].Total)
	require.NotNil(t, got[0].StdDev)
	assert.InDelta(t, 2.5, *got[0].StdDev, 1e-9)
	assert.Nil(t, got[1].StdDev)
	assert.Equal(t, start, got[1].StartDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_StockByDepartment(t *testing.T) {
	t.Run("grouped by name", func(t *testing.T) {
		mock := newMock(t)
		rows := pgxmock.NewRows([]string{"department", "total", "lines"}).
			AddRow("Nord", int64(30), int64(3))
		mock.ExpectQuery(`SELECT d.name AS department, (.+) GROUP BY d.name ORDER BY d.name`).
			WillReturnRows(rows)

		got, err := postgres.NewStore(mock).StockByDepartment(context.Background(), core.StockFilter{})
		require.NoError(t, err)
		assert.Equal(t, []core.DepartmentStats{{Department: "Nord", Total: 30, Lines: 3}}, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("connection error", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT d.name`).WillReturnError(errors.New("connection refused"))

		_, err := postgres.NewStore(mock).StockByDepartment(context.Background(), core.StockFilter{})
		assert.ErrorIs(t, err, core.ErrStorage)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_StockByStartDate(t *testing.T) {
	mock := newMock(t)
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"start_date", "total"}).AddRow(day, int64(34))
	mock.ExpectQuery(`SELECT r.start_date, sum\(s.quantity\)::bigint AS total (.+) GROUP BY r.start_date ORDER BY r.start_date`).
		WithArgs(int64(5)).
		WillReturnRows(rows)

	got, err := postgres.NewStore(mock).StockByStartDate(context.Background(), core.StockFilter{DepartmentIDs: []int64{5}})
	require.NoError(t, err)
	assert.Equal(t, []core.DateStats{{StartDate: day, Total: 34}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
