package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/JonMunkholm/stockdash/internal/core"
)

func (s *Store) StockPeriods(ctx context.Context, f core.StockFilter) ([]core.PeriodStats, error) {
	b := stockLines(f,
		"r.id AS stock_record_id",
		"d.name AS department",
		"r.start_date",
		"r.end_date",
		"sum(s.quantity)::bigint AS total",
		"avg(s.quantity)::float8 AS mean",
		"stddev_samp(s.quantity)::float8 AS std_dev",
		"max(s.quantity)::bigint AS max",
		"count(*) AS lines",
		"count(DISTINCT s.id_product) AS products",
	).
		GroupBy("r.id", "d.name", "r.start_date", "r.end_date").
		OrderBy("r.start_date DESC", "r.id")

	var rows []core.PeriodStats
	if err := s.selectStats(ctx, b, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) StockByDepartment(ctx context.Context, f core.StockFilter) ([]core.DepartmentStats, error) {
	b := stockLines(f,
		"d.name AS department",
		"sum(s.quantity)::bigint AS total",
		"count(*) AS lines",
	).
		GroupBy("d.name").
		OrderBy("d.name")

	var rows []core.DepartmentStats
	if err := s.selectStats(ctx, b, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) StockByStartDate(ctx context.Context, f core.StockFilter) ([]core.DateStats, error) {
	b := stockLines(f,
		"r.start_date",
		"sum(s.quantity)::bigint AS total",
	).
		GroupBy("r.start_date").
		OrderBy("r.start_date")

	var rows []core.DateStats
	if err := s.selectStats(ctx, b, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// stockLines selects cols over stocks joined to their stock record and
// sales department.
func stockLines(f core.StockFilter, cols ...string) sq.SelectBuilder {
	b := psql.Select(cols...).
		From("stocks s").
		Join("stock_records r ON r.id = s.id_stock_record").
		Join("sales_departments d ON d.id = r.id_sales_department")
	if len(f.StockRecordIDs) > 0 {
		b = b.Where(sq.Eq{"r.id": f.StockRecordIDs})
	}
	if len(f.DepartmentIDs) > 0 {
		b = b.Where(sq.Eq{"d.id": f.DepartmentIDs})
	}
	return b
}

func (s *Store) selectStats(ctx context.Context, b sq.SelectBuilder, dst any) error {
	query, args, err := b.ToSql()
	if err != nil {
		return core.StorageError("build stock stats", err)
	}
	if err := pgxscan.Select(ctx, s.q(ctx), dst, query, args...); err != nil {
		return mapError(err, "stocks", "stats")
	}
	return nil
}
