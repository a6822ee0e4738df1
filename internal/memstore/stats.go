package memstore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/JonMunkholm/stockdash/internal/core"
	"github.com/JonMunkholm/stockdash/internal/core/tables"
)

func (s *Store) StockPeriods(ctx context.Context, f core.StockFilter) ([]core.PeriodStats, error) {
	lines, err := s.stockLines(ctx, f)
	if err != nil {
		return nil, err
	}
	periods, _, _ := core.AggregateStock(lines)
	return periods, nil
}

func (s *Store) StockByDepartment(ctx context.Context, f core.StockFilter) ([]core.DepartmentStats, error) {
	lines, err := s.stockLines(ctx, f)
	if err != nil {
		return nil, err
	}
	_, departments, _ := core.AggregateStock(lines)
	return departments, nil
}

func (s *Store) StockByStartDate(ctx context.Context, f core.StockFilter) ([]core.DateStats, error) {
	lines, err := s.stockLines(ctx, f)
	if err != nil {
		return nil, err
	}
	_, _, timeline := core.AggregateStock(lines)
	return timeline, nil
}

// stockLines joins stocks to their stock record and sales department.
// Lines whose parents are missing are skipped, like an inner join.
func (s *Store) stockLines(ctx context.Context, f core.StockFilter) ([]core.StockLine, error) {
	if s.registry == nil {
		return nil, core.StorageError("stock stats", fmt.Errorf("store has no registry"))
	}
	list := func(name string) ([]core.Record, error) {
		rt, err := s.registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		return s.List(ctx, rt, core.ListOptions{})
	}

	departments, err := list(tables.SalesDepartments)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(departments))
	for _, d := range departments {
		id, _ := d["id"].(int64)
		names[id], _ = d["name"].(string)
	}

	records, err := list(tables.StockRecords)
	if err != nil {
		return nil, err
	}
	periods := make(map[int64]core.StockLine, len(records))
	for _, r := range records {
		id, _ := r["id"].(int64)
		dept, _ := r["id_sales_department"].(int64)
		name, ok := names[dept]
		if !ok || !selected(f.StockRecordIDs, id) || !selected(f.DepartmentIDs, dept) {
			continue
		}
		start, _ := r["start_date"].(time.Time)
		end, _ := r["end_date"].(time.Time)
		periods[id] = core.StockLine{StockRecordID: id, Department: name, StartDate: start, EndDate: end}
	}

	stocks, err := list(tables.Stocks)
	if err != nil {
		return nil, err
	}
	lines := make([]core.StockLine, 0, len(stocks))
	for _, st := range stocks {
		recID, _ := st["id_stock_record"].(int64)
		line, ok := periods[recID]
		if !ok {
			continue
		}
		line.ProductID, _ = st["id_product"].(int64)
		line.Quantity, _ = st["quantity"].(int64)
		lines = append(lines, line)
	}
	return lines, nil
}

func selected(ids []int64, id int64) bool {
	return len(ids) == 0 || slices.Contains(ids, id)
}
