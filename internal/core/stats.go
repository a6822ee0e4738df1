package core

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// StockFilter narrows a stock summary. Empty slices select everything.
type StockFilter struct {
	StockRecordIDs []int64
	DepartmentIDs  []int64
}

// PeriodStats aggregates the stock lines of one stock record.
type PeriodStats struct {
	StockRecordID int64     `json:"stock_record_id" db:"stock_record_id"`
	Department    string    `json:"department"      db:"department"`
	StartDate     time.Time `json:"start_date"      db:"start_date"`
	EndDate       time.Time `json:"end_date"        db:"end_date"`
	Label         string    `json:"label"           db:"-"`
	Total         int64     `json:"total"           db:"total"`
	Mean          float64   `json:"mean"            db:"mean"`
	StdDev        *float64  `json:"std_dev"         db:"std_dev"` // nil below two lines
	Max           int64     `json:"max"             db:"max"`
	Lines         int64     `json:"lines"           db:"lines"`
	Products      int64     `json:"products"        db:"products"`
}

// DepartmentStats is the stock total of one sales department.
type DepartmentStats struct {
	Department string `json:"department" db:"department"`
	Total      int64  `json:"total"      db:"total"`
	Lines      int64  `json:"lines"      db:"lines"`
}

// DateStats is the stock total of the periods starting on one day.
type DateStats struct {
	StartDate time.Time `json:"start_date" db:"start_date"`
	Total     int64     `json:"total"      db:"total"`
}

// StockSummary is the stock dashboard: overall figures, then the same
// figures per period, per department and per start date.
type StockSummary struct {
	Lines       int64             `json:"lines"`
	Total       int64             `json:"total"`
	Mean        float64           `json:"mean"`
	Max         int64             `json:"max"`
	Periods     []PeriodStats     `json:"periods"`
	Departments []DepartmentStats `json:"departments"`
	Timeline    []DateStats       `json:"timeline"`
}

// StatsStore aggregates stock lines joined to their stock record and sales
// department. Means and deviations come back unrounded.
type StatsStore interface {
	StockPeriods(ctx context.Context, f StockFilter) ([]PeriodStats, error)
	StockByDepartment(ctx context.Context, f StockFilter) ([]DepartmentStats, error)
	StockByStartDate(ctx context.Context, f StockFilter) ([]DateStats, error)
}

// Stats serves the dashboard figures.
type Stats struct {
	store StatsStore
}

// NewStats creates a Stats reading from store.
func NewStats(store StatsStore) *Stats {
	return &Stats{store: store}
}

// Stock returns the summary of the stock lines selected by f. Periods come
// newest first, departments by name and the timeline oldest first. Means and
// deviations are rounded to two places.
func (s *Stats) Stock(ctx context.Context, f StockFilter) (*StockSummary, error) {
	periods, err := s.store.StockPeriods(ctx, f)
	if err != nil {
		return nil, err
	}
	departments, err := s.store.StockByDepartment(ctx, f)
	if err != nil {
		return nil, err
	}
	timeline, err := s.store.StockByStartDate(ctx, f)
	if err != nil {
		return nil, err
	}

	sum := &StockSummary{Periods: periods, Departments: departments, Timeline: timeline}
	for i := range periods {
		p := &periods[i]
		p.Label = PeriodLabel(p.Department, p.StartDate, p.EndDate)
		p.Mean = round2(p.Mean)
		if p.StdDev != nil {
			sd := round2(*p.StdDev)
			p.StdDev = &sd
		}
		if sum.Lines == 0 || p.Max > sum.Max {
			sum.Max = p.Max
		}
		sum.Lines += p.Lines
		sum.Total += p.Total
	}
	if sum.Lines > 0 {
		sum.Mean = round2(float64(sum.Total) / float64(sum.Lines))
	}

	sort.SliceStable(periods, func(i, j int) bool {
		if !periods[i].StartDate.Equal(periods[j].StartDate) {
			return periods[i].StartDate.After(periods[j].StartDate)
		}
		return periods[i].StockRecordID < periods[j].StockRecordID
	})
	sort.SliceStable(departments, func(i, j int) bool { return departments[i].Department < departments[j].Department })
	sort.SliceStable(timeline, func(i, j int) bool { return timeline[i].StartDate.Before(timeline[j].StartDate) })
	return sum, nil
}

// PeriodLabel names a stock record: "Nord (01/02/2024 - 07/02/2024)".
func PeriodLabel(department string, start, end time.Time) string {
	return fmt.Sprintf("%s (%s - %s)", department, FormatDisplayDate(start), FormatDisplayDate(end))
}

// StockLine is one stock row with the period it belongs to, the input of
// AggregateStock.
type StockLine struct {
	StockRecordID int64
	Department    string
	StartDate     time.Time
	EndDate       time.Time
	ProductID     int64
	Quantity      int64
}

// AggregateStock computes the StatsStore figures from lines, for stores
// without a query engine. The standard deviation is the sample one.
func AggregateStock(lines []StockLine) ([]PeriodStats, []DepartmentStats, []DateStats) {
	type acc struct {
		p        PeriodStats
		qty      []int64
		products map[int64]bool
	}
	periods := make(map[int64]*acc)
	departments := make(map[string]*DepartmentStats)
	dates := make(map[time.Time]*DateStats)

	for _, l := range lines {
		a, ok := periods[l.StockRecordID]
		if !ok {
			a = &acc{
				p: PeriodStats{
					StockRecordID: l.StockRecordID,
					Department:    l.Department,
					StartDate:     l.StartDate,
					EndDate:       l.EndDate,
					Max:           l.Quantity,
				},
				products: make(map[int64]bool),
			}
			periods[l.StockRecordID] = a
		}
		a.qty = append(a.qty, l.Quantity)
		a.products[l.ProductID] = true
		a.p.Total += l.Quantity
		a.p.Max = max(a.p.Max, l.Quantity)

		d, ok := departments[l.Department]
		if !ok {
			d = &DepartmentStats{Department: l.Department}
			departments[l.Department] = d
		}
		d.Total += l.Quantity
		d.Lines++

		t, ok := dates[l.StartDate]
		if !ok {
			t = &DateStats{StartDate: l.StartDate}
			dates[l.StartDate] = t
		}
		t.Total += l.Quantity
	}

	outP := make([]PeriodStats, 0, len(periods))
	for _, a := range periods {
		p := a.p
		p.Lines = int64(len(a.qty))
		p.Products = int64(len(a.products))
		p.Mean = float64(p.Total) / float64(p.Lines)
		if len(a.qty) > 1 {
			var ss float64
			for _, q := range a.qty {
				d := float64(q) - p.Mean
				ss += d * d
			}
			sd := math.Sqrt(ss / float64(len(a.qty)-1))
			p.StdDev = &sd
		}
		outP = append(outP, p)
	}
	outD := make([]DepartmentStats, 0, len(departments))
	for _, d := range departments {
		outD = append(outD, *d)
	}
	outT := make([]DateStats, 0, len(dates))
	for _, t := range dates {
		outT = append(outT, *t)
	}
	return outP, outD, outT
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
