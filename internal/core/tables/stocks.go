package tables

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/stockdash/internal/core"
)

func salesDepartmentType() core.RecordType {
	return core.RecordType{
		Name:  SalesDepartments,
		Label: "Services commerciaux",
		Fields: []core.Field{
			idField(),
			{Name: "name", Label: "Nom", Kind: core.KindString, MaxLength: 100, Unique: true, Normalizer: NormalizeName},
			createdAtField(),
		},
		NaturalKey: []string{"name"},
		Display: func(rec core.Record, _ core.Refs) string {
			return fmt.Sprint(rec["name"])
		},
	}
}

func stockRecordType() core.RecordType {
	return core.RecordType{
		Name:  StockRecords,
		Label: "Enregistrements de stocks",
		Fields: []core.Field{
			idField(),
			{Name: "id_sales_department", Label: "Service commercial", Kind: core.KindForeignKey, References: SalesDepartments},
			{Name: "start_date", Label: "Date de d\u00e9but", Kind: core.KindDate},
			{Name: "end_date", Label: "Date de fin", Kind: core.KindDate},
			createdAtField(),
		},
		NaturalKey: []string{"id_sales_department", "start_date", "end_date"},
		Display:    displayStockRecord,
		Prepare:    checkPeriod,
	}
}

// displayStockRecord renders "Dept (01/02/2024 - 07/02/2024)".
func displayStockRecord(rec core.Record, refs core.Refs) string {
	return fmt.Sprintf("%s (%s - %s)",
		refs(SalesDepartments, rec["id_sales_department"]),
		core.FormatDisplayDate(rec["start_date"]),
		core.FormatDisplayDate(rec["end_date"]),
	)
}

// checkPeriod rejects a stock-take period that ends before it starts.
func checkPeriod(rec core.Record) error {
	start, ok1 := rec["start_date"].(time.Time)
	end, ok2 := rec["end_date"].(time.Time)
	if ok1 && ok2 && end.Before(start) {
		return core.ValidationErrors{{
			Field:   "end_date",
			Value:   end.Format(core.DateLayout),
			Message: "invalid date: end date is before start date",
		}}
	}
	return nil
}

func stockType() core.RecordType {
	return core.RecordType{
		Name:  Stocks,
		Label: "Stocks",
		Fields: []core.Field{
			idField(),
			{Name: "id_product", Label: "Produit", Kind: core.KindForeignKey, References: Products},
			{Name: "id_stock_record", Label: "Enregistrement de stock", Kind: core.KindForeignKey, References: StockRecords},
			{Name: "quantity", Label: "Quantit\u00e9", Kind: core.KindInteger},
		},
		Display: func(rec core.Record, refs core.Refs) string {
			return fmt.Sprintf("%s (%s)",
				refs(Products, rec["id_product"]),
				refs(StockRecords, rec["id_stock_record"]),
			)
		},
	}
}

// StockRecord is the typed form of a stock_records record.
type StockRecord struct {
	ID                int64
	SalesDepartmentID int64
	StartDate         time.Time
	EndDate           time.Time
}

// StockRecordCodec converts stock_records records.
type StockRecordCodec struct{}

func (StockRecordCodec) ToRecord(s StockRecord) map[string]any {
	rec := map[string]any{
		"id_sales_department": s.SalesDepartmentID,
		"start_date":          s.StartDate,
		"end_date":            s.EndDate,
	}
	if s.ID != 0 {
		rec["id"] = s.ID
	}
	return rec
}

func (StockRecordCodec) FromRecord(rec core.Record) (StockRecord, error) {
	var s StockRecord
	var ok bool
	if s.ID, ok = rec["id"].(int64); !ok {
		return s, fmt.Errorf("stock_records: id is %T", rec["id"])
	}
	s.SalesDepartmentID, _ = rec["id_sales_department"].(int64)
	s.StartDate, _ = rec["start_date"].(time.Time)
	s.EndDate, _ = rec["end_date"].(time.Time)
	return s, nil
}

// Stock is the typed form of a stocks record.
type Stock struct {
	ID            int64
	ProductID     int64
	StockRecordID int64
	Quantity      int64
}

// StockCodec converts stocks records.
type StockCodec struct{}

func (StockCodec) ToRecord(s Stock) map[string]any {
	rec := map[string]any{
		"id_product":      s.ProductID,
		"id_stock_record": s.StockRecordID,
		"quantity":        s.Quantity,
	}
	if s.ID != 0 {
		rec["id"] = s.ID
	}
	return rec
}

func (StockCodec) FromRecord(rec core.Record) (Stock, error) {
	var s Stock
	var ok bool
	if s.ID, ok = rec["id"].(int64); !ok {
		return s, fmt.Errorf("stocks: id is %T", rec["id"])
	}
	s.ProductID, _ = rec["id_product"].(int64)
	s.StockRecordID, _ = rec["id_stock_record"].(int64)
	s.Quantity, _ = rec["quantity"].(int64)
	return s, nil
}
