// Package tables registers the stock dashboard record types with the core
// registry. Import this package to ensure all types are registered.
package tables

import "github.com/JonMunkholm/stockdash/internal/core"

// Record type names.
const (
	Users            = "users"
	Products         = "products"
	SalesDepartments = "sales_departments"
	StockRecords     = "stock_records"
	Stocks           = "stocks"
)

func init() {
	if err := RegisterAll(core.Default); err != nil {
		panic(err)
	}
}

// RegisterAll adds every record type to reg, referenced types first.
func RegisterAll(reg *core.Registry) error {
	for _, rt := range []core.RecordType{
		userType(),
		productType(),
		salesDepartmentType(),
		stockRecordType(),
		stockType(),
	} {
		if err := reg.Add(rt); err != nil {
			return err
		}
	}
	return nil
}

func idField() core.Field {
	return core.Field{Name: "id", Label: "ID", Kind: core.KindInteger, PrimaryKey: true, AutoIncrement: true}
}

func createdAtField() core.Field {
	return core.Field{
		Name:     "created_at",
		Label:    "Date d'enregistrement",
		Kind:     core.KindDateTime,
		Nullable: true,
		Default:  core.DefaultGenerated,
	}
}
