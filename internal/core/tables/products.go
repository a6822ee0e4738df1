package tables

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/stockdash/internal/core"
)

// Units a product can be packaged in.
var Units = []string{"kg", "l"}

func productType() core.RecordType {
	return core.RecordType{
		Name:  Products,
		Label: "Produits",
		Fields: []core.Field{
			idField(),
			{Name: "name", Label: "Nom", Kind: core.KindString, MaxLength: 100, Normalizer: NormalizeName},
			{Name: "quantity", Label: "Quantit\u00e9", Kind: core.KindDecimal, Precision: 10, Scale: 2},
			{Name: "price", Label: "Prix", Kind: core.KindDecimal, Precision: 10, Scale: 2, Nullable: true},
			{Name: "unit", Label: "Unit\u00e9", Kind: core.KindEnum, EnumValues: Units, Nullable: true, Normalizer: NormalizeUnit},
			createdAtField(),
		},
		NaturalKey: []string{"name", "quantity", "unit"},
		Display:    displayProduct,
	}
}

// displayProduct renders "Rice (10.26 kg)".
func displayProduct(rec core.Record, _ core.Refs) string {
	qty := ""
	if d, ok := rec["quantity"].(decimal.Decimal); ok {
		qty = d.StringFixed(2)
	}
	if unit, ok := rec["unit"].(string); ok && unit != "" {
		return fmt.Sprintf("%v (%s %s)", rec["name"], qty, unit)
	}
	return fmt.Sprintf("%v (%s)", rec["name"], qty)
}

// Product is the typed form of a products record.
type Product struct {
	ID        int64
	Name      string
	Quantity  decimal.Decimal
	Price     decimal.NullDecimal
	Unit      string
	CreatedAt time.Time
}

// ProductCodec converts products records.
type ProductCodec struct{}

// ToRecord omits zero ID, empty unit and NULL price.
func (ProductCodec) ToRecord(p Product) map[string]any {
	rec := map[string]any{
		"name":     p.Name,
		"quantity": p.Quantity,
	}
	if p.ID != 0 {
		rec["id"] = p.ID
	}
	if p.Price.Valid {
		rec["price"] = p.Price.Decimal
	}
	if p.Unit != "" {
		rec["unit"] = p.Unit
	}
	return rec
}

func (ProductCodec) FromRecord(rec core.Record) (Product, error) {
	var p Product
	var ok bool
	if p.ID, ok = rec["id"].(int64); !ok {
		return p, fmt.Errorf("products: id is %T", rec["id"])
	}
	p.Name, _ = rec["name"].(string)
	p.Quantity, _ = rec["quantity"].(decimal.Decimal)
	if d, ok := rec["price"].(decimal.Decimal); ok {
		p.Price = decimal.NewNullDecimal(d)
	}
	p.Unit, _ = rec["unit"].(string)
	p.CreatedAt, _ = rec["created_at"].(time.Time)
	return p, nil
}
