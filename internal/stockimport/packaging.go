// Package stockimport turns supplier spreadsheets into stock and product
// imports. A stock sheet lists products by commercial name and packaging
// ("12KG", "1.5 l") with the counted stock; each row is resolved to a product
// and to the stock-take record of one sales department and period.
package stockimport

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Sheet columns.
const (
	ColumnName      = "NOM COMMERCIAL"
	ColumnPackaging = "EMBALLAGES"
	ColumnStock     = "STOK"
	ColumnPrice     = "PU TTC"
)

var packagingPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([A-Za-z]+)$`)

// ParsePackaging splits "12KG" or "1.5 l" into a quantity and a lower-case unit.
func ParsePackaging(s string) (decimal.Decimal, string, error) {
	m := packagingPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return decimal.Decimal{}, "", fmt.Errorf("invalid number: unrecognized packaging %q", s)
	}
	qty, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Decimal{}, "", fmt.Errorf("invalid number: packaging %q: %w", s, err)
	}
	return qty, strings.ToLower(m[2]), nil
}
