package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// ----------------------------------------------------------------------------
// ToDecimal Tests
// ----------------------------------------------------------------------------

func TestToDecimal(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    string
		wantErr bool
	}{
		// Valid: basic numbers
		{name: "integer string", input: "123", want: "123"},
		{name: "decimal string", input: "123.45", want: "123.45"},
		{name: "leading decimal point", input: ".99", want: "0.99"},
		{name: "negative", input: "-456", want: "-456"},
		{name: "scientific notation", input: "1.5e3", want: "1500"},

		// Valid: spreadsheet artifacts
		{name: "dollar sign", input: "$1,234.56", want: "1234.56"},
		{name: "euro sign", input: "\u20ac12.50", want: "12.5"},
		{name: "nbsp thousands", input: "19\u00a0000", want: "19000"},
		{name: "accounting negative", input: "(1.50)", want: "-1.5"},
		{name: "comma thousands", input: "1,234,567", want: "1234567"},
		{name: "decimal comma", input: "12,5", want: "12.5"},
		{name: "decimal comma two digits", input: "10,26", want: "10.26"},
		{name: "negative decimal comma", input: "-0,75", want: "-0.75"},
		{name: "european grouping", input: "1.234,56", want: "1234.56"},
		{name: "euro decimal comma", input: "\u20ac2,50", want: "2.5"},
		{name: "surrounding spaces", input: "  42  ", want: "42"},

		// Valid: native values
		{name: "int64", input: int64(7), want: "7"},
		{name: "float64", input: 10.256, want: "10.256"},
		{name: "json number", input: json.Number("2250.555"), want: "2250.555"},

		// Invalid
		{name: "letters", input: "abc", wantErr: true},
		{name: "two points", input: "1.2.3", wantErr: true},
		{name: "lone comma before three digits", input: "1,234", wantErr: true},
		{name: "lone comma before four digits", input: "1,2345", wantErr: true},
		{name: "misgrouped commas", input: "1,2,3", wantErr: true},
		{name: "two decimal commas", input: "1.234,5,6", wantErr: true},
		{name: "unsupported type", input: []int{1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToDecimal(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ToDecimal(%v) = %s, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToDecimal(%v) error = %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ToDecimal(%v) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		in    string
		scale int
		want  string
	}{
		{"10.256", 2, "10.26"},
		{"10.254", 2, "10.25"},
		{"10.005", 2, "10.01"},
		{"-10.005", 2, "-10.01"},
		{"2250.555", 2, "2250.56"},
		{"7", 2, "7"},
		{"1.5", 0, "2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Quantize(decimal.RequireFromString(tt.in), tt.scale)
			if got.String() != tt.want {
				t.Errorf("Quantize(%s, %d) = %s, want %s", tt.in, tt.scale, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ToInt64 Tests
// ----------------------------------------------------------------------------

func TestToInt64(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    int64
		wantErr bool
	}{
		{name: "string", input: "42", want: 42},
		{name: "thousands separator", input: "1,000", want: 1000},
		{name: "integral float string", input: "3.0", want: 3},
		{name: "integral float", input: 12.0, want: 12},
		{name: "json number", input: json.Number("9"), want: 9},
		{name: "int32", input: int32(5), want: 5},
		{name: "grouped thousands", input: "1,234,567", want: 1234567},
		{name: "fraction string", input: "3.5", wantErr: true},
		{name: "decimal comma", input: "12,5", wantErr: true},
		{name: "fraction float", input: 1.25, wantErr: true},
		{name: "letters", input: "x", wantErr: true},
		{name: "bool", input: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToInt64(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ToInt64(%v) = %d, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToInt64(%v) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ToInt64(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ToDate Tests
// ----------------------------------------------------------------------------

func TestToDate(t *testing.T) {
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   any
		wantErr bool
	}{
		{name: "ISO", input: "2024-03-15"},
		{name: "ISO slashes", input: "2024/03/15"},
		{name: "day first", input: "15/03/2024"},
		{name: "day first dots", input: "15.03.2024"},
		{name: "compact", input: "20240315"},
		{name: "spelled month", input: "15 Mar 2024"},
		{name: "two digit year", input: "15/03/24"},
		{name: "midnight timestamp", input: "2024-03-15T00:00:00"},
		{name: "time value", input: time.Date(2024, 3, 15, 17, 45, 0, 0, time.UTC)},
		{name: "invalid month", input: "2024-13-01", wantErr: true},
		{name: "garbage", input: "soon", wantErr: true},
		{name: "number", input: 45000, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ToDate(%v) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToDate(%v) error = %v", tt.input, err)
			}
			if !got.Equal(want) {
				t.Errorf("ToDate(%v) = %v, want %v", tt.input, got, want)
			}
		})
	}
}

func TestToDate_TwoDigitYear(t *testing.T) {
	pivot := time.Now().Year() + TwoDigitYearPivot

	got, err := ToDate("01/01/99")
	if err != nil {
		t.Fatalf("ToDate error = %v", err)
	}
	if got.Year() > pivot {
		t.Errorf("year %d is past the pivot %d", got.Year(), pivot)
	}
	if got.Year()%100 != 99 {
		t.Errorf("year = %d, want ..99", got.Year())
	}
}

func TestToDateTime(t *testing.T) {
	got, err := ToDateTime("2024-03-15 10:30")
	if err != nil {
		t.Fatalf("ToDateTime error = %v", err)
	}
	if want := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("ToDateTime = %v, want %v", got, want)
	}

	got, err = ToDateTime("15/03/2024")
	if err != nil {
		t.Fatalf("ToDateTime date-only error = %v", err)
	}
	if got.Hour() != 0 || got.Day() != 15 {
		t.Errorf("ToDateTime date-only = %v, want midnight on the 15th", got)
	}
}

// ----------------------------------------------------------------------------
// ToBool Tests
// ----------------------------------------------------------------------------

func TestToBool(t *testing.T) {
	tests := []struct {
		input   any
		want    bool
		wantErr bool
	}{
		{input: "true", want: true},
		{input: "YES", want: true},
		{input: "oui", want: true},
		{input: "1", want: true},
		{input: " on ", want: true},
		{input: "false", want: false},
		{input: "non", want: false},
		{input: "0", want: false},
		{input: true, want: true},
		{input: int64(0), want: false},
		{input: "maybe", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ToBool(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ToBool(%v) want error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ToBool(%v) error = %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ToBool(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// ----------------------------------------------------------------------------
// Coerce Tests
// ----------------------------------------------------------------------------

func TestCoerce(t *testing.T) {
	upper := func(s string) string {
		out := []byte(s)
		for i, c := range out {
			if c >= 'a' && c <= 'z' {
				out[i] = c - 32
			}
		}
		return string(out)
	}

	tests := []struct {
		name    string
		field   Field
		input   any
		want    any
		wantErr bool
	}{
		{name: "blank is nil", field: Field{Kind: KindString}, input: "   ", want: nil},
		{name: "nil is nil", field: Field{Kind: KindDecimal}, input: nil, want: nil},
		{name: "string normalizer", field: Field{Kind: KindString, Normalizer: upper}, input: " rice ", want: "RICE"},
		{name: "excel text prefix", field: Field{Kind: KindString}, input: `="00123"`, want: "00123"},
		{name: "enum case folded", field: Field{Kind: KindEnum, EnumValues: []string{"kg", "l"}}, input: "KG", want: "kg"},
		{name: "enum rejected", field: Field{Kind: KindEnum, EnumValues: []string{"kg", "l"}}, input: "sac", wantErr: true},
		{name: "integer", field: Field{Kind: KindInteger}, input: "12", want: int64(12)},
		{name: "foreign key", field: Field{Kind: KindForeignKey}, input: "3", want: int64(3)},
		{name: "bool", field: Field{Kind: KindBool}, input: "oui", want: true},
		{name: "unknown kind", field: Field{Kind: FieldKind(99)}, input: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.field, tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Coerce(%v) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Coerce(%v) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Coerce(%v) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCoerce_DecimalQuantized(t *testing.T) {
	got, err := Coerce(Field{Kind: KindDecimal, Scale: 2}, "10.256")
	if err != nil {
		t.Fatalf("Coerce error = %v", err)
	}
	d, ok := got.(decimal.Decimal)
	if !ok {
		t.Fatalf("Coerce returned %T, want decimal.Decimal", got)
	}
	if d.String() != "10.26" {
		t.Errorf("Coerce = %s, want 10.26", d)
	}
}

func TestCoerce_DecimalComma(t *testing.T) {
	f := Field{Kind: KindDecimal, Scale: 2}
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "12,5", want: "12.5"},
		{in: "10,256", wantErr: true},
		{in: "1 234,567", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Coerce(f, tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Coerce(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Coerce(%q) error = %v", tt.in, err)
			}
			if d := got.(decimal.Decimal); d.String() != tt.want {
				t.Errorf("Coerce(%q) = %s, want %s", tt.in, d, tt.want)
			}
		})
	}
}

func TestDecimalCommaToPoint(t *testing.T) {
	tests := map[string]string{
		"1,234":   "1.234",
		"10,256":  "10.256",
		"1.234,5": "1234.5",
		"1 234,5": "1234.5",
		"12.5":    "12.5",
		"1,234.5": "1,234.5",
		"1,2,3":   "1,2,3",
	}
	for in, want := range tests {
		if got := decimalCommaToPoint(in); got != want {
			t.Errorf("decimalCommaToPoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToJSON(t *testing.T) {
	if _, err := ToJSON(`{"a":`); err == nil {
		t.Error("ToJSON accepted invalid JSON")
	}
	got, err := ToJSON([]string{"admin"})
	if err != nil {
		t.Fatalf("ToJSON error = %v", err)
	}
	if string(got) != `["admin"]` {
		t.Errorf("ToJSON = %s, want [\"admin\"]", got)
	}
}

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		// Basic cleaning
		{name: "simple string unchanged", input: "hello", want: "hello"},
		{name: "empty string", input: "", want: ""},

		// Whitespace trimming
		{name: "leading whitespace", input: "  hello", want: "hello"},
		{name: "trailing whitespace", input: "hello  ", want: "hello"},

		// Excel formula prefix handling
		{name: "Excel formula with quotes", input: `="hello"`, want: "hello"},
		{name: "Excel formula number as text", input: `="12345"`, want: "12345"},
		{name: "bare equals sign", input: "=SUM(A1)", want: "SUM(A1)"},

		// Quote removal
		{name: "double quotes", input: `"hello"`, want: "hello"},
		{name: "single quotes", input: `'hello'`, want: "hello"},
		{name: "inner quotes kept", input: `it's`, want: "it's"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCell(tt.input); got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
