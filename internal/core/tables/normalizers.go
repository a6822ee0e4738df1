package tables

import "strings"

// NormalizeName collapses runs of whitespace: "  Riz   long " -> "Riz long".
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeEmail lower-cases an address so it can key the credential file.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeUnit maps unit spellings found in supplier sheets to the enum
// members: "KG", "Kgs", "kilo" -> "kg"; "L", "litre" -> "l".
func NormalizeUnit(s string) string {
	u := strings.ToLower(strings.TrimSpace(s))
	switch u {
	case "kg", "kgs", "kilo", "kilos", "kilogramme", "kilogrammes":
		return "kg"
	case "l", "lt", "ltr", "litre", "litres", "liter", "liters":
		return "l"
	default:
		return u
	}
}
