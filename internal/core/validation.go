package core

// validation.go coerces and validates candidate records before they reach the store.
//
// Validation happens at two levels:
//  1. Coercion: each supplied value is converted to its field's Go type
//  2. Record validation: nullability, lengths, decimal precision and the
//     primary-key rules for create vs update
//
// All problems on a record are collected into one ValidationErrors value so
// callers can show every field at once.

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// CoerceRecord converts every known value of raw to its field's type.
// Unknown keys are returned separately, sorted.
func CoerceRecord(rt *RecordType, raw map[string]any) (Record, []string, error) {
	rec := make(Record, len(raw))
	var unknown []string
	var errs ValidationErrors

	for key, v := range raw {
		f, ok := rt.Field(key)
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		cv, err := Coerce(f, v)
		if err != nil {
			errs = append(errs, ValidationError{Field: f.Name, Value: fmt.Sprint(v), Message: err.Error()})
			continue
		}
		rec[f.Name] = cv
	}

	sort.Strings(unknown)
	sortByFieldOrder(rt, errs)
	if len(errs) > 0 {
		return nil, unknown, errs
	}
	return rec, unknown, nil
}

// applyDefaults fills static defaults for fields the candidate omits.
func applyDefaults(rt *RecordType, rec Record) {
	for _, f := range rt.Fields {
		if f.Default != DefaultStatic {
			continue
		}
		if v, ok := rec[f.Name]; !ok || v == nil {
			rec[f.Name] = f.DefaultValue
		}
	}
}

// stripGenerated removes values the store assigns itself (auto-increment keys
// left empty, generated defaults left empty).
func stripGenerated(rt *RecordType, rec Record) {
	for _, f := range rt.Fields {
		v, ok := rec[f.Name]
		if !ok {
			continue
		}
		if v == nil && (f.AutoIncrement || f.Default == DefaultGenerated) {
			delete(rec, f.Name)
		}
	}
}

// ValidateRecord checks a coerced record. On create, every required field must
// be present; on update only the supplied fields are checked.
func ValidateRecord(rt *RecordType, rec Record, create bool) error {
	var errs ValidationErrors

	for _, f := range rt.Fields {
		v, present := rec[f.Name]

		if create && !present && f.Required() {
			errs = append(errs, ValidationError{Field: f.Name, Message: "required field is empty"})
			continue
		}
		if !present {
			continue
		}
		if v == nil {
			if !f.Nullable && !(create && f.HasDefault()) {
				errs = append(errs, ValidationError{Field: f.Name, Message: "required field is empty"})
			}
			continue
		}
		if err := validateValue(f, v); err != nil {
			errs = append(errs, ValidationError{Field: f.Name, Value: fmt.Sprint(v), Message: err.Error()})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateValue(f Field, v any) error {
	switch f.Kind {
	case KindString:
		s, _ := v.(string)
		if f.MaxLength > 0 && utf8.RuneCountInString(s) > f.MaxLength {
			return fmt.Errorf("longer than %d characters", f.MaxLength)
		}
	case KindEnum:
		s, _ := v.(string)
		for _, ev := range f.EnumValues {
			if ev == s {
				return nil
			}
		}
		return fmt.Errorf("invalid enum: value must be one of: %s", strings.Join(f.EnumValues, ", "))
	case KindDecimal:
		d, ok := v.(decimal.Decimal)
		if !ok {
			return fmt.Errorf("invalid number format")
		}
		if f.Precision > 0 {
			intDigits := len(d.Abs().Truncate(0).String())
			if d.Abs().LessThan(decimal.NewFromInt(1)) {
				intDigits = 0
			}
			if intDigits > f.Precision-f.Scale {
				return fmt.Errorf("invalid number: at most %d digits before the decimal point", f.Precision-f.Scale)
			}
		}
	}
	return nil
}

// ValidateHeaders compares import column names with rt. Missing required
// columns are errors, unknown columns are warnings.
func ValidateHeaders(rt *RecordType, header []string, mode ImportMode) Preflight {
	var p Preflight

	present := make(map[string]bool, len(header))
	var unknown []string
	for _, h := range header {
		if _, ok := rt.Field(h); ok {
			present[h] = true
		} else if h != "" {
			unknown = append(unknown, h)
		}
	}

	var missing []string
	switch mode {
	case ModeUpdate:
		pk := rt.PrimaryKey().Name
		if !present[pk] {
			missing = append(missing, pk)
		}
	default:
		for _, name := range RequiredColumns(rt) {
			if !present[name] {
				missing = append(missing, name)
			}
		}
	}

	if len(missing) > 0 {
		p.Errors = append(p.Errors, "missing required columns: "+strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		p.Warnings = append(p.Warnings, "unknown columns ignored: "+strings.Join(unknown, ", "))
	}
	return p
}

// ValidateImport runs ValidateHeaders and counts the empty cells of each
// non-nullable column in rows. Empty cells that will fail their row are
// errors; those a default fills or an update leaves untouched are warnings.
func ValidateImport(rt *RecordType, header []string, rows []RawRow, mode ImportMode) Preflight {
	p := ValidateHeaders(rt, header, mode)
	p.Rows = len(rows)

	pk := rt.PrimaryKey()
	for _, f := range rt.Fields {
		if f.Nullable || !slices.Contains(header, f.Name) {
			continue
		}
		if f.AutoIncrement && mode != ModeUpdate {
			continue
		}
		n := 0
		for _, row := range rows {
			if isBlank(row[f.Name]) {
				n++
			}
		}
		if n == 0 {
			continue
		}
		if p.NullCounts == nil {
			p.NullCounts = make(map[string]int)
		}
		p.NullCounts[f.Name] = n

		msg := fmt.Sprintf("column %q has %d empty values", f.Name, n)
		fatal := f.Required() && (mode == ModeInsert || mode == ModeReplace)
		if mode == ModeUpdate {
			fatal = f.Name == pk.Name
		}
		if fatal {
			p.Errors = append(p.Errors, msg+" (not allowed)")
		} else {
			p.Warnings = append(p.Warnings, msg)
		}
	}
	return p
}

func sortByFieldOrder(rt *RecordType, errs ValidationErrors) {
	pos := make(map[string]int, len(rt.Fields))
	for i, f := range rt.Fields {
		pos[f.Name] = i
	}
	sort.SliceStable(errs, func(i, j int) bool { return pos[errs[i].Field] < pos[errs[j].Field] })
}
