package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Export layouts for temporal values.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05"
)

// maxDisplayDepth bounds foreign key resolution in display strings.
const maxDisplayDepth = 3

// Display renders rec with the type's display function, falling back to
// "<label> #<id>". Foreign keys render as "#<id>".
func Display(rt *RecordType, rec Record) string {
	return display(rt, rec, func(_ string, id any) string {
		return fmt.Sprintf("#%v", id)
	})
}

// DisplayContext renders rec like Display, loading referenced records from
// store so that their own display strings appear.
func DisplayContext(ctx context.Context, reg *Registry, store Store, rt *RecordType, rec Record) string {
	return displayDepth(ctx, reg, store, rt, rec, 0)
}

func displayDepth(ctx context.Context, reg *Registry, store Store, rt *RecordType, rec Record, depth int) string {
	return display(rt, rec, func(typeName string, id any) string {
		target, ok := reg.Get(typeName)
		if !ok || id == nil || depth >= maxDisplayDepth {
			return fmt.Sprintf("#%v", id)
		}
		ref, err := store.Get(ctx, target, id)
		if err != nil {
			return fmt.Sprintf("#%v", id)
		}
		return displayDepth(ctx, reg, store, target, ref, depth+1)
	})
}

func display(rt *RecordType, rec Record, refs Refs) string {
	if rec == nil {
		return ""
	}
	if rt.Display != nil {
		return rt.Display(rec, refs)
	}
	label := rt.Label
	if label == "" {
		label = rt.Name
	}
	return fmt.Sprintf("%s #%v", label, rt.ID(rec))
}

// FormatValue renders a field value as export text: dates as 2006-01-02,
// timestamps as 2006-01-02T15:04:05, decimals fixed to the field's scale and
// NULL as the empty string.
func FormatValue(f Field, v any) string {
	if v == nil {
		return ""
	}
	switch x := v.(type) {
	case time.Time:
		if f.Kind == KindDate {
			return x.Format(DateLayout)
		}
		return x.Format(DateTimeLayout)
	case decimal.Decimal:
		if f.Kind == KindDecimal {
			return x.StringFixed(int32(f.Scale))
		}
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	case json.RawMessage:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// FormatDisplayDate renders a date the way display strings show it (02/01/2006).
func FormatDisplayDate(v any) string {
	t, ok := v.(time.Time)
	if !ok {
		return ""
	}
	return t.Format("02/01/2006")
}
