package core

import (
	"time"
)

// FieldKind is the semantic type category of a field.
type FieldKind int

const (
	KindInvalid FieldKind = iota
	KindString
	KindInteger
	KindDecimal
	KindDate
	KindDateTime
	KindBool
	KindEnum
	KindForeignKey
	KindJSON
)

var kindNames = map[FieldKind]string{
	KindString:     "string",
	KindInteger:    "integer",
	KindDecimal:    "decimal",
	KindDate:       "date",
	KindDateTime:   "datetime",
	KindBool:       "bool",
	KindEnum:       "enum",
	KindForeignKey: "foreign_key",
	KindJSON:       "json",
}

func (k FieldKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "invalid"
}

// Valid reports whether k is a known kind.
func (k FieldKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// DefaultPolicy says where a field's value comes from when a candidate omits it.
type DefaultPolicy int

const (
	DefaultNone      DefaultPolicy = iota
	DefaultStatic                  // Field.DefaultValue is used
	DefaultGenerated               // the store generates it (serial, now())
)

// Field is the static descriptor of one column of a record type.
type Field struct {
	Name          string        // Column name, also the record key
	Label         string        // Display label
	Kind          FieldKind     // Semantic type
	Nullable      bool          // NULL allowed
	PrimaryKey    bool          // Exactly one per record type
	AutoIncrement bool          // Store assigns the value on insert
	Unique        bool          // Value must be unique across the type
	Precision     int           // Decimal: total digits (0 = unbounded)
	Scale         int           // Decimal: digits after the point
	MaxLength     int           // String: maximum length in runes (0 = unbounded)
	EnumValues    []string      // Enum: allowed members
	References    string        // Foreign key: target record type name
	Default       DefaultPolicy // Default value policy
	DefaultValue  any           // Used when Default is DefaultStatic
	Sensitive     bool          // Never exported or displayed
	Normalizer    func(string) string
}

// HasDefault reports whether an omitted value is filled by a default.
func (f Field) HasDefault() bool {
	return f.Default != DefaultNone || f.AutoIncrement
}

// Required reports whether a candidate must supply a value on create.
func (f Field) Required() bool {
	return !f.Nullable && !f.HasDefault()
}

// DisplayLabel returns Label, falling back to Name.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Record maps field names to Go-native values: string, int64,
// decimal.Decimal, time.Time, bool, json.RawMessage or nil.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RawRow is one untyped import row keyed by column name.
type RawRow map[string]any

// Refs returns the display string of the typeName record with primary key id.
type Refs func(typeName string, id any) string

// DisplayFunc renders a record for humans. refs resolves foreign keys.
type DisplayFunc func(rec Record, refs Refs) string

// PrepareFunc adjusts a coerced candidate before validation (e.g. hashing a
// password). It receives the full record on create and only the supplied
// fields on update.
type PrepareFunc func(Record) error

// RecordType is the static schema descriptor of an entity.
type RecordType struct {
	Name       string      // Unique key: "products"
	Label      string      // Display name: "Produits"
	Table      string      // Storage table, defaults to Name
	Fields     []Field     // Ordered fields
	NaturalKey []string    // Optional fields that identify a row without its primary key
	Display    DisplayFunc // Optional display string
	Prepare    PrepareFunc // Optional
}

// TableName returns the storage table.
func (rt *RecordType) TableName() string {
	if rt.Table != "" {
		return rt.Table
	}
	return rt.Name
}

// Field returns the named field.
func (rt *RecordType) Field(name string) (Field, bool) {
	for _, f := range rt.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// PrimaryKey returns the primary-key field.
func (rt *RecordType) PrimaryKey() Field {
	for _, f := range rt.Fields {
		if f.PrimaryKey {
			return f
		}
	}
	return Field{}
}

// Columns returns field names in declaration order.
func (rt *RecordType) Columns() []string {
	out := make([]string, len(rt.Fields))
	for i, f := range rt.Fields {
		out[i] = f.Name
	}
	return out
}

// ID returns the primary-key value of rec.
func (rt *RecordType) ID(rec Record) any {
	return rec[rt.PrimaryKey().Name]
}

// ImportMode is the conflict policy of an import batch.
type ImportMode string

const (
	ModeInsert  ImportMode = "insert"
	ModeUpdate  ImportMode = "update"
	ModeUpsert  ImportMode = "upsert"
	ModeReplace ImportMode = "replace"
)

// ParseImportMode validates a mode name. Empty means insert.
func ParseImportMode(s string) (ImportMode, error) {
	switch m := ImportMode(s); m {
	case "":
		return ModeInsert, nil
	case ModeInsert, ModeUpdate, ModeUpsert, ModeReplace:
		return m, nil
	default:
		return "", invalid("mode", s, "invalid import mode: must be one of insert, update, upsert, replace")
	}
}

// RowError is a recoverable failure on one import row.
type RowError struct {
	Row     int    `json:"row"` // 1-based position in the batch
	Message string `json:"message"`
}

// ImportResult aggregates the outcome of an import batch.
type ImportResult struct {
	BatchID   string        `json:"batchId"`
	Type      string        `json:"type"`
	Mode      ImportMode    `json:"mode"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Deleted   int64         `json:"deleted"`
	Warnings  []string      `json:"warnings,omitempty"`
	Errors    []RowError    `json:"errors,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Preflight reports problems with an import file before it runs.
type Preflight struct {
	Rows       int            `json:"rows"`
	NullCounts map[string]int `json:"nullCounts,omitempty"` // Empty cells per non-nullable column
	Errors     []string       `json:"errors,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// OK reports whether the import may proceed.
func (p Preflight) OK() bool { return len(p.Errors) == 0 }

// ListOptions limits a listing.
type ListOptions struct {
	Limit  int    // 0 = no limit
	Offset int    // Rows to skip
	Where  Record // Equality filters on field values
}
