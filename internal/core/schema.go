package core

import (
	"errors"
	"fmt"
)

// Column is the reflected metadata of one field.
type Column struct {
	Name          string   `json:"name"`
	Label         string   `json:"label"`
	Kind          string   `json:"kind"`
	Nullable      bool     `json:"nullable"`
	PrimaryKey    bool     `json:"primaryKey"`
	ForeignKey    bool     `json:"foreignKey"`
	References    string   `json:"references,omitempty"`
	HasDefault    bool     `json:"hasDefault"`
	AutoIncrement bool     `json:"autoIncrement"`
	Scale         int      `json:"scale,omitempty"`
	EnumValues    []string `json:"enumValues,omitempty"`
}

// Reflect returns column metadata for every field of rt.
// Fields with an unknown kind are left out of the result and reported as
// ErrUnsupportedField in the returned error; the other columns are still usable.
func Reflect(rt *RecordType) ([]Column, error) {
	cols := make([]Column, 0, len(rt.Fields))
	var errs []error

	for _, f := range rt.Fields {
		if !f.Kind.Valid() {
			errs = append(errs, fmt.Errorf("%w: %s.%s has kind %d", ErrUnsupportedField, rt.Name, f.Name, int(f.Kind)))
			continue
		}
		cols = append(cols, Column{
			Name:          f.Name,
			Label:         f.DisplayLabel(),
			Kind:          f.Kind.String(),
			Nullable:      f.Nullable,
			PrimaryKey:    f.PrimaryKey,
			ForeignKey:    f.Kind == KindForeignKey,
			References:    f.References,
			HasDefault:    f.Default != DefaultNone,
			AutoIncrement: f.AutoIncrement,
			Scale:         f.Scale,
			EnumValues:    f.EnumValues,
		})
	}

	return cols, errors.Join(errs...)
}

// RequiredColumns returns fields a create must carry: not nullable, not
// auto-incremented and without default.
func RequiredColumns(rt *RecordType) []string {
	var out []string
	for _, f := range rt.Fields {
		if f.Kind.Valid() && f.Required() {
			out = append(out, f.Name)
		}
	}
	return out
}
