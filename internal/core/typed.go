package core

import "context"

// Codec converts between a Go struct and its Record form.
type Codec[T any] interface {
	ToRecord(v T) map[string]any
	FromRecord(rec Record) (T, error)
}

// Typed is a Mutator view bound to one record type and its Go struct.
type Typed[T any] struct {
	m     *Mutator
	name  string
	codec Codec[T]
}

// NewTyped binds typeName to codec.
func NewTyped[T any](m *Mutator, typeName string, codec Codec[T]) *Typed[T] {
	return &Typed[T]{m: m, name: typeName, codec: codec}
}

// Create stores v and returns it as stored.
func (t *Typed[T]) Create(ctx context.Context, v T) (T, error) {
	rec, err := t.m.Create(ctx, t.name, t.codec.ToRecord(v))
	return t.decode(rec, err)
}

// List loads values matching opts.
func (t *Typed[T]) List(ctx context.Context, opts ListOptions) ([]T, error) {
	recs, err := t.m.List(ctx, t.name, opts)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := t.codec.FromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// decode keeps a committed value when only a hook failed.
func (t *Typed[T]) decode(rec Record, err error) (T, error) {
	var zero T
	if rec == nil {
		return zero, err
	}
	v, derr := t.codec.FromRecord(rec)
	if derr != nil {
		return zero, derr
	}
	return v, err
}
