package core

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the record types known to the engine.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*RecordType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*RecordType)}
}

// Default is the registry populated by the tables package's init functions.
var Default = NewRegistry()

// Register adds a record type to the default registry.
// Panics if the descriptor is malformed or already registered.
func Register(rt RecordType) {
	if err := Default.Add(rt); err != nil {
		panic(err)
	}
}

// Add validates and adds a record type.
func (r *Registry) Add(rt RecordType) error {
	if err := checkDescriptor(&rt); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[rt.Name]; exists {
		return fmt.Errorf("record type already registered: %s", rt.Name)
	}
	r.types[rt.Name] = &rt
	return nil
}

// Get returns a record type by name.
func (r *Registry) Get(name string) (*RecordType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.types[name]
	return rt, ok
}

// Lookup is Get returning ErrUnknownType.
func (r *Registry) Lookup(name string) (*RecordType, error) {
	rt, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return rt, nil
}

// All returns every record type sorted by name.
func (r *Registry) All() []*RecordType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*RecordType, 0, len(r.types))
	for _, rt := range r.types {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// Clear removes all record types.
// Primarily useful for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = make(map[string]*RecordType)
}

// checkDescriptor rejects descriptors the engine cannot serve.
func checkDescriptor(rt *RecordType) error {
	if rt.Name == "" {
		return fmt.Errorf("record type without name")
	}

	seen := make(map[string]bool, len(rt.Fields))
	pks := 0
	for _, f := range rt.Fields {
		if f.Name == "" {
			return fmt.Errorf("%s: field without name", rt.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("%s: duplicate field %q", rt.Name, f.Name)
		}
		seen[f.Name] = true

		if f.PrimaryKey {
			pks++
			if f.Nullable {
				return fmt.Errorf("%s.%s: primary key cannot be nullable", rt.Name, f.Name)
			}
		}
		if f.Kind == KindEnum && len(f.EnumValues) == 0 {
			return fmt.Errorf("%s.%s: enum without members", rt.Name, f.Name)
		}
		if f.Kind == KindForeignKey && f.References == "" {
			return fmt.Errorf("%s.%s: foreign key without reference", rt.Name, f.Name)
		}
		if f.Kind == KindDecimal && f.Scale < 0 {
			return fmt.Errorf("%s.%s: negative scale", rt.Name, f.Name)
		}
	}
	if pks != 1 {
		return fmt.Errorf("%s: need exactly one primary key, got %d", rt.Name, pks)
	}
	for _, k := range rt.NaturalKey {
		if !seen[k] {
			return fmt.Errorf("%s: natural key references unknown field %q", rt.Name, k)
		}
	}
	return nil
}
