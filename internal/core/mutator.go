package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JonMunkholm/stockdash/internal/logging"
)

// Mutator performs validated, transactional writes on registered record
// types and runs post-commit hooks.
type Mutator struct {
	registry *Registry
	store    Store
	tx       Transactor
	audit    AuditSink

	mu    sync.RWMutex
	hooks map[string]Hooks
}

// MutatorOption configures a Mutator.
type MutatorOption func(*Mutator)

// WithAuditSink records every committed mutation in sink.
func WithAuditSink(sink AuditSink) MutatorOption {
	return func(m *Mutator) { m.audit = sink }
}

// NewMutator creates a Mutator over store. Every write runs inside tx.
func NewMutator(reg *Registry, store Store, tx Transactor, opts ...MutatorOption) *Mutator {
	m := &Mutator{
		registry: reg,
		store:    store,
		tx:       tx,
		hooks:    make(map[string]Hooks),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the registry the mutator resolves types from.
func (m *Mutator) Registry() *Registry { return m.registry }

// RegisterHooks replaces the hooks of typeName.
func (m *Mutator) RegisterHooks(typeName string, h Hooks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[typeName] = h
}

func (m *Mutator) hooksFor(typeName string) Hooks {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hooks[typeName]
}

// Get loads one record by primary key.
func (m *Mutator) Get(ctx context.Context, typeName string, id any) (Record, error) {
	rt, err := m.registry.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	key, err := coerceID(rt, id)
	if err != nil {
		return nil, err
	}
	return m.store.Get(ctx, rt, key)
}

// List returns records ordered by primary key. Where values are coerced to
// their field types first.
func (m *Mutator) List(ctx context.Context, typeName string, opts ListOptions) ([]Record, error) {
	rt, err := m.registry.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	if len(opts.Where) > 0 {
		where, unknown, err := CoerceRecord(rt, opts.Where)
		if err != nil {
			return nil, err
		}
		if len(unknown) > 0 {
			return nil, invalid(unknown[0], "", "unknown field")
		}
		opts.Where = where
	}
	return m.store.List(ctx, rt, opts)
}

// Create validates raw and inserts it in its own transaction. After commit
// the OnCreate hook runs; if it fails the stored record is returned together
// with a *HookError.
func (m *Mutator) Create(ctx context.Context, typeName string, raw map[string]any) (Record, error) {
	rt, err := m.registry.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	rec, _, err := prepareCreate(rt, raw)
	if err != nil {
		return nil, err
	}

	var stored Record
	err = m.tx.RunInTx(ctx, func(ctx context.Context) error {
		stored, err = m.insert(ctx, rt, rec)
		return err
	})
	if err != nil {
		return nil, err
	}

	return stored, afterCommit(ctx, func(ctx context.Context) error {
		m.logAudit(ctx, rt, ActionCreate, func(e *AuditEntry) {
			e.RecordID = fmt.Sprint(rt.ID(stored))
			e.Detail = DisplayContext(ctx, m.registry, m.store, rt, stored)
			e.RowsAffected = 1
		})
		return m.hooksFor(rt.Name).created(ctx, rt.Name, stored)
	})
}

// Update applies the supplied fields to the record with primary key id.
// The primary key itself cannot change.
func (m *Mutator) Update(ctx context.Context, typeName string, id any, raw map[string]any) (Record, error) {
	rt, err := m.registry.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	key, err := coerceID(rt, id)
	if err != nil {
		return nil, err
	}
	changes, _, err := prepareUpdate(rt, raw)
	if err != nil {
		return nil, err
	}

	var stored Record
	err = m.tx.RunInTx(ctx, func(ctx context.Context) error {
		stored, err = m.update(ctx, rt, key, changes)
		return err
	})
	if err != nil {
		return nil, err
	}

	return stored, afterCommit(ctx, func(ctx context.Context) error {
		m.logAudit(ctx, rt, ActionUpdate, func(e *AuditEntry) {
			e.RecordID = fmt.Sprint(key)
			e.Detail = DisplayContext(ctx, m.registry, m.store, rt, stored)
			e.RowsAffected = 1
		})
		return m.hooksFor(rt.Name).updated(ctx, rt.Name, stored)
	})
}

// Delete removes every listed record in one transaction and returns them.
// Repeated ids are removed once. If any id does not exist nothing is
// deleted and the error matches ErrNotFound. OnDelete receives both the ids and the removed records.
func (m *Mutator) Delete(ctx context.Context, typeName string, ids ...any) ([]Record, error) {
	rt, err := m.registry.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]any, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		key, err := coerceID(rt, id)
		if err != nil {
			return nil, err
		}
		if k := fmt.Sprint(key); !seen[k] {
			seen[k] = true
			keys = append(keys, key)
		}
	}

	ev := DeleteEvent{IDs: keys, Records: make([]Record, 0, len(keys))}
	err = m.tx.RunInTx(ctx, func(ctx context.Context) error {
		for _, key := range keys {
			rec, err := m.store.Get(ctx, rt, key)
			if err != nil {
				return err
			}
			ev.Records = append(ev.Records, rec)
		}
		for _, key := range keys {
			if err := m.store.Delete(ctx, rt, key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ev.Records, afterCommit(ctx, func(ctx context.Context) error {
		m.logAudit(ctx, rt, ActionDelete, func(e *AuditEntry) {
			if len(keys) == 1 {
				e.RecordID = fmt.Sprint(keys[0])
				e.Detail = DisplayContext(ctx, m.registry, m.store, rt, ev.Records[0])
			}
			e.RowsAffected = len(keys)
		})
		return m.hooksFor(rt.Name).deleted(ctx, rt.Name, ev)
	})
}

// insert checks references and unique fields, then stores rec. It must run
// inside a transaction.
func (m *Mutator) insert(ctx context.Context, rt *RecordType, rec Record) (Record, error) {
	pk := rt.PrimaryKey()
	if id, ok := rec[pk.Name]; ok && id != nil {
		_, err := m.store.Get(ctx, rt, id)
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: %s %v already exists", ErrDuplicateKey, pk.Name, id)
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}
	if err := m.checkReferences(ctx, rt, rec); err != nil {
		return nil, err
	}
	if err := m.checkUnique(ctx, rt, rec, nil); err != nil {
		return nil, err
	}
	return m.store.Insert(ctx, rt, rec)
}

// update merges changes into the stored record. It must run inside a
// transaction.
func (m *Mutator) update(ctx context.Context, rt *RecordType, id any, changes Record) (Record, error) {
	if _, err := m.store.Get(ctx, rt, id); err != nil {
		return nil, err
	}
	pk := rt.PrimaryKey()
	if v, ok := changes[pk.Name]; ok {
		if v != nil && fmt.Sprint(v) != fmt.Sprint(id) {
			return nil, invalid(pk.Name, fmt.Sprint(v), "primary key cannot be changed")
		}
		changes = changes.Clone()
		delete(changes, pk.Name)
	}
	if len(changes) == 0 {
		return m.store.Get(ctx, rt, id)
	}
	if err := m.checkReferences(ctx, rt, changes); err != nil {
		return nil, err
	}
	if err := m.checkUnique(ctx, rt, changes, id); err != nil {
		return nil, err
	}
	return m.store.Update(ctx, rt, id, changes)
}

// checkReferences verifies that every foreign key in rec points at an
// existing record.
func (m *Mutator) checkReferences(ctx context.Context, rt *RecordType, rec Record) error {
	var errs ValidationErrors
	for _, f := range rt.Fields {
		if f.Kind != KindForeignKey {
			continue
		}
		v, ok := rec[f.Name]
		if !ok || v == nil {
			continue
		}
		target, err := m.registry.Lookup(f.References)
		if err != nil {
			return err
		}
		if _, err := m.store.Get(ctx, target, v); err != nil {
			if !errors.Is(err, ErrNotFound) {
				return err
			}
			errs = append(errs, ValidationError{
				Field:   f.Name,
				Value:   fmt.Sprint(v),
				Message: fmt.Sprintf("foreign key: no %s with id %v", target.Name, v),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// checkUnique rejects values of unique fields already held by another record.
func (m *Mutator) checkUnique(ctx context.Context, rt *RecordType, rec Record, self any) error {
	for _, f := range rt.Fields {
		if !f.Unique || f.PrimaryKey {
			continue
		}
		v, ok := rec[f.Name]
		if !ok || v == nil {
			continue
		}
		other, err := m.store.FindOne(ctx, rt, Record{f.Name: v})
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if self == nil || fmt.Sprint(rt.ID(other)) != fmt.Sprint(self) {
			return fmt.Errorf("%w: %s %v already exists", ErrDuplicateKey, f.Name, v)
		}
	}
	return nil
}

func (m *Mutator) logAudit(ctx context.Context, rt *RecordType, action AuditAction, fill func(*AuditEntry)) {
	if m.audit == nil {
		return
	}
	e := newAuditEntry(ctx, action, rt.Name)
	if fill != nil {
		fill(&e)
	}
	if err := m.audit.LogAudit(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("audit log write failed",
			"action", action,
			"type", rt.Name,
			"error", err,
		)
	}
}

// prepareCreate turns raw input into a validated candidate for insertion.
func prepareCreate(rt *RecordType, raw map[string]any) (Record, []string, error) {
	rec, unknown, err := CoerceRecord(rt, raw)
	if err != nil {
		return nil, unknown, err
	}
	applyDefaults(rt, rec)
	stripGenerated(rt, rec)
	if rt.Prepare != nil {
		if err := rt.Prepare(rec); err != nil {
			return nil, unknown, err
		}
	}
	if err := ValidateRecord(rt, rec, true); err != nil {
		return nil, unknown, err
	}
	return rec, unknown, nil
}

// prepareUpdate turns raw input into validated changes.
func prepareUpdate(rt *RecordType, raw map[string]any) (Record, []string, error) {
	rec, unknown, err := CoerceRecord(rt, raw)
	if err != nil {
		return nil, unknown, err
	}
	if rt.Prepare != nil {
		if err := rt.Prepare(rec); err != nil {
			return nil, unknown, err
		}
	}
	if err := ValidateRecord(rt, rec, false); err != nil {
		return nil, unknown, err
	}
	return rec, unknown, nil
}

// coerceID converts an id from a URL or form to the primary key's type.
func coerceID(rt *RecordType, id any) (any, error) {
	pk := rt.PrimaryKey()
	v, err := Coerce(pk, id)
	if err != nil {
		return nil, invalid(pk.Name, fmt.Sprint(id), "%s", err.Error())
	}
	if v == nil {
		return nil, invalid(pk.Name, "", "required field is empty")
	}
	return v, nil
}
