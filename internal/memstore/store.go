// Package memstore keeps records in process memory. It implements the core
// Store, Transactor and AuditSink interfaces for demos and tests.
//
// Transactions are serialized: one writer at a time, rolled back by replaying
// an undo log. Reads outside a transaction may observe uncommitted writes.
package memstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/stockdash/internal/core"
)

type table struct {
	rows []core.Record
	seq  int64
}

// Store is a thread-safe in-memory record store.
type Store struct {
	registry *core.Registry

	txMu sync.Mutex // held by the outermost transaction

	mu     sync.RWMutex
	tables map[string]*table
	audit  []core.AuditEntry
	frames []undoLog // open transaction levels, innermost last

	now func() time.Time
}

// New creates an empty store. reg resolves foreign key references on delete.
func New(reg *core.Registry) *Store {
	return &Store{
		registry: reg,
		tables:   make(map[string]*table),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// tableLocked returns the table of rt, creating it. Caller holds mu.
func (s *Store) tableLocked(rt *core.RecordType) *table {
	t, ok := s.tables[rt.TableName()]
	if !ok {
		t = &table{}
		s.tables[rt.TableName()] = t
	}
	return t
}

func (s *Store) Insert(ctx context.Context, rt *core.RecordType, rec core.Record) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tableLocked(rt)
	n, seq := len(t.rows), t.seq
	row := make(core.Record, len(rt.Fields))
	for _, f := range rt.Fields {
		row[f.Name] = rec[f.Name]
	}

	pk := rt.PrimaryKey()
	if row[pk.Name] == nil {
		if !pk.AutoIncrement {
			return nil, core.StorageError("insert "+rt.Name, fmt.Errorf("null value in column %q violates not-null constraint", pk.Name))
		}
		t.seq++
		row[pk.Name] = t.seq
	} else if id, ok := row[pk.Name].(int64); ok && id > t.seq {
		t.seq = id
	}
	for _, f := range rt.Fields {
		if row[f.Name] == nil && f.Default == core.DefaultGenerated && f.Kind == core.KindDateTime {
			row[f.Name] = s.now()
		}
	}

	if err := checkConstraints(rt, t, row, -1); err != nil {
		t.seq = seq
		return nil, err
	}
	t.rows = append(t.rows, row)
	s.onUndoLocked(func() {
		t.rows = t.rows[:n]
		t.seq = seq
	})
	return row.Clone(), nil
}

func (s *Store) Update(ctx context.Context, rt *core.RecordType, id any, changes core.Record) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tableLocked(rt)
	i := indexOf(rt, t, id)
	if i < 0 {
		return nil, fmt.Errorf("%s %v: %w", rt.Name, id, core.ErrNotFound)
	}
	row := t.rows[i].Clone()
	for k, v := range changes {
		if _, ok := rt.Field(k); ok {
			row[k] = v
		}
	}
	if err := checkConstraints(rt, t, row, i); err != nil {
		return nil, err
	}
	old := t.rows[i]
	t.rows[i] = row
	s.onUndoLocked(func() { t.rows[i] = old })
	return row.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, rt *core.RecordType, id any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tableLocked(rt)
	i := indexOf(rt, t, id)
	if i < 0 {
		return fmt.Errorf("%s %v: %w", rt.Name, id, core.ErrNotFound)
	}
	if err := s.checkNotReferencedLocked(rt, []any{id}); err != nil {
		return err
	}
	old := t.rows[i]
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	s.onUndoLocked(func() { t.rows = slices.Insert(t.rows, i, old) })
	return nil
}

func (s *Store) DeleteAll(ctx context.Context, rt *core.RecordType) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tableLocked(rt)
	ids := make([]any, len(t.rows))
	for i, r := range t.rows {
		ids[i] = rt.ID(r)
	}
	if err := s.checkNotReferencedLocked(rt, ids); err != nil {
		return 0, err
	}
	old := t.rows
	t.rows = nil
	s.onUndoLocked(func() { t.rows = old })
	return int64(len(old)), nil
}

func (s *Store) Get(ctx context.Context, rt *core.RecordType, id any) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[rt.TableName()]
	if !ok {
		return nil, fmt.Errorf("%s %v: %w", rt.Name, id, core.ErrNotFound)
	}
	i := indexOf(rt, t, id)
	if i < 0 {
		return nil, fmt.Errorf("%s %v: %w", rt.Name, id, core.ErrNotFound)
	}
	return t.rows[i].Clone(), nil
}

func (s *Store) FindOne(ctx context.Context, rt *core.RecordType, match core.Record) (core.Record, error) {
	recs, err := s.List(ctx, rt, core.ListOptions{Where: match, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s: %w", rt.Name, core.ErrNotFound)
	}
	return recs[0], nil
}

func (s *Store) List(ctx context.Context, rt *core.RecordType, opts core.ListOptions) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[rt.TableName()]
	if !ok {
		return []core.Record{}, nil
	}

	matched := make([]core.Record, 0, len(t.rows))
	for _, r := range t.rows {
		if matches(r, opts.Where) {
			matched = append(matched, r)
		}
	}
	pk := rt.PrimaryKey().Name
	sort.SliceStable(matched, func(i, j int) bool {
		return less(matched[i][pk], matched[j][pk])
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return []core.Record{}, nil
		}
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]core.Record, len(matched))
	for i, r := range matched {
		out[i] = r.Clone()
	}
	return out, nil
}

// checkConstraints enforces not-null and uniqueness on row, which sits (or
// will sit) at index self of t.
func checkConstraints(rt *core.RecordType, t *table, row core.Record, self int) error {
	for _, f := range rt.Fields {
		v := row[f.Name]
		if v == nil {
			if !f.Nullable && !f.HasDefault() {
				return core.ValidationErrors{{Field: f.Name, Message: "required field is empty (not-null constraint)"}}
			}
			continue
		}
		if !f.PrimaryKey && !f.Unique {
			continue
		}
		for i, other := range t.rows {
			if i != self && equal(other[f.Name], v) {
				return fmt.Errorf("%w: %s %v already exists", core.ErrDuplicateKey, f.Name, v)
			}
		}
	}
	return nil
}

// checkNotReferencedLocked fails when a row of another type still points at
// one of ids, like a RESTRICT foreign key.
func (s *Store) checkNotReferencedLocked(rt *core.RecordType, ids []any) error {
	if s.registry == nil || len(ids) == 0 {
		return nil
	}
	for _, other := range s.registry.All() {
		t, ok := s.tables[other.TableName()]
		if !ok || len(t.rows) == 0 {
			continue
		}
		for _, f := range other.Fields {
			if f.Kind != core.KindForeignKey || f.References != rt.Name {
				continue
			}
			for _, r := range t.rows {
				for _, id := range ids {
					if equal(r[f.Name], id) {
						return core.ValidationErrors{{
							Field:   f.Name,
							Value:   fmt.Sprint(id),
							Message: fmt.Sprintf("violates foreign key: %s %v is still referenced by %s", rt.Name, id, other.Name),
						}}
					}
				}
			}
		}
	}
	return nil
}

func indexOf(rt *core.RecordType, t *table, id any) int {
	pk := rt.PrimaryKey().Name
	for i, r := range t.rows {
		if equal(r[pk], id) {
			return i
		}
	}
	return -1
}

func matches(r core.Record, where core.Record) bool {
	for k, v := range where {
		if !equal(r[k], v) {
			return false
		}
	}
	return true
}

// equal compares stored values by their semantics rather than identity.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case decimal.Decimal:
		y, ok := b.(decimal.Decimal)
		return ok && x.Equal(y)
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case json.RawMessage:
		y, ok := b.(json.RawMessage)
		return ok && bytes.Equal(x, y)
	case int64:
		y, ok := b.(int64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	default:
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
}

func less(a, b any) bool {
	x, ok1 := a.(int64)
	y, ok2 := b.(int64)
	if ok1 && ok2 {
		return x < y
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
