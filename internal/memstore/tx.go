package memstore

import (
	"context"
)

type txKey struct{}

// RunInTx runs fn in a transaction. The outermost call serializes against
// other transactions; a nested call acts as a savepoint. On error or panic
// the writes made since the call began are undone.
//
// Each write inside a transaction logs how to undo itself, so a savepoint
// costs nothing until it is rolled back.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ctx.Value(txKey{}) == nil {
		s.txMu.Lock()
		defer s.txMu.Unlock()
		ctx = context.WithValue(ctx, txKey{}, true)
	}

	s.begin()
	defer func() {
		if r := recover(); r != nil {
			s.rollback()
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		s.rollback()
		return err
	}
	s.commit()
	return nil
}

// undoLog holds the undo steps of one transaction level, oldest first.
type undoLog []func()

func (s *Store) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, nil)
}

// commit hands the steps of the innermost level to its parent, which may
// still roll them back.
func (s *Store) commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.frames)
	top := s.frames[n-1]
	s.frames = s.frames[:n-1]
	if n > 1 {
		s.frames[n-2] = append(s.frames[n-2], top...)
	}
}

func (s *Store) rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.frames)
	top := s.frames[n-1]
	s.frames = s.frames[:n-1]
	for i := len(top) - 1; i >= 0; i-- {
		top[i]()
	}
}

// onUndoLocked records step for the innermost open transaction. Like a
// snapshot, it covers every write made while the transaction runs. Caller
// holds mu.
func (s *Store) onUndoLocked(step func()) {
	if n := len(s.frames); n > 0 {
		s.frames[n-1] = append(s.frames[n-1], step)
	}
}
