package memstore

import (
	"context"

	"github.com/JonMunkholm/stockdash/internal/core"
)

// LogAudit appends e. Audit entries are not rolled back with transactions.
func (s *Store) LogAudit(_ context.Context, e core.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = int64(len(s.audit) + 1)
	s.audit = append(s.audit, e)
	return nil
}

// ListAudit returns up to limit entries, newest first.
func (s *Store) ListAudit(_ context.Context, limit int) ([]core.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.audit) {
		limit = len(s.audit)
	}
	out := make([]core.AuditEntry, 0, limit)
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.audit[i])
	}
	return out, nil
}
