package web

import (
	"net/http"

	"github.com/JonMunkholm/stockdash/internal/core"
)

const defaultAuditLimit = 100

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audit == nil {
		writeJSON(w, r, []core.AuditEntry{})
		return
	}

	limit, err := queryInt(r, "limit", defaultAuditLimit)
	if err != nil || limit < 1 || limit > maxPageSize {
		respondBadRequest(w, r, "limit must be between 1 and 1000")
		return
	}

	entries, err := s.deps.Audit.ListAudit(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, r, entries)
}
