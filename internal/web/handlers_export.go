package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/stockdash/internal/core"
	"github.com/JonMunkholm/stockdash/internal/logging"
	"github.com/JonMunkholm/stockdash/internal/tabular"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	typeName := chi.URLParam(r, "type")
	rt, err := s.deps.Mutator.Registry().Lookup(typeName)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	format, err := exportFormat(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		respondBadRequest(w, r, "limit must be a non-negative integer")
		return
	}
	// EXPORT_LIMIT caps every export when set.
	if maxRows := s.cfg.Import.ExportLimit; maxRows > 0 && (limit == 0 || limit > maxRows) {
		limit = maxRows
	}

	exp, err := s.deps.Mutator.Export(r.Context(), typeName, core.ExportOptions{Limit: limit})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if exp.Truncated {
		logging.FromContext(r.Context()).Warn("export truncated", "type", typeName, "limit", limit)
		w.Header().Set("X-Export-Truncated", "true")
		w.Header().Set("X-Export-Limit", strconv.Itoa(limit))
	}
	s.writeTable(w, r, core.ExportFileName(rt, format, s.now()), format, rt, exp.Table)
}

// handleTemplate downloads an empty file with the import header of a type.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	rt, err := s.deps.Mutator.Registry().Lookup(chi.URLParam(r, "type"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	format, err := exportFormat(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	name := fmt.Sprintf("%s_template%s", rt.TableName(), format.Extension())
	s.writeTable(w, r, name, format, rt, core.ExportTable(rt, nil))
}

// writeTable renders t into a buffer first so that a write failure can still
// be reported as an error response.
func (s *Server) writeTable(w http.ResponseWriter, r *http.Request, name string, format tabular.Format, rt *core.RecordType, t *tabular.Table) {
	var buf bytes.Buffer
	if err := tabular.Write(&buf, format, t, rt.Label); err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func exportFormat(r *http.Request) (tabular.Format, error) {
	return tabular.ParseFormat(r.URL.Query().Get("format"))
}
