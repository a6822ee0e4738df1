package web

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/stockdash/internal/core"
	"github.com/JonMunkholm/stockdash/internal/logging"
)

const maxJSONBody = 1 << 20

// Default and maximum page sizes for listings.
const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

type listResponse struct {
	Type    string        `json:"type"`
	Records []core.Record `json:"records"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

type deleteRequest struct {
	IDs []json.Number `json:"ids"`
}

type deleteResponse struct {
	Deleted int           `json:"deleted"`
	Records []core.Record `json:"records"`
}

type mutationResponse struct {
	Record  core.Record `json:"record"`
	Warning string      `json:"warning,omitempty"`
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		respondBadRequest(w, r, "limit must be between 1 and 1000")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		respondBadRequest(w, r, "offset must be a non-negative integer")
		return
	}

	typeName := chi.URLParam(r, "type")
	recs, err := s.deps.Mutator.List(r.Context(), typeName, core.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if recs == nil {
		recs = []core.Record{}
	}
	s.redact(typeName, recs...)
	writeJSON(w, r, listResponse{Type: typeName, Records: recs, Limit: limit, Offset: offset})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	typeName := chi.URLParam(r, "type")
	rec, err := s.deps.Mutator.Get(r.Context(), typeName, chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.redact(typeName, rec)
	writeJSON(w, r, rec)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	typeName := chi.URLParam(r, "type")
	values, err := s.decodeValues(w, r, typeName, nil)
	if err != nil {
		s.respondInput(w, r, err)
		return
	}

	rec, err := s.deps.Mutator.Create(r.Context(), typeName, values)
	s.respondMutation(w, r, http.StatusCreated, typeName, rec, err)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	typeName := chi.URLParam(r, "type")
	id := chi.URLParam(r, "id")

	var current core.Record
	if isForm(r) {
		rec, err := s.deps.Mutator.Get(r.Context(), typeName, id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		current = rec
	}

	values, err := s.decodeValues(w, r, typeName, current)
	if err != nil {
		s.respondInput(w, r, err)
		return
	}

	rec, err := s.deps.Mutator.Update(r.Context(), typeName, id, values)
	s.respondMutation(w, r, http.StatusOK, typeName, rec, err)
}

func (s *Server) handleDeleteRecords(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		respondBadRequest(w, r, "invalid JSON body")
		return
	}
	if len(req.IDs) == 0 {
		respondBadRequest(w, r, "no ids provided")
		return
	}

	ids := make([]any, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = id.String()
	}

	typeName := chi.URLParam(r, "type")
	deleted, err := s.deps.Mutator.Delete(r.Context(), typeName, ids...)
	var hookErr *core.HookError
	if err != nil && !errors.As(err, &hookErr) {
		s.respondError(w, r, err)
		return
	}
	if hookErr != nil {
		logging.FromContext(r.Context()).Error("delete hook failed", "error", hookErr)
	}
	s.redact(typeName, deleted...)
	writeJSON(w, r, deleteResponse{Deleted: len(deleted), Records: deleted})
}

// decodeValues reads a JSON object, or captures a submitted form through the
// synthesized form of the type. current is the record being edited.
func (s *Server) decodeValues(w http.ResponseWriter, r *http.Request, typeName string, current core.Record) (map[string]any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			return nil, badRequest("invalid form body")
		}
		form, err := s.deps.Synthesizer.Form(r.Context(), typeName, current)
		if err != nil {
			return nil, err
		}
		submitted := make(map[string]any, len(r.PostForm))
		for k := range r.PostForm {
			submitted[k] = r.PostForm.Get(k)
		}
		rec, err := s.deps.Synthesizer.Capture(form, submitted)
		if err != nil {
			return nil, err
		}
		return rec, nil
	}

	var values map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return nil, badRequest("invalid JSON body")
	}
	if values == nil {
		return nil, badRequest("expected a JSON object")
	}
	return values, nil
}

func (s *Server) respondInput(w http.ResponseWriter, r *http.Request, err error) {
	var br errBadRequest
	if errors.As(err, &br) {
		respondBadRequest(w, r, br.msg)
		return
	}
	s.respondError(w, r, err)
}

// respondMutation writes a committed record. A failed post-commit hook is
// reported as a warning next to the record.
func (s *Server) respondMutation(w http.ResponseWriter, r *http.Request, status int, typeName string, rec core.Record, err error) {
	var hookErr *core.HookError
	if err != nil && !errors.As(err, &hookErr) {
		s.respondError(w, r, err)
		return
	}
	s.redact(typeName, rec)
	resp := mutationResponse{Record: rec}
	if hookErr != nil {
		logging.FromContext(r.Context()).Error("post-commit hook failed", "error", hookErr)
		resp.Warning = core.FormatUserError(hookErr)
	}
	writeJSONStatus(w, r, status, resp)
}

// redact drops sensitive fields from records about to be written out.
func (s *Server) redact(typeName string, recs ...core.Record) {
	rt, ok := s.deps.Mutator.Registry().Get(typeName)
	if !ok {
		return
	}
	for _, f := range rt.Fields {
		if !f.Sensitive {
			continue
		}
		for _, rec := range recs {
			delete(rec, f.Name)
		}
	}
}

func isForm(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/x-www-form-urlencoded"
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
