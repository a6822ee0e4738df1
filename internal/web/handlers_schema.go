package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/stockdash/internal/core"
)

type typeSummary struct {
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Table      string   `json:"table"`
	NaturalKey []string `json:"naturalKey,omitempty"`
}

type schemaResponse struct {
	Type     string        `json:"type"`
	Label    string        `json:"label"`
	Columns  []core.Column `json:"columns"`
	Required []string      `json:"required"`
	Warnings []string      `json:"warnings,omitempty"`
}

func (s *Server) handleListTypes(w http.ResponseWriter, r *http.Request) {
	all := s.deps.Mutator.Registry().All()
	out := make([]typeSummary, 0, len(all))
	for _, rt := range all {
		out = append(out, typeSummary{
			Name:       rt.Name,
			Label:      rt.Label,
			Table:      rt.TableName(),
			NaturalKey: rt.NaturalKey,
		})
	}
	writeJSON(w, r, out)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	rt, err := s.deps.Mutator.Registry().Lookup(chi.URLParam(r, "type"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	cols, err := core.Reflect(rt)
	resp := schemaResponse{
		Type:     rt.Name,
		Label:    rt.Label,
		Columns:  cols,
		Required: core.RequiredColumns(rt),
	}
	if err != nil {
		// Unsupported fields are skipped, the rest of the schema is usable.
		if !errors.Is(err, core.ErrUnsupportedField) {
			s.respondError(w, r, err)
			return
		}
		resp.Warnings = append(resp.Warnings, err.Error())
	}
	writeJSON(w, r, resp)
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	typeName := chi.URLParam(r, "type")

	var current core.Record
	if id := r.URL.Query().Get("id"); id != "" {
		rec, err := s.deps.Mutator.Get(r.Context(), typeName, id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		current = rec
	}

	form, err := s.deps.Synthesizer.Form(r.Context(), typeName, current)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, form)
}
