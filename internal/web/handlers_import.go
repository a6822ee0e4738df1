package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/stockdash/internal/core"
	"github.com/JonMunkholm/stockdash/internal/logging"
	"github.com/JonMunkholm/stockdash/internal/stockimport"
	"github.com/JonMunkholm/stockdash/internal/tabular"
)

// uploadedTable is a parsed upload.
type uploadedTable struct {
	name  string
	table *tabular.Table
}

// readUpload parses the multipart "file" field into a table. The format comes
// from the file name; encoding and sheet may be given as query or form values.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*uploadedTable, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, badRequest(fmt.Sprintf("file exceeds the %d byte limit", s.cfg.Import.MaxFileSize))
		}
		return nil, badRequest("invalid multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, badRequest("no file provided")
	}
	defer file.Close()

	format, err := tabular.FormatFromName(header.Filename)
	if err != nil {
		return nil, err
	}

	enc := r.FormValue("encoding")
	if enc == "" {
		enc = s.cfg.Import.DefaultEncoding
	}
	t, err := tabular.Read(file, format, tabular.ReadOptions{Encoding: enc, Sheet: r.FormValue("sheet")})
	if err != nil {
		return nil, err
	}
	return &uploadedTable{name: header.Filename, table: t}, nil
}

// importOptions names the file as the batch source and carries its number
// format.
func (u *uploadedTable) importOptions() []core.ImportOption {
	return append(core.TableOptions(u.table), core.WithSource(u.name))
}

// withImportSlot runs fn while holding an import slot for target, under the
// import timeout.
func (s *Server) withImportSlot(ctx context.Context, target, source string, fn func(ctx context.Context) error) error {
	release, err := s.deps.Limiter.Acquire(ctx, target, source)
	if err != nil {
		return err
	}
	defer release()

	if s.cfg.Import.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Import.Timeout)
		defer cancel()
	}
	return fn(ctx)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	typeName := chi.URLParam(r, "type")
	if _, err := s.deps.Mutator.Registry().Lookup(typeName); err != nil {
		s.respondError(w, r, err)
		return
	}
	mode, err := core.ParseImportMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondInput(w, r, err)
		return
	}

	var result *core.ImportResult
	err = s.withImportSlot(r.Context(), typeName, up.name, func(ctx context.Context) error {
		result, err = s.deps.Mutator.ImportBatch(ctx, typeName, core.RowsFromTable(up.table), mode,
			up.importOptions()...)
		return err
	})
	s.respondImport(w, r, result, err)
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	typeName := chi.URLParam(r, "type")
	mode, err := core.ParseImportMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondInput(w, r, err)
		return
	}

	sample := up.table.Limit(s.cfg.Import.PreflightRows)
	pf, err := s.deps.Mutator.Preflight(typeName, sample.Header, core.RowsFromTable(sample), mode)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, pf)
}

func (s *Server) handleStockSheet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dept, err := core.ToInt64(q.Get("department"))
	if err != nil {
		respondBadRequest(w, r, "department must be an integer id")
		return
	}
	start, err := core.ToDate(q.Get("start"))
	if err != nil {
		respondBadRequest(w, r, "start must be a date")
		return
	}
	end, err := core.ToDate(q.Get("end"))
	if err != nil {
		respondBadRequest(w, r, "end must be a date")
		return
	}

	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondInput(w, r, err)
		return
	}

	period := stockimport.Period{DepartmentID: dept, Start: start, End: end}
	var result *core.ImportResult
	err = s.withImportSlot(r.Context(), "stock sheet", up.name, func(ctx context.Context) error {
		result, err = s.deps.Sheets.ImportStockSheet(ctx, up.table, period, up.importOptions()...)
		return err
	})
	s.respondImport(w, r, result, err)
}

func (s *Server) handlePriceSheet(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondInput(w, r, err)
		return
	}

	var result *core.ImportResult
	err = s.withImportSlot(r.Context(), "price sheet", up.name, func(ctx context.Context) error {
		result, err = s.deps.Sheets.ImportPriceSheet(ctx, up.table, up.importOptions()...)
		return err
	})
	s.respondImport(w, r, result, err)
}

// respondImport writes an import result. Row errors do not fail the request;
// a failed post-commit hook is logged and the result still returned.
func (s *Server) respondImport(w http.ResponseWriter, r *http.Request, result *core.ImportResult, err error) {
	var hookErr *core.HookError
	if err != nil && !(errors.As(err, &hookErr) && result != nil) {
		s.respondError(w, r, err)
		return
	}
	if hookErr != nil {
		logging.FromContext(r.Context()).Error("import hook failed", "error", hookErr)
		result.Warnings = append(result.Warnings, core.FormatUserError(hookErr))
	}

	logging.FromContext(r.Context()).Info("import finished",
		"type", result.Type,
		"mode", result.Mode,
		"batch_id", result.BatchID,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	writeJSON(w, r, result)
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.deps.Limiter.Status())
}
