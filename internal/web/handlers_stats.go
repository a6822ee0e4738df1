package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/stockdash/internal/core"
)

// handleStockStats serves the stock dashboard figures. ?records= and
// ?departments= take comma-separated ids.
func (s *Server) handleStockStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		respondErrorJSON(w, core.UserMessage{
			Message: "Statistics are not available.",
			Code:    "STAT001",
		}, http.StatusNotImplemented)
		return
	}

	var f core.StockFilter
	var err error
	if f.StockRecordIDs, err = queryIDs(r, "records"); err != nil {
		respondBadRequest(w, r, "records must be a comma-separated list of ids")
		return
	}
	if f.DepartmentIDs, err = queryIDs(r, "departments"); err != nil {
		respondBadRequest(w, r, "departments must be a comma-separated list of ids")
		return
	}

	summary, err := s.deps.Stats.Stock(r.Context(), f)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, summary)
}

func queryIDs(r *http.Request, key string) ([]int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id < 1 {
			return nil, strconv.ErrSyntax
		}
		ids = append(ids, id)
	}
	return ids, nil
}
