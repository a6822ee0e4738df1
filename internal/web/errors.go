package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. Error is mapped via core.MapError to get a user-friendly message
//  4. Technical error + context is logged with request ID for correlation
//  5. User message is written as JSON with a status derived from the error

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/stockdash/internal/core"
	"github.com/JonMunkholm/stockdash/internal/credentials"
	"github.com/JonMunkholm/stockdash/internal/logging"
	"github.com/JonMunkholm/stockdash/internal/stockimport"
	"github.com/JonMunkholm/stockdash/internal/tabular"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Action  string                 `json:"action,omitempty"`
	Code    string                 `json:"code"`
	Fields  []core.ValidationError `json:"fields,omitempty"`
}

// respondError logs err and writes its user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	respondErrorStatus(w, r, err, statusFor(err))
}

func respondErrorStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	ue := core.NewUserError(err)
	var br errBadRequest
	if errors.As(err, &br) && !core.IsUserFacing(err) {
		ue.User = core.UserMessage{Message: br.msg, Action: "Check the request and try again", Code: "REQ001"}
	}
	msg := ue.User

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", ue.Technical.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Fields = verrs
	}
	writeError(w, resp, status)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	writeError(w, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}, status)
}

func writeError(w http.ResponseWriter, resp ErrorResponse, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// statusFor picks the HTTP status of an error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrUnknownType):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrUnsupportedField),
		errors.Is(err, tabular.ErrEmptyFile),
		errors.Is(err, tabular.ErrUnsupportedFormat),
		errors.Is(err, tabular.ErrUnknownEncoding),
		errors.Is(err, stockimport.ErrDepartmentRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, credentials.ErrInvalidCredentials), errors.Is(err, credentials.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errBadRequest marks malformed requests.
type errBadRequest struct{ msg string }

func (e errBadRequest) Error() string { return e.msg }

func badRequest(msg string) error { return errBadRequest{msg: msg} }

// respondBadRequest writes a 400 for malformed input.
func respondBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	respondErrorStatus(w, r, badRequest(msg), http.StatusBadRequest)
}
