package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. statusFor picks the HTTP status from the error's kind
//  4. core.MapError supplies the user-facing message and support code
//  5. Technical error + context is logged with request ID for correlation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/csvvault/internal/core"
	"github.com/JonMunkholm/csvvault/internal/logging"
	"github.com/JonMunkholm/csvvault/internal/web/middleware"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
}

var rejectionStatus = map[core.RejectionReason]int{
	core.NoFileProvided:      http.StatusBadRequest,
	core.InvalidFileType:     http.StatusUnsupportedMediaType,
	core.EmptyFile:           http.StatusUnprocessableEntity,
	core.MalformedContent:    http.StatusUnprocessableEntity,
	core.InconsistentColumns: http.StatusUnprocessableEntity,
	core.DuplicateFile:       http.StatusConflict,
}

// statusFor maps an error from the core or auth layers to an HTTP status.
func statusFor(err error) int {
	if r, ok := core.AsRejection(err); ok {
		if status, known := rejectionStatus[r.Reason]; known {
			return status
		}
		return http.StatusBadRequest
	}

	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes a user-friendly response. JSON clients get
// an ErrorResponse; browsers get plain text with the support code.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	if !middleware.WantsJSON(r) {
		http.Error(w, msg.Message+" (Code: "+msg.Code+")", status)
		return
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	if rej, ok := core.AsRejection(err); ok {
		resp.Reason = string(rej.Reason)
	}
	writeJSON(w, status, resp)
}
