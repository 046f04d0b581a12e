package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError so the API has one
// content type and one error shape:
//
//	{"success": false, "error": "User not found. Please log in with GitHub first.", "message": "not_found"}
//
// "error" is the human readable text, "message" the category. The frontend
// can branch on the status code and show "error" as is.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/gitpoints/internal/apperror"
	"github.com/sakif/gitpoints/internal/reporting"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body is written; once Encode
// writes, later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, logging is all that is left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusClientClosedRequest is the non-standard status nginx and chi use
// for requests whose client hung up before the answer was ready.
const statusClientClosedRequest = 499

// statusFor maps the apperror taxonomy onto HTTP. Anything unrecognised,
// including upstream failures and timeouts, is a 500.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "client_closed_request"
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrTimeout):
		return http.StatusInternalServerError, "timeout"
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusInternalServerError, "upstream_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps err to a status and writes the error body.
//
// The human readable text is the AppError message when there is one, and
// the underlying error text otherwise: store and transport failures are
// surfaced to the client rather than hidden behind a generic message.
// 5xx errors are also reported. A canceled request is only logged: the
// client is gone and nothing on the server failed.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, category := statusFor(err)

	text := err.Error()
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		text = appErr.Message
	}

	if status == statusClientClosedRequest {
		logger.Info("client closed request",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	if status >= http.StatusInternalServerError {
		reporting.Report(r.Context(), logger, err, map[string]string{
			"method": r.Method,
			"path":   r.URL.Path,
		})
	}

	writeJSON(w, status, ErrorResponse{
		Success: false,
		Error:   text,
		Message: category,
	})
}
