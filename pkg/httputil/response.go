package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	apperrors "github.com/utafrali/EcommerceGo/authgateway/pkg/errors"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/logger"
)

// Response is the success envelope returned by gateway-owned endpoints.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// ErrorResponse is the single rejection shape for every failure kind.
type ErrorResponse struct {
	Success    bool      `json:"success"`
	StatusCode int       `json:"statusCode"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Errors     any       `json:"errors,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"requestId,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
// If encoding fails, the error is logged but headers are already sent so nothing can be done.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes a success envelope around data.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Response{Success: true, Data: data})
}

// ErrorWriter renders errors into ErrorResponse. When exposeInternal is set
// (the "local" environment) the raw error text of 500s is returned to the
// caller; otherwise it is logged with a stack trace and replaced by a generic
// message.
type ErrorWriter struct {
	logger         *slog.Logger
	exposeInternal bool
	now            func() time.Time
}

// NewErrorWriter creates an ErrorWriter.
func NewErrorWriter(fallback *slog.Logger, exposeInternal bool) *ErrorWriter {
	return &ErrorWriter{logger: fallback, exposeInternal: exposeInternal, now: time.Now}
}

// WriteError writes a standardized error response based on the error type.
// It prefers the request-scoped logger from context over the fallback logger.
func (ew *ErrorWriter) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && ew.logger != nil {
		l = ew.logger
	}

	resp := ErrorResponse{
		Success:   false,
		Timestamp: ew.now().UTC(),
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}

	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		resp.StatusCode = appErr.Status
		resp.Code = appErr.Code
		resp.Message = appErr.Message
		resp.Errors = appErr.Details
	default:
		resp.StatusCode = apperrors.HTTPStatus(err)
		resp.Code, resp.Message = codeAndMessage(resp.StatusCode, err)
	}

	dependency := resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusBadGateway
	if resp.StatusCode >= http.StatusInternalServerError && !dependency {
		if ew.exposeInternal {
			resp.Message = err.Error()
		} else {
			l.ErrorContext(r.Context(), "internal error",
				slog.String("error", err.Error()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("stack", string(debug.Stack())),
			)
		}
	} else if dependency {
		l.WarnContext(r.Context(), "dependency unavailable",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, resp.StatusCode, resp)
}

func codeAndMessage(status int, err error) (string, string) {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND", "resource not found"
	case http.StatusBadRequest:
		return "INVALID_INPUT", err.Error()
	case http.StatusUnauthorized:
		return "UNAUTHORIZED", "authentication failed"
	case http.StatusForbidden:
		return "FORBIDDEN", "insufficient permissions"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED", "too many requests"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE", "service temporarily unavailable"
	default:
		return "INTERNAL_ERROR", "an internal error occurred"
	}
}
