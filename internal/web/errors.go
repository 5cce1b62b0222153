package web

// errors.go maps submission failures to HTTP responses.
//
// Errors are logged server-side with the request ID and returned to clients
// as {error, message, action, code}. Submission results keep their own body
// and only borrow the status mapping.

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/testsets/internal/core"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error and writes a user-friendly JSON body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	writeJSON(w, statusCode, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusFor maps a submission result to an HTTP status.
func statusFor(res core.Result) int {
	if res.Succeeded() {
		return http.StatusOK
	}

	var (
		cfgErr    *core.ConfigurationError
		valErr    *core.ValidationError
		refErr    *core.UnresolvedReferenceError
		remoteErr *core.RemoteWriteError
		cancelErr *core.CancelledError
	)
	switch err := res.Err; {
	case errors.Is(err, core.ErrTooManySubmissions):
		return http.StatusServiceUnavailable
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &valErr), errors.As(err, &refErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &cancelErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	case errors.As(err, &remoteErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
