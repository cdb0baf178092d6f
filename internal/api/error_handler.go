package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/devjobs/devjobs-api/internal/core/domain"
)

// ErrorEnvelope is the canonical error body for every failure under the API
// prefix.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      int                     `json:"code"`
	Message   string                  `json:"message"`
	Timestamp string                  `json:"timestamp"`
	Path      string                  `json:"path"`
	Method    string                  `json:"method"`
	Details   []domain.FieldViolation `json:"details,omitempty"`
}

// statusMessages holds the fixed client-facing message per status code.
// Codes missing here fall back to the error's own message.
var statusMessages = map[int]string{
	http.StatusBadRequest:          "Bad Request - invalid data",
	http.StatusUnauthorized:        "Unauthorized - authentication required",
	http.StatusForbidden:           "Forbidden - access denied",
	http.StatusNotFound:            "Not Found - resource not found",
	http.StatusMethodNotAllowed:    "Method Not Allowed",
	http.StatusConflict:            "Conflict - resource already exists",
	http.StatusUnprocessableEntity: "Unprocessable Entity - validation failed",
	http.StatusTooManyRequests:     "Too Many Requests",
	http.StatusInternalServerError: "Internal Server Error",
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their HTTP status codes.
//   - Logs unexpected errors without leaking details to the client.
//   - Renders ErrorEnvelope for requests under prefix and leaves every other
//     path to Echo's default handler.
func NewHTTPErrorHandler(e *echo.Echo, prefix string, log zerolog.Logger) echo.HTTPErrorHandler {
	now := func() time.Time { return time.Now().UTC() }
	return newHTTPErrorHandler(e, prefix, log, now)
}

func newHTTPErrorHandler(e *echo.Echo, prefix string, log zerolog.Logger, now func() time.Time) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		path := c.Request().URL.Path
		if !underPrefix(path, prefix) {
			e.DefaultHTTPErrorHandler(err, c)
			return
		}

		code, raw, details := resolveError(err, log, c)
		msg, ok := statusMessages[code]
		if !ok {
			msg = raw
		}

		if code == http.StatusUnauthorized {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		}

		body := ErrorEnvelope{Error: ErrorBody{
			Code:      code,
			Message:   msg,
			Timestamp: now().Format(time.RFC3339),
			Path:      path,
			Method:    c.Request().Method,
			Details:   details,
		}}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func underPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/")
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string, []domain.FieldViolation) {
	// Known domain errors → deterministic HTTP codes.
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ve.Error(), ve.Violations
	case errors.Is(err, domain.ErrValidationFailed):
		return http.StatusUnprocessableEntity, err.Error(), nil
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error(), nil
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, err.Error(), nil
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, err.Error(), nil
	case errors.Is(err, domain.ErrIdentityNotFound):
		return http.StatusNotFound, err.Error(), nil
	case errors.Is(err, domain.ErrDuplicateIdentity):
		return http.StatusConflict, err.Error(), nil
	case errors.Is(err, domain.ErrTooManyAttempts):
		return http.StatusTooManyRequests, err.Error(), nil
	}

	// Echo's own errors (bind failures, router 404/405, rate limiter, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			logUnexpected(log, c, err)
		}
		return he.Code, fmt.Sprintf("%v", he.Message), nil
	}

	logUnexpected(log, c, err)
	return http.StatusInternalServerError, "internal server error", nil
}

func logUnexpected(log zerolog.Logger, c echo.Context, err error) {
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Str("route", c.Path()).
		Msg("unhandled error")
}
