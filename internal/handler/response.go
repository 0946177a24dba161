package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/cronboard/internal/domain"
)

// ErrorBody is the JSON shape of every API error.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// Success writes {"success":true} merged with fields.
func Success(c echo.Context, status int, fields map[string]any) error {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	return c.JSON(status, body)
}

// HTTPErrorHandler is the global error handler for echo.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := mapError(err)
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		slog.Error("failed to send error response", "error", err)
	}
}

func mapError(err error) (int, ErrorBody) {
	// Handle echo's own HTTP errors (404, 405, etc.)
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		msg, _ := echoErr.Message.(string)
		if msg == "" {
			msg = http.StatusText(echoErr.Code)
		}
		return echoErr.Code, ErrorBody{Error: msg, Code: codeForStatus(echoErr.Code)}
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, ErrorBody{
			Error: validationErr.Error(),
			Code:  "validation_error",
			Field: validationErr.Field,
		}
	}

	var statusErr *domain.UpstreamStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode >= 400 {
		return statusErr.StatusCode, ErrorBody{Error: statusErr.Message, Code: "upstream_error"}
	}

	var msgErr *messageError
	message := ""
	if errors.As(err, &msgErr) {
		message = msgErr.message
	}
	pick := func(fallback string) string {
		if message != "" {
			return message
		}
		return fallback
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, ErrorBody{Error: pick("The request is invalid"), Code: "invalid_input"}
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrMalformedSession):
		return http.StatusUnauthorized, ErrorBody{Error: pick("unauthorized"), Code: "unauthorized"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Error: pick("The requested resource was not found"), Code: "not_found"}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, ErrorBody{Error: pick("The resource already exists"), Code: "conflict"}
	case errors.Is(err, domain.ErrUpstream):
		slog.Error("upstream error", "error", err)
		return http.StatusInternalServerError, ErrorBody{Error: pick("GitHub request failed"), Code: "upstream_error"}
	default:
		slog.Error("unhandled error", "error", err)
		return http.StatusInternalServerError, ErrorBody{Error: "Server error", Code: "internal_error"}
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusBadRequest:
		return "invalid_input"
	default:
		return "error"
	}
}

// messageError attaches a user-facing message to err without changing how it maps.
type messageError struct {
	err     error
	message string
}

func (e *messageError) Error() string { return e.message + ": " + e.err.Error() }
func (e *messageError) Unwrap() error { return e.err }

func withMessage(err error, message string) error {
	return &messageError{err: err, message: message}
}
