package domain

import "errors"

var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("resource conflict")
	ErrUpstream         = errors.New("upstream request failed")
	ErrMalformedSession = errors.New("malformed session")
)

// ValidationError represents a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// UpstreamStatusError carries a non-2xx answer from the GitHub API so callers
// can relay the status to their own clients.
type UpstreamStatusError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamStatusError) Error() string {
	return e.Message
}

func (e *UpstreamStatusError) Unwrap() error {
	return ErrUpstream
}
