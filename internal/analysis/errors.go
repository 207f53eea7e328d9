package analysis

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/abelbrown/rabbitbrain/internal/xapi"
)

// Code is a stable machine-readable failure code.
type Code string

const (
	CodeInvalidURL    Code = "INVALID_URL"
	CodeInvalidTopic  Code = "INVALID_TOPIC"
	CodeNotFound      Code = "NOT_FOUND"
	CodeUpstream      Code = "X_UPSTREAM_ERROR"
	CodeRateLimit     Code = "RATE_LIMIT"
	CodeInternalError Code = "INTERNAL_ERROR"
)

// Error is a typed pipeline failure.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error without a cause.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code carried by err, or CodeInternalError for errors
// that are not *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternalError
}

// HTTPStatus maps a code to its HTTP status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidURL, CodeInvalidTopic:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fromUpstream translates retrieval errors into typed failures.
func fromUpstream(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	var upstream *xapi.UpstreamError
	switch {
	case errors.Is(err, xapi.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: "Post not found", Err: err}
	case errors.As(err, &upstream), errors.Is(err, xapi.ErrMissingToken):
		return &Error{Code: CodeUpstream, Message: "X API unavailable", Err: err}
	default:
		return &Error{Code: CodeInternalError, Message: "internal error", Err: err}
	}
}
