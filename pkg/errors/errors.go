package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nullstrand/corpusregex/internal/corpus/index"
	"github.com/nullstrand/corpusregex/internal/corpus/regex"
)

var (
	ErrSentenceNotFound    = errors.New("sentence not found")
	ErrShardUnavailable    = errors.New("shard unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	ErrIdempotencyConflict = errors.New("idempotency key already used")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInternal            = errors.New("internal error")
	ErrTimeout             = errors.New("operation timed out")
	ErrTokenizerLoad       = errors.New("tokenizer asset failed to load")
)

// AppError wraps a sentinel error with a human-readable message and the
// HTTP status it maps to, the same shape every handler in this module
// returns on failure.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the HTTP status a handler should return.
// It first checks for an *AppError carrying an explicit status, then the
// core's own error taxonomy (malformed regex, unsupported syntax, bit-width
// overflow, tokenizer load failure), then the sentinel table above,
// defaulting to 500 for anything unrecognized.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	var parseErr *regex.ParseError
	var unsupported *regex.Unsupported
	var outOfRange *index.ErrOutOfRange
	switch {
	case errors.As(err, &parseErr), errors.As(err, &unsupported):
		return http.StatusBadRequest
	case errors.As(err, &outOfRange):
		return http.StatusUnprocessableEntity
	}

	switch {
	case errors.Is(err, ErrSentenceNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrIdempotencyConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrShardUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTokenizerLoad):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
