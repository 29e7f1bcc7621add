// Package validator provides input validation for ingestion requests. It
// enforces text length constraints and returns per-field error details.
package validator

import (
	"fmt"
	"strings"

	"github.com/nullstrand/corpusregex/internal/corpus/index"
	"github.com/nullstrand/corpusregex/internal/ingestion"
)

const (
	maxTextLength = 1048576
	minTextLength = 1
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest checks that the request's text meets the required
// length constraints and returns a ValidationError if not.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	text := strings.TrimSpace(req.Text)
	if len(text) < minTextLength {
		errs["text"] = "text is required and must not be empty"
	} else if len(text) > maxTextLength {
		errs["text"] = fmt.Sprintf("text must be at most %d characters", maxTextLength)
	}
	if req.IdempotencyKey != "" && len(req.IdempotencyKey) > 255 {
		errs["idempotency_key"] = "idempotency key must be at most 255 characters"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateTokenCount checks that a tokenized sentence fits the inverted
// index's configured position bit width, returning a ValidationError if it
// does not (rather than letting the index builder's ErrOutOfRange surface
// as an opaque internal error).
func ValidateTokenCount(tokenIDs []uint32) error {
	if len(tokenIDs) > index.MaxPos+1 {
		return &ValidationError{Fields: map[string]string{
			"text": fmt.Sprintf("tokenizes to %d tokens, exceeds maximum of %d", len(tokenIDs), index.MaxPos+1),
		}}
	}
	return nil
}
