// Package parser validates the raw regex text accepted by the search API
// before it reaches the driver, the thin input-shaping layer the handler
// delegates to rather than inlining checks itself.
package parser

import (
	"strings"

	apperrors "github.com/nullstrand/corpusregex/pkg/errors"
)

// QueryPlan carries the validated regex source text through to the
// executor. It exists as its own type, rather than a bare string, so the
// handler/executor boundary can grow fields (e.g. per-query overrides)
// without changing call signatures.
type QueryPlan struct {
	Regex string
}

// Parse validates that query is non-empty regex source and wraps it in a
// QueryPlan. Syntax validity is the regex compiler's concern, not this
// package's; Parse only rejects the trivially empty case.
func Parse(query string) (*QueryPlan, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "regex must not be empty")
	}
	return &QueryPlan{Regex: query}, nil
}
