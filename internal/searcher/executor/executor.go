// Package executor drives compiled regex queries over a single indexer
// engine's postings, assembling the corpus search.Driver from the shared
// tokenizer vocabulary and the engine's live (possibly segment-backed)
// accessor.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nullstrand/corpusregex/internal/corpus/search"
	"github.com/nullstrand/corpusregex/internal/corpus/tokenizer"
	"github.com/nullstrand/corpusregex/internal/corpus/trie"
	"github.com/nullstrand/corpusregex/internal/indexer"
	"github.com/nullstrand/corpusregex/internal/searcher/parser"
)

// SearchResult is the JSON-facing result of a regex query: the matching
// sentence IDs and whether the candidate-budget or a DFA cycle forced an
// early abort (the caller may choose to rescan those sentences directly).
type SearchResult struct {
	Regex        string   `json:"regex"`
	SentIDs      []uint32 `json:"sent_ids"`
	NeedsRecheck bool     `json:"needs_recheck"`
}

// Executor answers regex queries against a single indexer.Engine.
type Executor struct {
	engine *indexer.Engine
	trie   *trie.DfaTrie
	tok    *tokenizer.Tokenizer
	budget int
	logger *slog.Logger
}

// New builds an Executor. The DFA trie is built once from tok's vocabulary
// and reused across every Execute call.
func New(engine *indexer.Engine, tok *tokenizer.Tokenizer, budget int) *Executor {
	return &Executor{
		engine: engine,
		trie:   buildTrie(tok),
		tok:    tok,
		budget: budget,
		logger: slog.Default().With("component", "query-executor"),
	}
}

func buildTrie(tok *tokenizer.Tokenizer) *trie.DfaTrie {
	entries := tok.Vocab()
	out := make([]trie.VocabEntry, len(entries))
	for i, e := range entries {
		out[i] = trie.VocabEntry{TokenID: e.TokenID, Bytes: e.Bytes}
	}
	return trie.Build(out, tok.MaxTokenBytes())
}

// Execute compiles and drives plan.Regex over the engine's index.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	driver := search.New(e.trie, e.tok, e.engine.Accessor(), e.budget, e.engine.SentIDs)
	res, err := driver.Search(plan.Regex)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", plan.Regex, err)
	}
	sentIDs := res.SentIDs
	if limit > 0 && len(sentIDs) > limit {
		sentIDs = sentIDs[:limit]
	}
	e.logger.Info("query executed",
		"regex", plan.Regex,
		"matches", len(res.SentIDs),
		"needs_recheck", res.NeedsRecheck,
	)
	return &SearchResult{
		Regex:        plan.Regex,
		SentIDs:      sentIDs,
		NeedsRecheck: res.NeedsRecheck,
	}, nil
}
