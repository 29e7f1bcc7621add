// Package corpus orchestrates the four leaf subsystems — tokenizer,
// index builder, regex compiler, and search driver — into the pure,
// host-agnostic core the rest of the repository embeds: parse → lower →
// compile → drive.
package corpus

import (
	"log/slog"

	"github.com/nullstrand/corpusregex/internal/corpus/index"
	"github.com/nullstrand/corpusregex/internal/corpus/search"
	"github.com/nullstrand/corpusregex/internal/corpus/tokenizer"
	"github.com/nullstrand/corpusregex/internal/corpus/trie"
)

// Config bundles the search-time configuration spec.md §6 exposes:
// candidate-budget threshold and the bit-width layout are carried on the
// index package's constants, normalization lives on the Tokenizer.
type Config struct {
	CandidateBudget int
}

// Engine is the assembled core: a tokenizer-derived vocabulary, a DFA trie
// over it, and a finalized inverted index, ready to answer regex queries.
// Construction is single-threaded; once built, Search is safe to call
// concurrently (§5: read-only components, per-call cache).
type Engine struct {
	Tokenizer *tokenizer.Tokenizer
	Index     index.InvertedIndex
	Trie      *trie.DfaTrie
	budget    int
	sentIDs   []uint32
	logger    *slog.Logger
}

// Build assembles an Engine from a tokenizer and a finalized inverted
// index. sentIDs is the sentence-ID roster used by the empty-language
// shortcut (spec §9's "maintain a separate sentence-ID roster" choice).
func Build(tok *tokenizer.Tokenizer, idx index.InvertedIndex, sentIDs []uint32, cfg Config) *Engine {
	tr := trie.Build(toTrieVocab(tok.Vocab()), tok.MaxTokenBytes())
	return &Engine{
		Tokenizer: tok,
		Index:     idx,
		Trie:      tr,
		budget:    cfg.CandidateBudget,
		sentIDs:   sentIDs,
		logger:    slog.Default().With("component", "corpus-engine"),
	}
}

func toTrieVocab(entries []tokenizer.VocabEntry) []trie.VocabEntry {
	out := make([]trie.VocabEntry, len(entries))
	for i, e := range entries {
		out[i] = trie.VocabEntry{TokenID: e.TokenID, Bytes: e.Bytes}
	}
	return out
}

// Search parses, lowers, compiles, and drives regexSrc over the Engine's
// index, returning matching sentence IDs and whether the result needs a
// rescan to confirm (candidate-budget or DFA-cycle abort).
func (e *Engine) Search(regexSrc string) (search.Result, error) {
	driver := search.New(e.Trie, e.Tokenizer, e.accessor, e.budget, e.allSentIDs)
	res, err := driver.Search(regexSrc)
	if err == nil && res.NeedsRecheck {
		e.logger.Warn("search result needs recheck", "regex", regexSrc, "sent_ids", len(res.SentIDs))
	}
	return res, err
}

func (e *Engine) accessor(tokenID uint32) []index.IndexEntry {
	return e.Index[tokenID]
}

func (e *Engine) allSentIDs() []uint32 {
	return e.sentIDs
}
