// Package embed is a minimal Go embedding surface mirroring the shapes of
// the reference system's C ABI façade (create/destroy/search/iterate)
// expressed idiomatically — constructors and interfaces, no cgo, no
// noexcept-equivalent trapping — for hosts that want to link the core
// directly instead of going through the service layer.
package embed

import (
	"github.com/nullstrand/corpusregex/internal/corpus/index"
	"github.com/nullstrand/corpusregex/internal/corpus/search"
	"github.com/nullstrand/corpusregex/internal/corpus/tokenizer"
	"github.com/nullstrand/corpusregex/internal/corpus/trie"
)

// Tokenizer mirrors tokenizer_create/destroy/tokenize/vocab_size: it wraps
// an external BPE backend and releases it on Close.
type Tokenizer struct {
	core *tokenizer.Tokenizer
	// closer, if set, releases the backing BPE asset (e.g. an mmap'd
	// vocabulary file); nil backends with no resources to release are
	// common in tests and need not supply one.
	closer func() error
}

// NewTokenizer mirrors tokenizer_create: it loads backend under the given
// configuration. mappings is the parsed normalize map the equivalent
// parse_normalize_mappings ABI call would have validated.
func NewTokenizer(backend tokenizer.BPETokenizer, mappings tokenizer.NormalizeMap, eosTokenID, bosTokenID uint32, hasBOS bool, closer func() error) (*Tokenizer, error) {
	core, err := tokenizer.New(backend, tokenizer.Config{
		Normalize:  mappings,
		EOSTokenID: eosTokenID,
		BOSTokenID: bosTokenID,
		HasBOS:     hasBOS,
	})
	if err != nil {
		return nil, err
	}
	return &Tokenizer{core: core, closer: closer}, nil
}

// Tokenize mirrors the tokenizer_tokenize ABI call.
func (t *Tokenizer) Tokenize(s string) ([]uint32, error) { return t.core.Tokenize(s) }

// VocabSize mirrors tokenizer_vocab_size.
func (t *Tokenizer) VocabSize() int { return t.core.VocabSize() }

// Close mirrors tokenizer_destroy: it releases the backing asset on every
// exit path, matching the reference adapter's destructor semantics.
func (t *Tokenizer) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer()
}

// IndexBuilder mirrors index_builder_create/destroy/add_sentence/
// finalize/iterate.
type IndexBuilder struct {
	core *index.IndexBuilder
}

// NewIndexBuilder mirrors index_builder_create.
func NewIndexBuilder() *IndexBuilder {
	return &IndexBuilder{core: index.NewBuilder()}
}

// AddSentence mirrors index_builder_add_sentence.
func (b *IndexBuilder) AddSentence(sentID uint32, tokenIDs []uint32) error {
	return b.core.AddSentence(sentID, tokenIDs)
}

// Finalize mirrors index_builder_finalize.
func (b *IndexBuilder) Finalize() { b.core.Finalize() }

// Iterate mirrors index_builder_iterate: it calls fn once per (token_id,
// posting list) pair built so far. Must be called after Finalize to
// observe sorted postings.
func (b *IndexBuilder) Iterate(fn func(tokenID uint32, postings []index.IndexEntry)) {
	for tokenID, postings := range b.core.Index() {
		fn(tokenID, postings)
	}
}

// Destroy is a no-op mirroring index_builder_destroy; Go's GC reclaims the
// builder once unreferenced, but the method is kept so callers written
// against the ABI shape need no branching.
func (b *IndexBuilder) Destroy() {}

// IndexAccessor mirrors the index_accessor_cb shape: given a token ID,
// return its posting list (or nil if absent). The reference ABI calls this
// twice (size, then fill); the Go surface just returns the slice directly.
type IndexAccessor func(tokenID uint32) []index.IndexEntry

// SearchResult mirrors the { sentid_vec, needs_recheck } struct returned
// by the reference search ABI call.
type SearchResult struct {
	SentIDs      []uint32
	NeedsRecheck bool
}

// Search mirrors the search() ABI entry point: it builds the DFA trie for
// tok's vocabulary, compiles regexSrc, and drives the search over
// accessor. allSentIDs backs the empty-language shortcut.
func Search(tok *Tokenizer, accessor IndexAccessor, allSentIDs func() []uint32, candidateBudget int, regexSrc string) (SearchResult, error) {
	tr := buildTrie(tok.core)
	driver := search.New(tr, tok.core, search.IndexAccessor(accessor), candidateBudget, allSentIDs)
	res, err := driver.Search(regexSrc)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{SentIDs: res.SentIDs, NeedsRecheck: res.NeedsRecheck}, nil
}

func buildTrie(tok *tokenizer.Tokenizer) *trie.DfaTrie {
	entries := tok.Vocab()
	out := make([]trie.VocabEntry, len(entries))
	for i, e := range entries {
		out[i] = trie.VocabEntry{TokenID: e.TokenID, Bytes: e.Bytes}
	}
	return trie.Build(out, tok.MaxTokenBytes())
}
