// Package tokenizer adapts an external byte-pair-encoding tokenizer into the
// vocabulary view the regex/trie/search subsystems need: token byte strings
// expressed in the corpus' original (un-normalized) byte space.
package tokenizer

import (
	"fmt"
	"sort"
)

// BPETokenizer is the external collaborator this package wraps. The core
// never trains or encodes BPE itself; it only consumes a loaded tokenizer's
// vocabulary and encoder.
type BPETokenizer interface {
	// Tokenize runs the BPE encoder over s (already byte-normalized) and
	// returns the resulting token ID sequence.
	Tokenize(s string) ([]uint32, error)
	// Vocab returns every (token_id, byte_string) pair known to the
	// tokenizer, in the tokenizer's own (normalized) byte space.
	Vocab() map[uint32][]byte
}

// NormalizeMap is a small injective byte→byte substitution applied to the
// corpus before BPE encoding, e.g. sanitizing '.', '/', '\', '`' into
// tokenizer-friendly stand-ins. The zero value is the identity map.
type NormalizeMap map[byte]byte

// Inverse returns the map from substituted byte back to original byte.
func (m NormalizeMap) Inverse() NormalizeMap {
	inv := make(NormalizeMap, len(m))
	for from, to := range m {
		inv[to] = from
	}
	return inv
}

// Apply substitutes every byte of s present in the map, leaving the rest
// unchanged.
func (m NormalizeMap) Apply(s []byte) []byte {
	if len(m) == 0 {
		return s
	}
	out := make([]byte, len(s))
	for i, b := range s {
		if to, ok := m[b]; ok {
			out[i] = to
		} else {
			out[i] = b
		}
	}
	return out
}

// ErrLoad is returned when the external tokenizer asset is absent or
// malformed, or its vocabulary is inconsistent (e.g. duplicate IDs).
type ErrLoad struct {
	Path   string
	Reason string
}

func (e *ErrLoad) Error() string {
	return fmt.Sprintf("tokenizer: failed to load %q: %s", e.Path, e.Reason)
}

// Tokenizer exposes the vocabulary and tokenization needed by the regex,
// trie, and search subsystems. It owns the external BPETokenizer handle.
type Tokenizer struct {
	backend BPETokenizer

	normalize    NormalizeMap
	invNormalize NormalizeMap

	// tidToToken stores token payloads in the corpus' original byte space:
	// the normalize map has been un-applied relative to backend.Vocab().
	tidToToken map[uint32][]byte

	eosTokenID    uint32
	bosTokenID    uint32
	hasBOS        bool
	vocabSize     int
	maxTokenBytes int
}

// Config configures New. EOSTokenID is required; BOSTokenID is optional
// (HasBOS distinguishes "0 is a real BOS token" from "no BOS token").
type Config struct {
	Normalize  NormalizeMap
	EOSTokenID uint32
	BOSTokenID uint32
	HasBOS     bool
}

// New wraps backend, deriving the original-byte-space vocabulary and its
// size statistics. It fails if the backend's vocabulary is empty.
func New(backend BPETokenizer, cfg Config) (*Tokenizer, error) {
	vocab := backend.Vocab()
	if len(vocab) == 0 {
		return nil, &ErrLoad{Reason: "vocabulary is empty"}
	}

	inv := cfg.Normalize.Inverse()
	tidToToken := make(map[uint32][]byte, len(vocab))
	maxTokenBytes := 0
	for tid, normalized := range vocab {
		original := inv.Apply(normalized)
		tidToToken[tid] = original
		if tid == cfg.EOSTokenID || (cfg.HasBOS && tid == cfg.BOSTokenID) {
			continue
		}
		if len(original) > maxTokenBytes {
			maxTokenBytes = len(original)
		}
	}

	return &Tokenizer{
		backend:       backend,
		normalize:     cfg.Normalize,
		invNormalize:  inv,
		tidToToken:    tidToToken,
		eosTokenID:    cfg.EOSTokenID,
		bosTokenID:    cfg.BOSTokenID,
		hasBOS:        cfg.HasBOS,
		vocabSize:     len(vocab),
		maxTokenBytes: maxTokenBytes,
	}, nil
}

// Tokenize normalizes s and runs it through the external BPE encoder.
func (t *Tokenizer) Tokenize(s string) ([]uint32, error) {
	normalized := t.normalize.Apply([]byte(s))
	return t.backend.Tokenize(string(normalized))
}

// TokenBytes returns the original-byte-space payload for a token ID, and
// whether that ID is present in the vocabulary.
func (t *Tokenizer) TokenBytes(tokenID uint32) ([]byte, bool) {
	b, ok := t.tidToToken[tokenID]
	return b, ok
}

// IsSpecial reports whether tokenID is a reserved EOS/BOS ID rather than a
// vocabulary token with byte content.
func (t *Tokenizer) IsSpecial(tokenID uint32) bool {
	if tokenID == t.eosTokenID {
		return true
	}
	return t.hasBOS && tokenID == t.bosTokenID
}

// VocabSize returns the number of tokens known to the tokenizer, including
// reserved IDs.
func (t *Tokenizer) VocabSize() int { return t.vocabSize }

// MaxTokenBytes returns the longest byte length of any non-special token.
func (t *Tokenizer) MaxTokenBytes() int { return t.maxTokenBytes }

// NormalizeMap returns the byte→byte substitution applied before encoding.
func (t *Tokenizer) NormalizeMap() NormalizeMap { return t.normalize }

// InverseNormalizeMap returns the substitution un-applied to token payloads.
func (t *Tokenizer) InverseNormalizeMap() NormalizeMap { return t.invNormalize }

// VocabEntry pairs a token ID with its original-byte-space payload.
type VocabEntry struct {
	TokenID uint32
	Bytes   []byte
}

// Vocab returns every non-special (token_id, byte_string) pair sorted by
// token ID, for building the DFA trie deterministically.
func (t *Tokenizer) Vocab() []VocabEntry {
	entries := make([]VocabEntry, 0, len(t.tidToToken))
	for tid, b := range t.tidToToken {
		if t.IsSpecial(tid) {
			continue
		}
		entries = append(entries, VocabEntry{TokenID: tid, Bytes: b})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].TokenID < entries[j].TokenID })
	return entries
}
