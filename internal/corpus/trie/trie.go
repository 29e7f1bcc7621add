// Package trie implements the byte-trie over vocabulary tokens that the
// search driver cross-walks against the compiled DFA: NextTokens enumerates
// which tokens can extend a partial match, ConsumeToken advances the DFA by
// one token's bytes.
package trie

import (
	"sort"

	"github.com/nullstrand/corpusregex/internal/corpus/regex"
)

const noToken = -1

type node struct {
	tokenID  int
	children [256]*node
}

func newNode() *node { return &node{tokenID: noToken} }

func (n *node) insert(tokenID uint32, word []byte) {
	cur := n
	for _, b := range word {
		if cur.children[b] == nil {
			cur.children[b] = newNode()
		}
		cur = cur.children[b]
	}
	cur.tokenID = int(tokenID)
}

// VocabEntry is the (token_id, byte_string) pair the trie is built from.
type VocabEntry struct {
	TokenID uint32
	Bytes   []byte
}

// DfaTrie is a vector of byte-tries, one per possible prefix-byte offset,
// so the search driver can start matching from any suffix of a token's
// bytes ("skip the first k bytes of the first matched token").
type DfaTrie struct {
	tries         []*node
	maxTokenBytes int
}

// Build constructs one trie per offset in [0, maxTokenBytes): tries[p]
// holds, for every vocabulary entry whose byte length exceeds p, the byte
// suffix starting at byte p.
func Build(vocab []VocabEntry, maxTokenBytes int) *DfaTrie {
	tries := make([]*node, maxTokenBytes)
	for p := range tries {
		tries[p] = newNode()
	}
	for _, entry := range vocab {
		for p := 0; p < len(entry.Bytes) && p < maxTokenBytes; p++ {
			tries[p].insert(entry.TokenID, entry.Bytes[p:])
		}
	}
	return &DfaTrie{tries: tries, maxTokenBytes: maxTokenBytes}
}

// MaxTokenBytes returns the number of per-offset tries.
func (dt *DfaTrie) MaxTokenBytes() int { return dt.maxTokenBytes }

// NextTokens walks tries[pad] in lockstep with dfa starting at state,
// returning every vocabulary token whose byte suffix (from offset pad)
// keeps the DFA alive or reaches an accept state. Once the DFA reaches an
// accept state, every token in the remaining subtree is emitted
// unconditionally — the regex has already matched, so any continuation of
// that token is a valid candidate.
func (dt *DfaTrie) NextTokens(dfa *regex.DFA, state, pad int) []uint32 {
	if pad < 0 || pad >= len(dt.tries) {
		return nil
	}
	var out []uint32
	collectReachable(dt.tries[pad], dfa, state, &out)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func collectReachable(n *node, dfa *regex.DFA, state int, out *[]uint32) {
	if n.tokenID != noToken {
		*out = append(*out, uint32(n.tokenID))
	}
	if dfa.IsAccept(state) {
		for _, child := range n.children {
			if child != nil {
				collectSubtree(child, out)
			}
		}
		return
	}
	for b := 0; b < 256; b++ {
		child := n.children[b]
		if child == nil {
			continue
		}
		next, ok := dfa.NextState(state, byte(b))
		if !ok {
			continue
		}
		collectReachable(child, dfa, next, out)
	}
}

func collectSubtree(n *node, out *[]uint32) {
	if n.tokenID != noToken {
		*out = append(*out, uint32(n.tokenID))
	}
	for _, child := range n.children {
		if child != nil {
			collectSubtree(child, out)
		}
	}
}

// Outcome is the result of feeding a token's bytes through the DFA.
type Outcome int

const (
	// Accepted means an accept state was reached at some prefix of the
	// token's bytes; the token alone can close a match.
	Accepted Outcome = iota
	// Rejected means some byte had no transition. Under the trie
	// invariant this cannot happen when the token came from NextTokens;
	// the search driver treats it as an InvariantViolation.
	Rejected
	// Continue carries the DFA state reached after consuming every byte
	// without ever hitting an accept state.
	Continue
)

// TokenOutcome is the tagged result of ConsumeToken.
type TokenOutcome struct {
	Kind  Outcome
	State int // meaningful only when Kind == Continue
}

// ConsumeToken feeds tokenBytes through dfa starting at state.
func ConsumeToken(dfa *regex.DFA, state int, tokenBytes []byte) TokenOutcome {
	for _, b := range tokenBytes {
		next, ok := dfa.NextState(state, b)
		if !ok {
			return TokenOutcome{Kind: Rejected}
		}
		state = next
		if dfa.IsAccept(state) {
			return TokenOutcome{Kind: Accepted}
		}
	}
	return TokenOutcome{Kind: Continue, State: state}
}
