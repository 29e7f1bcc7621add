// Package search implements the cached recursive DFA-state enumeration that
// answers a regex query over the corpus: for every token-prefix padding, it
// walks the trie/DFA product, accumulates candidate position-lists via the
// candidate algebra, and returns the union of matching sentence IDs. It
// handles DFA cycles (guaranteed by any unbounded regex like ".*"), a
// candidate-size circuit breaker, and per-DFA-state memoization.
package search

import (
	"log/slog"

	"github.com/nullstrand/corpusregex/internal/corpus/candidate"
	"github.com/nullstrand/corpusregex/internal/corpus/index"
	"github.com/nullstrand/corpusregex/internal/corpus/regex"
	"github.com/nullstrand/corpusregex/internal/corpus/trie"
)

// DefaultBudget is the default candidate-list size threshold before the
// driver aborts a recursion subtree and flags the result for rechecking.
const DefaultBudget = 10_000_000

// IndexAccessor fetches the posting list for a token. The driver never
// assumes the list is resident in memory; callers may page it from disk.
type IndexAccessor func(tokenID uint32) []index.IndexEntry

// Vocab exposes what the trie/search driver need from the tokenizer's
// vocabulary: token byte strings in original-corpus byte space.
type Vocab interface {
	TokenBytes(tokenID uint32) ([]byte, bool)
}

// InvariantViolation is panicked when an assertion the trie is supposed to
// guarantee fails to hold — e.g. ConsumeToken rejects a token that
// NextTokens claimed was viable. It indicates a bug, not a query-time error.
type InvariantViolation struct {
	Message string
}

func (e *InvariantViolation) Error() string {
	return "search: invariant violation: " + e.Message
}

// Result is the outcome of a search call: the matching sentence IDs plus
// whether the candidate-budget or a DFA cycle forced an early abort.
type Result struct {
	SentIDs      []uint32
	NeedsRecheck bool
}

// Driver holds the read-only, immutable-after-construction components a
// search call walks: the vocabulary, the DFA trie built over it, and the
// posting-list accessor. A Driver is safe for concurrent Search calls —
// each call owns its own per-state cache.
type Driver struct {
	Trie       *trie.DfaTrie
	Vocab      Vocab
	Index      IndexAccessor
	Budget     int
	AllSentIDs func() []uint32
	logger     *slog.Logger
}

// New constructs a Driver. budget <= 0 selects DefaultBudget. allSentIDs
// supplies the match-everything shortcut's sentence-ID roster (spec §9:
// "enumerate sentence IDs... by maintaining a separate sentence-ID roster"
// is one of two acceptable choices; this implementation takes that one,
// since it does not require a reserved BOS token to be indexed).
func New(tr *trie.DfaTrie, vocab Vocab, accessor IndexAccessor, budget int, allSentIDs func() []uint32) *Driver {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Driver{
		Trie:       tr,
		Vocab:      vocab,
		Index:      accessor,
		Budget:     budget,
		AllSentIDs: allSentIDs,
		logger:     slog.Default().With("component", "corpus-search"),
	}
}

// call is the per-Search mutable state: the DFA-state cache, the running
// candidate-size tally, and the needs-recheck flag. It never escapes a
// single Search invocation.
type call struct {
	d            *Driver
	dfa          *regex.DFA
	cache        map[int]*candidate.List // nil entry with ok=false signals "not cached"; recorded via cached map
	cached       map[int]bool
	spent        int
	needsRecheck bool
}

// Search runs the full pipeline — parse, lower, compile, drive — for src
// over the components the Driver holds, and returns the matching sentence
// IDs plus the needs-recheck flag.
func (d *Driver) Search(src string) (Result, error) {
	eng, err := regex.Build(src)
	if err != nil {
		return Result{}, err
	}
	return d.SearchEngine(eng), nil
}

// SearchEngine drives an already-compiled Engine. Exposed separately so
// callers that cache compiled patterns (e.g. a query-result cache keyed by
// regex text) need not recompile on every call.
func (d *Driver) SearchEngine(eng *regex.Engine) Result {
	if eng.MatchesEverything() {
		// Empty-language shortcut (spec §9): dfa.start is accepting, so
		// every sentence matches. Must not descend into the trie — this is
		// the branch distinguishing ".*"/"a*" from "a+".
		var ids []uint32
		if d.AllSentIDs != nil {
			ids = d.AllSentIDs()
		}
		return Result{SentIDs: ids}
	}

	c := &call{
		d:      d,
		dfa:    eng.DFA,
		cache:  make(map[int]*candidate.List),
		cached: make(map[int]bool),
	}

	maxPad := d.Trie.MaxTokenBytes()
	seeds := make([]candidate.List, 0, maxPad)
	for pad := 0; pad < maxPad; pad++ {
		seeds = append(seeds, c.seed(eng.DFA.Start, pad))
	}
	merged := candidate.UnionMerge(seeds)
	return Result{
		SentIDs:      candidate.SentIDs(merged.Entries),
		NeedsRecheck: c.needsRecheck,
	}
}

// seed handles step 3 of the search driver: for a given prefix-byte offset
// pad, find every token whose byte suffix (from pad) keeps the start state
// alive, and accumulate candidates directly or via recursion.
func (c *call) seed(start, pad int) candidate.List {
	tokens := c.d.Trie.NextTokens(c.dfa, start, pad)
	lists := make([]candidate.List, 0, len(tokens))
	for _, t := range tokens {
		matches := c.d.Index(t)
		if len(matches) == 0 {
			continue
		}
		bytes, ok := c.d.Vocab.TokenBytes(t)
		if !ok {
			continue
		}
		if pad >= len(bytes) {
			continue
		}
		outcome := trie.ConsumeToken(c.dfa, start, bytes[pad:])
		switch outcome.Kind {
		case trie.Accepted:
			lists = append(lists, candidate.Concrete(matches))
		case trie.Rejected:
			panic(&InvariantViolation{Message: "seed token rejected by DFA after trie guaranteed a transition"})
		case trie.Continue:
			next := c.generate(outcome.State, map[int]bool{start: true, outcome.State: true})
			if next == nil {
				continue
			}
			lists = append(lists, candidate.Concrete(candidate.FollowedBy(matches, *next)))
		}
	}
	return candidate.UnionMerge(lists)
}

// generate is the recursive step (spec §4.7 step 4): returns the candidate
// list for the match-subtree rooted at state, or nil if the subtree was
// abandoned due to a cycle or the candidate budget.
func (c *call) generate(state int, visited map[int]bool) *candidate.List {
	if c.cached[state] {
		return c.cache[state]
	}

	tokens := c.d.Trie.NextTokens(c.dfa, state, 0)
	lists := make([]candidate.List, 0, len(tokens))

	for _, t := range tokens {
		matches := c.d.Index(t)
		if len(matches) == 0 {
			continue
		}
		bytes, ok := c.d.Vocab.TokenBytes(t)
		if !ok || len(bytes) == 0 {
			continue
		}

		c.spent += len(matches)
		if c.spent > c.d.Budget {
			c.cached[state] = true
			c.cache[state] = nil
			c.needsRecheck = true
			c.d.logger.Warn("candidate budget exceeded, aborting subtree", "state", state, "spent", c.spent)
			return nil
		}

		outcome := trie.ConsumeToken(c.dfa, state, bytes)
		switch outcome.Kind {
		case trie.Accepted:
			lists = append(lists, candidate.Concrete(matches))
		case trie.Rejected:
			panic(&InvariantViolation{Message: "token rejected by DFA after trie guaranteed a transition"})
		case trie.Continue:
			if visited[outcome.State] {
				// Cycle detected: the regex admits an unbounded expansion
				// through this token (e.g. ".*" revisiting its start state
				// after every byte). Abort the subtree and flag recheck
				// rather than recursing forever.
				c.cached[state] = true
				c.cache[state] = nil
				c.needsRecheck = true
				c.d.logger.Debug("dfa cycle detected, aborting subtree", "state", state, "via_token", t)
				return nil
			}
			childVisited := make(map[int]bool, len(visited)+1)
			for k := range visited {
				childVisited[k] = true
			}
			childVisited[outcome.State] = true
			child := c.generate(outcome.State, childVisited)
			if child == nil {
				c.cached[state] = true
				c.cache[state] = nil
				c.needsRecheck = true
				return nil
			}
			lists = append(lists, candidate.Concrete(candidate.FollowedBy(matches, *child)))
		}
	}

	merged := candidate.UnionMerge(lists)
	c.cached[state] = true
	c.cache[state] = &merged
	return &merged
}
