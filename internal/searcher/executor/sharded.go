package executor

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nullstrand/corpusregex/internal/corpus/search"
	"github.com/nullstrand/corpusregex/internal/corpus/tokenizer"
	"github.com/nullstrand/corpusregex/internal/corpus/trie"
	"github.com/nullstrand/corpusregex/internal/indexer"
	"github.com/nullstrand/corpusregex/internal/searcher/merger"
	"github.com/nullstrand/corpusregex/internal/searcher/parser"
)

// RecheckFn re-verifies a shard's candidate sentence IDs against their raw
// text when the shard's driver aborted a subtree under its candidate
// budget. It returns the subset of candidateIDs that actually match
// pattern. A nil RecheckFn disables rechecking; NeedsRecheck is still
// reported so callers can act on it themselves.
type RecheckFn func(ctx context.Context, shardID int, candidateIDs []uint32, pattern string) ([]uint32, error)

// ShardedExecutor fans a regex query out across every shard's indexer
// engine concurrently, then unions the resulting sentence-ID sets. Every
// shard shares the same tokenizer vocabulary, so the DFA trie is built once
// and reused across shards.
type ShardedExecutor struct {
	engines map[int]*indexer.Engine
	trie    *trie.DfaTrie
	tok     *tokenizer.Tokenizer
	budget  int
	recheck RecheckFn
	logger  *slog.Logger
}

// NewSharded builds a ShardedExecutor over the given shard-ID-to-engine map.
// recheck may be nil to leave budget-aborted shards unverified.
func NewSharded(engines map[int]*indexer.Engine, tok *tokenizer.Tokenizer, budget int, recheck RecheckFn) *ShardedExecutor {
	return &ShardedExecutor{
		engines: engines,
		trie:    buildTrie(tok),
		tok:     tok,
		budget:  budget,
		recheck: recheck,
		logger:  slog.Default().With("component", "sharded-executor"),
	}
}

// Execute fans plan.Regex out to every shard, merging their sentence-ID
// results and OR-ing their needs-recheck flags. Shards whose driver
// aborted a subtree are rescanned via RecheckFn, if one is configured, and
// any sentences it confirms are folded into the merged result.
func (se *ShardedExecutor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	type shardOutcome struct {
		shardID      int
		sentIDs      []uint32
		needsRecheck bool
		ok           bool
	}

	shardIDs := make([]int, 0, len(se.engines))
	for id := range se.engines {
		shardIDs = append(shardIDs, id)
	}

	outcomes := make([]shardOutcome, len(shardIDs))
	var g errgroup.Group
	for i, shardID := range shardIDs {
		i, shardID := i, shardID
		g.Go(func() error {
			engine := se.engines[shardID]
			driver := search.New(se.trie, se.tok, engine.Accessor(), se.budget, engine.SentIDs)
			res, err := driver.Search(plan.Regex)
			if err != nil {
				se.logger.Error("shard query failed", "shard_id", shardID, "error", err)
				return nil
			}
			outcomes[i] = shardOutcome{shardID: shardID, sentIDs: res.SentIDs, needsRecheck: res.NeedsRecheck, ok: true}
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, o := range outcomes {
		if o.ok {
			succeeded++
		}
	}
	if succeeded == 0 {
		return nil, fmt.Errorf("searching %q: all %d shards failed", plan.Regex, len(outcomes))
	}

	shardResults := make([][]uint32, 0, len(outcomes))
	needsRecheck := false
	for _, o := range outcomes {
		if !o.ok {
			continue
		}
		shardResults = append(shardResults, o.sentIDs)
		if !o.needsRecheck {
			continue
		}
		needsRecheck = true
		if se.recheck == nil {
			continue
		}
		engine, ok := se.engines[o.shardID]
		if !ok {
			continue
		}
		confirmed, err := se.recheck(ctx, o.shardID, engine.SentIDs(), plan.Regex)
		if err != nil {
			se.logger.Warn("shard recheck failed", "shard_id", o.shardID, "error", err)
			continue
		}
		shardResults = append(shardResults, confirmed)
	}

	merged := merger.Merge(shardResults, limit)
	se.logger.Info("sharded query executed",
		"regex", plan.Regex,
		"shards_queried", len(shardResults),
		"matches", len(merged),
		"needs_recheck", needsRecheck,
	)
	return &SearchResult{
		Regex:        plan.Regex,
		SentIDs:      merged,
		NeedsRecheck: needsRecheck,
	}, nil
}
