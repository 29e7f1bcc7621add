// Package recheck re-verifies sentences against their raw text when the
// DFA-trie candidate driver aborted a subtree under its candidate-size
// budget. The driver's NeedsRecheck flag means a shard's result may have
// missed matches in the abandoned subtree; this package closes that gap
// with Go's standard regexp engine run directly over the stored text,
// at the cost of a full scan of the affected shard's sentences.
package recheck

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/lib/pq"

	"github.com/nullstrand/corpusregex/internal/searcher/executor"
	"github.com/nullstrand/corpusregex/pkg/postgres"
)

// New returns an executor.RecheckFn backed by db. It fetches the raw text
// of every candidate sentence ID and confirms which of them regexp agrees
// actually match pattern.
func New(db *postgres.Client) executor.RecheckFn {
	logger := slog.Default().With("component", "recheck")
	return func(ctx context.Context, shardID int, candidateIDs []uint32, pattern string) ([]uint32, error) {
		if len(candidateIDs) == 0 {
			return nil, nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("recheck: compiling %q: %w", pattern, err)
		}

		ids := make([]int64, len(candidateIDs))
		for i, id := range candidateIDs {
			ids[i] = int64(id)
		}

		rows, err := db.DB.QueryContext(ctx,
			`SELECT sent_id, text FROM sentences WHERE sent_id = ANY($1)`,
			pq.Array(ids),
		)
		if err != nil {
			return nil, fmt.Errorf("recheck: fetching shard %d text: %w", shardID, err)
		}
		defer rows.Close()

		var confirmed []uint32
		for rows.Next() {
			var sentID uint32
			var text string
			if err := rows.Scan(&sentID, &text); err != nil {
				return nil, fmt.Errorf("recheck: scanning row: %w", err)
			}
			if re.MatchString(text) {
				confirmed = append(confirmed, sentID)
			}
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("recheck: iterating rows: %w", err)
		}

		logger.Debug("shard rechecked",
			"shard_id", shardID,
			"candidates", len(candidateIDs),
			"confirmed", len(confirmed),
		)
		return confirmed, nil
	}
}
