// Package merger combines per-shard regex search results into a single
// deduplicated, sorted sentence-ID list, the sharded executor's fan-in step.
// There is no ranking: set membership has no score, only union.
package merger

import "sort"

// Merge unions every shard's sentence-ID slice, deduplicates, sorts
// ascending, and truncates to limit (0 or negative means unlimited).
func Merge(shardSentIDs [][]uint32, limit int) []uint32 {
	seen := make(map[uint32]struct{})
	for _, ids := range shardSentIDs {
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}
	merged := make([]uint32, 0, len(seen))
	for id := range seen {
		merged = append(merged, id)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
