// Package candidate implements the sorted-vector join/merge primitives the
// search driver composes during DFA-state recursion: FollowedBy,
// UnionMerge, SentIDs.
package candidate

import (
	"container/heap"

	"github.com/nullstrand/corpusregex/internal/corpus/index"
)

// List is a candidate position-list: either a concrete sorted, deduplicated
// slice of IndexEntry, or the wildcard "any entry" value, the identity for
// FollowedBy on the right and the absorbing element for UnionMerge.
type List struct {
	Wildcard bool
	Entries  []index.IndexEntry
}

// Concrete wraps a sorted IndexEntry slice as a non-wildcard List.
func Concrete(entries []index.IndexEntry) List {
	return List{Entries: entries}
}

// WildcardList is the "any entry" candidate value.
var WildcardList = List{Wildcard: true}

// FollowedBy returns every entry e in a such that (e.SentID, e.Pos+1) is
// present in b — the adjacent-position join that threads one DFA-recursion
// level's matches into the next. a.FollowedBy(Wildcard) = a, since the
// wildcard admits any continuation.
func FollowedBy(a []index.IndexEntry, b List) []index.IndexEntry {
	if b.Wildcard {
		return a
	}
	result := make([]index.IndexEntry, 0, len(a))
	i, j := 0, 0
	for i < len(a) && j < len(b.Entries) {
		e1, e2 := a[i], b.Entries[j]
		switch {
		case e1.SentID < e2.SentID:
			i++
		case e1.SentID > e2.SentID:
			j++
		case e1.Pos+1 < e2.Pos:
			i++
		case e1.Pos+1 == e2.Pos:
			result = append(result, e1)
			i++
			j++
		default: // e1.Pos+1 > e2.Pos
			j++
		}
	}
	return result
}

// heapItem is one (entry, list index, item index) triple in the k-way
// merge's priority queue.
type heapItem struct {
	entry   index.IndexEntry
	listIdx int
	itemIdx int
}

type mergeHeap []heapItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].entry.SentID != h[j].entry.SentID {
		return h[i].entry.SentID < h[j].entry.SentID
	}
	return h[i].entry.Pos < h[j].entry.Pos
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)   { *h = append(*h, x.(heapItem)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// UnionMerge k-way merges lists into a single sorted, deduplicated List.
// A wildcard anywhere in lists makes the whole union a wildcard: "any
// entry" absorbs every concrete list.
func UnionMerge(lists []List) List {
	for _, l := range lists {
		if l.Wildcard {
			return WildcardList
		}
	}

	h := &mergeHeap{}
	for idx, l := range lists {
		if len(l.Entries) > 0 {
			heap.Push(h, heapItem{entry: l.Entries[0], listIdx: idx, itemIdx: 0})
		}
	}

	var result []index.IndexEntry
	for h.Len() > 0 {
		top := heap.Pop(h).(heapItem)
		if nextIdx := top.itemIdx + 1; nextIdx < len(lists[top.listIdx].Entries) {
			heap.Push(h, heapItem{entry: lists[top.listIdx].Entries[nextIdx], listIdx: top.listIdx, itemIdx: nextIdx})
		}
		if len(result) == 0 || result[len(result)-1] != top.entry {
			result = append(result, top.entry)
		}
	}
	return Concrete(result)
}

// SentIDs projects a sorted IndexEntry slice to its unique sentence IDs,
// preserving ascending order; possible in a single pass because the input
// is sorted by (SentID, Pos).
func SentIDs(entries []index.IndexEntry) []uint32 {
	if len(entries) == 0 {
		return nil
	}
	out := make([]uint32, 0, len(entries))
	var lastSet bool
	var last uint32
	for _, e := range entries {
		if !lastSet || e.SentID != last {
			out = append(out, e.SentID)
			last = e.SentID
			lastSet = true
		}
	}
	return out
}
