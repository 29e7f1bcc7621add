// Package benchmark contains Go benchmarks for the indexer engine, the
// core inverted index, and the candidate-algebra merge primitives,
// measuring throughput and allocation behaviour.
package benchmark

import (
	"fmt"
	"testing"

	"github.com/nullstrand/corpusregex/internal/corpus/candidate"
	"github.com/nullstrand/corpusregex/internal/corpus/index"
	"github.com/nullstrand/corpusregex/internal/indexer"
	"github.com/nullstrand/corpusregex/pkg/config"
)

// tokensFor synthesizes a deterministic token-ID sequence for sentence i,
// drawing from a small shared vocabulary so postings overlap realistically.
func tokensFor(i int) []uint32 {
	vocab := []uint32{10, 20, 30, 40, 50, 60, 70, 80}
	return []uint32{vocab[i%len(vocab)], vocab[(i+1)%len(vocab)], vocab[(i+3)%len(vocab)]}
}

// BenchmarkBuilderAddSentence measures per-sentence insert throughput into
// the in-memory inverted-index builder.
func BenchmarkBuilderAddSentence(b *testing.B) {
	builder := index.NewBuilder()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := builder.AddSentence(uint32(i), tokensFor(i)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFollowedBy measures the adjacent-position join cost at varying
// posting-list sizes.
func BenchmarkFollowedBy(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, n := range sizes {
		b.Run(fmt.Sprintf("entries_%d", n), func(b *testing.B) {
			a := make([]index.IndexEntry, n)
			bEntries := make([]index.IndexEntry, n)
			for i := 0; i < n; i++ {
				a[i] = index.IndexEntry{SentID: uint32(i), Pos: 0}
				bEntries[i] = index.IndexEntry{SentID: uint32(i), Pos: 1}
			}
			list := candidate.Concrete(bEntries)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				result := candidate.FollowedBy(a, list)
				_ = result
			}
		})
	}
}

// BenchmarkUnionMerge measures k-way merge cost as the number of
// constituent lists grows.
func BenchmarkUnionMerge(b *testing.B) {
	listCounts := []int{2, 5, 10}
	for _, k := range listCounts {
		b.Run(fmt.Sprintf("lists_%d", k), func(b *testing.B) {
			lists := make([]candidate.List, k)
			for li := 0; li < k; li++ {
				entries := make([]index.IndexEntry, 1000)
				for i := range entries {
					entries[i] = index.IndexEntry{SentID: uint32(i*k + li), Pos: 0}
				}
				lists[li] = candidate.Concrete(entries)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				merged := candidate.UnionMerge(lists)
				_ = merged
			}
		})
	}
}

// BenchmarkEngineAddSentence measures full indexer-engine ingest throughput
// at various pre-loaded corpus sizes.
func BenchmarkEngineAddSentence(b *testing.B) {
	sizes := []int{100, 1000, 5000}
	for _, preload := range sizes {
		b.Run(fmt.Sprintf("preload_%d", preload), func(b *testing.B) {
			cfg := config.IndexerConfig{
				DataDir:             b.TempDir(),
				SegmentMaxSentences: 1_000_000,
				FlushInterval:       0,
			}
			engine, err := indexer.NewEngine(cfg)
			if err != nil {
				b.Fatal(err)
			}
			defer engine.Close()

			for i := 0; i < preload; i++ {
				if err := engine.AddSentence(uint32(i), tokensFor(i)); err != nil {
					b.Fatal(err)
				}
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				sentID := uint32(preload + i)
				if err := engine.AddSentence(sentID, tokensFor(i)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkEngineSearch measures single-token postings lookup latency
// across 10 000 sentences.
func BenchmarkEngineSearch(b *testing.B) {
	cfg := config.IndexerConfig{
		DataDir:             b.TempDir(),
		SegmentMaxSentences: 1_000_000,
		FlushInterval:       0,
	}
	engine, err := indexer.NewEngine(cfg)
	if err != nil {
		b.Fatal(err)
	}
	defer engine.Close()

	for i := 0; i < 10000; i++ {
		if err := engine.AddSentence(uint32(i), tokensFor(i)); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		entries, err := engine.Search(uint32(10 * ((i % 8) + 1)))
		if err != nil {
			b.Fatal(err)
		}
		_ = entries
	}
}
