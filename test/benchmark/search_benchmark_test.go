package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/nullstrand/corpusregex/internal/corpus/regex"
	"github.com/nullstrand/corpusregex/internal/indexer"
	"github.com/nullstrand/corpusregex/internal/searcher/executor"
	"github.com/nullstrand/corpusregex/internal/searcher/parser"
	"github.com/nullstrand/corpusregex/pkg/config"
)

// BenchmarkRegexParse measures regex parsing+DFA-compilation latency for
// patterns of varying complexity.
func BenchmarkRegexParse(b *testing.B) {
	patterns := []struct {
		name    string
		pattern string
	}{
		{"literal", "distributed"},
		{"alternation", "search|analytics|platform"},
		{"star", "dis.*ed"},
		{"class", "[a-z]+ing"},
		{"complex", "(search|ranking)(analytics)?[a-z]*"},
	}

	for _, p := range patterns {
		b.Run(p.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				pat, err := regex.Parse(p.pattern)
				if err != nil {
					b.Fatal(err)
				}
				ast, err := regex.Lower(pat)
				if err != nil {
					b.Fatal(err)
				}
				dfa, err := regex.Compile(ast)
				if err != nil {
					b.Fatal(err)
				}
				_ = dfa
			}
		})
	}
}

// seedEngine tokenizes 1000 synthetic sentences built from tok's known
// vocabulary and indexes them into a fresh single-shard engine.
func seedEngine(b *testing.B, tok interface {
	Tokenize(string) ([]uint32, error)
}, sentOffset int) *indexer.Engine {
	b.Helper()
	cfg := config.IndexerConfig{
		DataDir:             b.TempDir(),
		SegmentMaxSentences: 1_000_000,
		FlushInterval:       0,
	}
	engine, err := indexer.NewEngine(cfg)
	if err != nil {
		b.Fatal(err)
	}
	for d := 0; d < 1000; d++ {
		text := fmt.Sprintf("distributed search engines process queries %d", d)
		ids, err := tok.Tokenize(text)
		if err != nil {
			b.Fatal(err)
		}
		if err := engine.AddSentence(uint32(sentOffset+d), ids); err != nil {
			b.Fatal(err)
		}
	}
	return engine
}

// BenchmarkShardedExecutor exercises the sharded query executor with
// varying shard counts, each shard holding 1000 indexed sentences.
func BenchmarkShardedExecutor(b *testing.B) {
	shardCounts := []int{1, 4, 8}
	for _, numShards := range shardCounts {
		b.Run(fmt.Sprintf("shards_%d", numShards), func(b *testing.B) {
			tok := newBenchTokenizer(b)
			engines := make(map[int]*indexer.Engine)
			for s := 0; s < numShards; s++ {
				engine := seedEngine(b, tok, s*1000)
				defer engine.Close()
				engines[s] = engine
			}

			exec := executor.NewSharded(engines, tok, 100_000, nil)
			plan, err := parser.Parse("distributed|search")
			if err != nil {
				b.Fatal(err)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				result, err := exec.Execute(context.Background(), plan, 10)
				if err != nil {
					b.Fatal(err)
				}
				_ = result
			}
		})
	}
}

// BenchmarkShardedExecutorParallel measures concurrent sharded search
// throughput across 8 shards.
func BenchmarkShardedExecutorParallel(b *testing.B) {
	tok := newBenchTokenizer(b)
	engines := make(map[int]*indexer.Engine)
	for s := 0; s < 8; s++ {
		engine := seedEngine(b, tok, s*1000)
		defer engine.Close()
		engines[s] = engine
	}

	exec := executor.NewSharded(engines, tok, 100_000, nil)
	plan, err := parser.Parse("distributed|search")
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			result, err := exec.Execute(context.Background(), plan, 10)
			if err != nil {
				b.Fatal(err)
			}
			_ = result
		}
	})
}
