package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/nullstrand/corpusregex/internal/corpus/tokenizer"
)

// wordBackend is a minimal whole-word BPETokenizer fake for benchmarking the
// tokenizer adapter's overhead independent of a real BPE merge table.
type wordBackend struct {
	ids map[string]uint32
}

func newWordBackend() *wordBackend {
	words := []string{
		"the", "quick", "brown", "fox", "jumps", "over", "lazy", "dog",
		"distributed", "search", "engines", "process", "queries", "across",
		"multiple", "shards", "achieve", "horizontal", "scalability", "each",
		"shard", "maintains", "its", "own", "inverted", "index", "and",
		"responds", "to", "independently", "results", "are", "merged",
	}
	ids := make(map[string]uint32, len(words))
	for i, w := range words {
		ids[w] = uint32(i + 2)
	}
	return &wordBackend{ids: ids}
}

func (w *wordBackend) Vocab() map[uint32][]byte {
	out := make(map[uint32][]byte, len(w.ids))
	for word, id := range w.ids {
		out[id] = []byte(word)
	}
	return out
}

func (w *wordBackend) Tokenize(s string) ([]uint32, error) {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]uint32, 0, len(fields))
	for _, f := range fields {
		if id, ok := w.ids[f]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

var sampleTexts = map[string]string{
	"short": "the quick brown fox jumps over the lazy dog",
	"medium": `distributed search engines process queries across multiple shards to achieve
        horizontal scalability each shard maintains its own inverted index and responds
        to queries independently results are merged`,
	"long": strings.Repeat(`distributed search engines process queries across multiple shards
        to achieve horizontal scalability each shard maintains its own inverted index
        and responds to queries independently results are merged `, 20),
}

func newBenchTokenizer(b *testing.B) *tokenizer.Tokenizer {
	b.Helper()
	tok, err := tokenizer.New(newWordBackend(), tokenizer.Config{EOSTokenID: 1})
	if err != nil {
		b.Fatalf("building tokenizer: %v", err)
	}
	return tok
}

func BenchmarkTokenize(b *testing.B) {
	tok := newBenchTokenizer(b)
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				ids, err := tok.Tokenize(text)
				if err != nil {
					b.Fatal(err)
				}
				_ = ids
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	tok := newBenchTokenizer(b)
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			ids, err := tok.Tokenize(text)
			if err != nil {
				b.Fatal(err)
			}
			_ = ids
		}
	})
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	tok := newBenchTokenizer(b)
	sizes := []int{10, 100, 500, 1000, 5000}
	baseWord := "distributed search analytics platform indexing "
	for _, size := range sizes {
		text := strings.Repeat(baseWord, size/len(baseWord)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				ids, err := tok.Tokenize(text)
				if err != nil {
					b.Fatal(err)
				}
				_ = ids
			}
		})
	}
}
