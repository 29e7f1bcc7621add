package search

import (
	"reflect"
	"sort"
	"testing"

	"github.com/nullstrand/corpusregex/internal/corpus/index"
	"github.com/nullstrand/corpusregex/internal/corpus/tokenizer"
	"github.com/nullstrand/corpusregex/internal/corpus/trie"
)

// fixture builds a tiny three-sentence corpus: token "cat" (id 2), "dog"
// (id 3), "ca" (id 4, a proper prefix of "cat"), indexed across sentences
// 0..2, and returns a Driver wired over it.
func fixture(t *testing.T) (*Driver, index.InvertedIndex) {
	t.Helper()
	vocab := map[uint32][]byte{
		0: {}, 1: {},
		2: []byte("cat"),
		3: []byte("dog"),
		4: []byte("ca"),
	}
	backend := fakeBackend{vocab: vocab}
	tok, err := tokenizer.New(backend, tokenizer.Config{EOSTokenID: 1, BOSTokenID: 0, HasBOS: true})
	if err != nil {
		t.Fatalf("tokenizer.New: %v", err)
	}

	b := index.NewBuilder()
	if err := b.AddSentence(0, []uint32{2, 3}); err != nil { // "catdog"
		t.Fatalf("AddSentence: %v", err)
	}
	if err := b.AddSentence(1, []uint32{4}); err != nil { // "ca"
		t.Fatalf("AddSentence: %v", err)
	}
	if err := b.AddSentence(2, []uint32{3}); err != nil { // "dog"
		t.Fatalf("AddSentence: %v", err)
	}
	b.Finalize()
	idx := b.Index()

	tr := trie.Build(vocabEntries(tok), tok.MaxTokenBytes())
	accessor := func(tid uint32) []index.IndexEntry { return idx[tid] }
	allSentIDs := func() []uint32 { return []uint32{0, 1, 2} }
	return New(tr, tok, accessor, 0, allSentIDs), idx
}

func vocabEntries(tok *tokenizer.Tokenizer) []trie.VocabEntry {
	var out []trie.VocabEntry
	for _, e := range tok.Vocab() {
		out = append(out, trie.VocabEntry{TokenID: e.TokenID, Bytes: e.Bytes})
	}
	return out
}

type fakeBackend struct{ vocab map[uint32][]byte }

func (f fakeBackend) Tokenize(s string) ([]uint32, error) { return nil, nil }
func (f fakeBackend) Vocab() map[uint32][]byte            { return f.vocab }

func sortedIDs(ids []uint32) []uint32 {
	out := append([]uint32{}, ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestSearchLiteralToken(t *testing.T) {
	d, _ := fixture(t)
	res, err := d.Search("cat")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got, want := sortedIDs(res.SentIDs), []uint32{0}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Search(cat) = %v, want %v", got, want)
	}
	if res.NeedsRecheck {
		t.Fatalf("did not expect needs_recheck")
	}
}

func TestSearchUnionAcrossTokens(t *testing.T) {
	d, _ := fixture(t)
	res, err := d.Search("cat|dog")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got, want := sortedIDs(res.SentIDs), []uint32{0, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Search(cat|dog) = %v, want %v", got, want)
	}
}

func TestSearchAdjacentTokens(t *testing.T) {
	d, _ := fixture(t)
	res, err := d.Search("catdog")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got, want := sortedIDs(res.SentIDs), []uint32{0}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Search(catdog) = %v, want %v", got, want)
	}
}

func TestSearchNoMatch(t *testing.T) {
	d, _ := fixture(t)
	res, err := d.Search("bird")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.SentIDs) != 0 {
		t.Fatalf("Search(bird) = %v, want empty", res.SentIDs)
	}
}

func TestSearchMatchEverythingShortcut(t *testing.T) {
	d, _ := fixture(t)
	res, err := d.Search(".*")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got, want := sortedIDs(res.SentIDs), []uint32{0, 1, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Search(.*) = %v, want %v", got, want)
	}
	if res.NeedsRecheck {
		t.Fatalf("empty-language shortcut must not set needs_recheck")
	}
}

func TestSearchCycleAbortFlagsRecheck(t *testing.T) {
	d, _ := fixture(t)
	res, err := d.Search(".*dog")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !res.NeedsRecheck {
		t.Fatalf("expected needs_recheck for a cyclic DFA pattern like .*dog")
	}
}

func TestSearchBudgetAbortFlagsRecheck(t *testing.T) {
	d, _ := fixture(t)
	d.Budget = 1
	res, err := d.Search("catdog")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !res.NeedsRecheck {
		t.Fatalf("expected needs_recheck when the candidate budget is exhausted on the first token")
	}
}
