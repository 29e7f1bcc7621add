package trie

import (
	"reflect"
	"testing"

	"github.com/nullstrand/corpusregex/internal/corpus/regex"
)

func buildDFA(t *testing.T, pattern string) *regex.DFA {
	t.Helper()
	e, err := regex.Build(pattern)
	if err != nil {
		t.Fatalf("regex.Build(%q): %v", pattern, err)
	}
	return e.DFA
}

func TestNextTokensBasic(t *testing.T) {
	dfa := buildDFA(t, "ho.*")
	vocab := []VocabEntry{
		{TokenID: 1, Bytes: []byte("ho")},
		{TokenID: 2, Bytes: []byte("home")},
		{TokenID: 3, Bytes: []byte("cat")},
	}
	dt := Build(vocab, 6)

	got := dt.NextTokens(dfa, dfa.Start, 0)
	want := []uint32{1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NextTokens = %v, want %v", got, want)
	}
}

func TestNextTokensWithPad(t *testing.T) {
	dfa := buildDFA(t, "llo")
	vocab := []VocabEntry{
		{TokenID: 1, Bytes: []byte("hello")},
	}
	dt := Build(vocab, 5)

	got := dt.NextTokens(dfa, dfa.Start, 2)
	want := []uint32{1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NextTokens with pad=2 = %v, want %v", got, want)
	}

	got0 := dt.NextTokens(dfa, dfa.Start, 0)
	if len(got0) != 0 {
		t.Fatalf("NextTokens with pad=0 = %v, want empty (hello does not start with llo)", got0)
	}
}

func TestConsumeTokenAccepted(t *testing.T) {
	dfa := buildDFA(t, "ab+")
	out := ConsumeToken(dfa, dfa.Start, []byte("abbb"))
	if out.Kind != Accepted {
		t.Fatalf("ConsumeToken(abbb) = %v, want Accepted", out.Kind)
	}
}

func TestConsumeTokenRejected(t *testing.T) {
	dfa := buildDFA(t, "ab+")
	out := ConsumeToken(dfa, dfa.Start, []byte("xyz"))
	if out.Kind != Rejected {
		t.Fatalf("ConsumeToken(xyz) = %v, want Rejected", out.Kind)
	}
}

func TestConsumeTokenContinue(t *testing.T) {
	dfa := buildDFA(t, "abcdef")
	out := ConsumeToken(dfa, dfa.Start, []byte("abc"))
	if out.Kind != Continue {
		t.Fatalf("ConsumeToken(abc) = %v, want Continue", out.Kind)
	}
	next, ok := dfa.NextState(out.State, 'd')
	if !ok {
		t.Fatalf("expected state after 'abc' to have a 'd' transition")
	}
	_ = next
}

func TestConsumeTokenAgreesWithByteByByteWalk(t *testing.T) {
	dfa := buildDFA(t, "(ab)+c")
	tokens := [][]byte{[]byte("ab"), []byte("abc"), []byte("ba"), []byte("c")}
	for _, tok := range tokens {
		out := ConsumeToken(dfa, dfa.Start, tok)

		state := dfa.Start
		rejected := false
		acceptedAt := -1
		for i, b := range tok {
			next, ok := dfa.NextState(state, b)
			if !ok {
				rejected = true
				break
			}
			state = next
			if dfa.IsAccept(state) {
				acceptedAt = i
				break
			}
		}

		switch {
		case rejected:
			if out.Kind != Rejected {
				t.Fatalf("token %q: ConsumeToken=%v, byte walk=Rejected", tok, out.Kind)
			}
		case acceptedAt >= 0:
			if out.Kind != Accepted {
				t.Fatalf("token %q: ConsumeToken=%v, byte walk=Accepted", tok, out.Kind)
			}
		default:
			if out.Kind != Continue || out.State != state {
				t.Fatalf("token %q: ConsumeToken=%v state=%d, byte walk state=%d", tok, out.Kind, out.State, state)
			}
		}
	}
}
