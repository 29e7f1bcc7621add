package tokenizer

import (
	"bytes"
	"testing"
)

type fakeBackend struct {
	vocab map[uint32][]byte
}

func (f *fakeBackend) Vocab() map[uint32][]byte { return f.vocab }

func (f *fakeBackend) Tokenize(s string) ([]uint32, error) {
	// Greedy longest-match over the fake vocab, good enough for tests.
	var ids []uint32
	rest := s
	for len(rest) > 0 {
		matched := false
		for length := len(rest); length > 0; length-- {
			candidate := rest[:length]
			for tid, b := range f.vocab {
				if string(b) == candidate {
					ids = append(ids, tid)
					rest = rest[length:]
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			rest = rest[1:]
		}
	}
	return ids, nil
}

func newTestTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	backend := &fakeBackend{
		vocab: map[uint32][]byte{
			0: []byte("<bos>"),
			1: []byte("<eos>"),
			2: []byte("hxllo"), // normalized form of "hello"
			3: []byte("world"),
		},
	}
	cfg := Config{
		Normalize:  NormalizeMap{'e': 'x'},
		EOSTokenID: 1,
		BOSTokenID: 0,
		HasBOS:     true,
	}
	tok, err := New(backend, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tok
}

func TestTokenizerUnnormalizesVocab(t *testing.T) {
	tok := newTestTokenizer(t)
	b, ok := tok.TokenBytes(2)
	if !ok {
		t.Fatalf("expected token 2 present")
	}
	if !bytes.Equal(b, []byte("hello")) {
		t.Fatalf("TokenBytes(2) = %q, want %q", b, "hello")
	}
}

func TestTokenizerIsSpecial(t *testing.T) {
	tok := newTestTokenizer(t)
	if !tok.IsSpecial(1) {
		t.Fatalf("expected EOS token to be special")
	}
	if !tok.IsSpecial(0) {
		t.Fatalf("expected BOS token to be special")
	}
	if tok.IsSpecial(2) {
		t.Fatalf("did not expect vocabulary token to be special")
	}
}

func TestTokenizerVocabExcludesSpecialTokens(t *testing.T) {
	tok := newTestTokenizer(t)
	entries := tok.Vocab()
	if len(entries) != 2 {
		t.Fatalf("Vocab() returned %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.TokenID == 0 || e.TokenID == 1 {
			t.Fatalf("Vocab() leaked special token %d", e.TokenID)
		}
	}
}

func TestTokenizerMaxTokenBytes(t *testing.T) {
	tok := newTestTokenizer(t)
	if tok.MaxTokenBytes() != 5 {
		t.Fatalf("MaxTokenBytes() = %d, want 5", tok.MaxTokenBytes())
	}
}

func TestTokenizerTokenize(t *testing.T) {
	tok := newTestTokenizer(t)
	ids, err := tok.Tokenize("helloworld")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Fatalf("Tokenize(\"helloworld\") = %v, want [2 3]", ids)
	}
}

func TestNewRejectsEmptyVocab(t *testing.T) {
	backend := &fakeBackend{vocab: map[uint32][]byte{}}
	if _, err := New(backend, Config{EOSTokenID: 1}); err == nil {
		t.Fatalf("expected ErrLoad for empty vocabulary")
	}
}
