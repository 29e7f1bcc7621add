package index

import (
	"bytes"
	"testing"
)

func TestIndexEntryPackUnpack(t *testing.T) {
	cases := []IndexEntry{
		{SentID: 0, Pos: 0},
		{SentID: 1, Pos: 1},
		{SentID: MaxSentID, Pos: MaxPos},
		{SentID: 42, Pos: 7},
	}
	for _, e := range cases {
		word := e.Pack()
		got := Unpack(word)
		if got != e {
			t.Fatalf("Pack/Unpack(%+v) = %+v, want %+v", e, got, e)
		}
	}
}

func TestIndexEntryLess(t *testing.T) {
	a := IndexEntry{SentID: 1, Pos: 5}
	b := IndexEntry{SentID: 1, Pos: 6}
	c := IndexEntry{SentID: 2, Pos: 0}
	if !a.Less(b) {
		t.Fatalf("expected %+v < %+v", a, b)
	}
	if !b.Less(c) {
		t.Fatalf("expected %+v < %+v", b, c)
	}
	if c.Less(a) {
		t.Fatalf("did not expect %+v < %+v", c, a)
	}
}

func TestBuilderAddSentenceAndFinalize(t *testing.T) {
	b := NewBuilder()
	if err := b.AddSentence(2, []uint32{10, 20, 10}); err != nil {
		t.Fatalf("AddSentence: %v", err)
	}
	if err := b.AddSentence(1, []uint32{20, 10}); err != nil {
		t.Fatalf("AddSentence: %v", err)
	}
	b.Finalize()
	idx := b.Index()

	want10 := []IndexEntry{{SentID: 1, Pos: 1}, {SentID: 2, Pos: 0}, {SentID: 2, Pos: 2}}
	got10 := idx[10]
	if len(got10) != len(want10) {
		t.Fatalf("token 10 postings = %v, want %v", got10, want10)
	}
	for i, e := range want10 {
		if got10[i] != e {
			t.Fatalf("token 10 postings[%d] = %+v, want %+v", i, got10[i], e)
		}
	}

	want20 := []IndexEntry{{SentID: 1, Pos: 0}, {SentID: 2, Pos: 1}}
	got20 := idx[20]
	if len(got20) != len(want20) {
		t.Fatalf("token 20 postings = %v, want %v", got20, want20)
	}
	for i, e := range want20 {
		if got20[i] != e {
			t.Fatalf("token 20 postings[%d] = %+v, want %+v", i, got20[i], e)
		}
	}
}

func TestBuilderAddSentenceOutOfRange(t *testing.T) {
	b := NewBuilder()
	if err := b.AddSentence(MaxSentID+1, []uint32{1}); err == nil {
		t.Fatalf("expected ErrOutOfRange for oversized sent_id")
	}
	tooMany := make([]uint32, MaxPos+2)
	if err := b.AddSentence(1, tooMany); err == nil {
		t.Fatalf("expected ErrOutOfRange for oversized position")
	}
}

func TestFromTokenizedCorpusRoundTrip(t *testing.T) {
	sentences := map[uint32][]uint32{
		0: {5, 6, 7},
		1: {6, 8},
	}
	var buf bytes.Buffer
	if err := WriteTokenizedCorpus(&buf, sentences); err != nil {
		t.Fatalf("WriteTokenizedCorpus: %v", err)
	}

	idx, err := FromTokenizedCorpus(&buf)
	if err != nil {
		t.Fatalf("FromTokenizedCorpus: %v", err)
	}
	if len(idx[6]) != 2 {
		t.Fatalf("token 6 postings = %v, want 2 entries", idx[6])
	}
	if idx[6][0].SentID != 0 || idx[6][1].SentID != 1 {
		t.Fatalf("token 6 postings not sorted by sent_id: %v", idx[6])
	}
}
