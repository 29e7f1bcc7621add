package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
)

// InvertedIndex maps a token ID to its sorted posting list.
type InvertedIndex map[uint32][]IndexEntry

// IndexBuilder accumulates tokenized sentences into per-token posting lists.
// It is safe for concurrent AddSentence calls from multiple ingestion
// workers; Finalize and Index must run after all writers have stopped.
type IndexBuilder struct {
	mu       sync.Mutex
	postings map[uint32][]IndexEntry
	sorted   bool
}

// NewBuilder returns an empty IndexBuilder.
func NewBuilder() *IndexBuilder {
	return &IndexBuilder{
		postings: make(map[uint32][]IndexEntry),
	}
}

// AddSentence records one (sent_id, pos) entry for every token in tokens.
// It returns ErrOutOfRange if sentID or any position exceeds the configured
// bit width rather than silently truncating.
func (b *IndexBuilder) AddSentence(sentID uint32, tokens []uint32) error {
	if sentID > MaxSentID {
		return &ErrOutOfRange{SentID: sentID, Pos: -1}
	}
	if len(tokens) > MaxPos+1 {
		return &ErrOutOfRange{SentID: sentID, Pos: len(tokens)}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for pos, tokenID := range tokens {
		b.postings[tokenID] = append(b.postings[tokenID], IndexEntry{
			SentID: sentID,
			Pos:    uint32(pos),
		})
	}
	b.sorted = false
	return nil
}

// Finalize sorts every posting list by (SentID, Pos), the order the
// candidate algebra (FollowedBy, UnionMerge) requires. It is idempotent.
func (b *IndexBuilder) Finalize() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sorted {
		return
	}
	for tokenID, entries := range b.postings {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Less(entries[j])
		})
		b.postings[tokenID] = entries
	}
	b.sorted = true
}

// Index returns the built InvertedIndex. Callers must call Finalize first;
// Index does not sort on its own so concurrent readers never observe a
// half-sorted posting list.
func (b *IndexBuilder) Index() InvertedIndex {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(InvertedIndex, len(b.postings))
	for tokenID, entries := range b.postings {
		out[tokenID] = entries
	}
	return out
}

// writeRecord writes one record in the on-disk length-prefixed layout
// consumed by FromTokenizedCorpus: a uint32 sentence ID, a uint32 token count, then
// that many uint32 token IDs, all little-endian.
func writeRecord(w *bufio.Writer, sentID uint32, tokens []uint32) error {
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], sentID)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(tokens)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	for _, tok := range tokens {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], tok)
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// WriteTokenizedCorpus writes sentences to w in the record format that
// FromTokenizedCorpus reads back, for building fixtures and for the
// indexer's disk-staged ingestion path.
func WriteTokenizedCorpus(w io.Writer, sentences map[uint32][]uint32) error {
	ids := make([]uint32, 0, len(sentences))
	for id := range sentences {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	bw := bufio.NewWriter(w)
	for _, id := range ids {
		if err := writeRecord(bw, id, sentences[id]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// FromTokenizedCorpus builds a fully finalized InvertedIndex by streaming a
// length-prefixed binary record stream of (sent_id, []token_id) pairs, the
// Go counterpart of index_builder::from_file.
func FromTokenizedCorpus(r io.Reader) (InvertedIndex, error) {
	b := NewBuilder()
	br := bufio.NewReader(r)
	for {
		var hdr [8]byte
		_, err := io.ReadFull(br, hdr[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("index: reading record header: %w", err)
		}
		sentID := binary.LittleEndian.Uint32(hdr[0:4])
		count := binary.LittleEndian.Uint32(hdr[4:8])

		tokens := make([]uint32, count)
		for i := range tokens {
			var buf [4]byte
			if _, err := io.ReadFull(br, buf[:]); err != nil {
				return nil, fmt.Errorf("index: reading token %d of sentence %d: %w", i, sentID, err)
			}
			tokens[i] = binary.LittleEndian.Uint32(buf[:])
		}
		if err := b.AddSentence(sentID, tokens); err != nil {
			return nil, err
		}
	}
	b.Finalize()
	return b.Index(), nil
}

// FromTokenizedCorpusFile is a convenience wrapper around
// FromTokenizedCorpus for the common case of a path on local disk.
func FromTokenizedCorpusFile(path string) (InvertedIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("index: opening %s: %w", path, err)
	}
	defer f.Close()
	return FromTokenizedCorpus(f)
}
