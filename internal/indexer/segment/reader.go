package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	"github.com/nullstrand/corpusregex/internal/corpus/index"
)

// Reader opens a .spdx segment file and answers postings lookups by
// token_id via a binary-searched in-memory dictionary.
type Reader struct {
	file     *os.File
	filePath string
	header   SegmentHeader
	dict     []DictEntry
	postBase int64
}

// OpenReader opens the segment file at path and loads its dictionary.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("segment: opening file: %w", err)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("segment: reading header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		f.Close()
		return nil, fmt.Errorf("segment: invalid file %s: bad magic bytes %x", path, magic)
	}
	header := SegmentHeader{
		Magic:      magic,
		Version:    binary.LittleEndian.Uint32(headerBytes[4:8]),
		TokenCount: binary.LittleEndian.Uint32(headerBytes[8:12]),
		SentCount:  binary.LittleEndian.Uint32(headerBytes[12:16]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		DictOffset: int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		DictSize:   int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
		PostOffset: int64(binary.LittleEndian.Uint64(headerBytes[40:48])),
		PostSize:   int64(binary.LittleEndian.Uint64(headerBytes[48:56])),
	}
	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		f.Close()
		return nil, fmt.Errorf("segment: reading dictionary: %w", err)
	}
	dict := make([]DictEntry, header.TokenCount)
	for i := range dict {
		base := i * dictEntrySize
		dict[i] = DictEntry{
			TokenID:    binary.LittleEndian.Uint32(dictBytes[base:]),
			PostOffset: int64(binary.LittleEndian.Uint64(dictBytes[base+4:])),
			PostCount:  binary.LittleEndian.Uint32(dictBytes[base+12:]),
		}
	}

	footerBytes := make([]byte, FooterSize)
	if _, err := f.ReadAt(footerBytes, header.DictOffset+header.DictSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("segment: reading footer: %w", err)
	}
	wantChecksum := binary.LittleEndian.Uint32(footerBytes[0:4])
	gotChecksum := crc32.ChecksumIEEE(dictBytes)
	if gotChecksum != wantChecksum {
		f.Close()
		return nil, fmt.Errorf("segment: dictionary checksum mismatch in %s: got %x, want %x", path, gotChecksum, wantChecksum)
	}

	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		postBase: header.PostOffset,
	}, nil
}

// Search returns the posting list for tokenID, or nil if it is not present
// in this segment.
func (r *Reader) Search(tokenID uint32) ([]index.IndexEntry, error) {
	i := sort.Search(len(r.dict), func(i int) bool { return r.dict[i].TokenID >= tokenID })
	if i >= len(r.dict) || r.dict[i].TokenID != tokenID {
		return nil, nil
	}
	entry := r.dict[i]
	buf := make([]byte, 4*entry.PostCount)
	if _, err := r.file.ReadAt(buf, r.postBase+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("segment: reading postings: %w", err)
	}
	out := make([]index.IndexEntry, entry.PostCount)
	for i := range out {
		word := binary.LittleEndian.Uint32(buf[i*4:])
		out[i] = index.Unpack(word)
	}
	return out, nil
}

// Tokens reports the number of distinct token IDs this segment holds
// postings for.
func (r *Reader) Tokens() int {
	return len(r.dict)
}

// AllSentIDs scans every posting block in the segment and returns the
// distinct sentence IDs it covers, used to rebuild the sentence-ID roster
// on restart.
func (r *Reader) AllSentIDs() ([]uint32, error) {
	seen := make(map[uint32]struct{})
	for _, entry := range r.dict {
		buf := make([]byte, 4*entry.PostCount)
		if _, err := r.file.ReadAt(buf, r.postBase+entry.PostOffset); err != nil {
			return nil, fmt.Errorf("segment: reading postings for roster: %w", err)
		}
		for i := uint32(0); i < entry.PostCount; i++ {
			word := binary.LittleEndian.Uint32(buf[i*4:])
			seen[index.Unpack(word).SentID] = struct{}{}
		}
	}
	out := make([]uint32, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out, nil
}

// SentCount reports the distinct sentence count recorded in the header at
// write time.
func (r *Reader) SentCount() uint32 {
	return r.header.SentCount
}

// Path returns the filesystem path this reader was opened from.
func (r *Reader) Path() string {
	return r.filePath
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}
