// Package segment serializes finalized inverted-index postings to durable
// .spdx files and reads them back. This generalizes the reference
// JSON-per-term layout to a binary layout keyed by token_id, storing each
// posting as a packed (sent_id, pos) uint32 per the core's bit layout.
package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/nullstrand/corpusregex/internal/corpus/index"
)

// MagicBytes identifies a valid .spdx segment file.
const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 32
	dictEntrySize int    = 16 // token_id(4) + post_offset(8) + post_count(4)
)

// SegmentHeader is the 64-byte header written at the start of every segment.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TokenCount uint32
	SentCount  uint32
	CreatedAt  int64
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
}

// DictEntry maps a token_id to its postings offset and count in the
// segment file.
type DictEntry struct {
	TokenID    uint32
	PostOffset int64
	PostCount  uint32
}

// Writer serializes InvertedIndex snapshots into new .spdx segment files.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates a new segment file containing the given
// posting-list snapshot, sorted by token_id. It writes to a .tmp file
// first and renames on success.
func (w *Writer) Write(postings index.InvertedIndex) (string, error) {
	if len(postings) == 0 {
		return "", fmt.Errorf("segment: cannot write empty segment")
	}
	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("segment: creating data directory: %w", err)
	}

	tokenIDs := make([]uint32, 0, len(postings))
	for tid := range postings {
		tokenIDs = append(tokenIDs, tid)
	}
	sort.Slice(tokenIDs, func(i, j int) bool { return tokenIDs[i] < tokenIDs[j] })

	segmentName := fmt.Sprintf("seg_%d.spdx", time.Now().UnixNano())
	finalPath := filepath.Join(w.dataDir, segmentName)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("segment: creating temp file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return "", fmt.Errorf("segment: reserving header: %w", err)
	}

	postingsStart, _ := f.Seek(0, 1)
	dict := make([]DictEntry, 0, len(tokenIDs))
	sentIDs := make(map[uint32]struct{})

	for _, tid := range tokenIDs {
		entries := postings[tid]
		offset, _ := f.Seek(0, 1)
		buf := make([]byte, 4*len(entries))
		for i, e := range entries {
			binary.LittleEndian.PutUint32(buf[i*4:], e.Pack())
			sentIDs[e.SentID] = struct{}{}
		}
		if _, err := f.Write(buf); err != nil {
			return "", fmt.Errorf("segment: writing postings for token %d: %w", tid, err)
		}
		dict = append(dict, DictEntry{
			TokenID:    tid,
			PostOffset: offset - postingsStart,
			PostCount:  uint32(len(entries)),
		})
	}

	postingsEnd, _ := f.Seek(0, 1)
	postingsSize := postingsEnd - postingsStart
	dictStart := postingsEnd
	dictBuf := make([]byte, len(dict)*dictEntrySize)
	for i, d := range dict {
		base := i * dictEntrySize
		binary.LittleEndian.PutUint32(dictBuf[base:], d.TokenID)
		binary.LittleEndian.PutUint64(dictBuf[base+4:], uint64(d.PostOffset))
		binary.LittleEndian.PutUint32(dictBuf[base+12:], d.PostCount)
	}
	if _, err := f.Write(dictBuf); err != nil {
		return "", fmt.Errorf("segment: writing dictionary: %w", err)
	}
	dictEnd, _ := f.Seek(0, 1)
	dictSize := dictEnd - dictStart

	checksum := crc32.ChecksumIEEE(dictBuf)
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], checksum)
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(sentIDs)))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(dictStart))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(dictSize))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(postingsSize))
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("segment: writing footer: %w", err)
	}

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(dict)))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(sentIDs)))
	binary.LittleEndian.PutUint64(header[16:24], uint64(time.Now().Unix()))
	binary.LittleEndian.PutUint64(header[24:32], uint64(dictStart))
	binary.LittleEndian.PutUint64(header[32:40], uint64(dictSize))
	binary.LittleEndian.PutUint64(header[40:48], uint64(postingsStart))
	binary.LittleEndian.PutUint64(header[48:56], uint64(postingsSize))
	if _, err := f.WriteAt(header, 0); err != nil {
		return "", fmt.Errorf("segment: updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("segment: syncing file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("segment: renaming file: %w", err)
	}
	return segmentName, nil
}
