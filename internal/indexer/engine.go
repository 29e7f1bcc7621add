package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nullstrand/corpusregex/internal/corpus/index"
	"github.com/nullstrand/corpusregex/internal/indexer/segment"
	"github.com/nullstrand/corpusregex/pkg/config"
)

// Engine accumulates tokenized sentences into an in-memory inverted index
// (via corpus/index.IndexBuilder) and periodically flushes it to durable
// .spdx segments, mirroring the reference engine's memory-index-plus-segment
// design generalized from documents/terms to sentences/token IDs.
type Engine struct {
	builder      *index.IndexBuilder
	pendingSents int
	builderMu    sync.RWMutex
	writer       *segment.Writer
	readers      []*segment.Reader
	readerMu     sync.RWMutex
	cfg          config.IndexerConfig
	logger       *slog.Logger
	sentIDs      map[uint32]struct{}
	sentIDsMu    sync.RWMutex
}

// NewEngine constructs an Engine backed by cfg.DataDir, recovering any
// segments already written there.
func NewEngine(cfg config.IndexerConfig) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	e := &Engine{
		builder: index.NewBuilder(),
		writer:  segment.NewWriter(cfg.DataDir),
		cfg:     cfg,
		logger:  slog.Default().With("component", "indexer"),
		sentIDs: make(map[uint32]struct{}),
	}
	if err := e.loadExistingSegments(); err != nil {
		return nil, fmt.Errorf("loading existing segments: %w", err)
	}
	return e, nil
}

// AddSentence adds a tokenized sentence to the in-memory index, flushing to
// disk once the configured sentence threshold is reached.
func (e *Engine) AddSentence(sentID uint32, tokenIDs []uint32) error {
	e.builderMu.Lock()
	if err := e.builder.AddSentence(sentID, tokenIDs); err != nil {
		e.builderMu.Unlock()
		return fmt.Errorf("indexing sentence %d: %w", sentID, err)
	}
	e.pendingSents++
	pending := e.pendingSents
	e.builderMu.Unlock()

	e.sentIDsMu.Lock()
	e.sentIDs[sentID] = struct{}{}
	e.sentIDsMu.Unlock()

	e.logger.Debug("sentence indexed in memory",
		"sent_id", sentID,
		"token_count", len(tokenIDs),
		"pending_sentences", pending,
	)
	if pending >= e.cfg.SegmentMaxSentences {
		e.logger.Info("memory index reached max size, flushing to disk",
			"pending_sentences", pending,
			"threshold", e.cfg.SegmentMaxSentences,
		)
		if err := e.Flush(); err != nil {
			return fmt.Errorf("flushing memory index: %w", err)
		}
	}
	return nil
}

// Flush finalizes and writes the current in-memory index to a new segment
// file, then resets the builder for the next batch.
func (e *Engine) Flush() error {
	e.builderMu.Lock()
	if e.pendingSents == 0 {
		e.builderMu.Unlock()
		return nil
	}
	e.builder.Finalize()
	snapshot := e.builder.Index()
	e.builder = index.NewBuilder()
	e.pendingSents = 0
	e.builderMu.Unlock()

	if len(snapshot) == 0 {
		return nil
	}
	segmentName, err := e.writer.Write(snapshot)
	if err != nil {
		return fmt.Errorf("writing segment: %w", err)
	}

	segPath := filepath.Join(e.cfg.DataDir, segmentName)
	reader, err := segment.OpenReader(segPath)
	if err != nil {
		return fmt.Errorf("opening new segment for reading: %w", err)
	}
	e.readerMu.Lock()
	e.readers = append(e.readers, reader)
	e.readerMu.Unlock()
	e.logger.Info("segment flushed",
		"segment", segmentName,
		"tokens", reader.Tokens(),
		"sentences", reader.SentCount(),
		"active_segments", len(e.readers),
	)
	return nil
}

// Search returns the merged posting list for tokenID across the in-memory
// index and every flushed segment.
func (e *Engine) Search(tokenID uint32) ([]index.IndexEntry, error) {
	e.builderMu.RLock()
	memPostings := append([]index.IndexEntry(nil), e.builder.Index()[tokenID]...)
	e.builderMu.RUnlock()

	e.readerMu.RLock()
	readers := make([]*segment.Reader, len(e.readers))
	copy(readers, e.readers)
	e.readerMu.RUnlock()

	all := memPostings
	for _, reader := range readers {
		postings, err := reader.Search(tokenID)
		if err != nil {
			e.logger.Error("segment search failed", "error", err)
			continue
		}
		all = append(all, postings...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Less(all[j]) })
	return all, nil
}

// SentIDs returns the full roster of sentence IDs this engine has indexed,
// the empty-language shortcut's "match everything" set.
func (e *Engine) SentIDs() []uint32 {
	e.sentIDsMu.RLock()
	defer e.sentIDsMu.RUnlock()
	out := make([]uint32, 0, len(e.sentIDs))
	for id := range e.sentIDs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Accessor returns the index.IndexAccessor-shaped function the corpus
// search driver expects.
func (e *Engine) Accessor() func(tokenID uint32) []index.IndexEntry {
	return func(tokenID uint32) []index.IndexEntry {
		postings, err := e.Search(tokenID)
		if err != nil {
			e.logger.Error("accessor search failed", "token_id", tokenID, "error", err)
			return nil
		}
		return postings
	}
}

// StartFlushLoop periodically flushes the in-memory index on cfg.FlushInterval
// until ctx is cancelled, performing one last flush on shutdown.
func (e *Engine) StartFlushLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				e.builderMu.RLock()
				pending := e.pendingSents
				e.builderMu.RUnlock()
				if pending > 0 {
					if err := e.Flush(); err != nil {
						e.logger.Error("periodic flush failed", "error", err)
					}
				}
			}
		}
	}()
}

// Close flushes any pending sentences and releases every segment reader.
func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		e.logger.Error("final flush on close failed", "error", err)
	}
	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	for _, reader := range e.readers {
		if err := reader.Close(); err != nil {
			e.logger.Error("closing segment reader", "error", err)
		}
	}
	e.readers = nil
	return nil
}

// ReloadSegments rescans cfg.DataDir for segment files not already loaded
// and opens readers for them, returning the number newly loaded.
func (e *Engine) ReloadSegments() int {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		e.logger.Error("reload: reading data directory", "error", err)
		return 0
	}
	e.readerMu.RLock()
	known := make(map[string]struct{}, len(e.readers))
	for _, r := range e.readers {
		known[filepath.Base(r.Path())] = struct{}{}
	}
	e.readerMu.RUnlock()

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".spdx") {
			continue
		}
		if _, ok := known[entry.Name()]; ok {
			continue
		}
		path := filepath.Join(e.cfg.DataDir, entry.Name())
		reader, err := segment.OpenReader(path)
		if err != nil {
			e.logger.Error("reload: opening segment failed", "segment", entry.Name(), "error", err)
			continue
		}
		e.readerMu.Lock()
		e.readers = append(e.readers, reader)
		e.readerMu.Unlock()
		if ids, err := reader.AllSentIDs(); err == nil {
			e.sentIDsMu.Lock()
			for _, id := range ids {
				e.sentIDs[id] = struct{}{}
			}
			e.sentIDsMu.Unlock()
		}
		loaded++
	}
	return loaded
}

func (e *Engine) loadExistingSegments() error {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading data directory: %w", err)
	}
	segFiles := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".spdx") {
			segFiles = append(segFiles, entry.Name())
		}
	}
	sort.Strings(segFiles)

	for _, name := range segFiles {
		path := filepath.Join(e.cfg.DataDir, name)
		reader, err := segment.OpenReader(path)
		if err != nil {
			e.logger.Error("failed to open segment, skipping", "segment", name, "error", err)
			continue
		}
		e.readers = append(e.readers, reader)
		if ids, err := reader.AllSentIDs(); err != nil {
			e.logger.Error("failed to rebuild sentence roster from segment", "segment", name, "error", err)
		} else {
			e.sentIDsMu.Lock()
			for _, id := range ids {
				e.sentIDs[id] = struct{}{}
			}
			e.sentIDsMu.Unlock()
		}
		e.logger.Info("loaded existing segment",
			"segment", name,
			"tokens", reader.Tokens(),
			"sentences", reader.SentCount(),
		)
	}
	e.logger.Info("segment recovery complete", "segments_loaded", len(e.readers))
	return nil
}
