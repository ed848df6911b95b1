package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/metrics"
)

// Engine owns one shard's in-memory buffer and its flushed segments.
type Engine struct {
	mu       sync.RWMutex
	memIndex *index.MemoryIndex
	flushing *index.MemoryIndex
	readers  []*segment.Reader
	flushMu  sync.Mutex

	writer  *segment.Writer
	cfg     config.IndexerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewEngine(ctx context.Context, cfg config.IndexerConfig, m *metrics.Metrics) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	e := &Engine{
		memIndex: index.NewMemoryIndex(),
		writer:   segment.NewWriter(cfg.DataDir),
		cfg:      cfg,
		metrics:  m,
		logger:   slog.Default().With("component", "indexer", "data_dir", cfg.DataDir),
	}
	if err := e.loadExistingSegments(ctx); err != nil {
		return nil, fmt.Errorf("loading existing segments: %w", err)
	}
	return e, nil
}

// IndexDocument adds a document to the memory buffer and flushes once the
// buffer reaches SegmentMaxSize. A failed flush is logged, not returned: the
// document is already searchable and the buffer is retried on the next flush.
func (e *Engine) IndexDocument(docID string, title string, body string) error {
	if docID == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "document id is required")
	}
	// The read lock keeps Flush from swapping the buffer mid-add.
	e.mu.RLock()
	mem := e.memIndex
	ordinal := mem.AddDocument(docID, title, body)
	e.mu.RUnlock()

	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
	}
	e.logger.Debug("document indexed in memory",
		"doc_id", docID,
		"ordinal", ordinal,
		"mem_size", mem.Size(),
	)
	if e.cfg.SegmentMaxSize > 0 && mem.Size() >= e.cfg.SegmentMaxSize {
		e.logger.Info("memory index reached max size, flushing to disk",
			"size", mem.Size(),
			"threshold", e.cfg.SegmentMaxSize,
		)
		if err := e.Flush(context.Background()); err != nil {
			e.logger.Error("size-triggered flush failed, keeping buffer",
				"doc_id", docID,
				"mem_docs", e.bufferedDocs(),
				"error", err,
			)
		}
	}
	return nil
}

// Flush writes the buffered documents to a new segment. The buffer stays
// searchable until the segment is loaded.
func (e *Engine) Flush(ctx context.Context) (err error) {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.mu.Lock()
	if e.memIndex.DocCount() == 0 {
		e.mu.Unlock()
		return nil
	}
	e.flushing = e.memIndex
	e.memIndex = index.NewMemoryIndex()
	e.mu.Unlock()

	defer func() {
		e.metrics.ObserveFlush(err)
		if err != nil {
			// Keep the documents searchable and retry on the next flush.
			e.mu.Lock()
			e.memIndex = mergeMemory(e.flushing, e.memIndex)
			e.flushing = nil
			e.mu.Unlock()
		}
	}()

	entries, docIDs := e.flushing.Snapshot()
	segmentName, err := e.writer.Write(entries, docIDs)
	if err != nil {
		return fmt.Errorf("writing segment: %w", err)
	}
	segPath := filepath.Join(e.cfg.DataDir, segmentName)
	reader, err := segment.OpenReader(ctx, segPath, e.cfg.BuildConcurrency, e.metrics)
	if err != nil {
		return fmt.Errorf("opening new segment for reading: %w", err)
	}

	e.mu.Lock()
	e.readers = append(e.readers, reader)
	e.flushing = nil
	active := len(e.readers)
	e.mu.Unlock()

	e.logger.Info("segment flushed",
		"segment", segmentName,
		"terms", reader.Terms(),
		"docs", reader.DocCount(),
		"encoded_bits", reader.EncodedBits(),
		"active_segments", active,
	)
	return nil
}

// mergeMemory replays the documents of older in front of newer.
func mergeMemory(older, newer *index.MemoryIndex) *index.MemoryIndex {
	merged := index.NewMemoryIndex()
	for _, src := range []*index.MemoryIndex{older, newer} {
		entries, docIDs := src.Snapshot()
		terms := make([][]string, len(docIDs))
		for _, entry := range entries {
			for _, ord := range entry.Docs {
				terms[ord] = append(terms[ord], entry.Term)
			}
		}
		for ord, id := range docIDs {
			merged.AddTerms(id, terms[ord])
		}
	}
	return merged
}

// Sources returns every searchable source, oldest first.
func (e *Engine) Sources() []index.Source {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sources := make([]index.Source, 0, len(e.readers)+2)
	for _, r := range e.readers {
		sources = append(sources, r)
	}
	if e.flushing != nil {
		sources = append(sources, e.flushing)
	}
	sources = append(sources, e.memIndex)
	return sources
}

// TermStats returns the posting-list statistics of term in every source
// that contains it.
func (e *Engine) TermStats(term string) ([]SourceStats, error) {
	var out []SourceStats
	for _, src := range e.Sources() {
		pl, err := src.Postings(term)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name(), err)
		}
		if pl == nil {
			continue
		}
		out = append(out, SourceStats{Source: src.Name(), Stats: pl.Stats()})
	}
	return out, nil
}

// SourceStats pairs a source name with one posting list's statistics.
type SourceStats struct {
	Source string             `json:"source"`
	Stats  index.PostingStats `json:"stats"`
}

func (e *Engine) GetTotalDocs() int64 {
	var total int64
	for _, src := range e.Sources() {
		total += int64(src.DocCount())
	}
	return total
}

func (e *Engine) bufferedDocs() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.memIndex.DocCount()
}

func (e *Engine) SegmentCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.readers)
}

func (e *Engine) StartFlushLoop(ctx context.Context) {
	if e.cfg.FlushInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(context.Background()); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if err := e.Flush(ctx); err != nil {
					e.logger.Error("periodic flush failed", "error", err)
				}
			}
		}
	}()
}

// ReloadSegments opens segment files written by another process since the
// last load and returns how many were added.
func (e *Engine) ReloadSegments(ctx context.Context) (int, error) {
	names, err := e.segmentFiles()
	if err != nil {
		return 0, err
	}
	e.mu.RLock()
	known := make(map[string]struct{}, len(e.readers))
	for _, r := range e.readers {
		known[r.Name()] = struct{}{}
	}
	e.mu.RUnlock()

	added := 0
	for _, name := range names {
		if _, ok := known[name]; ok {
			continue
		}
		reader, err := segment.OpenReader(ctx, filepath.Join(e.cfg.DataDir, name), e.cfg.BuildConcurrency, e.metrics)
		if err != nil {
			e.logger.Error("failed to open segment, skipping", "segment", name, "error", err)
			continue
		}
		e.mu.Lock()
		e.readers = append(e.readers, reader)
		e.mu.Unlock()
		added++
	}
	return added, nil
}

func (e *Engine) Close() error {
	if err := e.Flush(context.Background()); err != nil {
		e.logger.Error("final flush on close failed", "error", err)
		return err
	}
	return nil
}

func (e *Engine) segmentFiles() ([]string, error) {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), segment.FileExt) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (e *Engine) loadExistingSegments(ctx context.Context) error {
	added, err := e.ReloadSegments(ctx)
	if err != nil {
		return err
	}
	e.logger.Info("segment recovery complete", "segments_loaded", added)
	return nil
}
