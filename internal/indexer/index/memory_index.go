package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/metrics"
)

// Source is a searchable set of documents: the in-memory buffer or one
// flushed segment. Ordinals are local to a source.
type Source interface {
	// Postings returns the compressed list for term, or nil if the term
	// does not occur in this source.
	Postings(term string) (*PostingList, error)
	// DocID maps a local ordinal back to the external document ID.
	DocID(ordinal uint64) (string, bool)
	DocCount() int
	Name() string
}

// MemoryIndex buffers documents before they are flushed to a segment.
// Documents receive dense ordinals in arrival order, so every term's
// ordinal list is appended in non-decreasing order.
type MemoryIndex struct {
	mu     sync.RWMutex
	index  map[string][]uint64
	docIDs []string
	size   int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{index: make(map[string][]uint64)}
}

// AddDocument tokenizes title and body and records one posting per
// distinct term. It returns the ordinal assigned to the document.
func (m *MemoryIndex) AddDocument(docID string, title string, body string) uint64 {
	return m.AddTerms(docID, tokenizer.Terms(title+" "+body))
}

// AddTerms records an already tokenized document. terms must not repeat.
func (m *MemoryIndex) AddTerms(docID string, terms []string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ordinal := uint64(len(m.docIDs))
	m.docIDs = append(m.docIDs, docID)
	for _, term := range terms {
		m.index[term] = append(m.index[term], ordinal)
		m.size += int64(len(term) + 8)
	}
	m.size += int64(len(docID) + 16)
	return ordinal
}

// Postings compresses the buffered list for term on demand. Only segment
// builds report sequence metrics, so query traffic is not counted.
func (m *MemoryIndex) Postings(term string) (*PostingList, error) {
	m.mu.RLock()
	docs := append([]uint64(nil), m.index[term]...)
	m.mu.RUnlock()
	if len(docs) == 0 {
		return nil, nil
	}
	return NewPostingList(term, docs)
}

func (m *MemoryIndex) DocID(ordinal uint64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ordinal >= uint64(len(m.docIDs)) {
		return "", false
	}
	return m.docIDs[ordinal], true
}

func (m *MemoryIndex) Name() string {
	return "memory"
}

// Snapshot returns the buffered postings sorted by term and the ordinal
// to document ID table.
func (m *MemoryIndex) Snapshot() ([]TermEntry, []string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.index))
	for term, docs := range m.index {
		entries = append(entries, TermEntry{
			Term: term,
			Docs: append([]uint64(nil), docs...),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries, append([]string(nil), m.docIDs...)
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docIDs)
}

func (m *MemoryIndex) TermCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.index)
}

// Compress builds a posting list for every entry using up to concurrency
// goroutines.
func Compress(ctx context.Context, entries []TermEntry, concurrency int, m *metrics.Metrics) (map[string]*PostingList, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	lists := make([]*PostingList, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, entry := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pl, err := NewPostingList(entry.Term, entry.Docs)
			if err != nil {
				return err
			}
			m.ObserveSequence(uint64(pl.Len()), pl.BitSize())
			lists[i] = pl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compressing posting lists: %w", err)
	}
	out := make(map[string]*PostingList, len(lists))
	for _, pl := range lists {
		out[pl.Term()] = pl
	}
	return out, nil
}
