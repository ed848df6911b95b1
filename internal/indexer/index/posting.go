package index

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/eliasfano"
)

// TermEntry is the uncompressed posting list of one term: document
// ordinals in non-decreasing order.
type TermEntry struct {
	Term string   `json:"term"`
	Docs []uint64 `json:"docs"`
}

// PostingList is an Elias–Fano compressed list of document ordinals. It is
// immutable once built; iterate it through Cursor.
type PostingList struct {
	term string
	seq  *eliasfano.Sequence
}

// PostingStats describes the encoded size of a posting list.
type PostingStats struct {
	Term        string             `json:"term"`
	Docs        uint64             `json:"docs"`
	Bits        uint64             `json:"bits"`
	BitsPerDoc  float64            `json:"bits_per_doc"`
	Geometry    eliasfano.Geometry `json:"geometry"`
	FirstDoc    uint64             `json:"first_doc"`
	LastDoc     uint64             `json:"last_doc"`
	Description string             `json:"description"`
}

// NewPostingList compresses docs, which must be non-empty and
// non-decreasing. The universe of the encoding is the last ordinal.
func NewPostingList(term string, docs []uint64) (*PostingList, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("posting list for term %q is empty", term)
	}
	universe := docs[len(docs)-1]
	if err := eliasfano.Validate(universe, docs); err != nil {
		return nil, fmt.Errorf("posting list for term %q: %w", term, err)
	}
	seq, err := eliasfano.New(universe, uint64(len(docs)))
	if err != nil {
		return nil, fmt.Errorf("posting list for term %q: %w", term, err)
	}
	seq.Build(docs)
	return &PostingList{term: term, seq: seq}, nil
}

func (p *PostingList) Term() string {
	return p.term
}

// Len returns the number of postings.
func (p *PostingList) Len() int {
	return int(p.seq.Size())
}

// BitSize returns the encoded size in bits.
func (p *PostingList) BitSize() uint64 {
	return p.seq.BitSize()
}

// Docs decodes every ordinal.
func (p *PostingList) Docs() []uint64 {
	return p.seq.Values()
}

// Cursor returns an independent iterator positioned on the first posting.
func (p *PostingList) Cursor() *Cursor {
	return &Cursor{seq: p.seq.Clone()}
}

// Stats reports the list's encoded geometry.
func (p *PostingList) Stats() PostingStats {
	geo := p.seq.Geometry()
	c := p.Cursor()
	first := c.Doc()
	last, _ := c.seq.Visit(geo.Count - 1)
	return PostingStats{
		Term:        p.term,
		Docs:        geo.Count,
		Bits:        geo.TotalBits,
		BitsPerDoc:  float64(geo.TotalBits) / float64(geo.Count),
		Geometry:    geo,
		FirstDoc:    first,
		LastDoc:     last,
		Description: geo.String(),
	}
}

// Cursor walks a posting list forward. It is not safe for concurrent use.
type Cursor struct {
	seq       *eliasfano.Sequence
	exhausted bool
}

// Doc returns the ordinal under the cursor. It is meaningless once the
// cursor is exhausted.
func (c *Cursor) Doc() uint64 {
	return c.seq.Value()
}

func (c *Cursor) Exhausted() bool {
	return c.exhausted
}

// Next moves to the following posting and reports whether one exists.
func (c *Cursor) Next() bool {
	if c.exhausted {
		return false
	}
	if _, err := c.seq.Next(); err != nil {
		c.exhausted = true
		return false
	}
	return true
}

// Advance moves forward to the first posting >= target and reports whether
// one exists. The cursor never moves backwards.
func (c *Cursor) Advance(target uint64) bool {
	for !c.exhausted && c.seq.Value() < target {
		c.Next()
	}
	return !c.exhausted
}
