package segment

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/metrics"
)

// Reader serves one segment from memory. Every posting list is rebuilt as
// an Elias–Fano sequence when the segment is opened; the file handle is
// released once loading completes.
type Reader struct {
	name     string
	header   SegmentHeader
	postings map[string]*index.PostingList
	docIDs   []string
	bits     uint64
}

// OpenReader loads and validates the segment at path and compresses its
// posting lists with up to concurrency goroutines.
func OpenReader(ctx context.Context, path string, concurrency int, m *metrics.Metrics) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	if len(data) < HeaderSize+FooterSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", apperrors.ErrSegmentCorrupt, path, len(data))
	}
	header := decodeHeader(data[:HeaderSize])
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic bytes %x", apperrors.ErrSegmentCorrupt, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", apperrors.ErrSegmentCorrupt, header.Version)
	}
	if end := header.DocsOffset + header.DocsSize; end+int64(FooterSize) != int64(len(data)) {
		return nil, fmt.Errorf("%w: section table does not match file size", apperrors.ErrSegmentCorrupt)
	}

	dictBytes, ok := section(data, header.DictOffset, header.DictSize)
	if !ok {
		return nil, fmt.Errorf("%w: dictionary out of range", apperrors.ErrSegmentCorrupt)
	}
	docsBytes, ok := section(data, header.DocsOffset, header.DocsSize)
	if !ok {
		return nil, fmt.Errorf("%w: document table out of range", apperrors.ErrSegmentCorrupt)
	}
	postBytes, ok := section(data, header.PostOffset, header.PostSize)
	if !ok {
		return nil, fmt.Errorf("%w: postings region out of range", apperrors.ErrSegmentCorrupt)
	}
	footer := data[len(data)-FooterSize:]
	if crc32.ChecksumIEEE(dictBytes) != binary.LittleEndian.Uint32(footer[0:4]) ||
		crc32.ChecksumIEEE(docsBytes) != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, fmt.Errorf("%w: checksum mismatch in %s", apperrors.ErrSegmentCorrupt, path)
	}

	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	var docIDs []string
	if err := json.Unmarshal(docsBytes, &docIDs); err != nil {
		return nil, fmt.Errorf("parsing document table: %w", err)
	}
	if len(docIDs) != int(header.DocCount) {
		return nil, fmt.Errorf("%w: header says %d documents, table has %d",
			apperrors.ErrSegmentCorrupt, header.DocCount, len(docIDs))
	}

	entries := make([]index.TermEntry, 0, len(dict))
	for _, d := range dict {
		raw, ok := section(postBytes, d.PostOffset, int64(d.PostLen))
		if !ok {
			return nil, fmt.Errorf("%w: postings for term %q out of range", apperrors.ErrSegmentCorrupt, d.Term)
		}
		var docs []uint64
		if err := json.Unmarshal(raw, &docs); err != nil {
			return nil, fmt.Errorf("parsing postings for term %q: %w", d.Term, err)
		}
		if len(docs) != d.DocFreq {
			return nil, fmt.Errorf("%w: term %q has %d postings, dictionary says %d",
				apperrors.ErrSegmentCorrupt, d.Term, len(docs), d.DocFreq)
		}
		if n := len(docs); n > 0 && docs[n-1] >= uint64(len(docIDs)) {
			return nil, fmt.Errorf("%w: term %q references ordinal %d past %d documents",
				apperrors.ErrSegmentCorrupt, d.Term, docs[n-1], len(docIDs))
		}
		entries = append(entries, index.TermEntry{Term: d.Term, Docs: docs})
	}

	postings, err := index.Compress(ctx, entries, concurrency, m)
	if err != nil {
		return nil, fmt.Errorf("loading segment %s: %w", filepath.Base(path), err)
	}
	var bits uint64
	for _, pl := range postings {
		bits += pl.BitSize()
	}
	return &Reader{
		name:     filepath.Base(path),
		header:   header,
		postings: postings,
		docIDs:   docIDs,
		bits:     bits,
	}, nil
}

// section returns data[offset:offset+size] when the range lies inside data.
// offset+size is never computed since it can overflow.
func section(data []byte, offset, size int64) ([]byte, bool) {
	n := int64(len(data))
	if offset < 0 || size < 0 || offset > n || size > n-offset {
		return nil, false
	}
	return data[offset : offset+size], true
}

// Postings returns the compressed list for term, or nil when absent.
func (r *Reader) Postings(term string) (*index.PostingList, error) {
	return r.postings[term], nil
}

func (r *Reader) DocID(ordinal uint64) (string, bool) {
	if ordinal >= uint64(len(r.docIDs)) {
		return "", false
	}
	return r.docIDs[ordinal], true
}

func (r *Reader) Name() string {
	return r.name
}

func (r *Reader) Terms() int {
	return len(r.postings)
}

func (r *Reader) DocCount() int {
	return int(r.header.DocCount)
}

// EncodedBits returns the total Elias–Fano size of the segment's postings.
func (r *Reader) EncodedBits() uint64 {
	return r.bits
}
