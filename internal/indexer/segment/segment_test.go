package segment

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/errors"
)

func writeTestSegment(t *testing.T) (string, []index.TermEntry, []string) {
	t.Helper()
	mi := index.NewMemoryIndex()
	mi.AddDocument("doc-1", "distributed search", "inverted index with compressed postings")
	mi.AddDocument("doc-2", "elias fano", "compressed monotone sequences")
	mi.AddDocument("doc-3", "search engine", "query processing over postings")
	entries, docIDs := mi.Snapshot()

	dir := t.TempDir()
	name, err := NewWriter(dir).Write(entries, docIDs)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	return filepath.Join(dir, name), entries, docIDs
}

func TestWriteAndOpen(t *testing.T) {
	path, entries, docIDs := writeTestSegment(t)

	r, err := OpenReader(context.Background(), path, 2, nil)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	if r.Terms() != len(entries) {
		t.Fatalf("Terms() = %d, want %d", r.Terms(), len(entries))
	}
	if r.DocCount() != len(docIDs) {
		t.Fatalf("DocCount() = %d, want %d", r.DocCount(), len(docIDs))
	}
	for _, e := range entries {
		pl, err := r.Postings(e.Term)
		if err != nil || pl == nil {
			t.Fatalf("Postings(%q) = %v, %v", e.Term, pl, err)
		}
		if got := pl.Docs(); !slices.Equal(got, e.Docs) {
			t.Fatalf("Postings(%q) = %v, want %v", e.Term, got, e.Docs)
		}
	}
	if id, ok := r.DocID(1); !ok || id != "doc-2" {
		t.Fatalf("DocID(1) = %q, %v", id, ok)
	}
	if pl, _ := r.Postings("absent"); pl != nil {
		t.Fatal("unexpected postings for absent term")
	}
	if r.EncodedBits() == 0 {
		t.Fatal("EncodedBits() = 0")
	}
	if matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp")); len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestWriteRejectsEmpty(t *testing.T) {
	if _, err := NewWriter(t.TempDir()).Write(nil, nil); err == nil {
		t.Fatal("expected error writing empty segment")
	}
}

func TestOpenDetectsCorruption(t *testing.T) {
	path, _, _ := writeTestSegment(t)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"bad magic", func(b []byte) []byte { b[0] ^= 0xff; return b }},
		{"truncated", func(b []byte) []byte { return b[:len(b)-3] }},
		{"dictionary flipped", func(b []byte) []byte {
			h := decodeHeader(b)
			b[h.DictOffset+2] ^= 0x01
			return b
		}},
		{"too short", func(b []byte) []byte { return b[:10] }},
		{"dictionary offset overflows", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[16:24], math.MaxInt64)
			return b
		}},
		{"postings size overflows", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[40:48], math.MaxInt64)
			return b
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corrupt := tt.mutate(slices.Clone(data))
			p := filepath.Join(t.TempDir(), "corrupt.spdx")
			if err := os.WriteFile(p, corrupt, 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := OpenReader(context.Background(), p, 1, nil)
			if !errors.Is(err, apperrors.ErrSegmentCorrupt) {
				t.Fatalf("expected ErrSegmentCorrupt, got %v", err)
			}
		})
	}
}

func TestSectionBounds(t *testing.T) {
	data := make([]byte, 100)
	tests := []struct {
		offset, size int64
		ok           bool
	}{
		{0, 100, true},
		{40, 60, true},
		{100, 0, true},
		{40, 61, false},
		{101, 0, false},
		{-1, 10, false},
		{10, -1, false},
		{math.MaxInt64, 10, false},
		{10, math.MaxInt64, false},
		{math.MaxInt64, math.MaxInt64, false},
	}
	for _, tt := range tests {
		got, ok := section(data, tt.offset, tt.size)
		if ok != tt.ok {
			t.Errorf("section(%d, %d) ok = %v, want %v", tt.offset, tt.size, ok, tt.ok)
			continue
		}
		if ok && int64(len(got)) != tt.size {
			t.Errorf("section(%d, %d) len = %d", tt.offset, tt.size, len(got))
		}
	}
}
