package index

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/metrics"
)

func TestMemoryIndexAssignsOrdinals(t *testing.T) {
	mi := NewMemoryIndex()
	docs := []struct{ id, title, body string }{
		{"doc-a", "Elias Fano", "succinct encoding of sorted integers"},
		{"doc-b", "Roaring bitmaps", "compressed integer sets"},
		{"doc-c", "Posting lists", "sorted integers in an inverted index"},
	}
	for i, d := range docs {
		if got := mi.AddDocument(d.id, d.title, d.body); got != uint64(i) {
			t.Fatalf("ordinal for %s = %d, want %d", d.id, got, i)
		}
	}
	if mi.DocCount() != 3 {
		t.Fatalf("DocCount = %d", mi.DocCount())
	}

	pl, err := mi.Postings("sort")
	if err != nil {
		t.Fatal(err)
	}
	if pl == nil {
		t.Fatal("expected postings for \"sort\"")
	}
	if got := pl.Docs(); !slices.Equal(got, []uint64{0, 2}) {
		t.Fatalf("postings for sort = %v, want [0 2]", got)
	}
	if id, ok := mi.DocID(2); !ok || id != "doc-c" {
		t.Fatalf("DocID(2) = %q, %v", id, ok)
	}
	if _, ok := mi.DocID(3); ok {
		t.Fatal("DocID past the end reported ok")
	}
	if pl, _ := mi.Postings("missing"); pl != nil {
		t.Fatal("expected nil postings for unknown term")
	}
}

func TestSnapshotIsSortedCopy(t *testing.T) {
	mi := NewMemoryIndex()
	mi.AddDocument("1", "zebra apple", "")
	mi.AddDocument("2", "apple mango", "")

	entries, docIDs := mi.Snapshot()
	var terms []string
	for _, e := range entries {
		terms = append(terms, e.Term)
	}
	if !slices.IsSorted(terms) {
		t.Fatalf("snapshot terms not sorted: %v", terms)
	}
	if !slices.Equal(docIDs, []string{"1", "2"}) {
		t.Fatalf("docIDs = %v", docIDs)
	}
	mi.AddDocument("3", "apple", "")
	for _, e := range entries {
		if e.Term == "apple" && len(e.Docs) != 2 {
			t.Fatalf("snapshot aliased live postings: %v", e.Docs)
		}
	}
}

func TestCursorAdvance(t *testing.T) {
	pl, err := NewPostingList("t", []uint64{2, 3, 3, 10, 40, 41, 900})
	if err != nil {
		t.Fatal(err)
	}
	c := pl.Cursor()
	if c.Doc() != 2 {
		t.Fatalf("first doc = %d", c.Doc())
	}
	if !c.Advance(3) || c.Doc() != 3 {
		t.Fatalf("Advance(3) -> %d", c.Doc())
	}
	if !c.Advance(11) || c.Doc() != 40 {
		t.Fatalf("Advance(11) -> %d", c.Doc())
	}
	if !c.Advance(5) || c.Doc() != 40 {
		t.Fatalf("Advance backwards moved the cursor to %d", c.Doc())
	}
	if c.Advance(901) {
		t.Fatal("Advance past the last posting succeeded")
	}
	if !c.Exhausted() || c.Next() {
		t.Fatal("cursor should stay exhausted")
	}

	other := pl.Cursor()
	if other.Doc() != 2 {
		t.Fatalf("cursors share state: second cursor at %d", other.Doc())
	}
}

func TestPostingListRejectsUnsorted(t *testing.T) {
	if _, err := NewPostingList("t", []uint64{5, 1}); err == nil {
		t.Fatal("expected error for unsorted docs")
	}
	if _, err := NewPostingList("t", nil); err == nil {
		t.Fatal("expected error for empty docs")
	}
}

func TestPostingStats(t *testing.T) {
	pl, err := NewPostingList("t", []uint64{0, 5, 9, 800, 1000})
	if err != nil {
		t.Fatal(err)
	}
	st := pl.Stats()
	if st.Docs != 5 || st.Bits != 49 || st.FirstDoc != 0 || st.LastDoc != 1000 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if st.Geometry.LowWidth != 7 {
		t.Fatalf("low width = %d, want 7", st.Geometry.LowWidth)
	}
}

func TestCompress(t *testing.T) {
	var entries []TermEntry
	for i := 0; i < 50; i++ {
		docs := make([]uint64, 0, i+1)
		for j := 0; j <= i; j++ {
			docs = append(docs, uint64(j*(i+1)))
		}
		entries = append(entries, TermEntry{Term: fmt.Sprintf("term-%02d", i), Docs: docs})
	}
	lists, err := Compress(context.Background(), entries, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(lists) != len(entries) {
		t.Fatalf("got %d lists, want %d", len(lists), len(entries))
	}
	for _, e := range entries {
		if got := lists[e.Term].Docs(); !slices.Equal(got, e.Docs) {
			t.Fatalf("%s: decoded %v, want %v", e.Term, got, e.Docs)
		}
	}

	bad := append(entries, TermEntry{Term: "broken", Docs: []uint64{3, 2}})
	if _, err := Compress(context.Background(), bad, 2, nil); err == nil {
		t.Fatal("expected error for unsorted entry")
	}
}

func TestSequenceMetricsCountBuildsOnly(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	mi := NewMemoryIndex()
	mi.AddDocument("doc-1", "", "succinct lists")
	mi.AddDocument("doc-2", "", "succinct sequences")

	for i := 0; i < 5; i++ {
		if pl, err := mi.Postings("succinct"); err != nil || pl == nil {
			t.Fatalf("Postings: %v, %v", pl, err)
		}
	}
	if got := testutil.ToFloat64(m.SequencesBuiltTotal); got != 0 {
		t.Errorf("queries recorded %v built sequences, want 0", got)
	}

	entries, _ := mi.Snapshot()
	if _, err := Compress(context.Background(), entries, 2, m); err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if got := testutil.ToFloat64(m.SequencesBuiltTotal); got != float64(len(entries)) {
		t.Errorf("sequences built = %v, want %d", got, len(entries))
	}
}

func BenchmarkMemoryIndexAdd(b *testing.B) {
	mi := NewMemoryIndex()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mi.AddDocument(fmt.Sprintf("doc-%d", i), "benchmark title", "this is a benchmark document with several terms for testing the indexing performance")
	}
}

func BenchmarkCursorIntersect(b *testing.B) {
	even := make([]uint64, 0, 50000)
	third := make([]uint64, 0, 35000)
	for i := uint64(0); i < 100000; i++ {
		if i%2 == 0 {
			even = append(even, i)
		}
		if i%3 == 0 {
			third = append(third, i)
		}
	}
	a, _ := NewPostingList("even", even)
	c, _ := NewPostingList("third", third)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x, y := a.Cursor(), c.Cursor()
		for !x.Exhausted() && y.Advance(x.Doc()) {
			if x.Doc() == y.Doc() {
				x.Next()
				continue
			}
			x.Advance(y.Doc())
		}
	}
}
