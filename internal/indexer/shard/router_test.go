package shard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/metrics"
)

func TestNewRouter(t *testing.T) {
	dir := t.TempDir()
	m := metrics.New(prometheus.NewRegistry())
	r, err := NewRouter(context.Background(), config.IndexerConfig{DataDir: dir, NumShards: 3}, m)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	defer r.Close()

	if r.NumShards() != 3 || len(r.GetAllEngines()) != 3 {
		t.Fatalf("NumShards() = %d, engines = %d", r.NumShards(), len(r.GetAllEngines()))
	}
	for i := 0; i < 3; i++ {
		if _, err := os.Stat(filepath.Join(dir, fmt.Sprintf("shard-%d", i))); err != nil {
			t.Errorf("shard directory %d: %v", i, err)
		}
	}
	if _, err := r.Route(3); err == nil {
		t.Error("Route(3) should fail")
	}
	if got := testutil.ToFloat64(m.ActiveShards); got != 3 {
		t.Errorf("active_shards = %v, want 3", got)
	}
}

func TestNewRouterRejectsZeroShards(t *testing.T) {
	if _, err := NewRouter(context.Background(), config.IndexerConfig{DataDir: t.TempDir()}, nil); err == nil {
		t.Fatal("expected error for zero shards")
	}
}

func TestShardForIsStableAndInRange(t *testing.T) {
	r, err := NewRouter(context.Background(), config.IndexerConfig{DataDir: t.TempDir(), NumShards: 4}, nil)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	defer r.Close()
	counts := make(map[int]int)
	for i := 0; i < 400; i++ {
		id := fmt.Sprintf("doc-%d", i)
		s := r.ShardFor(id)
		if s < 0 || s >= 4 {
			t.Fatalf("ShardFor(%q) = %d", id, s)
		}
		if r.ShardFor(id) != s {
			t.Fatalf("ShardFor(%q) not stable", id)
		}
		counts[s]++
	}
	if len(counts) != 4 {
		t.Errorf("documents spread over %d shards, want 4", len(counts))
	}
}

func TestFlushAllAndReload(t *testing.T) {
	dir := t.TempDir()
	cfg := config.IndexerConfig{DataDir: dir, NumShards: 2}
	m := metrics.New(prometheus.NewRegistry())
	writer, err := NewRouter(context.Background(), cfg, m)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	defer writer.Close()
	reader, err := NewRouter(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	defer reader.Close()

	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("doc-%d", i)
		engine, err := writer.Route(writer.ShardFor(id))
		if err != nil {
			t.Fatal(err)
		}
		if err := engine.IndexDocument(id, "router", "flush"); err != nil {
			t.Fatal(err)
		}
	}
	if err := writer.FlushAll(context.Background()); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
	var docs float64
	for i := 0; i < 2; i++ {
		docs += testutil.ToFloat64(m.ShardDocCount.WithLabelValues(fmt.Sprintf("%d", i)))
	}
	if docs != 10 {
		t.Errorf("shard_document_count sum = %v, want 10", docs)
	}

	added := reader.ReloadAll(context.Background())
	if added < 1 || added > 2 {
		t.Errorf("ReloadAll added %d segments", added)
	}
	var total int64
	for _, e := range reader.GetAllEngines() {
		total += e.GetTotalDocs()
	}
	if total != 10 {
		t.Errorf("reader sees %d docs, want 10", total)
	}
}
