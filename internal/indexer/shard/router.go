// Package shard partitions documents across independent index engines. Each
// shard owns an indexer.Engine backed by its own data directory.
package shard

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/metrics"
)

// Router maps shard IDs to dedicated indexer.Engine instances.
type Router struct {
	engines   map[int]*indexer.Engine
	mu        sync.RWMutex
	baseCfg   config.IndexerConfig
	numShards int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewRouter creates baseCfg.NumShards engines, each in its own
// sub-directory under baseCfg.DataDir.
func NewRouter(ctx context.Context, baseCfg config.IndexerConfig, m *metrics.Metrics) (*Router, error) {
	numShards := baseCfg.NumShards
	if numShards < 1 {
		return nil, fmt.Errorf("shard count must be positive, got %d", numShards)
	}
	r := &Router{
		engines:   make(map[int]*indexer.Engine, numShards),
		baseCfg:   baseCfg,
		numShards: numShards,
		metrics:   m,
		logger:    slog.Default().With("component", "shard-router"),
	}
	for i := 0; i < numShards; i++ {
		shardCfg := baseCfg
		shardCfg.DataDir = filepath.Join(baseCfg.DataDir, fmt.Sprintf("shard-%d", i))
		engine, err := indexer.NewEngine(ctx, shardCfg, m)
		if err != nil {
			r.closeAll()
			return nil, fmt.Errorf("creating engine for shard %d: %w", i, err)
		}
		r.engines[i] = engine
		r.logger.Info("shard engine initialized",
			"shard_id", i,
			"data_dir", shardCfg.DataDir,
		)
	}
	if m != nil {
		m.ActiveShards.Set(float64(numShards))
	}
	r.logger.Info("shard router ready", "num_shards", numShards)
	return r, nil
}

// ShardFor deterministically maps a document ID to a shard.
func (r *Router) ShardFor(docID string) int {
	h := fnv.New32a()
	h.Write([]byte(docID))
	return int(h.Sum32() % uint32(r.numShards))
}

// Route returns the Engine responsible for the given shard ID.
func (r *Router) Route(shardID int) (*indexer.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engine, ok := r.engines[shardID]
	if !ok {
		return nil, fmt.Errorf("unknown shard ID %d (valid range: 0-%d)", shardID, r.numShards-1)
	}
	return engine, nil
}

// GetAllEngines returns a snapshot map of all shard engines.
func (r *Router) GetAllEngines() map[int]*indexer.Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[int]*indexer.Engine, len(r.engines))
	for id, engine := range r.engines {
		result[id] = engine
	}
	return result
}

func (r *Router) NumShards() int {
	return r.numShards
}

// UpdateShardMetrics publishes per-shard document counts.
func (r *Router) UpdateShardMetrics() {
	if r.metrics == nil {
		return
	}
	for id, engine := range r.GetAllEngines() {
		r.metrics.ShardDocCount.WithLabelValues(fmt.Sprintf("%d", id)).Set(float64(engine.GetTotalDocs()))
	}
}

// StartFlushLoops starts the periodic flush loop of every shard.
func (r *Router) StartFlushLoops(ctx context.Context) {
	for _, engine := range r.GetAllEngines() {
		engine.StartFlushLoop(ctx)
	}
}

// FlushAll flushes every shard engine to disk.
func (r *Router) FlushAll(ctx context.Context) error {
	var firstErr error
	for id, engine := range r.GetAllEngines() {
		if err := engine.Flush(ctx); err != nil {
			r.logger.Error("flush failed", "shard_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	r.UpdateShardMetrics()
	return firstErr
}

// ReloadAll tells every shard engine to re-scan for newly flushed segments.
// Returns the total number of new segments loaded across all shards.
func (r *Router) ReloadAll(ctx context.Context) int {
	total := 0
	for id, engine := range r.GetAllEngines() {
		added, err := engine.ReloadSegments(ctx)
		if err != nil {
			r.logger.Error("segment reload failed", "shard_id", id, "error", err)
			continue
		}
		total += added
	}
	r.UpdateShardMetrics()
	return total
}

// Close flushes and closes every shard engine.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeAll()
}

func (r *Router) closeAll() error {
	var firstErr error
	for id, engine := range r.engines {
		if err := engine.Close(); err != nil {
			r.logger.Error("close failed", "shard_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
