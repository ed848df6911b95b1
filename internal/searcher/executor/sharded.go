package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/tracing"
)

// ShardResult is the outcome of one shard's part of a fan-out.
type ShardResult struct {
	ShardID   int
	Matches   []sourceMatch
	TermStats map[string]int
	Err       error
}

// ShardedExecutor fans a query out to every shard engine and merges the
// results in shard order.
type ShardedExecutor struct {
	engines      map[int]*indexer.Engine
	shardTimeout time.Duration
	logger       *slog.Logger
}

// NewSharded creates a ShardedExecutor. A zero shardTimeout leaves each
// shard bounded only by the request context.
func NewSharded(engines map[int]*indexer.Engine, shardTimeout time.Duration) *ShardedExecutor {
	return &ShardedExecutor{
		engines:      engines,
		shardTimeout: shardTimeout,
		logger:       slog.Default().With("component", "sharded-executor"),
	}
}

func (se *ShardedExecutor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if plan.Empty() {
		return EmptyResult(plan.RawQuery), nil
	}
	shardResults, err := se.fanOut(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("shard fan-out: %w", err)
	}
	termStats := make(map[string]int)
	var matches []sourceMatch
	for _, sr := range shardResults {
		for term, n := range sr.TermStats {
			termStats[term] += n
		}
		matches = append(matches, sr.Matches...)
	}
	result := assemble(plan, matches, termStats, limit)
	se.logger.Info("sharded query executed",
		"query", plan.RawQuery,
		"type", plan.Type.String(),
		"shards_queried", len(shardResults),
		"total_hits", result.TotalHits,
		"results", len(result.Results),
	)
	return result, nil
}

// fanOut queries every shard concurrently. Failed shards are logged and
// skipped; the query fails only when no shard answers.
func (se *ShardedExecutor) fanOut(ctx context.Context, plan *parser.QueryPlan) ([]ShardResult, error) {
	ids := se.shardIDs()
	results := make([]ShardResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, sid := range ids {
		engine := se.engines[sid]
		g.Go(func() error {
			shardCtx := gctx
			if se.shardTimeout > 0 {
				var cancel context.CancelFunc
				shardCtx, cancel = context.WithTimeout(gctx, se.shardTimeout)
				defer cancel()
			}
			shardCtx, span := tracing.Start(shardCtx, "shard", "")
			defer span.End()
			sources := engine.Sources()
			termStats := make(map[string]int)
			matches, err := matchSources(shardCtx, sid, sources, plan, termStats)
			span.SetAttr("shard_id", sid)
			span.SetAttr("sources", len(sources))
			if err != nil {
				span.SetAttr("error", err.Error())
			}
			results[i] = ShardResult{ShardID: sid, Matches: matches, TermStats: termStats, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ok := make([]ShardResult, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			se.logger.Error("shard query failed", "shard_id", r.ShardID, "error", r.Err)
			continue
		}
		ok = append(ok, r)
	}
	if len(ok) == 0 && len(ids) > 0 {
		return nil, fmt.Errorf("%w: all %d shards failed", apperrors.ErrShardUnavailable, len(ids))
	}
	return ok, nil
}

// ShardTermStats is a posting list's statistics within one shard source.
type ShardTermStats struct {
	Shard int `json:"shard"`
	indexer.SourceStats
}

// TermInfo describes how a term is encoded across the index.
type TermInfo struct {
	Term      string           `json:"term"`
	Indexed   string           `json:"indexed_as"`
	TotalDocs int              `json:"total_docs"`
	Lists     []ShardTermStats `json:"lists"`
}

// TermStats reports the Elias–Fano geometry of term's posting list in every
// shard source. It returns ErrTermNotFound when no source holds the term.
func (se *ShardedExecutor) TermStats(term string) (*TermInfo, error) {
	normalized := tokenizer.Normalize(term)
	if normalized == "" {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "term %q is not indexable", term)
	}
	info := &TermInfo{Term: term, Indexed: normalized, Lists: []ShardTermStats{}}
	for _, sid := range se.shardIDs() {
		stats, err := se.engines[sid].TermStats(normalized)
		if err != nil {
			return nil, fmt.Errorf("shard %d: %w", sid, err)
		}
		for _, s := range stats {
			info.Lists = append(info.Lists, ShardTermStats{Shard: sid, SourceStats: s})
			info.TotalDocs += int(s.Stats.Docs)
		}
	}
	if len(info.Lists) == 0 {
		return nil, apperrors.Newf(apperrors.ErrTermNotFound, http.StatusNotFound, "term %q is not indexed", term)
	}
	return info, nil
}

func (se *ShardedExecutor) shardIDs() []int {
	ids := make([]int, 0, len(se.engines))
	for id := range se.engines {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
