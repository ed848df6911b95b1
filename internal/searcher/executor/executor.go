// Package executor evaluates query plans against Elias–Fano posting lists.
// AND queries leapfrog cursors from the rarest term, OR queries merge all
// cursors, and NOT terms filter through exclusion cursors.
package executor

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/searcher/parser"
)

// Hit is one matching document.
type Hit struct {
	DocID  string `json:"doc_id"`
	Shard  int    `json:"shard"`
	Source string `json:"source"`
}

type SearchResult struct {
	Query     string         `json:"query"`
	TotalHits int            `json:"total_hits"`
	Results   []Hit          `json:"results"`
	TermStats map[string]int `json:"term_stats"`
}

// EmptyResult is returned for plans without positive terms.
func EmptyResult(query string) *SearchResult {
	return &SearchResult{
		Query:     query,
		Results:   []Hit{},
		TermStats: map[string]int{},
	}
}

// Executor runs queries against the sources of a single engine.
type Executor struct {
	sources func() []index.Source
	logger  *slog.Logger
}

func New(engine *indexer.Engine) *Executor {
	return NewFromSources(engine.Sources)
}

// NewFromSources builds an Executor over a dynamic list of sources.
func NewFromSources(sources func() []index.Source) *Executor {
	return &Executor{
		sources: sources,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if plan.Empty() {
		return EmptyResult(plan.RawQuery), nil
	}
	termStats := make(map[string]int)
	matches, err := matchSources(ctx, 0, e.sources(), plan, termStats)
	if err != nil {
		return nil, err
	}
	result := assemble(plan, matches, termStats, limit)
	e.logger.Info("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"type", plan.Type.String(),
		"total_hits", result.TotalHits,
		"results", len(result.Results),
	)
	return result, nil
}

func matchSources(ctx context.Context, shard int, sources []index.Source, plan *parser.QueryPlan, termStats map[string]int) ([]sourceMatch, error) {
	matches := make([]sourceMatch, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ordinals, err := matchSource(ctx, src, plan, termStats)
		if err != nil {
			return nil, err
		}
		if len(ordinals) == 0 {
			continue
		}
		m := sourceMatch{shard: shard, source: src.Name(), docIDs: make([]string, 0, len(ordinals))}
		for _, ord := range ordinals {
			if id, ok := src.DocID(ord); ok {
				m.docIDs = append(m.docIDs, id)
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// assemble flattens per-source matches in order, keeps the first hit of each
// document ID, and truncates to limit. TotalHits counts every distinct
// document.
func assemble(plan *parser.QueryPlan, matches []sourceMatch, termStats map[string]int, limit int) *SearchResult {
	result := EmptyResult(plan.RawQuery)
	result.TermStats = termStats
	seen := make(map[string]struct{})
	for _, m := range matches {
		for _, id := range m.docIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if limit <= 0 || len(result.Results) < limit {
				result.Results = append(result.Results, Hit{DocID: id, Shard: m.shard, Source: m.source})
			}
		}
	}
	result.TotalHits = len(seen)
	return result
}
