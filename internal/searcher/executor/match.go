package executor

import (
	"context"
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/searcher/parser"
)

// checkEvery bounds how many matches are produced between context checks.
const checkEvery = 1024

// sourceMatch holds the matching documents of one source in ordinal order.
type sourceMatch struct {
	shard  int
	source string
	docIDs []string
}

// matchSource evaluates plan against a single source by walking
// Elias–Fano cursors. It adds each term's document frequency to termStats.
func matchSource(ctx context.Context, src index.Source, plan *parser.QueryPlan, termStats map[string]int) ([]uint64, error) {
	include := make([]*index.PostingList, 0, len(plan.Terms))
	missing := false
	for _, term := range plan.Terms {
		pl, err := src.Postings(term)
		if err != nil {
			return nil, fmt.Errorf("source %s, term %q: %w", src.Name(), term, err)
		}
		if pl == nil {
			missing = true
			continue
		}
		termStats[term] += pl.Len()
		include = append(include, pl)
	}
	if len(include) == 0 || (plan.Type == parser.QueryAND && missing) {
		return nil, nil
	}
	exclude := make([]*index.Cursor, 0, len(plan.ExcludeTerms))
	for _, term := range plan.ExcludeTerms {
		pl, err := src.Postings(term)
		if err != nil {
			return nil, fmt.Errorf("source %s, exclude term %q: %w", src.Name(), term, err)
		}
		if pl != nil {
			exclude = append(exclude, pl.Cursor())
		}
	}

	var out []uint64
	var ctxErr error
	emit := func(doc uint64) bool {
		if excluded(exclude, doc) {
			return true
		}
		out = append(out, doc)
		if len(out)%checkEvery == 0 {
			if ctxErr = ctx.Err(); ctxErr != nil {
				return false
			}
		}
		return true
	}
	if plan.Type == parser.QueryOR {
		union(cursors(include), emit)
	} else {
		// Drive the intersection from the rarest term.
		sort.Slice(include, func(i, j int) bool { return include[i].Len() < include[j].Len() })
		intersect(cursors(include), emit)
	}
	if ctxErr != nil {
		return nil, ctxErr
	}
	return out, nil
}

func cursors(lists []*index.PostingList) []*index.Cursor {
	out := make([]*index.Cursor, len(lists))
	for i, pl := range lists {
		out[i] = pl.Cursor()
	}
	return out
}

// intersect emits every ordinal present in all cursors, ascending. emit
// returns false to stop early.
func intersect(cs []*index.Cursor, emit func(uint64) bool) {
	if len(cs) == 0 {
		return
	}
	candidate := cs[0].Doc()
	for {
		agreed := true
		for _, c := range cs {
			if !c.Advance(candidate) {
				return
			}
			if d := c.Doc(); d > candidate {
				candidate = d
				agreed = false
				break
			}
		}
		if !agreed {
			continue
		}
		if !emit(candidate) || !cs[0].Next() {
			return
		}
		candidate = cs[0].Doc()
	}
}

// union emits every ordinal present in any cursor, ascending and once.
func union(cs []*index.Cursor, emit func(uint64) bool) {
	for {
		var (
			lowest uint64
			found  bool
		)
		for _, c := range cs {
			if c.Exhausted() {
				continue
			}
			if d := c.Doc(); !found || d < lowest {
				lowest, found = d, true
			}
		}
		if !found || !emit(lowest) {
			return
		}
		for _, c := range cs {
			if !c.Exhausted() && c.Doc() == lowest {
				c.Next()
			}
		}
	}
}

// excluded reports whether doc is in any exclusion cursor. Candidates arrive
// in ascending order, so each cursor only moves forward.
func excluded(cs []*index.Cursor, doc uint64) bool {
	for _, c := range cs {
		if c.Advance(doc) && c.Doc() == doc {
			return true
		}
	}
	return false
}
