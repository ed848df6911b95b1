package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/metrics"
)

type fakeExecutor struct {
	lastLimit int
	lastPlan  *parser.QueryPlan
	err       error
}

func (f *fakeExecutor) Execute(_ context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error) {
	f.lastLimit = limit
	f.lastPlan = plan
	if f.err != nil {
		return nil, f.err
	}
	return &executor.SearchResult{
		Query:     plan.RawQuery,
		TotalHits: 1,
		Results:   []executor.Hit{{DocID: "doc-1", Source: "memory"}},
		TermStats: map[string]int{plan.Terms[0]: 1},
	}, nil
}

func (f *fakeExecutor) TermStats(term string) (*executor.TermInfo, error) {
	if term != "alpha" {
		return nil, apperrors.New(apperrors.ErrTermNotFound, http.StatusNotFound, "term not indexed")
	}
	pl, err := index.NewPostingList("alpha", []uint64{0, 5, 9, 800, 1000})
	if err != nil {
		return nil, err
	}
	return &executor.TermInfo{
		Term:      term,
		Indexed:   term,
		TotalDocs: pl.Len(),
		Lists: []executor.ShardTermStats{
			{Shard: 0, SourceStats: indexer.SourceStats{Source: "memory", Stats: pl.Stats()}},
		},
	}, nil
}

func newServer(exec SearchExecutor, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	New(exec, nil, m, 10, 50).Register(mux)
	return mux
}

func do(t *testing.T, mux *http.ServeMux, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestSearch(t *testing.T) {
	exec := &fakeExecutor{}
	m := metrics.New(prometheus.NewRegistry())
	mux := newServer(exec, m)

	rec := do(t, mux, http.MethodGet, "/api/v1/search?q=alpha+NOT+beta&limit=500")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var res executor.SearchResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.TotalHits != 1 || res.Results[0].DocID != "doc-1" {
		t.Errorf("result = %+v", res)
	}
	if exec.lastLimit != 50 {
		t.Errorf("limit = %d, want clamp to 50", exec.lastLimit)
	}
	if len(exec.lastPlan.ExcludeTerms) != 1 || exec.lastPlan.ExcludeTerms[0] != "beta" {
		t.Errorf("plan = %+v", exec.lastPlan)
	}
	if got := testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("hit")); got != 1 {
		t.Errorf("search_queries_total{hit} = %v", got)
	}

	do(t, mux, http.MethodGet, "/api/v1/search?q=alpha")
	if exec.lastLimit != 10 {
		t.Errorf("default limit = %d, want 10", exec.lastLimit)
	}
}

func TestSearchBadRequests(t *testing.T) {
	mux := newServer(&fakeExecutor{}, nil)
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=alpha&limit=0",
		"/api/v1/search?q=alpha&limit=ten",
	} {
		if rec := do(t, mux, http.MethodGet, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestSearchStopWordsOnly(t *testing.T) {
	exec := &fakeExecutor{}
	rec := do(t, newServer(exec, nil), http.MethodGet, "/api/v1/search?q=the+of")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if exec.lastPlan != nil {
		t.Error("executor should not run for an empty plan")
	}
}

func TestSearchErrorStatus(t *testing.T) {
	exec := &fakeExecutor{err: apperrors.ErrShardUnavailable}
	rec := do(t, newServer(exec, nil), http.MethodGet, "/api/v1/search?q=alpha")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestTermStats(t *testing.T) {
	mux := newServer(&fakeExecutor{}, nil)

	rec := do(t, mux, http.MethodGet, "/api/v1/terms/alpha")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var info executor.TermInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(info.Lists) != 1 {
		t.Fatalf("lists = %+v", info.Lists)
	}
	stats := info.Lists[0].Stats
	if stats.Geometry.LowWidth != 7 || stats.Bits != 49 || stats.LastDoc != 1000 {
		t.Errorf("stats = %+v", stats)
	}

	if rec := do(t, mux, http.MethodGet, "/api/v1/terms/zebra"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown term status = %d, want 404", rec.Code)
	}
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	mux := newServer(&fakeExecutor{}, nil)
	if rec := do(t, mux, http.MethodGet, "/api/v1/cache/stats"); rec.Code != http.StatusOK {
		t.Errorf("stats status = %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodPost, "/api/v1/cache/invalidate"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("invalidate status = %d, want 503", rec.Code)
	}
	if rec := do(t, mux, http.MethodGet, "/api/v1/cache/invalidate"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET invalidate status = %d, want 405", rec.Code)
	}
}
