// Package parser turns a raw search string into a QueryPlan of normalized
// index terms.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/internal/indexer/tokenizer"
)

type QueryType int

const (
	QueryAND QueryType = iota
	QueryOR
)

func (t QueryType) String() string {
	if t == QueryOR {
		return "OR"
	}
	return "AND"
}

type QueryPlan struct {
	Terms        []string
	Type         QueryType
	ExcludeTerms []string
	RawQuery     string
}

// Empty reports whether the plan has no positive terms. Exclusions alone
// never match anything.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// Parse reads whitespace-separated words. AND and OR switch the combination
// mode for the whole query (the last one wins); NOT or a leading '-'
// excludes the following word. Words that normalize to nothing are dropped
// and repeated terms are kept once.
func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:        make([]string, 0),
		ExcludeTerms: make([]string, 0),
		Type:         QueryAND,
		RawQuery:     query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	seen := make(map[string]struct{})
	excluded := make(map[string]struct{})
	excludeNext := false
	for _, word := range strings.Fields(query) {
		switch strings.ToUpper(word) {
		case "AND":
			plan.Type = QueryAND
			continue
		case "OR":
			plan.Type = QueryOR
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		if strings.HasPrefix(word, "-") && len(word) > 1 {
			excludeNext = true
			word = word[1:]
		}
		term := tokenizer.Normalize(word)
		if term == "" {
			excludeNext = false
			continue
		}
		if excludeNext {
			if _, dup := excluded[term]; !dup {
				excluded[term] = struct{}{}
				plan.ExcludeTerms = append(plan.ExcludeTerms, term)
			}
			excludeNext = false
			continue
		}
		if _, dup := seen[term]; !dup {
			seen[term] = struct{}{}
			plan.Terms = append(plan.Terms, term)
		}
	}
	return plan
}
