package parser

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		query   string
		terms   []string
		exclude []string
		typ     QueryType
	}{
		{"", []string{}, []string{}, QueryAND},
		{"compressed postings", []string{"compress", "posting"}, []string{}, QueryAND},
		{"index OR query", []string{"index", "query"}, []string{}, QueryOR},
		{"index or query", []string{"index", "query"}, []string{}, QueryOR},
		{"index NOT query", []string{"index"}, []string{"query"}, QueryAND},
		{"index -query", []string{"index"}, []string{"query"}, QueryAND},
		{"index index indexes", []string{"index"}, []string{}, QueryAND},
		{"the of index", []string{"index"}, []string{}, QueryAND},
		{"NOT the index", []string{"index"}, []string{}, QueryAND},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			plan := Parse(tt.query)
			if !reflect.DeepEqual(plan.Terms, tt.terms) {
				t.Errorf("Terms = %v, want %v", plan.Terms, tt.terms)
			}
			if !reflect.DeepEqual(plan.ExcludeTerms, tt.exclude) {
				t.Errorf("ExcludeTerms = %v, want %v", plan.ExcludeTerms, tt.exclude)
			}
			if plan.Type != tt.typ {
				t.Errorf("Type = %v, want %v", plan.Type, tt.typ)
			}
			if plan.RawQuery != tt.query {
				t.Errorf("RawQuery = %q", plan.RawQuery)
			}
		})
	}
}

func TestEmpty(t *testing.T) {
	if !Parse("NOT index").Empty() {
		t.Error("exclusion-only plan should be empty")
	}
	if Parse("index").Empty() {
		t.Error("plan with a term should not be empty")
	}
}
