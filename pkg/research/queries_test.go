package research

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestGenerateQueriesParsesAndCaps(t *testing.T) {
	model := &fakeModel{reply: func(system, user string) (string, error) {
		return "1. acme overview\n2. acme pricing\n3. acme team\n4. acme roadmap\n5. acme extras", nil
	}}
	e := newStagedEngine(t, model, "Acme")
	e.State.Industry = "software"

	queries := e.generateQueries(context.Background(), CategoryCompany)

	if len(queries) != maxQueriesPerCategory {
		t.Fatalf("generateQueries() returned %d queries, want %d: %v", len(queries), maxQueriesPerCategory, queries)
	}
	if queries[0] != "acme overview" {
		t.Errorf("queries[0] = %q, want %q", queries[0], "acme overview")
	}
}

func TestGenerateQueriesFallsBackOnError(t *testing.T) {
	model := &fakeModel{reply: func(system, user string) (string, error) {
		return "", fmt.Errorf("model unavailable")
	}}
	e := newStagedEngine(t, model, "Acme")
	e.State.Industry = "software"

	queries := e.generateQueries(context.Background(), CategoryFinancial)

	want := fallbackQueries(CategoryFinancial, "Acme", "software")
	if len(queries) != len(want) {
		t.Fatalf("fallback returned %d queries, want %d", len(queries), len(want))
	}
	for i := range queries {
		if queries[i] != want[i] {
			t.Errorf("queries[%d] = %q, want %q", i, queries[i], want[i])
		}
	}
}

func TestGenerateQueriesFallsBackOnEmptyOutput(t *testing.T) {
	model := &fakeModel{reply: func(system, user string) (string, error) {
		return "Here are your queries:\n", nil
	}}
	e := newStagedEngine(t, model, "Acme")
	e.State.Industry = "software"

	queries := e.generateQueries(context.Background(), CategoryNews)

	if len(queries) == 0 {
		t.Fatal("expected fallback queries, got none")
	}
	for _, q := range queries {
		if !strings.Contains(q, "Acme") {
			t.Errorf("fallback query %q does not mention the company", q)
		}
	}
}
