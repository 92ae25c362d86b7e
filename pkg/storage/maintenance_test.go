package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/rubiojr/margin/pkg/core"
	"github.com/rubiojr/margin/pkg/search"
)

func TestIntegrityCheckAndRebuild(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p := mustPage(t, s, "https://example.com/sqlite", "SQLite internals", "btree pages")
	mustVisit(t, s, p.URL, 100)
	mustAnnotate(t, s, core.Annotation{URL: p.URL + "#1", PageURL: p.URL, Body: "overflow pages", CreatedWhen: 110})

	if err := s.IntegrityCheck(ctx, true); err != nil {
		t.Fatalf("IntegrityCheck on a fresh store: %v", err)
	}

	if _, err := s.DB().ExecContext(ctx, "DELETE FROM pages_fts"); err != nil {
		t.Fatal(err)
	}
	err := s.IntegrityCheck(ctx, true)
	if err == nil || !strings.Contains(err.Error(), "pages_fts") {
		t.Fatalf("expected pages_fts to be reported out of sync, got %v", err)
	}
	if err := s.IntegrityCheck(ctx, false); err != nil {
		t.Errorf("quick check should not look at full-text tables: %v", err)
	}

	if err := s.RebuildFullText(ctx); err != nil {
		t.Fatalf("RebuildFullText: %v", err)
	}
	if err := s.IntegrityCheck(ctx, true); err != nil {
		t.Fatalf("IntegrityCheck after rebuild: %v", err)
	}

	hits, err := s.QueryPages(ctx, search.TermsQuery{Terms: []string{"btree"}, Options: search.TermsOptions{}.Normalized()})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != p.URL {
		t.Errorf("expected the rebuilt index to find the page, got %+v", hits)
	}

	if err := s.Analyze(ctx); err != nil {
		t.Errorf("Analyze: %v", err)
	}
	if err := s.Vacuum(ctx); err != nil {
		t.Errorf("Vacuum: %v", err)
	}
}
