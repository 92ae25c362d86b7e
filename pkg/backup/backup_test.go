package backup

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zstd"
	"github.com/rubiojr/margin/pkg/core"
	"github.com/rubiojr/margin/pkg/search"
	"github.com/rubiojr/margin/pkg/storage"
)

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), storage.DatabaseFile))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *storage.Store) {
	t.Helper()
	ctx := context.Background()
	p, err := s.UpsertPage(ctx, core.Page{FullURL: "https://go.dev/doc", Title: "Go docs", Text: "documentation"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddVisits(ctx, []core.Visit{{PageURL: p.URL, Time: 100}, {PageURL: p.URL, Time: 200}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetBookmark(ctx, p.URL, 150); err != nil {
		t.Fatal(err)
	}
	l, err := s.CreateList(ctx, "Reading")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddPageToList(ctx, l.ID, p.URL); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PutAnnotation(ctx, core.Annotation{URL: p.URL + "#a", PageURL: p.URL, Body: "effective go", CreatedWhen: 120}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddAnnotationToList(ctx, l.ID, p.URL+"#a"); err != nil {
		t.Fatal(err)
	}
}

func TestExportRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := openStore(t)
	seed(t, src)

	var buf bytes.Buffer
	exported, err := Export(ctx, src, &buf)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	want := Summary{Pages: 1, Visits: 2, Bookmarks: 1, Lists: 1, Annotations: 1, ListEntries: 2}
	if diff := cmp.Diff(want, exported); diff != "" {
		t.Errorf("export summary mismatch (-want +got):\n%s", diff)
	}

	dst := openStore(t)
	restored, err := Restore(ctx, dst, bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if diff := cmp.Diff(exported, restored); diff != "" {
		t.Errorf("restore summary mismatch (-want +got):\n%s", diff)
	}

	srcStats, err := src.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	dstStats, err := dst.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	dstStats.SizeBytes, srcStats.SizeBytes = 0, 0
	if diff := cmp.Diff(srcStats, dstStats); diff != "" {
		t.Errorf("stats mismatch (-src +dst):\n%s", diff)
	}

	res, err := search.NewService(dst, dst, dst).UnifiedSearch(ctx, search.Request{
		Params: search.Params{Query: "effective"},
		Cursor: search.TermsCursor(10),
	})
	if err != nil {
		t.Fatalf("UnifiedSearch: %v", err)
	}
	if len(res.Docs) != 1 || len(res.Docs[0].Annotations) != 1 || len(res.Docs[0].Lists) != 1 {
		t.Fatalf("restored data not searchable: %+v", res.Docs)
	}
	if diff := cmp.Diff([]int64{res.Docs[0].Lists[0]}, res.Docs[0].Annotations[0].Lists); diff != "" {
		t.Errorf("annotation list membership lost (-want +got):\n%s", diff)
	}
}

func TestRestoreRejectsNewerFormat(t *testing.T) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write([]byte(`{"kind":"header","version":99}` + "\n")); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = Restore(context.Background(), openStore(t), &buf)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {
	if _, err := Restore(context.Background(), openStore(t), bytes.NewReader([]byte("not zstd"))); err == nil {
		t.Fatal("expected error for invalid input")
	}
}
