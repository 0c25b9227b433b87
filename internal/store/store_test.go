package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "verdicts.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndSummarize(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []Record{
		{Origin: "cli", Input: "a.txt", Source: "INPUT", Action: "NONE", Units: 3, Chunks: 1},
		{Origin: "watch", Input: "b.txt", Source: "INPUT", Action: "BLOCKED", Blocked: true, Findings: 2, Units: 1, Chunks: 1},
		{Origin: "stream", Input: "model-x", Source: "OUTPUT", Action: "INTERVENED", Findings: 1, Units: 2, Chunks: 2},
	}
	for i, r := range records {
		if err := s.Insert(ctx, r); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	sum, err := s.Summarize(ctx)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.Total != 3 || sum.Blocked != 1 || sum.Intervened != 1 || sum.Units != 6 {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, input := range []string{"first", "second", "third"} {
		if err := s.Insert(ctx, Record{Origin: "cli", Input: input, Source: "INPUT", Action: "NONE"}); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].Input != "third" || recent[1].Input != "second" {
		t.Errorf("expected newest first, got %q then %q", recent[0].Input, recent[1].Input)
	}
}

func TestEmptyStoreSummary(t *testing.T) {
	s := newTestStore(t)
	sum, err := s.Summarize(context.Background())
	if err != nil {
		t.Fatalf("summarize empty: %v", err)
	}
	if sum.Total != 0 || sum.Units != 0 {
		t.Errorf("expected zero summary, got %+v", sum)
	}
}
