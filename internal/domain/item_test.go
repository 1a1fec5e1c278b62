package domain

import "testing"

func TestDedupKey(t *testing.T) {
	t.Parallel()

	withID := Item{ArxivID: "2501.00001", URL: "https://arxiv.org/abs/2501.00001"}
	if withID.DedupKey() != "2501.00001" {
		t.Fatalf("expected arXiv id key, got %s", withID.DedupKey())
	}

	withoutID := Item{URL: "https://example.org/post"}
	if withoutID.DedupKey() != "https://example.org/post" {
		t.Fatalf("expected url key, got %s", withoutID.DedupKey())
	}
}

func TestDedupFirstOccurrenceWins(t *testing.T) {
	t.Parallel()

	items := []Item{
		{ArxivID: "2501.00001", Title: "first"},
		{URL: "https://example.org/a", Title: "other"},
		{ArxivID: "2501.00001", Title: "duplicate with different title"},
	}

	unique := Dedup(items)
	if len(unique) != 2 {
		t.Fatalf("expected 2 unique items, got %d", len(unique))
	}
	if unique[0].Title != "first" {
		t.Fatalf("expected first occurrence kept, got %q", unique[0].Title)
	}
}

func TestSplitPriority(t *testing.T) {
	t.Parallel()

	items := []Item{
		{URL: "a"},
		{URL: "b", SkipFilter: true},
		{URL: "c"},
		{URL: "d", SkipFilter: true},
	}

	priority, normal := SplitPriority(items)
	if len(priority) != 2 || len(normal) != 2 {
		t.Fatalf("unexpected split: %d priority, %d normal", len(priority), len(normal))
	}
	if priority[0].URL != "b" || priority[1].URL != "d" {
		t.Fatalf("priority order not preserved: %+v", priority)
	}
	if normal[0].URL != "a" || normal[1].URL != "c" {
		t.Fatalf("normal order not preserved: %+v", normal)
	}
}
