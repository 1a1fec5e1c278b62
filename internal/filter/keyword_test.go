package filter

import (
	"context"
	"testing"

	"paperfeeder/internal/domain"
)

func TestKeywordFilterMatchesWholeWords(t *testing.T) {
	t.Parallel()

	f := NewKeywordFilter([]string{"diffusion"}, nil)
	items := []domain.Item{
		{URL: "a", Title: "Diffusion models for language"},
		{URL: "b", Title: "Nondiffusional transport phenomena"},
	}

	got, err := f.Filter(context.Background(), items)
	if err != nil {
		t.Fatalf("Filter error: %v", err)
	}
	if len(got) != 1 || got[0].URL != "a" {
		t.Fatalf("expected only whole-word match to survive, got %+v", got)
	}
	if len(got[0].MatchedKeywords) != 1 || got[0].MatchedKeywords[0] != "diffusion" {
		t.Fatalf("matched keywords not recorded: %+v", got[0].MatchedKeywords)
	}
}

func TestKeywordFilterExclusionPrecedence(t *testing.T) {
	t.Parallel()

	f := NewKeywordFilter([]string{"reasoning"}, []string{"survey"})
	items := []domain.Item{
		{URL: "a", Title: "A survey of reasoning methods"},
		{URL: "b", Title: "Latent reasoning in transformers"},
	}

	got, err := f.Filter(context.Background(), items)
	if err != nil {
		t.Fatalf("Filter error: %v", err)
	}
	if len(got) != 1 || got[0].URL != "b" {
		t.Fatalf("item matching an exclusion keyword must be dropped, got %+v", got)
	}
}

func TestKeywordFilterEmptyIncludeSetPassesAll(t *testing.T) {
	t.Parallel()

	f := NewKeywordFilter(nil, []string{"blockchain"})
	items := []domain.Item{
		{URL: "a", Title: "Anything at all"},
		{URL: "b", Title: "Blockchain consensus"},
	}

	got, err := f.Filter(context.Background(), items)
	if err != nil {
		t.Fatalf("Filter error: %v", err)
	}
	if len(got) != 1 || got[0].URL != "a" {
		t.Fatalf("expected all non-excluded items to pass, got %+v", got)
	}
}

func TestKeywordFilterMonotonicity(t *testing.T) {
	t.Parallel()

	items := []domain.Item{
		{URL: "a", Title: "Diffusion models"},
		{URL: "b", Title: "Chain of thought prompting"},
		{URL: "c", Title: "Graph neural networks"},
	}

	narrow := NewKeywordFilter([]string{"diffusion"}, nil)
	wide := NewKeywordFilter([]string{"diffusion", "chain of thought"}, nil)

	narrowGot, _ := narrow.Filter(context.Background(), items)
	wideGot, _ := wide.Filter(context.Background(), items)

	if len(wideGot) < len(narrowGot) {
		t.Fatalf("adding an inclusion keyword shrank the survivor set: %d -> %d",
			len(narrowGot), len(wideGot))
	}
}

func TestKeywordFilterScoreAndOrdering(t *testing.T) {
	t.Parallel()

	f := NewKeywordFilter([]string{"diffusion", "reasoning"}, nil)
	items := []domain.Item{
		{URL: "one-match", Title: "Diffusion policies"},
		{URL: "two-match", Title: "Diffusion reasoning hybrid"},
		{URL: "tie-a", Title: "Reasoning traces"},
		{URL: "tie-b", Title: "Reasoning budgets"},
	}

	got, err := f.Filter(context.Background(), items)
	if err != nil {
		t.Fatalf("Filter error: %v", err)
	}

	if got[0].URL != "two-match" {
		t.Fatalf("highest match count should rank first, got %s", got[0].URL)
	}
	if got[0].RelevanceScore != 1.0 {
		t.Fatalf("expected score 1.0 for full match, got %f", got[0].RelevanceScore)
	}

	// Stable sort keeps input order among equal scores.
	var tieA, tieB int
	for i, item := range got {
		switch item.URL {
		case "tie-a":
			tieA = i
		case "tie-b":
			tieB = i
		}
	}
	if tieA > tieB {
		t.Fatalf("tie order not stable: tie-a at %d, tie-b at %d", tieA, tieB)
	}
}
