package filter

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"paperfeeder/internal/domain"
	"paperfeeder/internal/ports"
)

// scriptedCompleter replays canned responses per call; an empty entry means
// the call fails.
type scriptedCompleter struct {
	responses []string
	calls     int
}

func (s *scriptedCompleter) Complete(_ context.Context, _ []ports.Message, _ int) (string, error) {
	if s.calls >= len(s.responses) {
		return "", fmt.Errorf("unexpected call %d", s.calls)
	}
	resp := s.responses[s.calls]
	s.calls++
	if resp == "" {
		return "", fmt.Errorf("backend unavailable")
	}
	return resp, nil
}

func makeItems(n int) []domain.Item {
	items := make([]domain.Item, n)
	for i := range items {
		items[i] = domain.Item{
			URL:   fmt.Sprintf("https://example.org/%d", i),
			Title: fmt.Sprintf("Item %d", i),
		}
	}
	return items
}

func TestLLMFilterScoresAndTruncates(t *testing.T) {
	t.Parallel()

	client := &scriptedCompleter{responses: []string{
		`[{"item_number": 3, "score": 9, "reason": "strong fit"},
		  {"item_number": 1, "score": 7, "reason": "relevant"},
		  {"item_number": 2, "score": 6, "reason": "borderline"}]`,
	}}

	f := NewLLMFilter(LLMFilterOptions{
		Client:  client,
		Mode:    ModeCoarse,
		MaxKeep: 2,
	})

	got, err := f.Filter(context.Background(), makeItems(3))
	if err != nil {
		t.Fatalf("Filter error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(got))
	}
	if got[0].RelevanceScore != 0.9 || got[0].FilterReason != "strong fit" {
		t.Fatalf("unexpected top item: %+v", got[0])
	}
	if got[1].RelevanceScore != 0.7 {
		t.Fatalf("unexpected second item: %+v", got[1])
	}
}

func TestLLMFilterDropsBelowThreshold(t *testing.T) {
	t.Parallel()

	client := &scriptedCompleter{responses: []string{
		`[{"item_number": 1, "score": 8, "reason": "good"},
		  {"item_number": 2, "score": 4, "reason": "weak"}]`,
	}}

	f := NewLLMFilter(LLMFilterOptions{Client: client})

	got, err := f.Filter(context.Background(), makeItems(2))
	if err != nil {
		t.Fatalf("Filter error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("score below threshold must never appear, got %d items", len(got))
	}
	if got[0].RelevanceScore != 0.8 {
		t.Fatalf("wrong survivor: %+v", got[0])
	}
}

func TestLLMFilterDropsOutOfRangeIndices(t *testing.T) {
	t.Parallel()

	client := &scriptedCompleter{responses: []string{
		`[{"item_number": 99, "score": 9, "reason": "bogus"},
		  {"item_number": 0, "score": 9, "reason": "bogus"},
		  {"item_number": 1, "score": 7, "reason": "ok"}]`,
	}}

	f := NewLLMFilter(LLMFilterOptions{Client: client})

	got, err := f.Filter(context.Background(), makeItems(2))
	if err != nil {
		t.Fatalf("Filter error: %v", err)
	}
	if len(got) != 1 || got[0].URL != "https://example.org/0" {
		t.Fatalf("out-of-range indices must be dropped silently, got %+v", got)
	}
}

func TestLLMFilterFallbackOnGarbage(t *testing.T) {
	t.Parallel()

	client := &scriptedCompleter{responses: []string{"I cannot help with that."}}

	f := NewLLMFilter(LLMFilterOptions{Client: client, MaxKeep: 10})

	items := makeItems(3)
	items[0].RelevanceScore = 0.2
	items[1].RelevanceScore = 0.8
	items[2].RelevanceScore = 0.5

	got, err := f.Filter(context.Background(), items)
	if err != nil {
		t.Fatalf("fallback must not raise: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("fallback must keep the batch, got %d items", len(got))
	}
	if got[0].RelevanceScore != 0.8 || got[1].RelevanceScore != 0.5 || got[2].RelevanceScore != 0.2 {
		t.Fatalf("fallback must order by pre-existing relevance: %+v", got)
	}
}

func TestLLMFilterFallbackOnBackendError(t *testing.T) {
	t.Parallel()

	client := &scriptedCompleter{responses: []string{""}}

	f := NewLLMFilter(LLMFilterOptions{Client: client, MaxKeep: 10})

	got, err := f.Filter(context.Background(), makeItems(2))
	if err != nil {
		t.Fatalf("backend failure must degrade, not propagate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected all items via fallback, got %d", len(got))
	}
}

func TestLLMFilterOneBatchFailureDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	// Two batches of 2: first fails, second scores.
	client := &scriptedCompleter{responses: []string{
		"",
		`[{"item_number": 1, "score": 9, "reason": "great"}]`,
	}}

	f := NewLLMFilter(LLMFilterOptions{
		Client:    client,
		BatchSize: 2,
		MaxKeep:   10,
	})

	got, err := f.Filter(context.Background(), makeItems(4))
	if err != nil {
		t.Fatalf("Filter error: %v", err)
	}
	// 2 from the failed batch's fallback plus 1 scored from the second.
	if len(got) != 3 {
		t.Fatalf("expected 3 survivors, got %d", len(got))
	}
	if got[0].RelevanceScore != 0.9 {
		t.Fatalf("scored item should rank first: %+v", got[0])
	}
}

func TestLLMFilterStripsCodeFences(t *testing.T) {
	t.Parallel()

	client := &scriptedCompleter{responses: []string{
		"```json\n[{\"item_number\": 1, \"score\": 8, \"reason\": \"fenced\"}]\n```",
	}}

	f := NewLLMFilter(LLMFilterOptions{Client: client})

	got, err := f.Filter(context.Background(), makeItems(1))
	if err != nil {
		t.Fatalf("Filter error: %v", err)
	}
	if len(got) != 1 || got[0].FilterReason != "fenced" {
		t.Fatalf("code-fenced JSON must parse, got %+v", got)
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	t.Parallel()

	s := strings.Repeat("щ", 10)
	got := truncate(s, 4)
	if got != strings.Repeat("щ", 4)+"..." {
		t.Errorf("truncate = %q", got)
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncate produced invalid UTF-8: %q", got)
	}
	if truncate("short", 10) != "short" {
		t.Error("strings under the limit must pass through unchanged")
	}
}

func TestFirstJSONArrayRespectsStrings(t *testing.T) {
	t.Parallel()

	text := `noise [{"item_number": 1, "score": 7, "reason": "has ] bracket"}] trailing`
	arr, ok := firstJSONArray(text)
	if !ok {
		t.Fatal("expected to find array")
	}
	scores, err := parseScores(arr)
	if err != nil {
		t.Fatalf("parseScores: %v", err)
	}
	if len(scores) != 1 || scores[0].Reason != "has ] bracket" {
		t.Fatalf("bracket inside string mishandled: %+v", scores)
	}
}

func TestLLMFilterFinePromptIncludesSignals(t *testing.T) {
	t.Parallel()

	f := NewLLMFilter(LLMFilterOptions{Mode: ModeFine})
	item := domain.Item{Title: "Paper", ResearchNote: "GitHub repo with 2,000 stars"}

	prompt := f.buildPrompt([]domain.Item{item})
	if !strings.Contains(prompt, "GitHub repo with 2,000 stars") {
		t.Fatal("fine prompt must include the research note")
	}

	coarse := NewLLMFilter(LLMFilterOptions{Mode: ModeCoarse})
	if strings.Contains(coarse.buildPrompt([]domain.Item{item}), "2,000 stars") {
		t.Fatal("coarse prompt must not include research notes")
	}
}
