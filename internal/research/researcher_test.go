package research

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"paperfeeder/internal/domain"
	"paperfeeder/internal/ports"
)

// fakeSearcher fails queries whose title appears in failTitles and otherwise
// returns the configured result.
type fakeSearcher struct {
	mu         sync.Mutex
	failTitles map[string]bool
	result     *ports.SearchResult
	inFlight   int
	maxSeen    int
	delay      time.Duration
}

func (s *fakeSearcher) Search(ctx context.Context, query string) (*ports.SearchResult, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxSeen {
		s.maxSeen = s.inFlight
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for title := range s.failTitles {
		if strings.Contains(query, title) {
			return nil, fmt.Errorf("lookup for %q failed", title)
		}
	}
	return s.result, nil
}

func titled(n int) []domain.Item {
	items := make([]domain.Item, n)
	for i := range items {
		items[i] = domain.Item{Title: fmt.Sprintf("item-%02d", i), URL: fmt.Sprintf("u%d", i)}
	}
	return items
}

func TestEnrichPartialFailureContainment(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{
		failTitles: map[string]bool{"item-02": true, "item-06": true},
		result:     &ports.SearchResult{Answer: "Well received in the community."},
	}

	r := NewSignalResearcher(searcher, 5, time.Second, nil)
	got, err := r.Enrich(context.Background(), titled(10))
	if err != nil {
		t.Fatalf("Enrich must not fail on per-item errors: %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("expected 8 enriched items, got %d", len(got))
	}
	for _, item := range got {
		if item.ResearchNote == "" {
			t.Fatalf("item %s has empty note", item.Title)
		}
	}
}

func TestEnrichBoundedConcurrency(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{
		result: &ports.SearchResult{Answer: "ok"},
		delay:  20 * time.Millisecond,
	}

	r := NewSignalResearcher(searcher, 3, time.Second, nil)
	if _, err := r.Enrich(context.Background(), titled(12)); err != nil {
		t.Fatalf("Enrich: %v", err)
	}

	searcher.mu.Lock()
	maxSeen := searcher.maxSeen
	searcher.mu.Unlock()
	if maxSeen > 3 {
		t.Fatalf("concurrency bound violated: saw %d simultaneous lookups", maxSeen)
	}
}

func TestEnrichTimeoutDropsItem(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{
		result: &ports.SearchResult{Answer: "ok"},
		delay:  200 * time.Millisecond,
	}

	r := NewSignalResearcher(searcher, 5, 10*time.Millisecond, nil)
	got, err := r.Enrich(context.Background(), titled(2))
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("timed-out lookups must drop the item, got %d", len(got))
	}
}

func TestEnrichCanceledContextDrainsLookups(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{
		result: &ports.SearchResult{Answer: "ok"},
		delay:  200 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r := NewSignalResearcher(searcher, 1, time.Second, nil)
	if _, err := r.Enrich(ctx, titled(3)); err == nil {
		t.Fatal("expected error once the context is canceled")
	}

	searcher.mu.Lock()
	defer searcher.mu.Unlock()
	if searcher.inFlight != 0 {
		t.Fatalf("%d lookups still running after Enrich returned", searcher.inFlight)
	}
}

func TestBuildNotePrefersAnswer(t *testing.T) {
	t.Parallel()

	note := buildNote(&ports.SearchResult{
		Answer: "First point. Second point. Third point. Fourth point.",
		Hits:   []ports.SearchHit{{URL: "https://github.com/x/y", Content: "1,200 stars"}},
	})
	if note != "First point. Second point. Third point." {
		t.Fatalf("answer must be truncated to 3 sentences, got %q", note)
	}
}

func TestBuildNoteSynthesizesSignals(t *testing.T) {
	t.Parallel()

	note := buildNote(&ports.SearchResult{Hits: []ports.SearchHit{
		{URL: "https://github.com/x/y", Content: "An implementation with 2,431 stars on GitHub"},
		{URL: "https://reddit.com/r/MachineLearning/abc", Content: "Lots of excitement about the method"},
		{URL: "https://huggingface.co/models/foo", Title: "foo-model checkpoint"},
		{URL: "https://github.com/z/w", Content: "ignored, already have three"},
	}})

	if !strings.Contains(note, "GitHub repo with 2,431 stars") {
		t.Fatalf("star count not detected: %q", note)
	}
	if !strings.Contains(note, "Reddit discussion:") {
		t.Fatalf("reddit snippet not detected: %q", note)
	}
	if !strings.Contains(note, "HuggingFace: foo-model checkpoint") {
		t.Fatalf("huggingface mention not detected: %q", note)
	}
}

func TestBuildNoteNoSignals(t *testing.T) {
	t.Parallel()

	note := buildNote(&ports.SearchResult{Hits: []ports.SearchHit{
		{URL: "https://example.org/unrelated", Content: "nothing of note"},
	}})
	if note != "No significant external signals found." {
		t.Fatalf("expected explicit no-signal note, got %q", note)
	}
}

func TestStaticResearcherAnnotatesAll(t *testing.T) {
	t.Parallel()

	r := &StaticResearcher{}
	got, err := r.Enrich(context.Background(), titled(4))
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected all items back, got %d", len(got))
	}
	for _, item := range got {
		if item.ResearchNote == "" {
			t.Fatal("static researcher must populate every note")
		}
	}
}
