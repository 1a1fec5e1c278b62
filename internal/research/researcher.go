package research

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"paperfeeder/internal/domain"
	"paperfeeder/internal/ports"
)

const (
	defaultMaxConcurrent  = 5
	defaultPerItemTimeout = 30 * time.Second
	maxNoteSentences      = 3
	maxSignals            = 3
)

var starPattern = regexp.MustCompile(`(?i)(\d[\d,]*)\s*stars?`)

// SignalResearcher looks up external community signals for each item and
// attaches a short research note. Lookups run with bounded concurrency and a
// per-item timeout; an item whose lookup fails is dropped from the result,
// the rest proceed unaffected. The returned order is completion order, not
// input order.
type SignalResearcher struct {
	searcher ports.Searcher
	sem      *semaphore.Weighted
	timeout  time.Duration
	logger   *slog.Logger
}

var _ ports.Researcher = (*SignalResearcher)(nil)

// NewSignalResearcher wires the web-search backend with admission control.
func NewSignalResearcher(searcher ports.Searcher, maxConcurrent int, perItemTimeout time.Duration, logger *slog.Logger) *SignalResearcher {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	if perItemTimeout <= 0 {
		perItemTimeout = defaultPerItemTimeout
	}
	return &SignalResearcher{
		searcher: searcher,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		timeout:  perItemTimeout,
		logger:   logger,
	}
}

// Enrich fans out one lookup per item.
func (r *SignalResearcher) Enrich(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		enriched = make([]domain.Item, 0, len(items))
		failed   int
	)

	for _, item := range items {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, fmt.Errorf("acquire research slot: %w", err)
		}

		wg.Add(1)
		go func(item domain.Item) {
			defer wg.Done()
			defer r.sem.Release(1)

			note, err := r.lookup(ctx, item)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				r.warn("research lookup failed", "title", item.Title, "error", err)
				return
			}
			item.ResearchNote = note
			enriched = append(enriched, item)
		}(item)
	}

	wg.Wait()

	if failed > 0 {
		r.warn("some items failed to research", "failed", failed, "enriched", len(enriched))
	}
	return enriched, nil
}

func (r *SignalResearcher) lookup(ctx context.Context, item domain.Item) (string, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.searcher.Search(lookupCtx, buildQuery(item))
	if err != nil {
		return "", err
	}
	if result == nil {
		return "No external signals found.", nil
	}
	return buildNote(result), nil
}

// buildQuery restricts the lookup to known discussion and code-hosting
// platforms and to external-evaluation intent, never the paper body itself.
func buildQuery(item domain.Item) string {
	return fmt.Sprintf(
		`%q (site:github.com OR site:reddit.com OR site:twitter.com OR site:huggingface.co) (review OR discussion OR implementation OR reproducibility)`,
		item.Title)
}

// buildNote prefers the backend's synthesized answer truncated to three
// sentences, then falls back to signals detected in the raw hits.
func buildNote(result *ports.SearchResult) string {
	if answer := strings.TrimSpace(result.Answer); answer != "" {
		return firstSentences(answer, maxNoteSentences)
	}

	signals := detectSignals(result.Hits)
	if len(signals) == 0 {
		return "No significant external signals found."
	}
	return strings.Join(signals, ". ") + "."
}

func detectSignals(hits []ports.SearchHit) []string {
	var signals []string
	for _, hit := range hits {
		if len(signals) >= maxSignals {
			break
		}
		switch {
		case strings.Contains(hit.URL, "github.com"):
			if m := starPattern.FindStringSubmatch(hit.Content); m != nil {
				signals = append(signals, fmt.Sprintf("GitHub repo with %s stars", m[1]))
			} else {
				signals = append(signals, "GitHub implementation available")
			}
		case strings.Contains(hit.URL, "reddit.com"), strings.Contains(hit.URL, "twitter.com"):
			platform := "Reddit"
			if strings.Contains(hit.URL, "twitter.com") {
				platform = "Twitter"
			}
			snippet := strings.TrimSpace(truncate(hit.Content, 100))
			if snippet != "" {
				signals = append(signals, fmt.Sprintf("%s discussion: %s...", platform, snippet))
			}
		case strings.Contains(hit.URL, "huggingface.co"):
			signals = append(signals, "HuggingFace: "+truncate(hit.Title, 60))
		}
	}
	return signals
}

func firstSentences(text string, n int) string {
	sentences := strings.SplitN(text, ". ", n+1)
	if len(sentences) > n {
		sentences = sentences[:n]
	}
	out := strings.Join(sentences, ". ")
	if !strings.HasSuffix(out, ".") {
		out += "."
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (r *SignalResearcher) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
