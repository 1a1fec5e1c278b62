package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"paperfeeder/internal/domain"
	"paperfeeder/internal/ports"
)

// Mode selects which prompt variant the LLM filter uses.
type Mode string

const (
	// ModeCoarse scores on title, abstract, authors, and categories only.
	ModeCoarse Mode = "coarse"
	// ModeFine additionally weighs community signals gathered during
	// enrichment and applies a stricter cutoff philosophy.
	ModeFine Mode = "fine"
)

const maxAbstractChars = 600

// LLMFilter asks the generative backend to score each item 0-10 against the
// research-interest profile, keeps items at or above the threshold, and
// returns them sorted by score and truncated to maxKeep. Items are processed
// in fixed-size batches with a pacing delay between batches. A batch whose
// backend call or response parsing fails falls back to its items ordered by
// whatever relevance score they already carry; one failed batch never stops
// the rest.
type LLMFilter struct {
	client    ports.ChatCompleter
	interests string
	mode      Mode
	maxKeep   int
	batchSize int
	threshold int
	pacing    time.Duration
	logger    *slog.Logger
}

var _ ports.ItemFilter = (*LLMFilter)(nil)

// LLMFilterOptions configures an LLMFilter instance.
type LLMFilterOptions struct {
	Client            ports.ChatCompleter
	ResearchInterests string
	Mode              Mode
	MaxKeep           int
	BatchSize         int
	ScoreThreshold    int
	BatchPacing       time.Duration
	Logger            *slog.Logger
}

// NewLLMFilter builds a scoring filter; zero options get the usual defaults.
func NewLLMFilter(opts LLMFilterOptions) *LLMFilter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.ScoreThreshold <= 0 {
		opts.ScoreThreshold = 6
	}
	if opts.MaxKeep <= 0 {
		opts.MaxKeep = 20
	}
	if opts.Mode == "" {
		opts.Mode = ModeCoarse
	}
	return &LLMFilter{
		client:    opts.Client,
		interests: opts.ResearchInterests,
		mode:      opts.Mode,
		maxKeep:   opts.MaxKeep,
		batchSize: opts.BatchSize,
		threshold: opts.ScoreThreshold,
		pacing:    opts.BatchPacing,
		logger:    opts.Logger,
	}
}

// batchOutcome is the explicit per-batch result: either backend-scored items
// or a heuristic fallback ordering with the reason it was taken.
type batchOutcome struct {
	items    []domain.Item
	fallback bool
	reason   string
}

type batchScore struct {
	ItemNumber int    `json:"item_number"`
	Score      int    `json:"score"`
	Reason     string `json:"reason"`
}

// Filter runs the batched scoring pass.
func (f *LLMFilter) Filter(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	var survivors []domain.Item
	for start := 0; start < len(items); start += f.batchSize {
		end := start + f.batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		if start > 0 && f.pacing > 0 {
			select {
			case <-time.After(f.pacing):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		outcome := f.scoreBatch(ctx, batch)
		if outcome.fallback {
			f.warn("batch scoring fell back to heuristic order",
				"batch_start", start, "reason", outcome.reason)
		}
		survivors = append(survivors, outcome.items...)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].RelevanceScore > survivors[j].RelevanceScore
	})
	if len(survivors) > f.maxKeep {
		survivors = survivors[:f.maxKeep]
	}
	return survivors, nil
}

// scoreBatch never fails: any backend or parse problem yields the fallback
// variant.
func (f *LLMFilter) scoreBatch(ctx context.Context, batch []domain.Item) batchOutcome {
	if f.client == nil {
		return fallbackOutcome(batch, "no chat backend configured")
	}

	prompt := f.buildPrompt(batch)
	raw, err := f.client.Complete(ctx, []ports.Message{{Role: "user", Content: prompt}}, 2000)
	if err != nil {
		return fallbackOutcome(batch, fmt.Sprintf("backend call: %v", err))
	}

	scores, err := parseScores(raw)
	if err != nil {
		return fallbackOutcome(batch, err.Error())
	}

	scored := make([]domain.Item, 0, len(scores))
	for _, s := range scores {
		idx := s.ItemNumber - 1
		if idx < 0 || idx >= len(batch) {
			continue
		}
		if s.Score < f.threshold {
			continue
		}
		item := batch[idx]
		item.RelevanceScore = float64(s.Score) / 10.0
		item.FilterReason = s.Reason
		scored = append(scored, item)
	}

	return batchOutcome{items: scored}
}

func fallbackOutcome(batch []domain.Item, reason string) batchOutcome {
	ordered := make([]domain.Item, len(batch))
	copy(ordered, batch)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].RelevanceScore > ordered[j].RelevanceScore
	})
	return batchOutcome{items: ordered, fallback: true, reason: reason}
}

// parseScores digs the first well-formed JSON array out of the raw backend
// text, tolerating code fences and surrounding prose.
func parseScores(raw string) ([]batchScore, error) {
	text := stripCodeFences(raw)

	arr, ok := firstJSONArray(text)
	if !ok {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var scores []batchScore
	if err := json.Unmarshal([]byte(arr), &scores); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	return scores, nil
}

func stripCodeFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	return strings.ReplaceAll(text, "```", "")
}

// firstJSONArray returns the first balanced [...] substring, respecting
// string literals and escapes.
func firstJSONArray(text string) (string, bool) {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func (f *LLMFilter) buildPrompt(batch []domain.Item) string {
	var b strings.Builder
	for i, item := range batch {
		fmt.Fprintf(&b, "Item %d:\nTitle: %s\n", i+1, item.Title)
		if authors := formatAuthors(item.Authors); authors != "" {
			fmt.Fprintf(&b, "Authors: %s\n", authors)
		}
		fmt.Fprintf(&b, "Abstract: %s\n", truncate(item.Abstract, maxAbstractChars))
		if len(item.Categories) > 0 {
			cats := item.Categories
			if len(cats) > 3 {
				cats = cats[:3]
			}
			fmt.Fprintf(&b, "Categories: %s\n", strings.Join(cats, ", "))
		}
		if f.mode == ModeFine && item.ResearchNote != "" {
			fmt.Fprintf(&b, "Community signals: %s\n", item.ResearchNote)
		}
		b.WriteString("---\n")
	}

	var intro string
	if f.mode == ModeFine {
		intro = `You are ranking research items for a final shortlist. Score each item 0-10
against my research interests, weighing both the content and the external
community signals (code availability, stars, discussion). Be strict: only
items truly worth deep reading should score highly.`
	} else {
		intro = `You are screening research items. Score each item 0-10 for relevance to my
research interests, considering the title, abstract, author background, and
novelty.`
	}

	return fmt.Sprintf(`%s

My research interests:
%s

Items to evaluate:
%s
Return a JSON array of objects {"item_number": n, "score": s, "reason": "..."}.
Requirements:
- Only include items with score >= %d
- Sort by score descending
- Cover at most %d items
Return only the JSON array, no other text.`,
		intro, f.interests, b.String(), f.threshold, f.maxKeep)
}

func formatAuthors(authors []domain.Author) string {
	if len(authors) == 0 {
		return ""
	}
	shown := authors
	if len(shown) > 5 {
		shown = shown[:5]
	}
	parts := make([]string, 0, len(shown))
	for _, a := range shown {
		if a.Affiliation != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", a.Name, a.Affiliation))
		} else {
			parts = append(parts, a.Name)
		}
	}
	out := strings.Join(parts, ", ")
	if len(authors) > 5 {
		out += fmt.Sprintf(" et al. (%d authors)", len(authors))
	}
	return out
}

// truncate cuts after n characters, never mid-rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func (f *LLMFilter) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}
