package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"paperfeeder/internal/domain"
	"paperfeeder/internal/ports"
)

const blogContentLimit = 2000

// Feed describes a single blog an aggregate source can pull from.
// Priority feeds bypass relevance filtering downstream.
type Feed struct {
	Key      string
	Name     string
	URL      string
	Priority bool
}

// KnownFeeds is the built-in blog registry. Config can narrow it or add
// custom feeds on top.
var KnownFeeds = []Feed{
	{Key: "openai", Name: "OpenAI Blog", URL: "https://openai.com/news/rss.xml", Priority: true},
	{Key: "anthropic", Name: "Anthropic News", URL: "https://www.anthropic.com/news/rss.xml", Priority: true},
	{Key: "deepmind", Name: "Google DeepMind Blog", URL: "https://deepmind.google/blog/rss.xml", Priority: true},
	{Key: "huggingface", Name: "Hugging Face Blog", URL: "https://huggingface.co/blog/feed.xml", Priority: true},
	{Key: "karpathy", Name: "Andrej Karpathy", URL: "https://karpathy.github.io/feed.xml", Priority: true},
	{Key: "lilianweng", Name: "Lil'Log", URL: "https://lilianweng.github.io/index.xml", Priority: true},
	{Key: "colah", Name: "colah's blog", URL: "https://colah.github.io/rss.xml", Priority: true},
	{Key: "bair", Name: "BAIR Blog", URL: "https://bair.berkeley.edu/blog/feed.xml", Priority: true},
	{Key: "alignment_forum", Name: "Alignment Forum", URL: "https://www.alignmentforum.org/feed.xml", Priority: false},
	{Key: "lesswrong", Name: "LessWrong", URL: "https://www.lesswrong.com/feed.xml", Priority: false},
}

// SelectFeeds resolves the feed set for a run. An empty keys slice means all
// known feeds; unknown keys are ignored. Non-priority feeds are dropped when
// includeNonPriority is false.
func SelectFeeds(keys []string, custom []Feed, includeNonPriority bool) []Feed {
	feeds := KnownFeeds
	if len(keys) > 0 {
		wanted := make(map[string]bool, len(keys))
		for _, k := range keys {
			wanted[strings.ToLower(strings.TrimSpace(k))] = true
		}
		selected := make([]Feed, 0, len(keys))
		for _, f := range KnownFeeds {
			if wanted[f.Key] {
				selected = append(selected, f)
			}
		}
		feeds = selected
	}

	feeds = append(feeds, custom...)

	if !includeNonPriority {
		priority := feeds[:0:0]
		for _, f := range feeds {
			if f.Priority {
				priority = append(priority, f)
			}
		}
		feeds = priority
	}
	return feeds
}

// BlogSource aggregates RSS/Atom feeds into items. Each feed contributes at
// most maxPerFeed posts; a failing feed is logged and skipped.
type BlogSource struct {
	feeds      []Feed
	parser     *gofeed.Parser
	maxPerFeed int
	logger     *slog.Logger
}

var _ ports.ItemSource = (*BlogSource)(nil)

// NewBlogSource wires the feed list and an HTTP client for fetching.
func NewBlogSource(feeds []Feed, client *http.Client, maxPerFeed int, logger *slog.Logger) *BlogSource {
	parser := gofeed.NewParser()
	if client != nil {
		parser.Client = client
	}
	if maxPerFeed <= 0 {
		maxPerFeed = 5
	}
	return &BlogSource{
		feeds:      feeds,
		parser:     parser,
		maxPerFeed: maxPerFeed,
		logger:     logger,
	}
}

// FetchRecent pulls every configured feed and keeps posts newer than the
// lookback window.
func (s *BlogSource) FetchRecent(ctx context.Context, daysBack int) ([]domain.Item, error) {
	if daysBack <= 0 {
		daysBack = 7
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack)

	var items []domain.Item
	for _, feed := range s.feeds {
		posts, err := s.fetchFeed(ctx, feed, cutoff)
		if err != nil {
			if ctx.Err() != nil {
				return items, ctx.Err()
			}
			s.warn("blog feed failed", "blog", feed.Key, "error", err)
			continue
		}
		items = append(items, posts...)
	}
	return items, nil
}

func (s *BlogSource) fetchFeed(ctx context.Context, feed Feed, cutoff time.Time) ([]domain.Item, error) {
	parsed, err := s.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feed.URL, err)
	}

	var items []domain.Item
	for _, entry := range parsed.Items {
		if len(items) >= s.maxPerFeed {
			break
		}

		published := entryTime(entry)
		if !published.IsZero() && published.Before(cutoff) {
			continue
		}

		content := entry.Content
		if content == "" {
			content = entry.Description
		}
		content = truncate(stripHTML(content), blogContentLimit)

		items = append(items, domain.Item{
			Title:       "[Blog] " + strings.TrimSpace(entry.Title),
			Abstract:    content,
			URL:         entry.Link,
			Source:      domain.SourceBlog,
			PublishedAt: published,
			IsBlog:      true,
			BlogSource:  feed.Name,
			SkipFilter:  feed.Priority,
		})
	}
	return items, nil
}

func entryTime(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC()
	}
	return time.Time{}
}

// truncate cuts after n characters, never mid-rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// stripHTML flattens feed markup to plain text. Input that does not parse as
// HTML is returned as-is.
func stripHTML(raw string) string {
	if raw == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return condense(raw)
	}
	doc.Find("script, style").Remove()
	return condense(doc.Text())
}

func (s *BlogSource) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
