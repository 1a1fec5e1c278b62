package domain

import "time"

// SourceKind enumerates where an item came from.
type SourceKind string

const (
	SourceArxiv       SourceKind = "arxiv"
	SourceHuggingFace SourceKind = "huggingface"
	SourceManual      SourceKind = "manual"
	SourceBlog        SourceKind = "blog"
)

// Author of a paper or blog post.
type Author struct {
	Name        string
	Affiliation string
}

// Item is the unit flowing through every pipeline stage: a paper or a blog
// post. Descriptive fields are set by the fetcher; scoring fields are
// overwritten in place by the stage that owns them (keyword filter sets
// MatchedKeywords, the LLM filter sets RelevanceScore and FilterReason, the
// researcher sets ResearchNote).
type Item struct {
	Title       string
	Abstract    string
	URL         string
	Source      SourceKind
	ArxivID     string
	Authors     []Author
	Categories  []string
	PublishedAt time.Time
	PDFURL      string

	RelevanceScore  float64
	MatchedKeywords []string
	FilterReason    string
	ResearchNote    string

	// SkipFilter marks items from trusted sources that bypass filtering,
	// scoring, and enrichment entirely and always appear in the output.
	SkipFilter bool
	IsBlog     bool
	BlogSource string
	Notes      string
}

// DedupKey identifies an item for all set and membership operations:
// the arXiv id when present, otherwise the URL.
func (it Item) DedupKey() string {
	if it.ArxivID != "" {
		return it.ArxivID
	}
	return it.URL
}

// Dedup keeps the first occurrence of each dedup key, preserving order.
func Dedup(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	unique := make([]Item, 0, len(items))
	for _, it := range items {
		key := it.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, it)
	}
	return unique
}

// SplitPriority separates items flagged to bypass the scored pipeline from
// the rest, preserving relative order in both halves.
func SplitPriority(items []Item) (priority, normal []Item) {
	for _, it := range items {
		if it.SkipFilter {
			priority = append(priority, it)
		} else {
			normal = append(normal, it)
		}
	}
	return priority, normal
}
