package filter

import (
	"context"
	"regexp"
	"sort"

	"paperfeeder/internal/domain"
	"paperfeeder/internal/ports"
)

// KeywordFilter keeps items whose title or abstract matches at least one
// inclusion keyword (whole word, case-insensitive) and none of the exclusion
// keywords. With an empty inclusion set every non-excluded item passes.
// Survivors get their matched keywords recorded and a relevance score of
// matched/total, and come back sorted by descending score with ties keeping
// input order.
type KeywordFilter struct {
	keywords        []string
	patterns        []*regexp.Regexp
	excludePatterns []*regexp.Regexp
}

var _ ports.ItemFilter = (*KeywordFilter)(nil)

// NewKeywordFilter compiles the keyword sets into word-boundary patterns.
func NewKeywordFilter(keywords, excludeKeywords []string) *KeywordFilter {
	return &KeywordFilter{
		keywords:        keywords,
		patterns:        compileKeywords(keywords),
		excludePatterns: compileKeywords(excludeKeywords),
	}
}

func compileKeywords(keywords []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
	}
	return patterns
}

// Filter is a pure function over the in-memory list apart from mutating the
// surviving items' scoring fields.
func (f *KeywordFilter) Filter(_ context.Context, items []domain.Item) ([]domain.Item, error) {
	filtered := make([]domain.Item, 0, len(items))

	for _, item := range items {
		text := item.Title + " " + item.Abstract

		if matchesAny(f.excludePatterns, text) {
			continue
		}

		var matched []string
		for i, pattern := range f.patterns {
			if pattern.MatchString(text) {
				matched = append(matched, f.keywords[i])
			}
		}

		if len(f.patterns) > 0 && len(matched) == 0 {
			continue
		}

		item.MatchedKeywords = matched
		if len(f.keywords) > 0 {
			item.RelevanceScore = float64(len(matched)) / float64(len(f.keywords))
		}
		filtered = append(filtered, item)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].RelevanceScore > filtered[j].RelevanceScore
	})

	return filtered, nil
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}
