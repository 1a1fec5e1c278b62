package ports

import (
	"context"
	"time"

	"paperfeeder/internal/domain"
)

// ItemSource pulls fresh candidate items from upstream providers.
type ItemSource interface {
	FetchRecent(ctx context.Context, daysBack int) ([]domain.Item, error)
}

// ItemFilter narrows or reorders a working list of items. Some
// implementations are pure in-memory functions, others call out to an LLM;
// callers handle every implementation uniformly.
type ItemFilter interface {
	Filter(ctx context.Context, items []domain.Item) ([]domain.Item, error)
}

// Researcher enriches items with external community signals. Items whose
// lookup failed are dropped from the returned slice, never reported as an
// error.
type Researcher interface {
	Enrich(ctx context.Context, items []domain.Item) ([]domain.Item, error)
}

// Message is a single chat-completion turn.
type Message struct {
	Role    string
	Content string
}

// ChatCompleter is the generative-text backend. Callers treat any error as
// a generic backend failure.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []Message, maxTokens int) (string, error)
}

// SearchHit is one raw result from the web-search backend.
type SearchHit struct {
	Title   string
	URL     string
	Content string
}

// SearchResult carries an optional synthesized answer plus raw hits.
// A nil result with a nil error means the backend had nothing to say.
type SearchResult struct {
	Answer string
	Hits   []SearchHit
}

// Searcher is the external web-search backend used for enrichment.
type Searcher interface {
	Search(ctx context.Context, query string) (*SearchResult, error)
}

// ReportRenderer turns the final ranked list into a deliverable artifact.
type ReportRenderer interface {
	Render(items []domain.Item, date time.Time) (string, error)
}

// Deliverer ships the rendered digest to the user.
type Deliverer interface {
	Deliver(ctx context.Context, subject, htmlBody string) error
}

// ItemRepository persists delivered items for cross-run deduplication and
// audit.
type ItemRepository interface {
	AlreadyDelivered(ctx context.Context, keys []string) (map[string]bool, error)
	SaveDelivered(ctx context.Context, item domain.Item, deliveredAt time.Time) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
