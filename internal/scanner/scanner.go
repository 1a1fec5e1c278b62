package scanner

import (
	"context"
	"log/slog"

	"paperfeeder/internal/domain"
	"paperfeeder/internal/ports"
)

// Entry is one registered provider with its lookback window.
type Entry struct {
	Name     string
	Source   ports.ItemSource
	DaysBack int
}

// Registry aggregates the configured item sources. A failing source is
// logged and skipped; the run only aborts later if nothing at all was
// fetched.
type Registry struct {
	entries []Entry
	logger  *slog.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register appends a source provider.
func (r *Registry) Register(name string, source ports.ItemSource, daysBack int) {
	if source == nil {
		return
	}
	r.entries = append(r.entries, Entry{Name: name, Source: source, DaysBack: daysBack})
}

// Len reports how many sources are registered.
func (r *Registry) Len() int {
	return len(r.entries)
}

// FetchAll runs every registered source in registration order and merges the
// results. Context cancellation is the only fatal condition.
func (r *Registry) FetchAll(ctx context.Context) ([]domain.Item, error) {
	var aggregated []domain.Item

	for _, entry := range r.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, err := entry.Source.FetchRecent(ctx, entry.DaysBack)
		if err != nil {
			r.warn("source fetch failed", "source", entry.Name, "error", err)
			continue
		}
		r.debug("source produced items", "source", entry.Name, "count", len(items))
		aggregated = append(aggregated, items...)
	}

	r.debug("fetch complete", "total_items", len(aggregated))
	return aggregated, nil
}

func (r *Registry) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Registry) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
