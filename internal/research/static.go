package research

import (
	"context"
	"log/slog"

	"paperfeeder/internal/domain"
	"paperfeeder/internal/ports"
)

// StaticResearcher attaches a fixed note to every item without any network
// call. It stands in for the real researcher when no search credential is
// configured, so the pipeline behaves identically downstream.
type StaticResearcher struct {
	Note   string
	Logger *slog.Logger
}

var _ ports.Researcher = (*StaticResearcher)(nil)

// Enrich annotates every item and never fails.
func (r *StaticResearcher) Enrich(_ context.Context, items []domain.Item) ([]domain.Item, error) {
	note := r.Note
	if note == "" {
		note = "Offline mode: no external signals gathered."
	}

	enriched := make([]domain.Item, 0, len(items))
	for _, item := range items {
		item.ResearchNote = note
		enriched = append(enriched, item)
	}

	if r.Logger != nil {
		r.Logger.Debug("static research complete", "items", len(enriched))
	}
	return enriched, nil
}
