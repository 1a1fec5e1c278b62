package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"paperfeeder/internal/domain"
	"paperfeeder/internal/ports"
)

// ManualSource reads hand-picked items from a local JSON file. A missing
// file is not an error; it just means nothing was queued.
type ManualSource struct {
	path string
}

var _ ports.ItemSource = (*ManualSource)(nil)

func NewManualSource(path string) *ManualSource {
	return &ManualSource{path: path}
}

type manualEntry struct {
	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	URL      string   `json:"url"`
	ArxivID  string   `json:"arxiv_id"`
	Authors  []string `json:"authors"`
	Notes    string   `json:"notes"`
}

// FetchRecent ignores the lookback window; queued items are always returned.
func (s *ManualSource) FetchRecent(_ context.Context, _ int) ([]domain.Item, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read manual queue: %w", err)
	}

	var entries []manualEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse manual queue %s: %w", s.path, err)
	}

	items := make([]domain.Item, 0, len(entries))
	for _, entry := range entries {
		if entry.Title == "" && entry.URL == "" && entry.ArxivID == "" {
			continue
		}

		itemURL := entry.URL
		var pdfURL string
		if entry.ArxivID != "" {
			if itemURL == "" {
				itemURL = "https://arxiv.org/abs/" + entry.ArxivID
			}
			pdfURL = "https://arxiv.org/pdf/" + entry.ArxivID + ".pdf"
		}

		authors := make([]domain.Author, 0, len(entry.Authors))
		for _, name := range entry.Authors {
			name = strings.TrimSpace(name)
			if name != "" {
				authors = append(authors, domain.Author{Name: name})
			}
		}

		items = append(items, domain.Item{
			Title:       strings.TrimSpace(entry.Title),
			Abstract:    strings.TrimSpace(entry.Abstract),
			URL:         itemURL,
			Source:      domain.SourceManual,
			ArxivID:     entry.ArxivID,
			Authors:     authors,
			PublishedAt: time.Now().UTC(),
			PDFURL:      pdfURL,
			Notes:       entry.Notes,
		})
	}
	return items, nil
}
