package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"paperfeeder/internal/domain"
	"paperfeeder/internal/ports"
)

// Daily-papers API, official endpoint first, mirror as fallback.
var defaultHFEndpoints = []string{
	"https://huggingface.co/api/daily_papers",
	"https://hf-mirror.com/api/daily_papers",
}

// HuggingFaceSource fetches the curated daily-papers list. Endpoints are
// tried in order until one answers.
type HuggingFaceSource struct {
	endpoints []string
	client    *http.Client
	logger    *slog.Logger
}

var _ ports.ItemSource = (*HuggingFaceSource)(nil)

// NewHuggingFaceSource wires an HTTP client.
func NewHuggingFaceSource(client *http.Client, logger *slog.Logger) *HuggingFaceSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HuggingFaceSource{
		endpoints: defaultHFEndpoints,
		client:    client,
		logger:    logger,
	}
}

type hfEntry struct {
	Paper hfPaper `json:"paper"`
}

type hfPaper struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Authors     []hfAuthor `json:"authors"`
	PublishedAt string     `json:"publishedAt"`
}

type hfAuthor struct {
	Name string `json:"name"`
}

// FetchRecent returns today's curated papers. The lookback window does not
// apply; the API only serves the current day.
func (s *HuggingFaceSource) FetchRecent(ctx context.Context, _ int) ([]domain.Item, error) {
	var entries []hfEntry
	var lastErr error
	for _, endpoint := range s.endpoints {
		entries, lastErr = s.fetchOne(ctx, endpoint)
		if lastErr == nil {
			break
		}
		s.debug("daily papers endpoint failed", "endpoint", endpoint, "error", lastErr)
	}
	if lastErr != nil {
		return nil, fmt.Errorf("all daily-papers endpoints failed: %w", lastErr)
	}

	items := make([]domain.Item, 0, len(entries))
	for _, entry := range entries {
		p := entry.Paper
		if p.ID == "" && p.Title == "" {
			continue
		}

		authors := make([]domain.Author, 0, len(p.Authors))
		for _, a := range p.Authors {
			authors = append(authors, domain.Author{Name: a.Name})
		}

		var published time.Time
		if p.PublishedAt != "" {
			published, _ = time.Parse(time.RFC3339, p.PublishedAt)
		}

		itemURL := "https://huggingface.co/papers/" + p.ID
		var pdfURL string
		if p.ID != "" {
			itemURL = "https://arxiv.org/abs/" + p.ID
			pdfURL = "https://arxiv.org/pdf/" + p.ID + ".pdf"
		}

		items = append(items, domain.Item{
			Title:       strings.TrimSpace(p.Title),
			Abstract:    strings.TrimSpace(p.Summary),
			URL:         itemURL,
			Source:      domain.SourceHuggingFace,
			ArxivID:     p.ID,
			Authors:     authors,
			PublishedAt: published,
			PDFURL:      pdfURL,
		})
	}
	return items, nil
}

func (s *HuggingFaceSource) fetchOne(ctx context.Context, endpoint string) ([]hfEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request daily papers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daily papers returned %s", resp.Status)
	}

	var entries []hfEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode daily papers: %w", err)
	}
	return entries, nil
}

func (s *HuggingFaceSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
