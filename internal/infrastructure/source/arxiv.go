package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"paperfeeder/internal/domain"
	"paperfeeder/internal/ports"
)

const (
	defaultArxivEndpoint = "https://export.arxiv.org/api/query"
	arxivRetries         = 3
	arxivRetryDelay      = 5 * time.Second
)

// ArxivSource queries the arXiv Atom API for recent submissions in the
// configured categories. The API is slow and occasionally overloaded, so the
// request is retried a few times before giving up.
type ArxivSource struct {
	endpoint   string
	categories []string
	maxResults int
	client     *http.Client
	logger     *slog.Logger
}

var _ ports.ItemSource = (*ArxivSource)(nil)

// NewArxivSource wires an HTTP client; maxResults defaults to 300.
func NewArxivSource(client *http.Client, categories []string, maxResults int, logger *slog.Logger) *ArxivSource {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	if maxResults <= 0 {
		maxResults = 300
	}
	return &ArxivSource{
		endpoint:   defaultArxivEndpoint,
		categories: categories,
		maxResults: maxResults,
		client:     client,
		logger:     logger,
	}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Published  string         `xml:"published"`
	Authors    []atomAuthor   `xml:"author"`
	Categories []atomCategory `xml:"category"`
	Links      []atomLink     `xml:"link"`
}

type atomAuthor struct {
	Name        string `xml:"name"`
	Affiliation string `xml:"affiliation"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
}

// FetchRecent returns papers submitted within the lookback window.
func (s *ArxivSource) FetchRecent(ctx context.Context, daysBack int) ([]domain.Item, error) {
	if len(s.categories) == 0 {
		return nil, fmt.Errorf("no arxiv categories configured")
	}
	if daysBack <= 0 {
		daysBack = 1
	}

	raw, err := s.fetchFeed(ctx)
	if err != nil {
		return nil, err
	}

	var feed atomFeed
	if err := xml.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("parse arxiv feed: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack)
	items := make([]domain.Item, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		item, ok := s.toItem(entry, cutoff)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *ArxivSource) fetchFeed(ctx context.Context) ([]byte, error) {
	query := make([]string, 0, len(s.categories))
	for _, cat := range s.categories {
		query = append(query, "cat:"+cat)
	}

	params := url.Values{}
	params.Set("search_query", strings.Join(query, " OR "))
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(s.maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	endpoint := s.endpoint + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt < arxivRetries; attempt++ {
		if attempt > 0 {
			s.debug("retrying arxiv query", "attempt", attempt+1)
			select {
			case <-time.After(arxivRetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		raw, err := s.doRequest(ctx, endpoint)
		if err == nil {
			return raw, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("arxiv query failed after %d attempts: %w", arxivRetries, lastErr)
}

func (s *ArxivSource) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "paperfeeder/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	return raw, nil
}

func (s *ArxivSource) toItem(entry atomEntry, cutoff time.Time) (domain.Item, bool) {
	published, err := time.Parse(time.RFC3339, entry.Published)
	if err != nil || published.Before(cutoff) {
		return domain.Item{}, false
	}

	arxivID := entry.ID
	if idx := strings.LastIndex(arxivID, "/abs/"); idx >= 0 {
		arxivID = arxivID[idx+len("/abs/"):]
	}
	if arxivID == "" {
		return domain.Item{}, false
	}

	authors := make([]domain.Author, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		authors = append(authors, domain.Author{
			Name:        strings.TrimSpace(a.Name),
			Affiliation: strings.TrimSpace(a.Affiliation),
		})
	}

	categories := make([]string, 0, len(entry.Categories))
	for _, c := range entry.Categories {
		if c.Term != "" {
			categories = append(categories, c.Term)
		}
	}

	var pdfURL string
	for _, link := range entry.Links {
		if link.Title == "pdf" {
			pdfURL = link.Href
			break
		}
	}

	return domain.Item{
		Title:       condense(entry.Title),
		Abstract:    condense(entry.Summary),
		URL:         "https://arxiv.org/abs/" + arxivID,
		Source:      domain.SourceArxiv,
		ArxivID:     arxivID,
		Authors:     authors,
		Categories:  categories,
		PublishedAt: published,
		PDFURL:      pdfURL,
	}, true
}

// condense collapses the newline-wrapped text the arXiv API returns.
func condense(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func (s *ArxivSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
