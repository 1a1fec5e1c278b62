package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"paperfeeder/internal/ports"
)

const defaultTavilyEndpoint = "https://api.tavily.com/search"

// TavilyClient implements ports.Searcher over the Tavily search API.
type TavilyClient struct {
	endpoint    string
	apiKey      string
	searchDepth string
	maxResults  int
	httpClient  *http.Client
}

var _ ports.Searcher = (*TavilyClient)(nil)

// NewTavilyClient builds a client; searchDepth defaults to "basic".
func NewTavilyClient(apiKey, searchDepth string) *TavilyClient {
	if searchDepth == "" {
		searchDepth = "basic"
	}
	return &TavilyClient{
		endpoint:    defaultTavilyEndpoint,
		apiKey:      apiKey,
		searchDepth: searchDepth,
		maxResults:  5,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs one query and maps the response to a ports.SearchResult.
func (c *TavilyClient) Search(ctx context.Context, query string) (*ports.SearchResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("tavily api key is not set")
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   c.searchDepth,
		MaxResults:    c.maxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("tavily error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	result := &ports.SearchResult{Answer: strings.TrimSpace(parsed.Answer)}
	for _, hit := range parsed.Results {
		result.Hits = append(result.Hits, ports.SearchHit{
			Title:   hit.Title,
			URL:     hit.URL,
			Content: hit.Content,
		})
	}
	return result, nil
}
