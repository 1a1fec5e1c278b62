package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTavilyClientSearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			APIKey        string `json:"api_key"`
			Query         string `json:"query"`
			SearchDepth   string `json:"search_depth"`
			MaxResults    int    `json:"max_results"`
			IncludeAnswer bool   `json:"include_answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.APIKey != "tvly-test" || req.Query != "some paper" {
			t.Errorf("request = %+v", req)
		}
		if req.SearchDepth != "basic" || req.MaxResults != 5 || !req.IncludeAnswer {
			t.Errorf("search knobs = %+v", req)
		}

		fmt.Fprint(w, `{"answer": "Widely discussed paper.", "results": [{"title": "repo", "url": "https://github.com/x/y", "content": "1,200 stars"}]}`)
	}))
	defer srv.Close()

	client := NewTavilyClient("tvly-test", "")
	client.endpoint = srv.URL

	result, err := client.Search(context.Background(), "some paper")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Answer != "Widely discussed paper." {
		t.Errorf("answer = %q", result.Answer)
	}
	if len(result.Hits) != 1 || result.Hits[0].URL != "https://github.com/x/y" {
		t.Errorf("hits = %+v", result.Hits)
	}
}

func TestTavilyClientErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewTavilyClient("bad-key", "basic")
	client.endpoint = srv.URL

	if _, err := client.Search(context.Background(), "q"); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestTavilyClientRequiresKey(t *testing.T) {
	t.Parallel()

	client := NewTavilyClient("", "basic")
	if _, err := client.Search(context.Background(), "q"); err == nil {
		t.Fatal("expected error without api key")
	}
}
