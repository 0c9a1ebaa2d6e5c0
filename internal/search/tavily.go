// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/research-brief/internal/retry"
	"github.com/pdiddy/research-brief/pkg/types"
)

// tavilySearchURL is the Tavily search endpoint. Declared as a var so
// tests can substitute an httptest server.
var tavilySearchURL = "https://api.tavily.com/search"

// maxSnippetChars bounds the snippet kept from Tavily's page content.
const maxSnippetChars = 400

// TavilyBackend queries the Tavily web search API.
type TavilyBackend struct {
	Client *http.Client
	APIKey string

	// Depth is "basic" or "advanced" (default "advanced").
	Depth     string
	UserAgent string

	Policy  retry.Policy
	Limiter *rate.Limiter

	// Timeout bounds each HTTP attempt. Zero means no per-attempt limit.
	Timeout time.Duration
}

// Name returns the backend identifier.
func (b *TavilyBackend) Name() string { return "tavily" }

// Search posts the query to Tavily and returns up to limit web records.
func (b *TavilyBackend) Search(ctx context.Context, query string, limit int) ([]types.SearchRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty Tavily query")
	}
	if b.APIKey == "" {
		return nil, retry.Permanent(fmt.Errorf("Tavily API key not configured"))
	}
	depth := b.Depth
	if depth == "" {
		depth = "advanced"
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:      b.APIKey,
		Query:       query,
		MaxResults:  limit,
		SearchDepth: depth,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, tavilySearchURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	var tr tavilyResponse
	if err := doJSON(ctx, b.Client, req, b.Policy, b.Limiter, b.Timeout, &tr); err != nil {
		return nil, fmt.Errorf("Tavily API request: %w", err)
	}

	var kept []tavilyResult
	for _, item := range tr.Results {
		if item.URL == "" {
			continue
		}
		kept = append(kept, item)
		if limit > 0 && len(kept) == limit {
			break
		}
	}

	results := make([]types.SearchRecord, 0, len(kept))
	for i, item := range kept {
		score := positionScore(i, len(kept))
		if item.Score > 0 {
			score = min(item.Score, 1.0)
		}
		results = append(results, types.SearchRecord{
			Title:      strings.TrimSpace(item.Title),
			URL:        item.URL,
			Snippet:    truncateRunes(item.Content, maxSnippetChars),
			Score:      score,
			SourceKind: types.SourceWeb,
			Backend:    b.Name(),
			Rank:       i,
		})
	}
	return results, nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// Tavily API JSON structures.
type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Query   string         `json:"query"`
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}
