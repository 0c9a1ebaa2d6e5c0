// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/research-brief/internal/retry"
	"github.com/pdiddy/research-brief/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,authors,year,abstract,citationCount,externalIds,venue,url"

// SemanticScholarBackend queries the Semantic Scholar API. The free tier
// rate-limits aggressively, so callers should give it retry.Strict and a
// Limiter.
type SemanticScholarBackend struct {
	Client    *http.Client
	APIKey    string
	UserAgent string

	Policy  retry.Policy
	Limiter *rate.Limiter

	// Timeout bounds each HTTP attempt. Zero means no per-attempt limit.
	Timeout time.Duration
}

// Name returns the backend identifier.
func (b *SemanticScholarBackend) Name() string { return "semantic_scholar" }

// Search queries the Semantic Scholar API and returns up to limit academic records.
func (b *SemanticScholarBackend) Search(ctx context.Context, query string, limit int) ([]types.SearchRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}
	if limit <= 0 {
		limit = 5
	}
	if limit > 100 {
		limit = 100
	}

	params := url.Values{
		"query":  {query},
		"limit":  {fmt.Sprintf("%d", limit)},
		"fields": {semanticFields},
	}

	req, err := http.NewRequest(http.MethodGet, semanticAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}
	if b.APIKey != "" {
		req.Header.Set("x-api-key", b.APIKey)
	}

	var sr semanticResponse
	if err := doJSON(ctx, b.Client, req, b.Policy, b.Limiter, b.Timeout, &sr); err != nil {
		return nil, fmt.Errorf("Semantic Scholar API request: %w", err)
	}

	total := len(sr.Data)
	results := make([]types.SearchRecord, 0, total)
	for i, paper := range sr.Data {
		r := types.SearchRecord{
			Title:      paper.Title,
			Snippet:    paper.Abstract,
			SourceKind: types.SourceAcademic,
			Backend:    b.Name(),
			Venue:      paper.Venue,
			Score:      positionScore(i, total),
			Rank:       i,
		}
		if paper.CitationCount != nil {
			r.CitationCount = types.IntPtr(*paper.CitationCount)
		}
		if paper.Year > 0 {
			r.PublishedYear = types.IntPtr(paper.Year)
		}
		for _, a := range paper.Authors {
			if a.Name != "" && len(r.Authors) < maxAuthors {
				r.Authors = append(r.Authors, a.Name)
			}
		}

		switch {
		case paper.ExternalIDs.DOI != "":
			r.DOI = paper.ExternalIDs.DOI
			r.URL = "https://doi.org/" + paper.ExternalIDs.DOI
		case paper.URL != "":
			r.URL = paper.URL
		default:
			r.URL = "https://www.semanticscholar.org/paper/" + paper.PaperID
		}

		results = append(results, r)
	}
	return results, nil
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID       string              `json:"paperId"`
	Title         string              `json:"title"`
	Abstract      string              `json:"abstract"`
	Year          int                 `json:"year"`
	Venue         string              `json:"venue"`
	URL           string              `json:"url"`
	CitationCount *int                `json:"citationCount"`
	Authors       []semanticAuthor    `json:"authors"`
	ExternalIDs   semanticExternalIDs `json:"externalIds"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI      string `json:"DOI"`
	ArXiv    string `json:"ArXiv"`
	CorpusID int    `json:"CorpusId"`
}
