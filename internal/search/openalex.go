// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/research-brief/internal/retry"
	"github.com/pdiddy/research-brief/pkg/types"
)

// openAlexSearchBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexSearchBase = "https://api.openalex.org/works"

// maxAuthors bounds the author list kept per paper.
const maxAuthors = 10

// OpenAlexBackend queries the OpenAlex API. Results come back most-cited
// first.
type OpenAlexBackend struct {
	Client *http.Client
	// Email is sent as mailto parameter for polite pool access.
	Email     string
	UserAgent string

	Policy  retry.Policy
	Limiter *rate.Limiter

	// Timeout bounds each HTTP attempt. Zero means no per-attempt limit.
	Timeout time.Duration
}

// Name returns the backend identifier.
func (b *OpenAlexBackend) Name() string { return "openalex" }

// Search queries the OpenAlex API and returns up to limit academic records.
func (b *OpenAlexBackend) Search(ctx context.Context, query string, limit int) ([]types.SearchRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty OpenAlex query")
	}
	if limit <= 0 {
		limit = 5
	}
	if limit > 50 {
		limit = 50
	}

	params := url.Values{
		"search":   {query},
		"per_page": {fmt.Sprintf("%d", limit)},
		"sort":     {"cited_by_count:desc"},
	}
	if b.Email != "" {
		params.Set("mailto", b.Email)
	}

	req, err := http.NewRequest(http.MethodGet, openAlexSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	ua := b.UserAgent
	if b.Email != "" {
		ua = fmt.Sprintf("%s (mailto:%s)", ua, b.Email)
	}
	req.Header.Set("User-Agent", strings.TrimSpace(ua))

	var oar openAlexResponse
	if err := doJSON(ctx, b.Client, req, b.Policy, b.Limiter, b.Timeout, &oar); err != nil {
		return nil, fmt.Errorf("OpenAlex API request: %w", err)
	}

	total := len(oar.Results)
	results := make([]types.SearchRecord, 0, total)
	for i, work := range oar.Results {
		r := types.SearchRecord{
			Title:         work.Title,
			Snippet:       reconstructAbstract(work.AbstractInvertedIndex),
			SourceKind:    types.SourceAcademic,
			Backend:       b.Name(),
			CitationCount: types.IntPtr(work.CitedByCount),
			Score:         positionScore(i, total),
			Rank:          i,
		}
		if r.Title == "" {
			r.Title = work.DisplayName
		}

		for _, authorship := range work.Authorships {
			if authorship.Author.DisplayName != "" && len(r.Authors) < maxAuthors {
				r.Authors = append(r.Authors, authorship.Author.DisplayName)
			}
		}

		if work.PublicationYear > 0 {
			r.PublishedYear = types.IntPtr(work.PublicationYear)
		}
		if work.PrimaryLocation != nil && work.PrimaryLocation.Source != nil {
			r.Venue = work.PrimaryLocation.Source.DisplayName
		}

		// OpenAlex is DOI-centric: the DOI URL is also the best landing page.
		if work.DOI != "" {
			r.DOI = strings.TrimPrefix(work.DOI, "https://doi.org/")
			r.URL = work.DOI
		} else {
			r.URL = work.ID
		}

		results = append(results, r)
	}
	return results, nil
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DisplayName           string               `json:"display_name"`
	DOI                   string               `json:"doi"`
	PublicationYear       int                  `json:"publication_year"`
	CitedByCount          int                  `json:"cited_by_count"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	PrimaryLocation       *openAlexLocation    `json:"primary_location"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	DisplayName string `json:"display_name"`
}

type openAlexLocation struct {
	Source *openAlexSource `json:"source"`
}

type openAlexSource struct {
	DisplayName string `json:"display_name"`
}
