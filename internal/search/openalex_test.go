// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOpenAlexJSON = `{
	"meta": {"count": 2, "per_page": 5, "page": 1},
	"results": [
		{
			"id": "https://openalex.org/W2963403868",
			"title": "Attention Is All You Need",
			"doi": "https://doi.org/10.5555/3295222.3295349",
			"publication_year": 2017,
			"cited_by_count": 120,
			"authorships": [
				{"author": {"display_name": "Ashish Vaswani"}},
				{"author": {"display_name": "Noam Shazeer"}}
			],
			"abstract_inverted_index": {"We": [0], "propose": [1], "attention": [2]},
			"primary_location": {"source": {"display_name": "NeurIPS"}}
		},
		{
			"id": "https://openalex.org/W3210812345",
			"title": null,
			"display_name": "BERT Pre-training",
			"doi": null,
			"publication_year": 2018,
			"cited_by_count": 45,
			"authorships": [{"author": {"display_name": "Jacob Devlin"}}],
			"abstract_inverted_index": null,
			"primary_location": null
		}
	]
}`

func openAlexTestServer(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func TestReconstructAbstract(t *testing.T) {
	tests := []struct {
		name  string
		index map[string][]int
		want  string
	}{
		{"nil", nil, ""},
		{"ordered", map[string][]int{"a": {0}, "b": {1}}, "a b"},
		{"repeated word", map[string][]int{"the": {0, 2}, "cat": {1}, "hat": {3}}, "the cat the hat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reconstructAbstract(tt.index); got != tt.want {
				t.Errorf("reconstructAbstract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenAlexBackendSearch(t *testing.T) {
	ts := openAlexTestServer(http.StatusOK, sampleOpenAlexJSON)
	defer ts.Close()

	old := openAlexSearchBase
	openAlexSearchBase = ts.URL
	defer func() { openAlexSearchBase = old }()

	b := &OpenAlexBackend{Client: ts.Client(), Email: "test@example.com", Policy: fastPolicy()}
	results, err := b.Search(context.Background(), "attention", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	r0 := results[0]
	assert.Equal(t, "10.5555/3295222.3295349", r0.DOI)
	assert.Equal(t, "https://doi.org/10.5555/3295222.3295349", r0.URL)
	assert.Equal(t, "Attention Is All You Need", r0.Title)
	assert.Equal(t, "openalex", r0.Backend)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, r0.Authors)
	assert.Equal(t, 2017, r0.Year())
	assert.Equal(t, 120, r0.Citations())
	assert.Equal(t, "NeurIPS", r0.Venue)
	assert.Equal(t, "We propose attention", r0.Snippet)
	assert.Equal(t, 1.0, r0.Score)
	assert.Equal(t, 0, r0.Rank)

	r1 := results[1]
	assert.Empty(t, r1.DOI)
	assert.Equal(t, "https://openalex.org/W3210812345", r1.URL)
	assert.Equal(t, "BERT Pre-training", r1.Title, "display_name backs up a missing title")
	assert.Empty(t, r1.Venue)
	assert.Empty(t, r1.Snippet)
	assert.InDelta(t, 0.1, r1.Score, 1e-9)
	assert.Equal(t, 1, r1.Rank)
}

func TestOpenAlexBackendRequestParams(t *testing.T) {
	var captured *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer ts.Close()

	old := openAlexSearchBase
	openAlexSearchBase = ts.URL
	defer func() { openAlexSearchBase = old }()

	b := &OpenAlexBackend{Client: ts.Client(), Email: "me@example.com", UserAgent: "rb/1", Policy: fastPolicy()}
	_, err := b.Search(context.Background(), "bank credit", 80)
	require.NoError(t, err)

	q := captured.URL.Query()
	assert.Equal(t, "bank credit", q.Get("search"))
	assert.Equal(t, "50", q.Get("per_page"))
	assert.Equal(t, "cited_by_count:desc", q.Get("sort"))
	assert.Equal(t, "me@example.com", q.Get("mailto"))
	assert.Equal(t, "rb/1 (mailto:me@example.com)", captured.Header.Get("User-Agent"))
}

func TestOpenAlexBackendAuthorCap(t *testing.T) {
	var authors []string
	for i := 0; i < 14; i++ {
		authors = append(authors, fmt.Sprintf(`{"author":{"display_name":"A%d"}}`, i))
	}
	body := `{"results":[{"id":"W1","title":"Big","authorships":[` + strings.Join(authors, ",") + `]}]}`
	ts := openAlexTestServer(http.StatusOK, body)
	defer ts.Close()

	old := openAlexSearchBase
	openAlexSearchBase = ts.URL
	defer func() { openAlexSearchBase = old }()

	b := &OpenAlexBackend{Client: ts.Client(), Policy: fastPolicy()}
	results, err := b.Search(context.Background(), "x", 5)
	require.NoError(t, err)
	assert.Len(t, results[0].Authors, maxAuthors)
}

func TestOpenAlexBackendEmptyQuery(t *testing.T) {
	b := &OpenAlexBackend{}
	_, err := b.Search(context.Background(), "  ", 5)
	assert.Error(t, err)
}

func TestOpenAlexBackendRetriesUnavailable(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, sampleOpenAlexJSON)
	}))
	defer ts.Close()

	old := openAlexSearchBase
	openAlexSearchBase = ts.URL
	defer func() { openAlexSearchBase = old }()

	b := &OpenAlexBackend{Client: ts.Client(), Policy: fastPolicy()}
	results, err := b.Search(context.Background(), "x", 5)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOpenAlexBackendHTTPNon200(t *testing.T) {
	ts := openAlexTestServer(http.StatusBadRequest, `{"error":"bad"}`)
	defer ts.Close()

	old := openAlexSearchBase
	openAlexSearchBase = ts.URL
	defer func() { openAlexSearchBase = old }()

	b := &OpenAlexBackend{Client: ts.Client(), Policy: fastPolicy()}
	_, err := b.Search(context.Background(), "x", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")
}

func TestOpenAlexBackendMalformedJSON(t *testing.T) {
	ts := openAlexTestServer(http.StatusOK, `{not json`)
	defer ts.Close()

	old := openAlexSearchBase
	openAlexSearchBase = ts.URL
	defer func() { openAlexSearchBase = old }()

	b := &OpenAlexBackend{Client: ts.Client(), Policy: fastPolicy()}
	_, err := b.Search(context.Background(), "x", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing response")
}

func TestOpenAlexBackendName(t *testing.T) {
	if got := (&OpenAlexBackend{}).Name(); got != "openalex" {
		t.Errorf("Name() = %q, want %q", got, "openalex")
	}
}
