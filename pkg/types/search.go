// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data values that flow through the research-brief
// pipeline: topics and queries from planning, search records, fetched
// documents, notes, and the final brief. None of them outlive a single run.
package types

// SourceKind discriminates web results from academic bibliographic records.
type SourceKind string

const (
	SourceWeb      SourceKind = "web"
	SourceAcademic SourceKind = "academic"
)

// Topic is the immutable input to a pipeline run.
type Topic struct {
	// Text is the free-text research topic in the user's language.
	Text string `json:"text" yaml:"text"`

	// Language is an optional BCP-47-ish tag for the topic and the output
	// (e.g. "mn", "en"). Empty means unknown.
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
}

// Query is one search string produced by the planner.
type Query struct {
	// Text is the search string sent to the backend.
	Text string `json:"text" yaml:"text"`

	// Intent is the sub-question this query answers, when the planner gave one.
	Intent string `json:"intent,omitempty" yaml:"intent,omitempty"`

	// SourceKind selects the backends: web search or the academic pair.
	SourceKind SourceKind `json:"source_kind" yaml:"source_kind"`

	// Original holds the untranslated text when Text is a translation.
	Original string `json:"original,omitempty" yaml:"original,omitempty"`
}

// SearchRecord is a search result normalized from any backend. Backend
// specific field names never appear past the search package.
type SearchRecord struct {
	// Title is the page or paper title.
	Title string `json:"title" yaml:"title"`

	// URL is the page URL, or the best landing URL for a paper.
	URL string `json:"url" yaml:"url"`

	// DOI is set only for academic records and is the dedup key.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Snippet is the search snippet for web results or the abstract for papers.
	Snippet string `json:"snippet" yaml:"snippet"`

	// Score is the backend relevance, normalized to 0.0-1.0.
	Score float64 `json:"score" yaml:"score"`

	// SourceKind is the discriminator for web vs academic records.
	SourceKind SourceKind `json:"source_kind" yaml:"source_kind"`

	// Backend names the service that returned the record (e.g. "tavily", "openalex").
	Backend string `json:"backend" yaml:"backend"`

	// CitationCount is nil when the backend does not report one.
	CitationCount *int `json:"citation_count,omitempty" yaml:"citation_count,omitempty"`

	// PublishedYear is nil when unknown.
	PublishedYear *int `json:"published_year,omitempty" yaml:"published_year,omitempty"`

	// Authors lists author display names in source order (academic only).
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Venue is the journal or conference, when known.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// QueryIndex is the position of the originating query in the plan.
	QueryIndex int `json:"query_index" yaml:"query_index"`

	// Rank is the zero-based position within the backend's result list.
	Rank int `json:"rank" yaml:"rank"`
}

// Citations returns the citation count, or -1 when it is unknown.
func (r SearchRecord) Citations() int {
	if r.CitationCount == nil {
		return -1
	}
	return *r.CitationCount
}

// Year returns the publication year, or 0 when it is unknown.
func (r SearchRecord) Year() int {
	if r.PublishedYear == nil {
		return 0
	}
	return *r.PublishedYear
}

// IntPtr returns a pointer to v. Backends use it to fill optional fields.
func IntPtr(v int) *int { return &v }
