// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-brief/pkg/types"
)

func TestToCSLItem(t *testing.T) {
	r := types.SearchRecord{
		Title:         "Attention Is All You Need",
		DOI:           "10.5555/3295222.3295349",
		URL:           "https://doi.org/10.5555/3295222.3295349",
		Authors:       []string{"Ashish Vaswani", "Plato"},
		Snippet:       "We propose attention.",
		Venue:         "NeurIPS",
		PublishedYear: types.IntPtr(2017),
		SourceKind:    types.SourceAcademic,
	}

	item := toCSLItem(r, 1)

	if item.ID != "10.5555/3295222.3295349" {
		t.Errorf("ID = %q, want DOI", item.ID)
	}
	if item.Type != "article-journal" {
		t.Errorf("Type = %q, want %q", item.Type, "article-journal")
	}
	if item.ContainerTitle != "NeurIPS" {
		t.Errorf("ContainerTitle = %q", item.ContainerTitle)
	}
	if len(item.Author) != 2 {
		t.Fatalf("len(Author) = %d, want 2", len(item.Author))
	}
	if item.Author[0].Family != "Vaswani" || item.Author[0].Given != "Ashish" {
		t.Errorf("Author[0] = %+v", item.Author[0])
	}
	if item.Author[1].Literal != "Plato" {
		t.Errorf("Author[1] = %+v, want literal", item.Author[1])
	}
	if item.Issued == nil || item.Issued.DateParts[0][0] != 2017 {
		t.Errorf("Issued year should be 2017")
	}
}

func TestToCSLItemNoDOI(t *testing.T) {
	item := toCSLItem(types.SearchRecord{Title: "X", SourceKind: types.SourceAcademic}, 3)
	if item.ID != "paper-3" {
		t.Errorf("ID = %q, want positional id", item.ID)
	}
	if item.Issued != nil {
		t.Errorf("Issued should be nil without a year")
	}
}

func TestParseAuthorName(t *testing.T) {
	tests := []struct {
		in   string
		want CSLName
	}{
		{"", CSLName{}},
		{"Plato", CSLName{Literal: "Plato"}},
		{"Jean Paul Sartre", CSLName{Given: "Jean Paul", Family: "Sartre"}},
	}
	for _, tt := range tests {
		if got := parseAuthorName(tt.in); got != tt.want {
			t.Errorf("parseAuthorName(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestFormatCSLSkipsWeb(t *testing.T) {
	records := []types.SearchRecord{
		{Title: "Web page", URL: "https://a.example", SourceKind: types.SourceWeb},
		{Title: "Paper", DOI: "10.1/x", SourceKind: types.SourceAcademic},
	}
	var buf bytes.Buffer
	require.NoError(t, FormatCSL(records, &buf))

	out := buf.String()
	assert.True(t, strings.Contains(out, "title: Paper"))
	assert.False(t, strings.Contains(out, "Web page"))
	assert.Contains(t, out, "DOI: 10.1/x")
}

func TestQueryFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.yaml")
	topic := types.Topic{Text: "bank credit", Language: "en"}
	plan := types.Plan{
		Original: "bank credit",
		Queries:  []types.Query{{Text: "bank credit growth", SourceKind: types.SourceWeb}},
	}
	out := Output{
		Records:       []types.SearchRecord{{Title: "A", URL: "https://a.example", SourceKind: types.SourceWeb, Backend: "tavily"}},
		BackendErrors: []string{"semantic_scholar: HTTP 429"},
		Degraded:      true,
	}

	require.NoError(t, WriteQueryFile(path, topic, plan, out))
	qf, err := ReadQueryFile(path)
	require.NoError(t, err)

	assert.Equal(t, topic, qf.Topic)
	assert.Equal(t, plan.Queries, qf.Plan.Queries)
	assert.Equal(t, 1, qf.Summary.Total)
	assert.Equal(t, out, qf.Output())
}

func TestReadQueryFileMissing(t *testing.T) {
	_, err := ReadQueryFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
