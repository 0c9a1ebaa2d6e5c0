// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synth

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-brief/internal/llm"
	"github.com/pdiddy/research-brief/internal/prompts"
	"github.com/pdiddy/research-brief/pkg/types"
)

func refs(n int) []types.Reference {
	out := make([]types.Reference, n)
	for i := range out {
		out[i] = types.Reference{Index: i + 1, URL: "https://example.com/" + string(rune('a'+i)), Title: "Ref " + string(rune('A'+i))}
	}
	return out
}

// requireCitationInvariant checks that the marker set is exactly
// {1..len(References)} and references are numbered in order.
func requireCitationInvariant(t *testing.T, b types.Brief) {
	t.Helper()
	markers := Markers(b.Body)
	sort.Ints(markers)
	want := make([]int, len(b.References))
	for i := range want {
		want[i] = i + 1
		require.Equal(t, i+1, b.References[i].Index)
	}
	if len(want) == 0 {
		require.Empty(t, markers)
		return
	}
	require.Equal(t, want, markers)
}

func TestRepairCitations(t *testing.T) {
	r := refs(3)
	rep := RepairCitations("A [1]. B [3]. C [2, 5].", r)

	assert.Equal(t, "A [1]. B [2]. C [3].", rep.Body)
	require.Len(t, rep.References, 3)
	assert.Equal(t, r[0].URL, rep.References[0].URL)
	assert.Equal(t, r[2].URL, rep.References[1].URL)
	assert.Equal(t, r[1].URL, rep.References[2].URL)
	assert.Equal(t, 1, rep.Dropped)
	assert.Equal(t, 0, rep.Uncited)
	requireCitationInvariant(t, types.Brief{Body: rep.Body, References: rep.References})
}

func TestRepairCitations_Groups(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"range", "X [1-3].", "X [1][2][3]."},
		{"en dash range", "X [1–2].", "X [1][2]."},
		{"list", "X [2, 1].", "X [1][2]."},
		{"repeat in group", "X [1, 1].", "X [1]."},
		{"reversed range", "X [3-1].", "X [1][2][3]."},
		{"spaces", "X [ 2 ].", "X [1]."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := RepairCitations(tt.in, refs(3))
			assert.Equal(t, tt.want, rep.Body)
		})
	}
}

func TestRepairCitations_DropsOutOfRange(t *testing.T) {
	rep := RepairCitations("Claim [9]. Other [0].", refs(1))
	assert.Equal(t, "Claim. Other.", rep.Body)
	assert.False(t, rep.Cited())
	assert.Equal(t, 2, rep.Dropped)
	assert.Equal(t, 1, rep.Uncited)
}

func TestRepairCitations_CompactsUncited(t *testing.T) {
	r := refs(3)
	rep := RepairCitations("Only the last [3], twice [3].", r)
	assert.Equal(t, "Only the last [1], twice [1].", rep.Body)
	require.Len(t, rep.References, 1)
	assert.Equal(t, types.Reference{Index: 1, URL: r[2].URL, Title: r[2].Title}, rep.References[0])
	assert.Equal(t, 2, rep.Uncited)
	assert.Len(t, rep.Warnings(), 1)
}

func TestRepairCitations_IgnoresNonNumericBrackets(t *testing.T) {
	rep := RepairCitations("See [note] and [1].", refs(1))
	assert.Equal(t, "See [note] and [1].", rep.Body)
	assert.Empty(t, rep.Warnings())
}

func TestStripMarkers(t *testing.T) {
	assert.Equal(t, "GDP grew 5% in 2023.", StripMarkers("GDP grew 5% [4] in 2023 [1, 2]."))
}

func notes() []types.Note {
	return []types.Note{
		{Text: "Inflation hit 9% in 2023.", Kind: types.NoteDataPoint, SourceURL: "https://a.example", SourceTitle: "A", Sequence: 1},
		{Text: "Central bank raised rates.", Kind: types.NoteClaim, SourceURL: "https://b.example", SourceTitle: "B", Sequence: 2},
		{Text: "Prices eased later [3].", Kind: types.NoteClaim, SourceURL: "https://a.example", SourceTitle: "A", Sequence: 3},
		{Text: "Unlabeled source.", Kind: types.NoteClaim, SourceURL: "https://c.example", Sequence: 4},
	}
}

func TestBuildReferences(t *testing.T) {
	got := BuildReferences(notes())
	assert.Equal(t, []types.Reference{
		{Index: 1, URL: "https://a.example", Title: "A"},
		{Index: 2, URL: "https://b.example", Title: "B"},
		{Index: 3, URL: "https://c.example", Title: "https://c.example"},
	}, got)
}

func fixed(reply string, err error) llm.Model {
	return llm.ModelFunc(func(context.Context, string) (string, error) { return reply, err })
}

func TestBrief_RenumbersByFirstAppearance(t *testing.T) {
	s := &Synthesizer{Model: fixed("Rates rose [2] after inflation [1][7]. Later easing [1].", nil), Prompts: prompts.Default()}
	b, err := s.Brief(context.Background(), "inflation", notes())
	require.NoError(t, err)

	assert.Equal(t, "Rates rose [1] after inflation [2]. Later easing [2].", b.Body)
	require.Len(t, b.References, 2)
	assert.Equal(t, "https://b.example", b.References[0].URL)
	assert.Equal(t, "https://a.example", b.References[1].URL)
	assert.Len(t, b.Warnings, 2)
	requireCitationInvariant(t, b)
}

func TestBrief_NoValidCitationsFallsBackToNotes(t *testing.T) {
	s := &Synthesizer{Model: fixed("A brief without any citations [12].", nil), Prompts: prompts.Default()}
	b, err := s.Brief(context.Background(), "inflation", notes())
	require.NoError(t, err)

	assert.Contains(t, b.Body, "no verified citations")
	assert.Contains(t, b.Body, "- Inflation hit 9% in 2023. [1]")
	assert.Contains(t, b.Body, "- Prices eased later. [1]")
	assert.Contains(t, b.Body, "- Unlabeled source. [3]")
	assert.Len(t, b.References, 3)
	requireCitationInvariant(t, b)
}

func TestBrief_ModelErrorFallsBack(t *testing.T) {
	s := &Synthesizer{Model: fixed("", errors.New("overloaded")), Prompts: prompts.Default()}
	b, err := s.Brief(context.Background(), "inflation", notes())
	require.NoError(t, err)
	require.NotEmpty(t, b.Warnings)
	assert.Contains(t, b.Warnings[0], "synthesis failed")
	requireCitationInvariant(t, b)
}

func TestBrief_NoNotes(t *testing.T) {
	s := &Synthesizer{Model: fixed("unused", nil), Prompts: prompts.Default()}
	b, err := s.Brief(context.Background(), "inflation", nil)
	require.NoError(t, err)
	assert.Equal(t, NoSourcesBody, b.Body)
	assert.Empty(t, b.References)
}

func TestBrief_Deterministic(t *testing.T) {
	s := &Synthesizer{Model: fixed("One [3]. Two [1]. Three [2].", nil), Prompts: prompts.Default()}
	first, err := s.Brief(context.Background(), "t", notes())
	require.NoError(t, err)
	second, err := s.Brief(context.Background(), "t", notes())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBrief_PromptListsReferences(t *testing.T) {
	var prompt string
	s := &Synthesizer{
		Model: llm.ModelFunc(func(_ context.Context, p string) (string, error) {
			prompt = p
			return "ok [1]", nil
		}),
		Prompts:  prompts.Default(),
		Language: "mn",
	}
	_, err := s.Brief(context.Background(), "инфляц", notes())
	require.NoError(t, err)
	assert.Contains(t, prompt, "[1] A (https://a.example)")
	assert.Contains(t, prompt, "- [2] (claim) Central bank raised rates.")
	assert.Contains(t, prompt, "written in Mongolian")
}

func TestBrief_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &Synthesizer{
		Model: llm.ModelFunc(func(ctx context.Context, _ string) (string, error) {
			return "", ctx.Err()
		}),
		Prompts: prompts.Default(),
	}
	_, err := s.Brief(ctx, "t", notes())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMarkdown(&buf, types.Brief{
		Body:       "Body [1].",
		References: []types.Reference{{Index: 1, URL: "https://a.example", Title: "A"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Body [1].\n\n## References\n\n[1] A. https://a.example\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteMarkdown(&buf, types.Brief{Body: NoSourcesBody}))
	assert.NotContains(t, buf.String(), "References")
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "Mongolian", LanguageName("mn"))
	assert.Equal(t, "English", LanguageName(""))
	assert.Equal(t, "English", LanguageName("EN"))
	assert.Equal(t, "de", LanguageName("de"))
}

func TestFormatAuthors(t *testing.T) {
	assert.Equal(t, "A, B, C et al.", formatAuthors([]string{"A", "B", "C", "D"}))
	assert.Equal(t, "A, B", formatAuthors([]string{"A", "B"}))
	assert.Equal(t, "", formatAuthors(nil))
	assert.True(t, strings.HasSuffix(truncateRunes(strings.Repeat("ж", 500), 400, "..."), "..."))
}
