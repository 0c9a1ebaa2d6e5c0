// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synth

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-brief/internal/llm"
	"github.com/pdiddy/research-brief/internal/prompts"
	"github.com/pdiddy/research-brief/pkg/types"
)

// Theme and gap bounds for literature reviews.
const (
	MinThemes = 3
	MaxThemes = 5
	MinGaps   = 2
	MaxGaps   = 4
)

const maxPromptAbstract = 1200

// reviewResponse is the JSON the review prompt asks for.
type reviewResponse struct {
	Summary string   `json:"summary"`
	Themes  []string `json:"themes"`
	Gaps    []string `json:"gaps"`
}

type promptPaper struct {
	Index     int
	Title     string
	Year      int
	Authors   string
	Venue     string
	Citations int
	Abstract  string
}

// NoPapersBody returns the review body used when no papers were found.
func NoPapersBody(query string) string {
	return fmt.Sprintf("No academic papers were found for this topic (searched: '%s'). The research will proceed with web sources only.", query)
}

// Review writes a literature review over papers, which must already be
// deduplicated and ranked. The returned Brief carries the summary, its
// references (papers cited in the summary), themes, and gaps. Only a
// cancelled ctx is an error.
func (s *Synthesizer) Review(ctx context.Context, topic, query string, papers []types.SearchRecord) (types.Brief, error) {
	log := s.logger()
	if len(papers) == 0 {
		return types.Brief{
			Body: NoPapersBody(query),
			Gaps: []string{"Unable to identify gaps - no academic papers found"},
		}, nil
	}

	refs := make([]types.Reference, len(papers))
	for i, p := range papers {
		title := p.Title
		if title == "" {
			title = p.URL
		}
		refs[i] = types.Reference{Index: i + 1, URL: p.URL, Title: title}
	}

	resp, err := s.review(ctx, topic, papers)
	if ctx.Err() != nil {
		return types.Brief{}, ctx.Err()
	}
	if err != nil {
		log.Warn("review synthesis failed, listing papers", zap.Error(err))
		brief := papersBrief(papers, refs)
		brief.Warnings = append([]string{fmt.Sprintf("review synthesis failed: %v", err)}, brief.Warnings...)
		return brief, nil
	}

	themes, gaps := clampList(resp.Themes, MaxThemes), clampList(resp.Gaps, MaxGaps)
	var brief types.Brief
	repair := RepairCitations(resp.Summary, refs)
	if repair.Cited() {
		brief = types.Brief{Body: repair.Body, References: repair.References, Warnings: repair.Warnings()}
	} else {
		log.Warn("review summary has no valid citations, listing papers")
		brief = papersBrief(papers, refs)
		if summary := strings.TrimSpace(StripMarkers(resp.Summary)); summary != "" {
			brief.Body = summary + "\n\n" + brief.Body
		}
	}
	brief.Themes = themes
	brief.Gaps = gaps
	if len(themes) < MinThemes {
		brief.Warnings = append(brief.Warnings, fmt.Sprintf("review produced %d themes, expected at least %d", len(themes), MinThemes))
	}
	if len(gaps) < MinGaps {
		brief.Warnings = append(brief.Warnings, fmt.Sprintf("review produced %d research gaps, expected at least %d", len(gaps), MinGaps))
	}

	log.Info("literature review synthesized",
		zap.Int("papers", len(papers)),
		zap.Int("themes", len(themes)),
		zap.Int("gaps", len(gaps)))
	return brief, nil
}

func (s *Synthesizer) review(ctx context.Context, topic string, papers []types.SearchRecord) (reviewResponse, error) {
	pp := make([]promptPaper, len(papers))
	for i, p := range papers {
		cites := p.Citations()
		if cites < 0 {
			cites = 0
		}
		pp[i] = promptPaper{
			Index:     i + 1,
			Title:     p.Title,
			Year:      p.Year(),
			Authors:   formatAuthors(p.Authors),
			Venue:     p.Venue,
			Citations: cites,
			Abstract:  truncateRunes(p.Snippet, maxPromptAbstract, "..."),
		}
	}
	lang := s.Language
	if lang == "" {
		lang = "en"
	}
	prompt, err := s.Prompts.Render(prompts.Review, struct {
		Topic        string
		LanguageName string
		LanguageCode string
		Papers       []promptPaper
	}{topic, LanguageName(lang), lang, pp})
	if err != nil {
		return reviewResponse{}, err
	}
	reply, err := s.Model.Complete(ctx, prompt)
	if err != nil {
		return reviewResponse{}, err
	}
	var resp reviewResponse
	if err := llm.DecodeJSON(reply, &resp); err != nil {
		return reviewResponse{}, err
	}
	if strings.TrimSpace(resp.Summary) == "" {
		return reviewResponse{}, fmt.Errorf("review has no summary: %w", llm.ErrMalformed)
	}
	return resp, nil
}

// papersBrief lists every paper with its marker.
func papersBrief(papers []types.SearchRecord, refs []types.Reference) types.Brief {
	var b strings.Builder
	for i, p := range papers {
		fmt.Fprintf(&b, "- %s", StripMarkers(refs[i].Title))
		if y := p.Year(); y > 0 {
			fmt.Fprintf(&b, " (%d)", y)
		}
		fmt.Fprintf(&b, " [%d]\n", i+1)
	}
	return types.Brief{
		Body:       strings.TrimSpace(b.String()),
		References: refs,
		Warnings:   []string{"no verified citations in review summary; papers listed instead"},
	}
}

// clampList trims entries, drops blanks, and keeps at most max.
func clampList(items []string, max int) []string {
	var out []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		out = append(out, it)
		if len(out) == max {
			break
		}
	}
	return out
}
