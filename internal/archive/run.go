// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"github.com/pdiddy/research-brief/internal/pipeline"
	"github.com/pdiddy/research-brief/pkg/types"
)

// FromResearch converts a research result into an archive run keyed by
// the pipeline's run ID.
func FromResearch(res pipeline.ResearchResult) Run {
	return Run{
		ID:     res.RunID,
		Kind:   KindResearch,
		Topic:  res.Topic,
		Brief:  res.Brief,
		Notes:  res.Notes,
		Budget: res.Budget,
	}
}

// FromReview converts a literature review into an archive run. Each
// paper's abstract is kept as a note so it is searchable.
func FromReview(topic types.Topic, review types.LiteratureReview) Run {
	run := Run{Kind: KindReview, Topic: topic, Brief: review.Brief}
	for i, p := range review.Papers {
		if p.Snippet == "" {
			continue
		}
		run.Notes = append(run.Notes, types.Note{
			Text:        p.Snippet,
			Kind:        types.NoteClaim,
			SourceURL:   p.URL,
			SourceTitle: p.Title,
			Sequence:    i + 1,
		})
	}
	return run
}
