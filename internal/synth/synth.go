// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synth writes the final cited brief from extracted notes, and the
// literature review from a ranked paper list. Citation markers in model
// output are repaired so every marker resolves to exactly one reference
// and every reference is cited.
package synth

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-brief/internal/llm"
	"github.com/pdiddy/research-brief/internal/prompts"
	"github.com/pdiddy/research-brief/pkg/types"
)

// NoSourcesBody is the brief body used when a run produced nothing to cite.
const NoSourcesBody = "No sources were found for this topic. Try a broader or differently worded topic."

const noCitationsHeader = "_The synthesized brief contained no verified citations. The extracted notes are listed instead._"

// Synthesizer turns notes into a Brief.
type Synthesizer struct {
	Model   llm.Model
	Prompts *prompts.Set

	// Language is the output language tag (e.g. "en", "mn").
	Language string

	Logger *zap.Logger
}

// BuildReferences numbers the distinct source URLs of notes in order of
// first appearance.
func BuildReferences(notes []types.Note) []types.Reference {
	var refs []types.Reference
	seen := make(map[string]bool)
	for _, n := range notes {
		if n.SourceURL == "" || seen[n.SourceURL] {
			continue
		}
		seen[n.SourceURL] = true
		title := n.SourceTitle
		if title == "" {
			title = n.SourceURL
		}
		refs = append(refs, types.Reference{Index: len(refs) + 1, URL: n.SourceURL, Title: title})
	}
	return refs
}

// Brief synthesizes a cited brief about topic from notes. With no notes it
// returns the no-sources brief. A failed or uncited synthesis falls back to
// a body built from the notes themselves. Only a cancelled ctx is an error.
func (s *Synthesizer) Brief(ctx context.Context, topic string, notes []types.Note) (types.Brief, error) {
	log := s.logger()
	if len(notes) == 0 {
		return types.Brief{Body: NoSourcesBody}, nil
	}

	refs := BuildReferences(notes)
	body, err := s.synthesize(ctx, topic, notes, refs)
	if ctx.Err() != nil {
		return types.Brief{}, ctx.Err()
	}
	if err != nil {
		log.Warn("synthesis failed, falling back to notes", zap.Error(err))
		brief := notesBrief(notes, refs)
		brief.Warnings = append([]string{fmt.Sprintf("synthesis failed: %v", err)}, brief.Warnings...)
		return brief, nil
	}

	repair := RepairCitations(body, refs)
	if !repair.Cited() {
		log.Warn("synthesized brief has no valid citations, falling back to notes",
			zap.Int("dropped_markers", repair.Dropped))
		return notesBrief(notes, refs), nil
	}
	if w := repair.Warnings(); len(w) > 0 {
		log.Warn("repaired citations",
			zap.Int("dropped_markers", repair.Dropped),
			zap.Int("uncited_references", repair.Uncited))
	}
	log.Info("brief synthesized",
		zap.Int("notes", len(notes)),
		zap.Int("references", len(repair.References)))
	return types.Brief{
		Body:       repair.Body,
		References: repair.References,
		Warnings:   repair.Warnings(),
	}, nil
}

type promptRef struct {
	Index      int
	Title, URL string
}

type promptNote struct {
	Ref        int
	Kind, Text string
}

func (s *Synthesizer) synthesize(ctx context.Context, topic string, notes []types.Note, refs []types.Reference) (string, error) {
	index := make(map[string]int, len(refs))
	pr := make([]promptRef, len(refs))
	for i, r := range refs {
		index[r.URL] = r.Index
		pr[i] = promptRef{Index: r.Index, Title: r.Title, URL: r.URL}
	}
	pn := make([]promptNote, len(notes))
	for i, n := range notes {
		pn[i] = promptNote{Ref: index[n.SourceURL], Kind: string(n.Kind), Text: n.Text}
	}

	prompt, err := s.Prompts.Render(prompts.Synthesize, struct {
		Topic, Language string
		References      []promptRef
		Notes           []promptNote
	}{topic, LanguageName(s.Language), pr, pn})
	if err != nil {
		return "", err
	}
	reply, err := s.Model.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("empty brief: %w", llm.ErrMalformed)
	}
	return reply, nil
}

// notesBrief lists every note with its reference marker. Every reference
// comes from some note, so every reference is cited.
func notesBrief(notes []types.Note, refs []types.Reference) types.Brief {
	index := make(map[string]int, len(refs))
	for _, r := range refs {
		index[r.URL] = r.Index
	}
	var b strings.Builder
	b.WriteString(noCitationsHeader)
	b.WriteString("\n\n")
	for _, n := range notes {
		text := StripMarkers(n.Text)
		if text == "" {
			text = "(empty note)"
		}
		fmt.Fprintf(&b, "- %s [%d]\n", text, index[n.SourceURL])
	}
	return types.Brief{
		Body:       strings.TrimSpace(b.String()),
		References: refs,
		Warnings:   []string{"no verified citations in synthesis; brief built from notes"},
	}
}

// WriteMarkdown writes the brief body followed by its reference list.
func WriteMarkdown(w io.Writer, b types.Brief) error {
	if _, err := fmt.Fprintln(w, b.Body); err != nil {
		return err
	}
	if len(b.References) == 0 {
		return nil
	}
	if _, err := fmt.Fprint(w, "\n## References\n\n"); err != nil {
		return err
	}
	for _, r := range b.References {
		if _, err := fmt.Fprintf(w, "[%d] %s. %s\n", r.Index, r.Title, r.URL); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synthesizer) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
