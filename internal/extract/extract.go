// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns source texts into provenance-tagged notes under a
// per-run token budget. Model calls run concurrently; notes are admitted
// to the budget strictly in source order so the outcome does not depend
// on which call returns first.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-brief/internal/llm"
	"github.com/pdiddy/research-brief/internal/prompts"
	"github.com/pdiddy/research-brief/pkg/types"
)

const defaultConcurrency = 4

// Extractor extracts notes from sources with one model call per source.
type Extractor struct {
	Model   llm.Model
	Prompts *prompts.Set

	// Budget sets the soft and hard caps and the per-source text limit.
	Budget types.BudgetConfig

	// Concurrency bounds in-flight model calls (default 4).
	Concurrency int

	Logger *zap.Logger
}

// Result is the outcome of one extraction pass.
type Result struct {
	// Notes are in admission order; Sequence is strictly increasing.
	Notes []types.Note

	// Budget is the final budget state.
	Budget types.TokenBudget

	// Processed counts sources whose notes were admitted.
	Processed int

	// Warnings describes excluded sources and budget truncation.
	Warnings []string
}

// extractResponse is the JSON the extraction prompt asks for.
type extractResponse struct {
	KeyClaims  noteList `json:"key_claims"`
	DataPoints noteList `json:"data_points"`
	Quotes     noteList `json:"quotes"`
}

// noteList accepts a list of strings or a list of objects carrying the
// note under a "text" (or similar) key. Models mix both.
type noteList []string

func (l *noteList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(noteList, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("note item is neither string nor object")
		}
		for _, key := range []string{"text", "claim", "value", "quote", "data_point"} {
			if v, ok := obj[key].(string); ok {
				out = append(out, v)
				break
			}
		}
	}
	*l = out
	return nil
}

type outcome struct {
	notes []types.Note
	err   error
}

// Extract runs extraction over sources and returns the admitted notes.
// A source whose call fails or whose reply is malformed is excluded with
// a warning. Once the hard cap is reached, in-flight calls are cancelled
// and abandoned without waiting, and the remaining sources are not
// processed. Only a cancelled ctx is
// returned as an error.
func (e *Extractor) Extract(ctx context.Context, sources []types.Source) (Result, error) {
	log := e.logger()
	budget := NewBudget(e.Budget.SoftCap, e.Budget.HardCap)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]chan outcome, len(sources))
	for i := range results {
		results[i] = make(chan outcome, 1)
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency())
	go func() {
		for i, src := range sources {
			g.Go(func() error {
				if runCtx.Err() != nil {
					results[i] <- outcome{err: runCtx.Err()}
					return nil
				}
				notes, err := e.extractOne(runCtx, src)
				results[i] <- outcome{notes: notes, err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()

	var res Result
	seq := 0
	for i, src := range sources {
		o := <-results[i]
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if o.err != nil {
			log.Warn("excluding source", zap.String("url", src.URL), zap.Error(o.err))
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", src.URL, o.err))
			continue
		}

		accepted, stop := budget.Admit(o.notes)
		for _, n := range accepted {
			seq++
			n.Sequence = seq
			res.Notes = append(res.Notes, n)
		}
		res.Processed++

		if stop {
			dropped := len(o.notes) - len(accepted)
			remaining := len(sources) - i - 1
			log.Info("token budget exhausted",
				zap.String("url", src.URL),
				zap.Int("dropped_notes", dropped),
				zap.Int("remaining_sources", remaining))
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"token budget exhausted at %s: dropped %d notes, skipped %d sources", src.URL, dropped, remaining))
			break
		}
	}
	// Calls still in flight are abandoned. Their result channels are
	// buffered, so the workers finish without a reader.
	cancel()

	res.Budget = budget.Snapshot()
	log.Info("extraction complete",
		zap.Int("sources", len(sources)),
		zap.Int("processed", res.Processed),
		zap.Int("notes", len(res.Notes)),
		zap.Int("tokens", res.Budget.Consumed))
	return res, nil
}

// extractOne calls the model for one source. Malformed replies are not
// retried; the model client already retried transport failures.
func (e *Extractor) extractOne(ctx context.Context, src types.Source) ([]types.Note, error) {
	text := truncate(strings.TrimSpace(src.Text), e.Budget.MaxSourceChars)
	if text == "" {
		return nil, errors.New("source has no text")
	}
	prompt, err := e.Prompts.Render(prompts.Extract, struct {
		URL, Title, Text string
	}{src.URL, src.Title, text})
	if err != nil {
		return nil, err
	}
	reply, err := e.Model.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extraction call: %w", err)
	}
	var resp extractResponse
	if err := llm.DecodeJSON(reply, &resp); err != nil {
		return nil, err
	}
	return convertNotes(resp, src), nil
}

// convertNotes builds validated notes in claim, data point, quote order.
// The source URL is forced from the source, never taken from the reply.
func convertNotes(resp extractResponse, src types.Source) []types.Note {
	var notes []types.Note
	add := func(kind types.NoteKind, items noteList) {
		for _, text := range items {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			notes = append(notes, types.Note{
				Text:            text,
				Kind:            kind,
				SourceURL:       src.URL,
				SourceTitle:     src.Title,
				EstimatedTokens: EstimateTokens(text),
			})
		}
	}
	add(types.NoteClaim, resp.KeyClaims)
	add(types.NoteDataPoint, resp.DataPoints)
	add(types.NoteQuote, resp.Quotes)
	return notes
}

// truncate cuts s to at most n runes. n <= 0 means no limit.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func (e *Extractor) concurrency() int {
	if e.Concurrency <= 0 {
		return defaultConcurrency
	}
	return e.Concurrency
}

func (e *Extractor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
