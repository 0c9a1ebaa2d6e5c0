// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package plan turns a research topic into sub-questions and search
// queries with one model call, translating non-English topics for the
// academic backends.
package plan

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/pdiddy/research-brief/internal/llm"
	"github.com/pdiddy/research-brief/internal/prompts"
	"github.com/pdiddy/research-brief/pkg/types"
)

// MaxQueries is the upper bound on queries per plan, academic query included.
const MaxQueries = 6

// Planner produces a Plan for a topic.
type Planner struct {
	// Model answers the planning prompt.
	Model llm.Model

	// Translator answers the translation prompt. Nil means Model.
	Translator llm.Model

	Prompts *prompts.Set

	// MaxQueries caps the whole query list; it is clamped to 1..6 (default 6).
	// One slot goes to the academic query when there are at least two.
	MaxQueries int

	Logger *zap.Logger
}

// planResponse is the JSON the planning prompt asks for.
type planResponse struct {
	SubQuestions []string `json:"sub_questions"`
	Queries      []string `json:"queries"`
}

// Plan returns the web queries for topic followed by one academic query,
// at most MaxQueries in total. With MaxQueries 1 the plan is web only.
// Planning failures degrade to a single web query equal to the raw topic;
// translation failures fall back to the raw topic for academic search.
// Both are recorded in Plan.Warnings. Only a cancelled ctx is an error.
func (p *Planner) Plan(ctx context.Context, topic types.Topic) (types.Plan, error) {
	log := p.logger()
	out, err := p.start(ctx, topic)
	if err != nil {
		return types.Plan{}, err
	}

	resp, err := p.plan(ctx, out.Original)
	if ctx.Err() != nil {
		return types.Plan{}, ctx.Err()
	}
	if err != nil {
		log.Warn("planning failed, falling back to raw topic", zap.Error(err))
		out.Degraded = true
		out.Warnings = append(out.Warnings, fmt.Sprintf("planning failed: %v", err))
		out.Queries = []types.Query{{Text: out.Original, SourceKind: types.SourceWeb}}
	} else {
		out.SubQuestions = resp.SubQuestions
		out.Queries = webQueries(resp, p.webLimit())
	}
	if p.maxQueries() > 1 {
		out.Queries = append(out.Queries, academicQuery(out))
	}

	log.Debug("plan ready",
		zap.Int("sub_questions", len(out.SubQuestions)),
		zap.Int("queries", len(out.Queries)),
		zap.Bool("degraded", out.Degraded))
	return out, nil
}

// AcademicPlan returns a plan holding only the academic query for topic,
// translated when needed. No planning call is made.
func (p *Planner) AcademicPlan(ctx context.Context, topic types.Topic) (types.Plan, error) {
	out, err := p.start(ctx, topic)
	if err != nil {
		return types.Plan{}, err
	}
	out.Queries = []types.Query{academicQuery(out)}
	return out, nil
}

// start validates topic and translates it when needed.
func (p *Planner) start(ctx context.Context, topic types.Topic) (types.Plan, error) {
	text := strings.TrimSpace(topic.Text)
	if text == "" {
		return types.Plan{}, fmt.Errorf("topic is empty")
	}
	out := types.Plan{Original: text}
	if !NeedsTranslation(topic) {
		return out, nil
	}

	log := p.logger()
	translated, err := p.translate(ctx, text)
	if ctx.Err() != nil {
		return types.Plan{}, ctx.Err()
	}
	if err != nil {
		log.Warn("topic translation failed, using raw topic for academic search", zap.Error(err))
		out.Warnings = append(out.Warnings, fmt.Sprintf("translation failed: %v", err))
	} else {
		out.Translated = translated
		log.Info("translated topic", zap.String("original", text), zap.String("translated", translated))
	}
	return out, nil
}

func academicQuery(pl types.Plan) types.Query {
	q := types.Query{Text: pl.AcademicQuery(), SourceKind: types.SourceAcademic}
	if pl.Translated != "" {
		q.Original = pl.Original
	}
	return q
}

func (p *Planner) plan(ctx context.Context, topic string) (planResponse, error) {
	prompt, err := p.Prompts.Render(prompts.Plan, struct {
		Topic      string
		MaxQueries int
	}{topic, p.webLimit()})
	if err != nil {
		return planResponse{}, err
	}
	reply, err := p.Model.Complete(ctx, prompt)
	if err != nil {
		return planResponse{}, err
	}
	var resp planResponse
	if err := llm.DecodeJSON(reply, &resp); err != nil {
		return planResponse{}, err
	}
	if len(webQueries(resp, p.webLimit())) == 0 {
		return planResponse{}, fmt.Errorf("plan has no queries: %w", llm.ErrMalformed)
	}
	return resp, nil
}

func (p *Planner) translate(ctx context.Context, topic string) (string, error) {
	prompt, err := p.Prompts.Render(prompts.Translate, struct{ Topic string }{topic})
	if err != nil {
		return "", err
	}
	m := p.Translator
	if m == nil {
		m = p.Model
	}
	reply, err := m.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	out := cleanTranslation(reply)
	if out == "" {
		return "", fmt.Errorf("empty translation: %w", llm.ErrMalformed)
	}
	return out, nil
}

func (p *Planner) maxQueries() int {
	n := p.MaxQueries
	if n <= 0 || n > MaxQueries {
		return MaxQueries
	}
	return n
}

// webLimit is the number of web queries left after the academic slot.
func (p *Planner) webLimit() int {
	if n := p.maxQueries(); n > 1 {
		return n - 1
	}
	return 1
}

func (p *Planner) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// webQueries drops blank and repeated queries and keeps the first max.
// Query i is paired with sub-question i when there is one.
func webQueries(resp planResponse, max int) []types.Query {
	seen := make(map[string]bool)
	var out []types.Query
	for i, q := range resp.Queries {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		query := types.Query{Text: q, SourceKind: types.SourceWeb}
		if i < len(resp.SubQuestions) {
			query.Intent = strings.TrimSpace(resp.SubQuestions[i])
		}
		out = append(out, query)
		if len(out) == max {
			break
		}
	}
	return out
}

// cleanTranslation keeps the first non-blank line and strips quotes.
func cleanTranslation(reply string) string {
	for _, line := range strings.Split(reply, "\n") {
		line = strings.Trim(strings.TrimSpace(line), `"'`)
		if line != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

// NeedsTranslation reports whether topic should be translated before
// academic search: its language tag is set and not English, or it
// contains letters outside the Latin script.
func NeedsTranslation(topic types.Topic) bool {
	lang := strings.ToLower(strings.TrimSpace(topic.Language))
	if lang != "" && lang != "en" && !strings.HasPrefix(lang, "en-") {
		return true
	}
	for _, r := range topic.Text {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}
