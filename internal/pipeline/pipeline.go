// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the research stages end to end: plan, search,
// fetch, deduplicate, extract, and synthesize. It is the only package the
// outer layers (CLI, API) call.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-brief/internal/dedup"
	"github.com/pdiddy/research-brief/internal/extract"
	"github.com/pdiddy/research-brief/internal/fetch"
	"github.com/pdiddy/research-brief/internal/llm"
	"github.com/pdiddy/research-brief/internal/plan"
	"github.com/pdiddy/research-brief/internal/prompts"
	"github.com/pdiddy/research-brief/internal/search"
	"github.com/pdiddy/research-brief/internal/synth"
	"github.com/pdiddy/research-brief/pkg/types"
)

// ContextSourceURL is the provenance of notes taken from uploaded text.
const ContextSourceURL = "upload://context"

// ContextSourceTitle labels uploaded text in the reference list.
const ContextSourceTitle = "Uploaded reference materials"

// Options carries the collaborators a Pipeline needs besides its config.
type Options struct {
	// Model answers planning and synthesis prompts.
	Model llm.Model

	// ExtractionModel answers extraction and translation prompts. Nil means Model.
	ExtractionModel llm.Model

	// Prompts defaults to the embedded set.
	Prompts *prompts.Set

	// Client is shared by search and fetch. Nil means a default client.
	Client *http.Client

	Logger *zap.Logger
}

// Pipeline holds the configured stages. It is safe for concurrent runs;
// every run gets its own token budget.
type Pipeline struct {
	Config    types.PipelineConfig
	Planner   *plan.Planner
	Search    *search.Aggregator
	Fetcher   *fetch.Fetcher
	Extractor *extract.Extractor
	Synth     *synth.Synthesizer
	Logger    *zap.Logger
}

// New validates cfg and wires the stages.
func New(cfg types.PipelineConfig, opts Options) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if opts.Model == nil {
		return nil, errors.New("pipeline needs a model")
	}
	extractModel := opts.ExtractionModel
	if extractModel == nil {
		extractModel = opts.Model
	}
	ps := opts.Prompts
	if ps == nil {
		ps = prompts.Default()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	return &Pipeline{
		Config: cfg,
		Planner: &plan.Planner{
			Model:      opts.Model,
			Translator: extractModel,
			Prompts:    ps,
			MaxQueries: cfg.Search.MaxQueries,
			Logger:     log.Named("plan"),
		},
		Search:  search.NewAggregator(cfg.Search, client, cfg.Concurrency, log.Named("search")),
		Fetcher: fetch.New(cfg.Fetch, client, cfg.Concurrency, log.Named("fetch")),
		Extractor: &extract.Extractor{
			Model:       extractModel,
			Prompts:     ps,
			Budget:      cfg.Budget,
			Concurrency: cfg.Concurrency,
			Logger:      log.Named("extract"),
		},
		Synth: &synth.Synthesizer{
			Model:    opts.Model,
			Prompts:  ps,
			Language: cfg.Language,
			Logger:   log.Named("synth"),
		},
		Logger: log,
	}, nil
}

// PlanAndSearchResult is the output of PlanAndSearch.
type PlanAndSearchResult struct {
	Plan          types.Plan           `json:"plan" yaml:"plan"`
	Queries       []types.Query        `json:"queries" yaml:"queries"`
	Records       []types.SearchRecord `json:"records" yaml:"records"`
	BackendErrors []string             `json:"backend_errors,omitempty" yaml:"backend_errors,omitempty"`
	Degraded      bool                 `json:"degraded,omitempty" yaml:"degraded,omitempty"`
	Unreachable   bool                 `json:"unreachable,omitempty" yaml:"unreachable,omitempty"`
}

// ResearchResult is the output of RunResearch.
type ResearchResult struct {
	RunID      string            `json:"run_id" yaml:"run_id"`
	Topic      types.Topic       `json:"topic" yaml:"topic"`
	Brief      types.Brief       `json:"brief" yaml:"brief"`
	References []types.Reference `json:"references" yaml:"references"`
	Notes      []types.Note      `json:"notes" yaml:"notes"`
	Plan       types.Plan        `json:"plan" yaml:"plan"`
	Budget     types.TokenBudget `json:"budget" yaml:"budget"`
	Documents  []types.Document  `json:"documents,omitempty" yaml:"documents,omitempty"`
	Warnings   []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// PlanAndSearch plans queries for topic and runs them. Backend failures
// are reported in the result, not as an error.
func (p *Pipeline) PlanAndSearch(ctx context.Context, topic types.Topic) (PlanAndSearchResult, error) {
	log := p.Logger.With(zap.String("run_id", uuid.NewString()))
	return p.planAndSearch(ctx, log, topic)
}

func (p *Pipeline) planAndSearch(ctx context.Context, log *zap.Logger, topic types.Topic) (PlanAndSearchResult, error) {
	pl, err := p.Planner.Plan(ctx, topic)
	if err != nil {
		return PlanAndSearchResult{}, fmt.Errorf("planning: %w", err)
	}
	log.Info("plan ready", zap.Int("queries", len(pl.Queries)), zap.Bool("degraded", pl.Degraded))

	out, err := p.Search.Search(ctx, pl.Queries)
	if err != nil {
		return PlanAndSearchResult{}, fmt.Errorf("searching: %w", err)
	}
	if out.Degraded {
		log.Warn("search coverage degraded", zap.Strings("backend_errors", out.BackendErrors))
	}
	log.Info("search complete", zap.Int("records", len(out.Records)))

	return PlanAndSearchResult{
		Plan:          pl,
		Queries:       pl.Queries,
		Records:       out.Records,
		BackendErrors: out.BackendErrors,
		Degraded:      out.Degraded,
		Unreachable:   out.Unreachable,
	}, nil
}

// RunResearch produces a cited brief for topic. Non-empty contextText is
// used as a source ahead of the fetched documents. When nothing usable is
// found the brief says so and has no references; when every backend was
// unreachable and there is no context, a *NoSourcesError is returned.
func (p *Pipeline) RunResearch(ctx context.Context, topic types.Topic, contextText string) (ResearchResult, error) {
	runID := uuid.NewString()
	log := p.Logger.With(zap.String("run_id", runID))
	log.Info("research started", zap.String("topic", topic.Text))

	ps, err := p.planAndSearch(ctx, log, topic)
	if err != nil {
		return ResearchResult{}, err
	}
	res := ResearchResult{RunID: runID, Topic: topic, Plan: ps.Plan}
	res.Warnings = append(res.Warnings, ps.Plan.Warnings...)
	res.Warnings = append(res.Warnings, ps.BackendErrors...)

	sources, docs, err := p.gatherSources(ctx, log, ps, contextText)
	res.Documents = docs
	if err != nil {
		var nse *NoSourcesError
		if errors.As(err, &nse) && nse.Reason == ReasonNoResults {
			log.Warn("no sources found")
			res.Brief = types.Brief{Body: synth.NoSourcesBody}
			res.Budget = extract.NewBudget(p.Config.Budget.SoftCap, p.Config.Budget.HardCap).Snapshot()
			return res, nil
		}
		return ResearchResult{}, err
	}

	ext, err := p.Extractor.Extract(ctx, sources)
	if err != nil {
		return ResearchResult{}, fmt.Errorf("extracting notes: %w", err)
	}
	res.Notes = ext.Notes
	res.Budget = ext.Budget
	res.Warnings = append(res.Warnings, ext.Warnings...)

	brief, err := p.synthesizer(topic).Brief(ctx, topic.Text, ext.Notes)
	if err != nil {
		return ResearchResult{}, fmt.Errorf("synthesizing brief: %w", err)
	}
	res.Brief = brief
	res.References = brief.References
	res.Warnings = append(res.Warnings, brief.Warnings...)

	log.Info("research complete",
		zap.Int("sources", len(sources)),
		zap.Int("notes", len(res.Notes)),
		zap.Int("references", len(res.References)),
		zap.Int("tokens", res.Budget.Consumed))
	return res, nil
}

// gatherSources fetches the web records and assembles extraction sources:
// context text first, then readable documents in search order, then
// academic abstracts in citation order.
func (p *Pipeline) gatherSources(ctx context.Context, log *zap.Logger, ps PlanAndSearchResult, contextText string) ([]types.Source, []types.Document, error) {
	var sources []types.Source
	if text := strings.TrimSpace(contextText); text != "" {
		sources = append(sources, types.Source{URL: ContextSourceURL, Title: ContextSourceTitle, Text: text})
	}

	var web, academic []types.SearchRecord
	for _, r := range ps.Records {
		if r.SourceKind == types.SourceAcademic {
			academic = append(academic, r)
		} else {
			web = append(web, r)
		}
	}
	web = dedup.URLs(web)

	docs := p.Fetcher.FetchAll(ctx, web)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	for _, d := range docs {
		if d.Usable() {
			sources = append(sources, types.Source{URL: d.URL, Title: d.Title, Text: d.CleanedText})
		}
	}

	papers, removed := dedup.Papers(academic, p.Config.MaxPapers)
	for _, r := range papers {
		if strings.TrimSpace(r.Snippet) != "" && r.URL != "" {
			sources = append(sources, types.Source{URL: r.URL, Title: r.Title, Text: r.Snippet})
		}
	}
	log.Debug("sources assembled",
		zap.Int("documents", len(docs)),
		zap.Int("papers", len(papers)),
		zap.Int("duplicates_removed", removed),
		zap.Int("sources", len(sources)))

	if len(sources) == 0 {
		reason := ReasonNoResults
		if ps.Unreachable {
			reason = ReasonAllUnreachable
		}
		return nil, docs, &NoSourcesError{Reason: reason, BackendErrors: ps.BackendErrors}
	}
	return sources, docs, nil
}

// RunAcademicReview searches the academic backends for topic (translated
// to English when needed), merges duplicate papers, and writes a
// literature review. Finding no papers is not an error.
func (p *Pipeline) RunAcademicReview(ctx context.Context, topic types.Topic) (types.LiteratureReview, error) {
	log := p.Logger.With(zap.String("run_id", uuid.NewString()))
	log.Info("academic review started", zap.String("topic", topic.Text))

	pl, err := p.Planner.AcademicPlan(ctx, topic)
	if err != nil {
		return types.LiteratureReview{}, fmt.Errorf("planning: %w", err)
	}
	out, err := p.Search.Search(ctx, pl.Queries)
	if err != nil {
		return types.LiteratureReview{}, fmt.Errorf("searching: %w", err)
	}
	if out.Degraded {
		log.Warn("academic coverage degraded", zap.Strings("backend_errors", out.BackendErrors))
	}

	papers, removed := dedup.Papers(out.Records, p.Config.MaxPapers)
	log.Info("papers ranked", zap.Int("records", len(out.Records)), zap.Int("papers", len(papers)), zap.Int("duplicates_removed", removed))

	brief, err := p.synthesizer(topic).Review(ctx, topic.Text, pl.AcademicQuery(), papers)
	if err != nil {
		return types.LiteratureReview{}, fmt.Errorf("synthesizing review: %w", err)
	}
	brief.Warnings = append(append([]string{}, pl.Warnings...), brief.Warnings...)

	return types.LiteratureReview{
		Papers:            papers,
		Brief:             brief,
		SearchQuery:       pl.AcademicQuery(),
		DuplicatesRemoved: removed,
		BackendErrors:     out.BackendErrors,
	}, nil
}

// synthesizer returns the synthesizer for topic's output language.
func (p *Pipeline) synthesizer(topic types.Topic) *synth.Synthesizer {
	lang := strings.TrimSpace(topic.Language)
	if lang == "" || lang == p.Synth.Language {
		return p.Synth
	}
	s := *p.Synth
	s.Language = lang
	return &s
}
