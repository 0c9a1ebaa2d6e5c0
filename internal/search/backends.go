// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/research-brief/internal/retry"
	"github.com/pdiddy/research-brief/pkg/types"
)

// openAlexRPS is OpenAlex's documented per-second limit.
const openAlexRPS = 10

// NewAggregator wires the configured backends. Tavily is added only when
// an API key is set. OpenAlex is always queried before Semantic Scholar.
func NewAggregator(cfg types.SearchConfig, client *http.Client, concurrency int, log *zap.Logger) *Aggregator {
	if client == nil {
		client = &http.Client{}
	}
	a := &Aggregator{Config: cfg, Concurrency: concurrency, Logger: log}

	if cfg.TavilyAPIKey != "" {
		a.Web = append(a.Web, &TavilyBackend{
			Client:    client,
			APIKey:    cfg.TavilyAPIKey,
			Depth:     cfg.TavilyDepth,
			UserAgent: cfg.UserAgent,
			Policy:    retry.Standard(),
			Timeout:   cfg.Timeout,
		})
	}
	if cfg.EnableOpenAlex {
		a.Academic = append(a.Academic, &OpenAlexBackend{
			Client:    client,
			Email:     cfg.OpenAlexEmail,
			UserAgent: cfg.UserAgent,
			Policy:    retry.Standard(),
			Limiter:   rate.NewLimiter(openAlexRPS, openAlexRPS),
			Timeout:   cfg.Timeout,
		})
	}
	if cfg.EnableSemanticScholar {
		rps := cfg.SemanticScholarRPS
		if cfg.SemanticScholarAPIKey != "" && rps < 1 {
			rps = 1
		}
		var lim *rate.Limiter
		if rps > 0 {
			lim = rate.NewLimiter(rate.Limit(rps), 1)
		}
		a.Academic = append(a.Academic, &SemanticScholarBackend{
			Client:    client,
			APIKey:    cfg.SemanticScholarAPIKey,
			UserAgent: cfg.UserAgent,
			Policy:    retry.Strict(),
			Limiter:   lim,
			Timeout:   cfg.Timeout,
		})
	}
	return a
}
