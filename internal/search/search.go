// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search fans planner queries out to the web and academic
// backends and returns their results as normalized SearchRecords.
// Backend-specific JSON never leaves the backend's own file.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-brief/pkg/types"
)

// Backend searches a single service. Each backend (Tavily, OpenAlex,
// Semantic Scholar) implements this interface.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]types.SearchRecord, error)
}

// Output holds the merged records and the backends that failed.
type Output struct {
	// Records are ordered by query index, then backend order, then rank.
	Records []types.SearchRecord

	// BackendErrors has one "backend: error" line per failed call.
	BackendErrors []string

	// Degraded is set when at least one backend call failed.
	Degraded bool

	// Unreachable is set when every backend call failed.
	Unreachable bool
}

// Aggregator routes web queries to the web backends and academic queries
// to the academic backends, concurrently and with bounded parallelism.
type Aggregator struct {
	// Web backends receive queries with SourceKind web.
	Web []Backend

	// Academic backends receive queries with SourceKind academic. Order
	// matters: earlier backends win ties during deduplication.
	Academic []Backend

	Config types.SearchConfig

	// Concurrency bounds simultaneous backend calls (default 4).
	Concurrency int

	Logger *zap.Logger
}

type call struct {
	queryIndex int
	backend    Backend
	limit      int
	query      string
	records    []types.SearchRecord
	err        error
}

// Search runs every query against its backends. Backend failures are
// collected in Output, never returned; the error is non-nil only when
// ctx is cancelled.
func (a *Aggregator) Search(ctx context.Context, queries []types.Query) (Output, error) {
	log := a.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var calls []*call
	var out Output
	for qi, q := range queries {
		backends, limit := a.Web, a.Config.WebResultsPerQuery
		if q.SourceKind == types.SourceAcademic {
			backends, limit = a.Academic, a.Config.PapersPerBackend
		}
		if limit <= 0 {
			limit = 5
		}
		if len(backends) == 0 {
			msg := fmt.Sprintf("no %s backend configured for query %q", q.SourceKind, q.Text)
			out.BackendErrors = append(out.BackendErrors, msg)
			out.Degraded = true
			log.Warn("skipping query", zap.String("query", q.Text), zap.String("kind", string(q.SourceKind)))
			continue
		}
		for _, b := range backends {
			calls = append(calls, &call{queryIndex: qi, backend: b, limit: limit, query: q.Text})
		}
	}

	limit := a.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, c := range calls {
		g.Go(func() error {
			c.records, c.err = c.backend.Search(gctx, c.query, c.limit)
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	failed := 0
	for _, c := range calls {
		if c.err != nil {
			failed++
			out.BackendErrors = append(out.BackendErrors, fmt.Sprintf("%s: %v", c.backend.Name(), c.err))
			log.Warn("backend failed",
				zap.String("backend", c.backend.Name()),
				zap.String("query", c.query),
				zap.Error(c.err))
			continue
		}
		for i := range c.records {
			c.records[i].QueryIndex = c.queryIndex
		}
		out.Records = append(out.Records, c.records...)
		log.Debug("backend results",
			zap.String("backend", c.backend.Name()),
			zap.String("query", c.query),
			zap.Int("records", len(c.records)))
	}
	if failed > 0 {
		out.Degraded = true
	}
	if len(calls) > 0 && failed == len(calls) {
		out.Unreachable = true
	}
	return out, nil
}

// positionScore maps a zero-based rank in a list of total results onto
// 1.0 (first) down to 0.1 (last).
func positionScore(rank, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(rank)/float64(total-1)*0.9
}

// FormatTable writes records as a human-readable table to w.
func FormatTable(out Output, w io.Writer) {
	if len(out.Records) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %-6s  %s\n",
		"Rank", "Title", "Authors", "Year", "Score", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, r := range out.Records {
		year := ""
		if r.PublishedYear != nil {
			year = fmt.Sprintf("%d", *r.PublishedYear)
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %-6.2f  %s\n",
			i+1, truncate(r.Title, 60), formatAuthors(r.Authors), year, r.Score, r.Backend)
	}

	fmt.Fprintf(w, "\n%d results", len(out.Records))
	if len(out.BackendErrors) > 0 {
		fmt.Fprintf(w, " (%d backend errors)", len(out.BackendErrors))
	}
	fmt.Fprintln(w)
	for _, e := range out.BackendErrors {
		fmt.Fprintf(w, "warning: %s\n", e)
	}
}

// FormatJSON writes records as indented JSON to w.
func FormatJSON(out Output, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out.Records)
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 14) + " et al."
	}
}

// truncate shortens s to max runes, ending in "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
