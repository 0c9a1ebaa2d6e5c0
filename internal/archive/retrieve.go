// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/research-brief/pkg/types"
)

// RunSummary is one row of List output.
type RunSummary struct {
	ID         string      `json:"id" yaml:"id"`
	Kind       Kind        `json:"kind" yaml:"kind"`
	Topic      types.Topic `json:"topic" yaml:"topic"`
	CreatedAt  time.Time   `json:"created_at" yaml:"created_at"`
	References int         `json:"references" yaml:"references"`
	Notes      int         `json:"notes" yaml:"notes"`
}

// NoteHit is a note matched by Search, with the run it belongs to.
type NoteHit struct {
	RunID string     `json:"run_id" yaml:"run_id"`
	Topic string     `json:"topic" yaml:"topic"`
	Note  types.Note `json:"note" yaml:"note"`
}

// List returns the most recent runs first.
func (s *Store) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = s.maxResults
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.kind, r.topic, r.language, r.created_at,
			(SELECT count(*) FROM references_ f WHERE f.run_id = r.id),
			(SELECT count(*) FROM notes n WHERE n.run_id = r.id)
		FROM runs r
		ORDER BY r.created_at DESC, r.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			rs        RunSummary
			kind      string
			lang      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&rs.ID, &kind, &rs.Topic.Text, &lang, &createdAt, &rs.References, &rs.Notes); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rs.Kind = Kind(kind)
		rs.Topic.Language = lang.String
		rs.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, rs)
	}
	return out, rows.Err()
}

// Search finds notes whose text matches query across all runs. With FTS5
// available, query uses FTS5 syntax and results are ranked by relevance;
// otherwise it is a case-insensitive substring match in run order.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]NoteHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty search query")
	}
	if limit <= 0 {
		limit = s.maxResults
	}

	var (
		rows *sql.Rows
		err  error
	)
	if s.fts {
		rows, err = s.db.QueryContext(ctx,
			`SELECT n.run_id, r.topic, n.seq, n.kind, n.text, n.source_url, n.source_title, n.tokens
			FROM notes_fts
			JOIN notes n ON n.rowid = notes_fts.rowid
			JOIN runs r ON r.id = n.run_id
			WHERE notes_fts MATCH ?
			ORDER BY notes_fts.rank
			LIMIT ?`, query, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT n.run_id, r.topic, n.seq, n.kind, n.text, n.source_url, n.source_title, n.tokens
			FROM notes n
			JOIN runs r ON r.id = n.run_id
			WHERE lower(n.text) LIKE '%' || lower(?) || '%'
			ORDER BY r.created_at DESC, n.seq
			LIMIT ?`, query, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("searching notes: %w", err)
	}
	defer rows.Close()

	var out []NoteHit
	for rows.Next() {
		var (
			h     NoteHit
			kind  string
			title sql.NullString
		)
		if err := rows.Scan(&h.RunID, &h.Topic, &h.Note.Sequence, &kind, &h.Note.Text,
			&h.Note.SourceURL, &title, &h.Note.EstimatedTokens); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		h.Note.Kind = types.NoteKind(kind)
		h.Note.SourceTitle = title.String
		out = append(out, h)
	}
	return out, rows.Err()
}

// Get loads a full run.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	var (
		run                               Run
		kind, createdAt                   string
		lang, themes, gaps, warns, budget sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, topic, language, created_at, body, themes, gaps, warnings, budget
		FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &kind, &run.Topic.Text, &lang, &createdAt, &run.Brief.Body, &themes, &gaps, &warns, &budget)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("looking up run: %w", err)
	}
	run.Kind = Kind(kind)
	run.Topic.Language = lang.String
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	unmarshalNull(themes, &run.Brief.Themes)
	unmarshalNull(gaps, &run.Brief.Gaps)
	unmarshalNull(warns, &run.Brief.Warnings)
	unmarshalNull(budget, &run.Budget)

	refRows, err := s.db.QueryContext(ctx,
		`SELECT idx, url, title FROM references_ WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return Run{}, fmt.Errorf("loading references: %w", err)
	}
	defer refRows.Close()
	for refRows.Next() {
		var (
			r     types.Reference
			title sql.NullString
		)
		if err := refRows.Scan(&r.Index, &r.URL, &title); err != nil {
			return Run{}, fmt.Errorf("scanning reference: %w", err)
		}
		r.Title = title.String
		run.Brief.References = append(run.Brief.References, r)
	}
	if err := refRows.Err(); err != nil {
		return Run{}, err
	}

	noteRows, err := s.db.QueryContext(ctx,
		`SELECT seq, kind, text, source_url, source_title, tokens FROM notes WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return Run{}, fmt.Errorf("loading notes: %w", err)
	}
	defer noteRows.Close()
	for noteRows.Next() {
		var (
			n     types.Note
			kind  string
			title sql.NullString
		)
		if err := noteRows.Scan(&n.Sequence, &kind, &n.Text, &n.SourceURL, &title, &n.EstimatedTokens); err != nil {
			return Run{}, fmt.Errorf("scanning note: %w", err)
		}
		n.Kind = types.NoteKind(kind)
		n.SourceTitle = title.String
		run.Notes = append(run.Notes, n)
	}
	return run, noteRows.Err()
}

func unmarshalNull(v sql.NullString, dst any) {
	if v.Valid && v.String != "" && v.String != "null" {
		json.Unmarshal([]byte(v.String), dst)
	}
}
