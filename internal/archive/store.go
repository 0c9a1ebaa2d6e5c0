// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive keeps past research runs in a local SQLite database so
// the CLI can list, search, and export them. The pipeline itself owns no
// persisted state; only callers write here.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-brief/pkg/types"
)

const dbFile = "research.db"

// ErrNotFound is returned when a run ID is not in the archive.
var ErrNotFound = errors.New("run not found")

// Kind distinguishes research briefs from literature reviews.
type Kind string

const (
	KindResearch Kind = "research"
	KindReview   Kind = "review"
)

// Run is one archived pipeline run.
type Run struct {
	ID        string            `json:"id" yaml:"id"`
	Kind      Kind              `json:"kind" yaml:"kind"`
	Topic     types.Topic       `json:"topic" yaml:"topic"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	Brief     types.Brief       `json:"brief" yaml:"brief"`
	Notes     []types.Note      `json:"notes,omitempty" yaml:"notes,omitempty"`
	Budget    types.TokenBudget `json:"budget" yaml:"budget"`
}

// Store manages the archive database.
type Store struct {
	db         *sql.DB
	maxResults int
	fts        bool
}

// Open opens or creates dir/research.db and its schema. maxResults caps
// List and Search when they are called with a zero limit (default 20).
func Open(dir string, maxResults int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			topic TEXT NOT NULL,
			language TEXT,
			created_at TEXT NOT NULL,
			body TEXT NOT NULL,
			themes TEXT,
			gaps TEXT,
			warnings TEXT,
			budget TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS references_ (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			url TEXT NOT NULL,
			title TEXT,
			PRIMARY KEY (run_id, idx)
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			text TEXT NOT NULL,
			source_url TEXT NOT NULL,
			source_title TEXT,
			tokens INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_run_id ON notes(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 needs the sqlite_fts5 build tag; without it Search falls back
	// to substring matching.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='notes_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		s.fts = true
		return nil
	}
	if _, err := s.db.Exec(`CREATE VIRTUAL TABLE notes_fts USING fts5(text, content=notes, content_rowid=rowid)`); err != nil {
		return nil
	}
	ftsStatements := []string{
		`CREATE TRIGGER notes_ai AFTER INSERT ON notes BEGIN
			INSERT INTO notes_fts(rowid, text) VALUES (new.rowid, new.text);
		END`,
		`CREATE TRIGGER notes_ad AFTER DELETE ON notes BEGIN
			INSERT INTO notes_fts(notes_fts, rowid, text) VALUES('delete', old.rowid, old.text);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	s.fts = true
	return nil
}

// Save stores run, replacing any earlier run with the same ID, and
// returns its ID. An empty ID gets a new UUID.
func (s *Store) Save(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Kind == "" {
		run.Kind = KindResearch
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Delete first so notes leave the FTS index through the trigger.
	for _, stmt := range []string{
		`DELETE FROM notes WHERE run_id = ?`,
		`DELETE FROM references_ WHERE run_id = ?`,
		`DELETE FROM runs WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, run.ID); err != nil {
			return "", fmt.Errorf("removing old run: %w", err)
		}
	}

	themes, _ := json.Marshal(run.Brief.Themes)
	gaps, _ := json.Marshal(run.Brief.Gaps)
	warnings, _ := json.Marshal(run.Brief.Warnings)
	budget, _ := json.Marshal(run.Budget)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, kind, topic, language, created_at, body, themes, gaps, warnings, budget)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.Topic.Text, run.Topic.Language,
		run.CreatedAt.UTC().Format(time.RFC3339Nano), run.Brief.Body,
		string(themes), string(gaps), string(warnings), string(budget),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for _, r := range run.Brief.References {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO references_ (run_id, idx, url, title) VALUES (?, ?, ?, ?)`,
			run.ID, r.Index, r.URL, r.Title,
		); err != nil {
			return "", fmt.Errorf("inserting reference %d: %w", r.Index, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO notes (run_id, seq, kind, text, source_url, source_title, tokens)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()
	for _, n := range run.Notes {
		if _, err := stmt.ExecContext(ctx,
			run.ID, n.Sequence, string(n.Kind), n.Text, n.SourceURL, n.SourceTitle, n.EstimatedTokens,
		); err != nil {
			return "", fmt.Errorf("inserting note %d: %w", n.Sequence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return run.ID, nil
}
