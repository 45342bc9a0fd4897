// Package index is the vault's capture ledger: one row per captured note
// recording its enrichment and publishing state.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one captured note.
type Entry struct {
	Path         string
	Title        string
	Source       string
	URLs         []string
	CapturedAt   time.Time
	EnrichedAt   time.Time // zero until enrichment finished
	Sections     int
	PublishedURL string
}

// Stats summarizes the ledger.
type Stats struct {
	Notes     int `json:"notes"`
	Pending   int `json:"pending"` // enrichment started but not finished
	Enriched  int `json:"enriched"`
	Published int `json:"published"`
}

// Fixed-width so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	l := &Ledger{db: db, now: time.Now}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return l, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS notes (
			path              TEXT PRIMARY KEY,
			title             TEXT NOT NULL DEFAULT '',
			source            TEXT NOT NULL DEFAULT '',
			urls              TEXT NOT NULL DEFAULT '[]',
			captured_at       TEXT NOT NULL,
			enrich_started_at TEXT,
			enriched_at       TEXT,
			sections          INTEGER NOT NULL DEFAULT 0,
			published_url     TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_notes_captured ON notes(captured_at DESC);
	`)
	return err
}

func (l *Ledger) stamp(t time.Time) string {
	if t.IsZero() {
		t = l.now()
	}
	return t.UTC().Format(timeLayout)
}

// RecordCapture inserts or replaces the row for e.Path. A new capture
// reusing the path of a removed note starts with fresh enrichment state.
func (l *Ledger) RecordCapture(ctx context.Context, e Entry) error {
	urls, err := json.Marshal(append([]string{}, e.URLs...))
	if err != nil {
		return fmt.Errorf("marshal urls: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO notes (path, title, source, urls, captured_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title = excluded.title,
			source = excluded.source,
			urls = excluded.urls,
			captured_at = excluded.captured_at,
			enrich_started_at = NULL,
			enriched_at = NULL,
			sections = 0,
			published_url = ''`,
		e.Path, e.Title, e.Source, string(urls), l.stamp(e.CapturedAt))
	if err != nil {
		return fmt.Errorf("record capture %s: %w", e.Path, err)
	}
	return nil
}

// BeginEnrichment claims path for enrichment. It returns false when the
// note was claimed before, so a redelivered request enriches nothing.
func (l *Ledger) BeginEnrichment(ctx context.Context, path string) (bool, error) {
	now := l.stamp(time.Time{})
	if _, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO notes (path, captured_at) VALUES (?, ?)`, path, now); err != nil {
		return false, fmt.Errorf("claim %s: %w", path, err)
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE notes SET enrich_started_at = ? WHERE path = ? AND enrich_started_at IS NULL`, now, path)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", path, err)
	}
	return n == 1, nil
}

// ReleaseEnrichment drops an unfinished claim on path so it can be
// enriched again.
func (l *Ledger) ReleaseEnrichment(ctx context.Context, path string) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE notes SET enrich_started_at = NULL WHERE path = ? AND enriched_at IS NULL`, path)
	if err != nil {
		return fmt.Errorf("release %s: %w", path, err)
	}
	return nil
}

// Enriched reports whether a pass over path has finished.
func (l *Ledger) Enriched(ctx context.Context, path string) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notes WHERE path = ? AND enriched_at IS NOT NULL`, path).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("enriched %s: %w", path, err)
	}
	return n > 0, nil
}

// FinishEnrichment records how many sections were appended to path.
func (l *Ledger) FinishEnrichment(ctx context.Context, path string, sections int) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE notes SET enriched_at = ?, sections = ? WHERE path = ?`,
		l.stamp(time.Time{}), sections, path)
	if err != nil {
		return fmt.Errorf("finish enrichment %s: %w", path, err)
	}
	return nil
}

// SetPublished records the published summary page of path.
func (l *Ledger) SetPublished(ctx context.Context, path, url string) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE notes SET published_url = ? WHERE path = ?`, url, path)
	if err != nil {
		return fmt.Errorf("set published %s: %w", path, err)
	}
	return nil
}

// Get returns the entry for path.
func (l *Ledger) Get(ctx context.Context, path string) (Entry, bool, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT path, title, source, urls, captured_at, enriched_at, sections, published_url
		FROM notes WHERE path = ?`, path)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get %s: %w", path, err)
	}
	return e, true, nil
}

// Recent returns up to limit entries, newest capture first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT path, title, source, urls, captured_at, enriched_at, sections, published_url
		FROM notes ORDER BY captured_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats counts notes by enrichment state.
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := l.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(enrich_started_at IS NOT NULL AND enriched_at IS NULL), 0),
			COALESCE(SUM(enriched_at IS NOT NULL), 0),
			COALESCE(SUM(published_url != ''), 0)
		FROM notes`).Scan(&s.Notes, &s.Pending, &s.Enriched, &s.Published)
	if err != nil {
		return Stats{}, fmt.Errorf("ledger stats: %w", err)
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e        Entry
		urls     string
		captured string
		enriched sql.NullString
	)
	if err := s.Scan(&e.Path, &e.Title, &e.Source, &urls, &captured, &enriched, &e.Sections, &e.PublishedURL); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(urls), &e.URLs); err != nil {
		return Entry{}, fmt.Errorf("parse urls: %w", err)
	}
	e.CapturedAt, _ = time.Parse(time.RFC3339Nano, captured)
	if enriched.Valid {
		e.EnrichedAt, _ = time.Parse(time.RFC3339Nano, enriched.String)
	}
	return e, nil
}
