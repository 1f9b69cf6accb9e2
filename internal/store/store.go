// Package store keeps local bookkeeping in SQLite: a history of submitted
// document jobs and a memory of text translations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Poll updates and CLI reads share one file; serialise writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL UNIQUE,
		file_name TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		state TEXT NOT NULL,
		remote_status TEXT NOT NULL DEFAULT '',
		download_url TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS translation_memory (
		id TEXT PRIMARY KEY,
		source_text TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		final_text TEXT NOT NULL,
		service_used TEXT NOT NULL,
		usage_count INTEGER DEFAULT 1,
		invalidated BOOLEAN DEFAULT FALSE,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_text, target_lang, service_used)
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON translation_memory(source_text, target_lang, service_used);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// JobRecord is a row from the jobs table.
type JobRecord struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id"`
	FileName     string    `json:"file_name"`
	TargetLang   string    `json:"target_lang"`
	State        string    `json:"state"`
	RemoteStatus string    `json:"remote_status,omitempty"`
	DownloadURL  string    `json:"download_url,omitempty"`
	Attempts     int       `json:"attempts"`
	LastError    string    `json:"last_error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// JobUpdate carries the fields a poll can change.
type JobUpdate struct {
	State        string
	RemoteStatus string
	DownloadURL  string
	Attempts     int
	LastError    string
}

// SaveJob records a newly started job. ID and timestamps are filled in when
// empty.
func (s *Store) SaveJob(ctx context.Context, rec *JobRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, job_id, file_name, target_lang, state, remote_status, download_url, attempts, last_error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.JobID, rec.FileName, rec.TargetLang, rec.State, rec.RemoteStatus, rec.DownloadURL, rec.Attempts, rec.LastError, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", rec.JobID, err)
	}
	return nil
}

// UpdateJob applies a poll result to the job with the given remote id.
func (s *Store) UpdateJob(ctx context.Context, jobID string, u JobUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, remote_status = ?, download_url = ?, attempts = ?, last_error = ?, updated_at = ? WHERE job_id = ?`,
		u.State, u.RemoteStatus, u.DownloadURL, u.Attempts, u.LastError, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	var rec JobRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, file_name, target_lang, state, remote_status, download_url, attempts, last_error, created_at, updated_at
		 FROM jobs WHERE job_id = ?`, jobID).
		Scan(&rec.ID, &rec.JobID, &rec.FileName, &rec.TargetLang, &rec.State, &rec.RemoteStatus, &rec.DownloadURL, &rec.Attempts, &rec.LastError, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListJobs returns the most recent jobs first. limit <= 0 returns all.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]JobRecord, error) {
	query := `SELECT id, job_id, file_name, target_lang, state, remote_status, download_url, attempts, last_error, created_at, updated_at
		FROM jobs ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var rec JobRecord
		if err := rows.Scan(&rec.ID, &rec.JobID, &rec.FileName, &rec.TargetLang, &rec.State, &rec.RemoteStatus, &rec.DownloadURL, &rec.Attempts, &rec.LastError, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, rec)
	}
	return jobs, rows.Err()
}

// GetCachedTranslation returns a remembered translation of sourceText into
// targetLang produced by service, and bumps its usage counter.
func (s *Store) GetCachedTranslation(ctx context.Context, sourceText, targetLang, service string) (string, bool, error) {
	key := normalizeText(sourceText)

	var finalText string
	var invalidated bool
	err := s.db.QueryRowContext(ctx,
		`SELECT final_text, invalidated FROM translation_memory WHERE source_text = ? AND target_lang = ? AND service_used = ?`,
		key, targetLang, service).Scan(&finalText, &invalidated)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if invalidated {
		return "", false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE translation_memory SET usage_count = usage_count + 1, last_used = ? WHERE source_text = ? AND target_lang = ? AND service_used = ?`,
		time.Now().UTC(), key, targetLang, service)

	return finalText, true, err
}

// SaveToMemory remembers a translation. sourceLang is the detected source
// and is informational only; it is not part of the lookup key.
func (s *Store) SaveToMemory(ctx context.Context, sourceText, sourceLang, targetLang, finalText, service string) error {
	if sourceLang == "" {
		sourceLang = "auto"
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translation_memory (id, source_text, source_lang, target_lang, final_text, service_used, usage_count, invalidated, last_used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, FALSE, ?, ?)`,
		"mem_"+uuid.NewString(), normalizeText(sourceText), sourceLang, targetLang, finalText, service, now, now)
	return err
}

// MemoryEntry is a row from the translation_memory table.
type MemoryEntry struct {
	ID          string
	SourceText  string
	SourceLang  string
	TargetLang  string
	FinalText   string
	ServiceUsed string
	UsageCount  int
	Invalidated bool
	LastUsed    time.Time
}

// CacheStats summarises translation memory usage.
type CacheStats struct {
	TotalEntries   int
	ActiveEntries  int
	InvalidEntries int
	TotalUsage     int
}

func (s *Store) InvalidateMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE translation_memory SET invalidated = TRUE WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// DeleteMemory permanently removes a translation memory entry by ID.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// ClearMemory removes all translation memory entries.
func (s *Store) ClearMemory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMemory returns all translation memory entries ordered by most recently used.
func (s *Store) ListMemory(ctx context.Context) ([]MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_text, source_lang, target_lang, final_text, service_used, usage_count, invalidated, last_used FROM translation_memory ORDER BY last_used DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.ID, &e.SourceText, &e.SourceLang, &e.TargetLang, &e.FinalText, &e.ServiceUsed, &e.UsageCount, &e.Invalidated, &e.LastUsed); err != nil {
			return nil, err
		}
		results = append(results, e)
	}

	return results, rows.Err()
}

// Stats returns summary statistics for the translation memory.
func (s *Store) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN NOT invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count), 0)
		FROM translation_memory`).Scan(
		&stats.TotalEntries,
		&stats.ActiveEntries,
		&stats.InvalidEntries,
		&stats.TotalUsage,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent cache key comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
