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

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Chat handlers write concurrently; sqlite allows one writer.
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
	CREATE TABLE IF NOT EXISTS chat_log (
		id TEXT PRIMARY KEY,
		lang TEXT NOT NULL,
		input_text TEXT NOT NULL,
		normalized_en TEXT,
		answer TEXT,
		warn TEXT,
		error TEXT,
		stage TEXT NOT NULL,
		ok BOOLEAN NOT NULL,
		latency_ms INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS translation_memory (
		id TEXT PRIMARY KEY,
		source_text TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		final_text TEXT NOT NULL,
		service_used TEXT,
		usage_count INTEGER DEFAULT 1,
		invalidated BOOLEAN DEFAULT FALSE,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_text, source_lang, target_lang)
	);

	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON translation_memory(source_text, source_lang, target_lang);
	CREATE INDEX IF NOT EXISTS idx_chat_created ON chat_log(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Exchange is one handled chat request as recorded in chat_log.
type Exchange struct {
	ID         string
	Lang       string
	Text       string
	Normalized string
	Answer     string
	Warn       string
	Error      string
	Stage      string
	OK         bool
	Latency    time.Duration
	CreatedAt  time.Time
}

func (s *Store) SaveExchange(ctx context.Context, e Exchange) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_log (id, lang, input_text, normalized_en, answer, warn, error, stage, ok, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Lang, e.Text, e.Normalized, e.Answer, e.Warn, e.Error, e.Stage, e.OK, e.Latency.Milliseconds(), e.CreatedAt)
	return err
}

// ListExchanges returns the most recent exchanges first. limit <= 0 means all.
func (s *Store) ListExchanges(ctx context.Context, limit int) ([]Exchange, error) {
	query := `SELECT id, lang, input_text, normalized_en, answer, warn, error, stage, ok, latency_ms, created_at
		FROM chat_log ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var e Exchange
		var latencyMs int64
		if err := rows.Scan(&e.ID, &e.Lang, &e.Text, &e.Normalized, &e.Answer, &e.Warn, &e.Error, &e.Stage, &e.OK, &latencyMs, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Latency = time.Duration(latencyMs) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// HistoryStats summarises chat_log by outcome.
type HistoryStats struct {
	Total        int
	Primary      int
	Fallback     int
	Failed       int
	AvgLatencyMs float64
	ByLang       map[string]int
}

func (s *Store) HistoryStats(ctx context.Context) (*HistoryStats, error) {
	stats := &HistoryStats{ByLang: make(map[string]int)}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN ok AND (warn IS NULL OR warn = '') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN ok AND warn <> '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN NOT ok THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(latency_ms), 0)
		FROM chat_log`).Scan(
		&stats.Total,
		&stats.Primary,
		&stats.Fallback,
		&stats.Failed,
		&stats.AvgLatencyMs,
	)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT lang, COUNT(*) FROM chat_log GROUP BY lang`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l string
		var n int
		if err := rows.Scan(&l, &n); err != nil {
			return nil, err
		}
		stats.ByLang[l] = n
	}
	return stats, rows.Err()
}

// GetCachedTranslation looks up a remembered translation and bumps its
// usage counter on a hit. Invalidated entries count as misses.
func (s *Store) GetCachedTranslation(ctx context.Context, sourceText, sourceLang, targetLang string) (string, bool, error) {
	var finalText string
	var invalidated bool

	key := normalizeText(sourceText)
	err := s.db.QueryRowContext(ctx,
		`SELECT final_text, invalidated FROM translation_memory WHERE source_text = ? AND source_lang = ? AND target_lang = ?`,
		key, sourceLang, targetLang).Scan(&finalText, &invalidated)

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
		`UPDATE translation_memory SET usage_count = usage_count + 1, last_used = ? WHERE source_text = ? AND source_lang = ? AND target_lang = ?`,
		time.Now(), key, sourceLang, targetLang)

	return finalText, true, err
}

func (s *Store) SaveToMemory(ctx context.Context, sourceText, sourceLang, targetLang, finalText, serviceUsed string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translation_memory (id, source_text, source_lang, target_lang, final_text, service_used, usage_count, invalidated, last_used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, FALSE, ?, ?)`,
		uuid.NewString(), normalizeText(sourceText), sourceLang, targetLang, finalText, serviceUsed, now, now)
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

// InvalidateMemory keeps the row but stops it from being served.
func (s *Store) InvalidateMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE translation_memory SET invalidated = TRUE WHERE id = ?`, id)
	return err
}

func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory WHERE id = ?`, id)
	return err
}

func (s *Store) ClearMemory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMemory returns all entries, most recently used first.
func (s *Store) ListMemory(ctx context.Context) ([]MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_text, source_lang, target_lang, final_text, COALESCE(service_used, ''), usage_count, invalidated, last_used
		 FROM translation_memory ORDER BY last_used DESC`)
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

// normalizeText trims and NFC-normalizes memory keys. Devanagari and
// Gurmukhi input often arrives in decomposed form.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
