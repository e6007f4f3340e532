// Package store persists monitor state in SQLite: seen-message dedup,
// match history, and download records.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"uewatch/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS seen_messages (
		source      TEXT NOT NULL,
		channel_id  TEXT NOT NULL,
		message_id  TEXT NOT NULL,
		seen_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (source, channel_id, message_id)
	);
	CREATE INDEX IF NOT EXISTS idx_seen_time ON seen_messages(seen_at);

	CREATE TABLE IF NOT EXISTS matches (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		source        TEXT NOT NULL,
		channel_id    TEXT NOT NULL,
		message_id    TEXT NOT NULL,
		version       TEXT NOT NULL,
		matched_text  TEXT,
		message_text  TEXT,
		detected_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_matches_time ON matches(detected_at);

	CREATE TABLE IF NOT EXISTS downloads (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id    INTEGER REFERENCES matches(id) ON DELETE CASCADE,
		filename    TEXT NOT NULL,
		path        TEXT NOT NULL,
		size        INTEGER DEFAULT 0,
		sha256      TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_downloads_match ON downloads(match_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// MarkSeen records the message and reports whether this observation is
// the first. Duplicate observations are not an error.
func (s *SQLiteStore) MarkSeen(ctx context.Context, source, channelID, messageID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_messages (source, channel_id, message_id, seen_at)
		 VALUES (?, ?, ?, ?)`,
		source, channelID, messageID, time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("mark seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) RecordMatch(ctx context.Context, m domain.Match) (int64, error) {
	if m.DetectedAt.IsZero() {
		m.DetectedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (source, channel_id, message_id, version, matched_text, message_text, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Source, m.ChannelID, m.MessageID, m.Version, m.MatchedText, m.MessageText, m.DetectedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("record match: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) ListMatches(ctx context.Context, limit int) ([]domain.Match, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, channel_id, message_id, version, matched_text, message_text, detected_at
		 FROM matches ORDER BY detected_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var m domain.Match
		if err := rows.Scan(&m.ID, &m.Source, &m.ChannelID, &m.MessageID,
			&m.Version, &m.MatchedText, &m.MessageText, &m.DetectedAt); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *SQLiteStore) CountMatches(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) RecordDownload(ctx context.Context, d domain.Download) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO downloads (match_id, filename, path, size, sha256, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.MatchID, d.Filename, d.Path, d.Size, d.SHA256, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record download: %w", err)
	}
	return nil
}

// PruneSeen removes dedup entries older than the retention window.
// Matches and downloads are kept.
func (s *SQLiteStore) PruneSeen(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `DELETE FROM seen_messages WHERE seen_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune seen: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Debug("pruned seen messages", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
