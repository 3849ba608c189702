// Package sqlite persists quotes and the watermark in a single SQLite file
// using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/quote-harvester/internal/quote"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS quote (
	id    INTEGER PRIMARY KEY,
	text  TEXT NOT NULL,
	url   VARCHAR(255),
	likes INTEGER,
	date  DATETIME
);`

const upsertQuote = `
INSERT INTO quote (id, text, url, likes, date)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	text = excluded.text,
	url = excluded.url,
	likes = excluded.likes,
	date = excluded.date`

const upsertWatermark = `
INSERT INTO quote (id, text) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET text = excluded.text`

// dateLayout is how PublishedAt is written to the date column.
const dateLayout = time.RFC3339

// Store implements quote.Store on SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// SQLite allows one writer; a single connection serializes upserts
	// instead of surfacing SQLITE_BUSY to the workers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	logger.Info("sqlite store opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Upsert inserts or overwrites the row for record.ID.
func (s *Store) Upsert(ctx context.Context, record quote.Record) error {
	if record.ID <= quote.WatermarkID {
		return fmt.Errorf("upsert quote %d: %w", record.ID, quote.ErrInvalidID)
	}
	var date any
	if !record.PublishedAt.IsZero() {
		date = record.PublishedAt.UTC().Format(dateLayout)
	}
	if _, err := s.db.ExecContext(ctx, upsertQuote,
		record.ID, record.Text, nullable(record.SourceURL), record.Likes, date,
	); err != nil {
		return fmt.Errorf("upsert quote %d: %w", record.ID, err)
	}
	return nil
}

// Get returns the row for id, or sql.ErrNoRows wrapped when absent.
func (s *Store) Get(ctx context.Context, id int64) (quote.Record, error) {
	var (
		rec   = quote.Record{ID: id}
		url   sql.NullString
		likes sql.NullInt64
		date  sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT text, url, likes, date FROM quote WHERE id = ?", id,
	).Scan(&rec.Text, &url, &likes, &date)
	if err != nil {
		return quote.Record{}, fmt.Errorf("get quote %d: %w", id, err)
	}
	rec.SourceURL = url.String
	rec.Likes = likes.Int64
	if date.Valid && date.String != "" {
		ts, err := time.Parse(dateLayout, date.String)
		if err != nil {
			return quote.Record{}, fmt.Errorf("get quote %d: parse date %q: %w", id, date.String, err)
		}
		rec.PublishedAt = ts
	}
	return rec, nil
}

// Count returns how many quotes are stored, the watermark row excluded.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM quote WHERE id > ?", quote.WatermarkID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count quotes: %w", err)
	}
	return n, nil
}

// ReadWatermark returns quote.ErrWatermarkNotFound until the first write.
func (s *Store) ReadWatermark(ctx context.Context) (int64, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT text FROM quote WHERE id = ?", quote.WatermarkID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, quote.ErrWatermarkNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read watermark row: %w", err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse watermark %q: %w", raw, err)
	}
	return v, nil
}

// WriteWatermark creates or overwrites the watermark row.
func (s *Store) WriteWatermark(ctx context.Context, value int64) error {
	if _, err := s.db.ExecContext(ctx, upsertWatermark, quote.WatermarkID, strconv.FormatInt(value, 10)); err != nil {
		return fmt.Errorf("write watermark row: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	s.logger.Debug("sqlite store closed")
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
