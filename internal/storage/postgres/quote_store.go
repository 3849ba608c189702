// Package postgres provides the Postgres-backed quote store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/quote-harvester/internal/quote"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// QuoteStoreConfig controls the Postgres connection pool used for quote rows.
type QuoteStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// QuoteStore writes quote rows into Postgres. Upserts from concurrent
// workers run on separate pooled connections.
type QuoteStore struct {
	pool  pool
	table string
}

// NewQuoteStore connects to Postgres and ensures the quote table exists.
func NewQuoteStore(ctx context.Context, cfg QuoteStoreConfig) (*QuoteStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewQuoteStoreWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewQuoteStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewQuoteStoreWithPool(p pool, table string) (*QuoteStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "quote"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &QuoteStore{pool: p, table: table}, nil
}

// EnsureSchema creates the quote table when missing.
func (s *QuoteStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGINT PRIMARY KEY,
	text TEXT NOT NULL,
	url VARCHAR(255),
	likes BIGINT,
	date TIMESTAMPTZ
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *QuoteStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// Upsert inserts or overwrites the row for record.ID.
func (s *QuoteStore) Upsert(ctx context.Context, record quote.Record) error {
	if record.ID <= quote.WatermarkID {
		return fmt.Errorf("upsert quote %d: %w", record.ID, quote.ErrInvalidID)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, text, url, likes, date)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET
	text = EXCLUDED.text,
	url = EXCLUDED.url,
	likes = EXCLUDED.likes,
	date = EXCLUDED.date`, s.table)

	args := []any{
		record.ID,
		record.Text,
		nullString(record.SourceURL),
		record.Likes,
		nullTime(record.PublishedAt),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert quote %d: %w", record.ID, err)
	}
	return nil
}

// Get returns the row for id; a missing row wraps pgx.ErrNoRows.
func (s *QuoteStore) Get(ctx context.Context, id int64) (quote.Record, error) {
	query := fmt.Sprintf("SELECT text, url, likes, date FROM %s WHERE id = $1", s.table)
	var (
		url   *string
		likes *int64
		date  *time.Time
	)
	rec := quote.Record{ID: id}
	if err := s.pool.QueryRow(ctx, query, id).Scan(&rec.Text, &url, &likes, &date); err != nil {
		return quote.Record{}, fmt.Errorf("get quote %d: %w", id, err)
	}
	if url != nil {
		rec.SourceURL = *url
	}
	if likes != nil {
		rec.Likes = *likes
	}
	if date != nil {
		rec.PublishedAt = date.UTC()
	}
	return rec, nil
}

// Count returns how many quotes are stored, the watermark row excluded.
func (s *QuoteStore) Count(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id > $1", s.table)
	var n int64
	if err := s.pool.QueryRow(ctx, query, quote.WatermarkID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count quotes: %w", err)
	}
	return n, nil
}

// ReadWatermark returns quote.ErrWatermarkNotFound until the first write.
func (s *QuoteStore) ReadWatermark(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("SELECT text FROM %s WHERE id = $1", s.table)
	var raw string
	err := s.pool.QueryRow(ctx, query, quote.WatermarkID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
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
func (s *QuoteStore) WriteWatermark(ctx context.Context, value int64) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, text) VALUES ($1,$2)
ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text`, s.table)
	if _, err := s.pool.Exec(ctx, query, quote.WatermarkID, strconv.FormatInt(value, 10)); err != nil {
		return fmt.Errorf("write watermark row: %w", err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
