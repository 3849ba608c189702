package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quote-harvester/internal/quote"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quotes.db")
	s, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestUpsertAndGet(t *testing.T) {
	t.Parallel()

	s, _ := openTemp(t)
	ctx := context.Background()
	published := time.Date(2008, 3, 1, 12, 30, 0, 0, time.UTC)

	rec := quote.Record{ID: 7, Text: "line one\nline two", SourceURL: "https://bash.im/quote/7", Likes: 12, PublishedAt: published}
	require.NoError(t, s.Upsert(ctx, rec))

	got, err := s.Get(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, rec, got)

	rec.Likes = 99
	rec.Text = "edited"
	require.NoError(t, s.Upsert(ctx, rec))
	got, err = s.Get(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(99), got.Likes)
	require.Equal(t, "edited", got.Text)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	s, _ := openTemp(t)
	_, err := s.Get(context.Background(), 404)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUpsertRejectsWatermarkRow(t *testing.T) {
	t.Parallel()

	s, _ := openTemp(t)
	err := s.Upsert(context.Background(), quote.Record{ID: 0, Text: "x"})
	require.ErrorIs(t, err, quote.ErrInvalidID)
}

func TestWatermarkLifecycle(t *testing.T) {
	t.Parallel()

	s, path := openTemp(t)
	ctx := context.Background()

	_, err := s.ReadWatermark(ctx)
	require.ErrorIs(t, err, quote.ErrWatermarkNotFound)

	require.NoError(t, s.WriteWatermark(ctx, 41))
	require.NoError(t, s.WriteWatermark(ctx, 42))
	v, err := s.ReadWatermark(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(42), v)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, s.Close())
	reopened, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	v, err = reopened.ReadWatermark(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(42), v)
}

func TestConcurrentDistinctUpserts(t *testing.T) {
	t.Parallel()

	s, _ := openTemp(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			errs <- s.Upsert(ctx, quote.Record{ID: id, Text: fmt.Sprintf("q%d", id)})
		}(int64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(100), n)

	got, err := s.Get(ctx, 55)
	require.NoError(t, err)
	require.Equal(t, "q55", got.Text)
	require.True(t, got.PublishedAt.IsZero())
	require.Empty(t, got.SourceURL)
}
