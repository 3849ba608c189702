package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quote-harvester/internal/app"
	"github.com/JakeFAU/quote-harvester/internal/quote"
)

// MockApp mocks the App interface.
type MockApp struct {
	mock.Mock
}

// Backfill satisfies the App interface for the mock.
func (m *MockApp) Backfill(ctx context.Context) (quote.Summary, error) {
	args := m.Called(ctx)
	return args.Get(0).(quote.Summary), args.Error(1)
}

// Update satisfies the App interface for the mock.
func (m *MockApp) Update(ctx context.Context) (quote.Summary, error) {
	args := m.Called(ctx)
	return args.Get(0).(quote.Summary), args.Error(1)
}

// Close satisfies the App interface for the mock.
func (m *MockApp) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// withApp swaps the factory for the duration of the test and records the options it saw.
func withApp(t *testing.T, a App, factoryErr error) *app.Options {
	t.Helper()
	seen := &app.Options{}
	orig := newApp
	newApp = func(_ context.Context, opts app.Options) (App, error) {
		*seen = opts
		if factoryErr != nil {
			return nil, factoryErr
		}
		return a, nil
	}
	t.Cleanup(func() { newApp = orig })
	t.Setenv("HARVESTER_LOGGING_LEVEL", "error")
	return seen
}

func TestInitRunsBackfill(t *testing.T) {
	m := &MockApp{}
	m.On("Backfill", mock.Anything).Return(quote.Summary{Processed: 4, Skipped: 1, FinalToID: 5}, nil).Once()
	m.On("Close", mock.Anything).Return(nil).Once()
	seen := withApp(t, m, nil)

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), []string{"init", "quotes.db"}, &stdout, &stderr)
	require.NoError(t, err)

	assert.Equal(t, "processed=4 skipped=1 failed=0 watermark=5\n", stdout.String())
	assert.Equal(t, "quotes.db", seen.StorePath)
	assert.Equal(t, "https://bash.im", seen.Config.Source.BaseURL)
	assert.NotNil(t, seen.Logger)
	m.AssertExpectations(t)
}

func TestUpdateRunsUpdate(t *testing.T) {
	m := &MockApp{}
	m.On("Update", mock.Anything).Return(quote.Summary{FinalToID: 9}, nil).Once()
	m.On("Close", mock.Anything).Return(nil).Once()
	seen := withApp(t, m, nil)

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), []string{"update", "postgres://localhost/quotes"}, &stdout, &stderr)
	require.NoError(t, err)

	assert.Equal(t, "processed=0 skipped=0 failed=0 watermark=9\n", stdout.String())
	assert.Equal(t, "postgres://localhost/quotes", seen.StorePath)
	m.AssertNotCalled(t, "Backfill", mock.Anything)
	m.AssertExpectations(t)
}

func TestRunFailureStillClosesApp(t *testing.T) {
	m := &MockApp{}
	discoveryErr := &quote.DiscoveryError{Err: errors.New("permalink not found")}
	m.On("Update", mock.Anything).Return(quote.Summary{}, discoveryErr).Once()
	m.On("Close", mock.Anything).Return(nil).Once()
	withApp(t, m, nil)

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), []string{"update", "quotes.db"}, &stdout, &stderr)
	require.ErrorIs(t, err, quote.ErrDiscovery)
	assert.Empty(t, stdout.String())
	m.AssertExpectations(t)
}

func TestCloseErrorIsReported(t *testing.T) {
	m := &MockApp{}
	m.On("Backfill", mock.Anything).Return(quote.Summary{FinalToID: 2}, nil).Once()
	m.On("Close", mock.Anything).Return(errors.New("database is locked")).Once()
	withApp(t, m, nil)

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), []string{"init", "quotes.db"}, &stdout, &stderr)
	require.ErrorContains(t, err, "database is locked")
	m.AssertExpectations(t)
}

func TestFactoryError(t *testing.T) {
	withApp(t, nil, errors.New("open sqlite store: unable to open database file"))

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), []string{"init", "/nonexistent/quotes.db"}, &stdout, &stderr)
	require.ErrorContains(t, err, "initialize application services")
}

func TestWrongArgsPrintUsage(t *testing.T) {
	m := &MockApp{}
	withApp(t, m, nil)

	for _, args := range [][]string{{"init"}, {"update", "a.db", "b.db"}, {"bogus", "x.db"}} {
		var stdout, stderr bytes.Buffer
		err := execute(context.Background(), args, &stdout, &stderr)
		require.Error(t, err, "args %q", args)
		assert.Contains(t, stdout.String()+stderr.String(), "Usage:", "args %q", args)
		assert.Contains(t, stderr.String(), "Error:", "args %q", args)
	}

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), []string{}, &stdout, &stderr)
	require.ErrorContains(t, err, "subcommand is required")
	assert.Contains(t, stdout.String()+stderr.String(), "Usage:")
	m.AssertNotCalled(t, "Backfill", mock.Anything)
	m.AssertNotCalled(t, "Update", mock.Anything)
}

func TestConfigFileIsLoaded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvester.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  base_url: https://mirror.example.com\nharvest:\n  concurrency: 3\n"), 0o600))

	m := &MockApp{}
	m.On("Update", mock.Anything).Return(quote.Summary{FinalToID: 1}, nil).Once()
	m.On("Close", mock.Anything).Return(nil).Once()
	seen := withApp(t, m, nil)

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), []string{"--config", path, "update", "quotes.db"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example.com", seen.Config.Source.BaseURL)
	assert.Equal(t, 3, seen.Config.Harvest.Concurrency)
}

func TestMissingConfigFileFails(t *testing.T) {
	withApp(t, &MockApp{}, nil)

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), []string{"--config", filepath.Join(t.TempDir(), "nope.yaml"), "update", "quotes.db"}, &stdout, &stderr)
	require.ErrorContains(t, err, "load config")
	assert.Contains(t, stderr.String(), "Error:")
}
