// Package watermark reads and writes the last processed identifier.
package watermark

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/quote-harvester/internal/quote"
)

// Store is the subset of quote.Store the manager needs.
type Store interface {
	ReadWatermark(ctx context.Context) (int64, error)
	WriteWatermark(ctx context.Context, value int64) error
}

// Manager wraps the watermark row of a Store.
type Manager struct {
	store  Store
	logger *zap.Logger
}

// New builds a Manager.
func New(store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger}
}

// Read returns the stored watermark or quote.ErrWatermarkNotFound.
func (m *Manager) Read(ctx context.Context) (int64, error) {
	v, err := m.store.ReadWatermark(ctx)
	if err != nil {
		if errors.Is(err, quote.ErrWatermarkNotFound) {
			return 0, quote.ErrWatermarkNotFound
		}
		return 0, fmt.Errorf("read watermark: %w", err)
	}
	return v, nil
}

// Write overwrites the watermark with value.
func (m *Manager) Write(ctx context.Context, value int64) error {
	if value < 1 {
		return fmt.Errorf("write watermark %d: %w", value, quote.ErrInvalidID)
	}
	if err := m.store.WriteWatermark(ctx, value); err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}
	m.logger.Info("watermark written", zap.Int64("watermark", value))
	return nil
}

// StartID returns the first identifier an Update should visit: the
// watermark, or 1 before any run has completed.
func (m *Manager) StartID(ctx context.Context) (int64, error) {
	v, err := m.Read(ctx)
	if errors.Is(err, quote.ErrWatermarkNotFound) {
		m.logger.Info("no watermark yet, starting at first id")
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}
