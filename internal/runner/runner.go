// Package runner orchestrates the Backfill and Update modes: discover the
// newest identifier, harvest the range and advance the watermark.
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/quote-harvester/internal/clock/system"
	"github.com/JakeFAU/quote-harvester/internal/quote"
)

// Mode names a run type.
type Mode string

// Supported modes.
const (
	ModeBackfill Mode = "backfill"
	ModeUpdate   Mode = "update"
)

// Discoverer finds the exclusive upper bound of the collection.
type Discoverer interface {
	DiscoverUpperBound(ctx context.Context) (int64, error)
}

// Harvester processes a half-open identifier range.
type Harvester interface {
	Harvest(ctx context.Context, from, to int64, concurrency int) (quote.Summary, error)
}

// Watermarks reads and advances the persisted watermark.
type Watermarks interface {
	StartID(ctx context.Context) (int64, error)
	Write(ctx context.Context, value int64) error
}

// Config holds run parameters.
type Config struct {
	// Concurrency is handed to the Harvester; <= 0 selects runtime.NumCPU().
	Concurrency int
}

// Notification is the payload published after a completed run.
type Notification struct {
	Mode           Mode          `json:"mode"`
	From           int64         `json:"from"`
	To             int64         `json:"to"`
	Summary        quote.Summary `json:"summary"`
	FinishedAt     time.Time     `json:"finished_at"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
}

// Runner wires discovery, harvest and watermark persistence together.
type Runner struct {
	discoverer Discoverer
	harvester  Harvester
	watermarks Watermarks
	publisher  quote.Publisher
	clock      quote.Clock
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Runner. publisher may be nil to skip run notifications.
func New(
	discoverer Discoverer,
	harvester Harvester,
	watermarks Watermarks,
	publisher quote.Publisher,
	clock quote.Clock,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New()
	}
	return &Runner{
		discoverer: discoverer,
		harvester:  harvester,
		watermarks: watermarks,
		publisher:  publisher,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Backfill harvests [1, newest) and writes the watermark. Running it again on
// the same collection overwrites every row with identical content.
func (r *Runner) Backfill(ctx context.Context) (quote.Summary, error) {
	start := r.clock.Now()
	to, err := r.discoverer.DiscoverUpperBound(ctx)
	if err != nil {
		return quote.Summary{}, fmt.Errorf("backfill: %w", err)
	}
	return r.harvest(ctx, ModeBackfill, 1, to, start)
}

// Update harvests [watermark, newest). When nothing was published since the
// last run it returns Summary{FinalToID: watermark} without fetching and
// leaves the watermark untouched.
func (r *Runner) Update(ctx context.Context) (quote.Summary, error) {
	start := r.clock.Now()
	from, err := r.watermarks.StartID(ctx)
	if err != nil {
		return quote.Summary{}, fmt.Errorf("update: %w", err)
	}
	to, err := r.discoverer.DiscoverUpperBound(ctx)
	if err != nil {
		return quote.Summary{}, fmt.Errorf("update: %w", err)
	}
	if from >= to {
		r.logger.Info("store is up to date",
			zap.String("mode", string(ModeUpdate)),
			zap.Int64("watermark", from),
			zap.Int64("upper_bound", to),
		)
		return quote.Summary{FinalToID: from}, nil
	}
	return r.harvest(ctx, ModeUpdate, from, to, start)
}

func (r *Runner) harvest(ctx context.Context, mode Mode, from, to int64, start time.Time) (quote.Summary, error) {
	logger := r.logger.With(zap.String("mode", string(mode)))
	logger.Info("run starting", zap.Int64("from", from), zap.Int64("to", to))

	summary, err := r.harvester.Harvest(ctx, from, to, r.cfg.Concurrency)
	if err != nil {
		// The watermark stays where it was so the next Update revisits this range.
		return summary, fmt.Errorf("%s: %w", mode, err)
	}
	if err := r.watermarks.Write(ctx, summary.FinalToID); err != nil {
		return summary, fmt.Errorf("%s: %w", mode, err)
	}

	finished := r.clock.Now()
	elapsed := finished.Sub(start)
	logger.Info("run finished",
		zap.Int64("processed", summary.Processed),
		zap.Int64("skipped", summary.Skipped),
		zap.Int64("failed", summary.Failed),
		zap.Int64("watermark", summary.FinalToID),
		zap.Duration("elapsed", elapsed),
	)
	r.notify(ctx, Notification{
		Mode:           mode,
		From:           from,
		To:             to,
		Summary:        summary,
		FinishedAt:     finished,
		ElapsedSeconds: elapsed.Seconds(),
	}, logger)
	return summary, nil
}

// notify is best effort; a completed run is not failed by a publish error.
func (r *Runner) notify(ctx context.Context, n Notification, logger *zap.Logger) {
	if r.publisher == nil {
		return
	}
	id, err := r.publisher.Publish(ctx, n)
	if err != nil {
		logger.Warn("publish run summary failed", zap.Error(err))
		return
	}
	logger.Debug("run summary published", zap.String("message_id", id))
}
