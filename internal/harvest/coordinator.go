// Package harvest drives the bounded-concurrency fetch/parse/persist loop over
// a range of quote identifiers.
package harvest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/quote-harvester/internal/clock/system"
	runid "github.com/JakeFAU/quote-harvester/internal/id/uuid"
	"github.com/JakeFAU/quote-harvester/internal/progress"
	"github.com/JakeFAU/quote-harvester/internal/quote"
)

// maxReportedStoreErrors caps how many write failures are joined into the run error.
const maxReportedStoreErrors = 10

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}

// Config controls Coordinator behavior.
type Config struct {
	// ArchivePrefix is the object prefix for raw pages when an archive is set.
	ArchivePrefix string
	ContentType   string
}

// Coordinator fans a pre-generated identifier queue out to a fixed worker pool.
type Coordinator struct {
	transport quote.Transport
	extractor quote.Extractor
	store     quote.Store
	archive   quote.BlobStore
	emitter   progress.Emitter
	clock     quote.Clock
	ids       IDGenerator
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Coordinator. archive, emitter, clock and ids may be nil.
func New(
	transport quote.Transport,
	extractor quote.Extractor,
	store quote.Store,
	archive quote.BlobStore,
	emitter progress.Emitter,
	clock quote.Clock,
	ids IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if clock == nil {
		clock = system.New()
	}
	if ids == nil {
		ids = runid.New()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		transport: transport,
		extractor: extractor,
		store:     store,
		archive:   archive,
		emitter:   emitter,
		clock:     clock,
		ids:       ids,
		cfg:       cfg,
		logger:    logger,
	}
}

// run holds the shared mutable state of one Harvest call.
type run struct {
	id        [16]byte
	toID      atomic.Int64
	processed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64

	errMu       sync.Mutex
	storeErrs   []error
	storeFailed int
}

func (r *run) summary() quote.Summary {
	return quote.Summary{
		Processed: r.processed.Load(),
		Skipped:   r.skipped.Load(),
		Failed:    r.failed.Load(),
		FinalToID: r.toID.Load(),
	}
}

func (r *run) recordStoreError(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	r.storeFailed++
	if len(r.storeErrs) < maxReportedStoreErrors {
		r.storeErrs = append(r.storeErrs, err)
	}
}

// Harvest visits every identifier in [from, to) exactly once using
// concurrency workers (runtime.NumCPU() when <= 0).
//
// Each redirect-to-landing gap lowers the reported upper bound by one. The
// work queue is generated once from the original bound, so gaps never change
// which identifiers are visited. Transport and extraction failures are
// skipped without touching the bound. Failed upserts do not stop the run but
// make it return a *quote.StoreError alongside the summary.
func (c *Coordinator) Harvest(ctx context.Context, from, to int64, concurrency int) (quote.Summary, error) {
	if from <= quote.WatermarkID {
		return quote.Summary{}, fmt.Errorf("harvest range start %d: %w", from, quote.ErrInvalidID)
	}
	if from >= to {
		return quote.Summary{FinalToID: from}, nil
	}
	total := to - from
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	if int64(concurrency) > total {
		concurrency = int(total)
	}

	runID, err := c.ids.NewRawID()
	if err != nil {
		return quote.Summary{}, fmt.Errorf("new run id: %w", err)
	}
	r := &run{id: progress.UUIDToBytes(runID)}
	r.toID.Store(to)
	logger := c.logger.With(zap.String("run_id", runID.String()))

	queue := make(chan int64, total)
	for id := from; id < to; id++ {
		queue <- id
	}
	close(queue)

	start := c.clock.Now()
	c.emit(progress.Event{RunID: r.id, TS: start, Stage: progress.StageRunStart, Total: total})
	logger.Info("harvest started",
		zap.Int64("from", from),
		zap.Int64("to", to),
		zap.Int("concurrency", concurrency),
	)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range queue {
				if ctx.Err() != nil {
					continue
				}
				c.process(ctx, r, id, logger)
			}
		}()
	}
	wg.Wait()

	summary := r.summary()
	elapsed := c.clock.Now().Sub(start)
	runErr := c.runError(ctx, r)

	stage := progress.StageRunDone
	if runErr != nil {
		stage = progress.StageRunError
	}
	c.emit(progress.Event{
		RunID:     r.id,
		TS:        c.clock.Now(),
		Stage:     stage,
		Total:     total - summary.Gaps(),
		Processed: summary.Processed,
		Skipped:   summary.Skipped,
		Dur:       elapsed,
		Note:      formatSummary(summary),
	})
	fields := []zap.Field{
		zap.Int64("processed", summary.Processed),
		zap.Int64("skipped", summary.Skipped),
		zap.Int64("failed", summary.Failed),
		zap.Int64("final_to_id", summary.FinalToID),
		zap.Duration("elapsed", elapsed),
	}
	if runErr != nil {
		logger.Error("harvest finished with errors", append(fields, zap.Error(runErr))...)
		return summary, runErr
	}
	logger.Info("harvest finished", fields...)
	return summary, nil
}

func (c *Coordinator) runError(ctx context.Context, r *run) error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	var errs []error
	if r.storeFailed > 0 {
		errs = append(errs, &quote.StoreError{Failed: r.storeFailed, Err: errors.Join(r.storeErrs...)})
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, fmt.Errorf("harvest interrupted: %w", err))
	}
	return errors.Join(errs...)
}

func (c *Coordinator) process(ctx context.Context, r *run, id int64, logger *zap.Logger) {
	start := c.clock.Now()
	res, err := c.transport.Fetch(ctx, id)
	if err != nil {
		c.fail(r, id, start, err, logger)
		return
	}

	switch res.Status {
	case quote.StatusRedirected:
		r.toID.Add(-1)
		r.skipped.Add(1)
		logger.Debug("quote does not exist", zap.Int64("id", id))
		c.emitFetch(r, id, start, progress.OutcomeGap, 0, "")
		return
	case quote.StatusOK:
	default:
		c.fail(r, id, start, fmt.Errorf("unexpected fetch status %q", res.Status), logger)
		return
	}

	record, err := c.extractor.Extract(res.Content)
	if err != nil {
		c.fail(r, id, start, err, logger)
		return
	}
	record.ID = id
	record.SourceURL = res.URL

	c.archiveRaw(ctx, id, res.Content, logger)

	if err := c.store.Upsert(ctx, record); err != nil {
		err = fmt.Errorf("upsert quote %d: %w", id, err)
		r.recordStoreError(err)
		c.fail(r, id, start, err, logger)
		return
	}
	r.processed.Add(1)
	c.emitFetch(r, id, start, progress.OutcomeStored, int64(len(res.Content)), "")
}

// fail counts id as skipped and failed. Failures never lower the upper bound.
func (c *Coordinator) fail(r *run, id int64, start time.Time, err error, logger *zap.Logger) {
	r.skipped.Add(1)
	r.failed.Add(1)
	if !errors.Is(err, context.Canceled) {
		logger.Warn("quote skipped", zap.Int64("id", id), zap.Error(err))
	}
	c.emitFetch(r, id, start, progress.OutcomeFailed, 0, err.Error())
}

func (c *Coordinator) archiveRaw(ctx context.Context, id int64, content []byte, logger *zap.Logger) {
	if c.archive == nil {
		return
	}
	if _, err := c.archive.PutObject(ctx, c.archivePath(id), c.cfg.ContentType, bytes.NewReader(content)); err != nil {
		logger.Warn("archive raw page failed", zap.Int64("id", id), zap.Error(err))
	}
}

func (c *Coordinator) archivePath(id int64) string {
	name := strconv.FormatInt(id, 10) + ".html"
	prefix := strings.Trim(c.cfg.ArchivePrefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func (c *Coordinator) emitFetch(r *run, id int64, start time.Time, outcome progress.Outcome, size int64, note string) {
	now := c.clock.Now()
	c.emit(progress.Event{
		RunID:   r.id,
		TS:      now,
		Stage:   progress.StageFetchDone,
		QuoteID: id,
		Outcome: outcome,
		Bytes:   size,
		Dur:     now.Sub(start),
		Note:    note,
	})
}

func (c *Coordinator) emit(evt progress.Event) {
	if evt.Dur < 0 {
		evt.Dur = 0
	}
	c.emitter.Emit(evt)
}

func formatSummary(s quote.Summary) string {
	return fmt.Sprintf("processed=%d skipped=%d failed=%d final_to_id=%d", s.Processed, s.Skipped, s.Failed, s.FinalToID)
}
