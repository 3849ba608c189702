package sinks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/JakeFAU/quote-harvester/internal/progress"
)

// TerminalSink redraws a single "N of TOTAL, skipped S" line on a terminal.
// Each gap shrinks TOTAL by one, matching the shrinking upper bound.
type TerminalSink struct {
	mu        sync.Mutex
	w         io.Writer
	total     int64
	processed int64
	skipped   int64
}

// NewTerminalSink writes progress lines to w.
func NewTerminalSink(w io.Writer) *TerminalSink {
	return &TerminalSink{w: w}
}

// Consume applies the batch in order. The line is finished with a newline at
// the end of every run, using the run's final counters so that fetch events
// dropped under backpressure do not skew it, and redrawn once more when later
// events in the batch changed it.
func (s *TerminalSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirty := false
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.total, s.processed, s.skipped = evt.Total, 0, 0
			dirty = true
		case progress.StageFetchDone:
			switch evt.Outcome {
			case progress.OutcomeStored:
				s.processed++
			case progress.OutcomeGap:
				s.total--
				s.skipped++
			case progress.OutcomeFailed:
				s.skipped++
			}
			dirty = true
		case progress.StageRunDone, progress.StageRunError:
			s.total, s.processed, s.skipped = evt.Total, evt.Processed, evt.Skipped
			if err := s.draw("\n"); err != nil {
				return err
			}
			dirty = false
		}
	}
	if !dirty {
		return nil
	}
	return s.draw("")
}

func (s *TerminalSink) draw(suffix string) error {
	if _, err := fmt.Fprintf(s.w, "\r%d of %d, skipped %d%s", s.processed, s.total, s.skipped, suffix); err != nil {
		return fmt.Errorf("write progress line: %w", err)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *TerminalSink) Close(context.Context) error {
	return nil
}
