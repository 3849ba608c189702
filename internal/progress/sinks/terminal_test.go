package sinks

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/quote-harvester/internal/progress"
)

func TestTerminalSinkRedrawsLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewTerminalSink(&buf)
	batch := runBatch()

	require.NoError(t, sink.Consume(context.Background(), batch[:2]))
	require.Equal(t, "\r1 of 3, skipped 0", buf.String())

	buf.Reset()
	require.NoError(t, sink.Consume(context.Background(), batch[2:]))
	require.Equal(t, "\r1 of 2, skipped 2\n", buf.String())
	require.NoError(t, sink.Close(context.Background()))
}

func TestTerminalSinkFinishesEachRunInSharedBatch(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewTerminalSink(&buf)
	first := runBatch()
	second := runBatch()

	batch := append(append([]progress.Event(nil), first...), second[:2]...)
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.Equal(t, "\r1 of 2, skipped 2\n\r1 of 3, skipped 0", buf.String())
}

func TestTerminalSinkUsesRunCountersOnFinish(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewTerminalSink(&buf)
	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()

	// Only one of the run's fetch events reached the sink.
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart, Total: 5},
		{RunID: runID, TS: now, Stage: progress.StageFetchDone, QuoteID: 1, Outcome: progress.OutcomeStored},
		{RunID: runID, TS: now, Stage: progress.StageRunDone, Total: 4, Processed: 4, Skipped: 1},
	}))
	require.Equal(t, "\r4 of 4, skipped 1\n", buf.String())
}

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(core))
	require.NoError(t, sink.Consume(context.Background(), runBatch()))

	require.Equal(t, 1, logs.FilterMessage("run started").Len())
	require.Equal(t, 3, logs.FilterMessage("quote processed").Len())
	require.Equal(t, 1, logs.FilterMessage("run finished").Len())
	require.Equal(t, 1, logs.FilterField(zap.String("note", "timeout")).Len())
}
