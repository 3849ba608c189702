package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quote-harvester/internal/quote"
)

var _ quote.Clock = (*Clock)(nil)

func TestNowIsUTCAndCurrent(t *testing.T) {
	t.Parallel()

	before := time.Now().Add(-time.Second)
	got := New().Now()

	require.Equal(t, time.UTC, got.Location())
	require.WithinDuration(t, before.Add(time.Second), got, 2*time.Second)
}

func TestElapsedBetweenReadingsIsNonNegative(t *testing.T) {
	t.Parallel()

	clk := New()
	start := clk.Now()
	require.GreaterOrEqual(t, clk.Now().Sub(start), time.Duration(0))
}
