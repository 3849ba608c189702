package uuid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunIDsAreTimeOrderedV7(t *testing.T) {
	t.Parallel()

	gen := New()
	prev, err := gen.NewRawID()
	require.NoError(t, err)
	require.EqualValues(t, 7, prev.Version())

	for i := 0; i < 16; i++ {
		next, err := gen.NewRawID()
		require.NoError(t, err)
		require.NotEqual(t, prev, next)
		require.Less(t, prev.String(), next.String())
		prev = next
	}
}
