package trader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernorZeroIntervalIsNoOp(t *testing.T) {
	t.Parallel()

	g := NewGovernor(0)
	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, g.Throttle(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestGovernorSpacesCalls(t *testing.T) {
	t.Parallel()

	g := NewGovernor(50 * time.Millisecond)
	require.NoError(t, g.Throttle(context.Background()))

	start := time.Now()
	require.NoError(t, g.Throttle(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestGovernorRespectsCancellation(t *testing.T) {
	t.Parallel()

	g := NewGovernor(time.Hour)
	require.NoError(t, g.Throttle(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, g.Throttle(ctx))
}
