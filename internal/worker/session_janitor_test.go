package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingEvictor struct {
	calls atomic.Int32
	last  atomic.Int64
}

func (c *countingEvictor) EvictIdle(_ context.Context, now time.Time) int {
	c.calls.Add(1)
	c.last.Store(now.Unix())
	return 1
}

func TestNewSessionJanitorRejectsBadSchedule(t *testing.T) {
	_, err := NewSessionJanitor("not a schedule", &countingEvictor{}, zap.NewNop())
	assert.Error(t, err)
}

func TestSweepPassesCurrentTime(t *testing.T) {
	evictor := &countingEvictor{}
	j, err := NewSessionJanitor("@every 1h", evictor, zap.NewNop())
	require.NoError(t, err)
	j.now = func() time.Time { return time.Unix(1700000000, 0) }

	j.sweep()
	assert.Equal(t, int32(1), evictor.calls.Load())
	assert.Equal(t, int64(1700000000), evictor.last.Load())
}

func TestRunStopsWithContext(t *testing.T) {
	j, err := NewSessionJanitor("@every 1h", &countingEvictor{}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}
