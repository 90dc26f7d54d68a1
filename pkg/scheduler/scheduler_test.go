package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsPeriodically(t *testing.T) {
	s := New(nil)
	var runs int32

	require.NoError(t, s.Every("tick", 10*time.Millisecond, 0, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, s.Shutdown(context.Background()))

	assert.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(2))
}

func TestScheduler_DuplicateNameRejected(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Every("a", time.Second, 0, func(ctx context.Context) error { return nil }))
	err := s.Every("a", time.Second, 0, func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

func TestScheduler_TasksIntrospection(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Every("aggregate", 5*time.Minute, 0.1, func(ctx context.Context) error { return nil }))
	require.NoError(t, s.EveryCron("cleanup", "0 0 * * *", 0.1, func(ctx context.Context) error { return nil }))

	tasks := s.Tasks()
	assert.Len(t, tasks, 2)
	names := map[string]bool{}
	for _, tk := range tasks {
		names[tk.Name] = true
	}
	assert.True(t, names["aggregate"])
	assert.True(t, names["cleanup"])
}

func TestScheduler_ErrorDoesNotStopSchedule(t *testing.T) {
	s := New(nil)
	var runs int32
	require.NoError(t, s.Every("flaky", 10*time.Millisecond, 0, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return assert.AnError
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	s.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Shutdown(context.Background()))

	assert.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(2), "a failing task keeps running on schedule")
}

func TestJittered_BoundedRange(t *testing.T) {
	period := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		d := jittered(period, 0.1)
		assert.GreaterOrEqual(t, d, 90*time.Millisecond)
		assert.LessOrEqual(t, d, 110*time.Millisecond)
	}
}

func TestJittered_ZeroJitterIsExact(t *testing.T) {
	assert.Equal(t, 5*time.Second, jittered(5*time.Second, 0))
}
