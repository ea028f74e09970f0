package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupScheduler_SleepsBeforeFirstTick(t *testing.T) {
	scheduler := NewGroupScheduler(100*time.Millisecond, testLogger())
	defer scheduler.StopAll()

	var ticks atomic.Int32
	started := time.Now()
	firstTick := make(chan time.Time, 1)
	scheduler.Start("grp-1", func(ctx context.Context) (bool, error) {
		if ticks.Add(1) == 1 {
			firstTick <- time.Now()
		}
		return false, nil
	})

	assert.True(t, scheduler.Running("grp-1"))
	assert.Zero(t, ticks.Load(), "first tick waits a full interval")

	select {
	case at := <-firstTick:
		assert.GreaterOrEqual(t, at.Sub(started), 90*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("first tick never fired")
	}
}

func TestGroupScheduler_StartReplacesRunningLoop(t *testing.T) {
	scheduler := NewGroupScheduler(100*time.Millisecond, testLogger())
	defer scheduler.StopAll()

	var first, second atomic.Int32
	scheduler.Start("grp-1", func(ctx context.Context) (bool, error) {
		first.Add(1)
		return false, nil
	})
	scheduler.Start("grp-1", func(ctx context.Context) (bool, error) {
		second.Add(1)
		return false, nil
	})

	require.Eventually(t, func() bool { return second.Load() >= 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Zero(t, first.Load(), "replaced loop was cancelled during its first sleep")
	assert.True(t, scheduler.Running("grp-1"))
}

func TestGroupScheduler_DoneEndsLoop(t *testing.T) {
	scheduler := NewGroupScheduler(10*time.Millisecond, testLogger())
	defer scheduler.StopAll()

	var ticks atomic.Int32
	scheduler.Start("grp-1", func(ctx context.Context) (bool, error) {
		ticks.Add(1)
		return true, nil
	})

	require.Eventually(t, func() bool { return !scheduler.Running("grp-1") },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), ticks.Load())
}

func TestGroupScheduler_ErrorKeepsLoopAlive(t *testing.T) {
	scheduler := NewGroupScheduler(10*time.Millisecond, testLogger())
	defer scheduler.StopAll()

	var ticks atomic.Int32
	scheduler.Start("grp-1", func(ctx context.Context) (bool, error) {
		ticks.Add(1)
		return false, errors.New("provider down")
	})

	require.Eventually(t, func() bool { return ticks.Load() >= 3 },
		2*time.Second, 5*time.Millisecond)
	assert.True(t, scheduler.Running("grp-1"))
}

func TestGroupScheduler_StopWaitsForTickInFlight(t *testing.T) {
	scheduler := NewGroupScheduler(10*time.Millisecond, testLogger())

	tickEntered := make(chan struct{})
	release := make(chan struct{})
	scheduler.Start("grp-1", func(ctx context.Context) (bool, error) {
		close(tickEntered)
		<-release
		return false, nil
	})
	<-tickEntered

	stopped := make(chan struct{})
	go func() {
		scheduler.Stop("grp-1")
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a tick was still running")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop never returned")
	}
	assert.False(t, scheduler.Running("grp-1"))
}

func TestGroupScheduler_StopUnknownGroupIsNoop(t *testing.T) {
	scheduler := NewGroupScheduler(10*time.Millisecond, testLogger())
	scheduler.Stop("grp-1")
	assert.False(t, scheduler.Running("grp-1"))
}

func TestGroupScheduler_StopAll(t *testing.T) {
	scheduler := NewGroupScheduler(10*time.Millisecond, testLogger())

	tick := func(ctx context.Context) (bool, error) { return false, nil }
	scheduler.Start("grp-1", tick)
	scheduler.Start("grp-2", tick)

	scheduler.StopAll()

	assert.False(t, scheduler.Running("grp-1"))
	assert.False(t, scheduler.Running("grp-2"))
}
