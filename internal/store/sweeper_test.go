package store

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSweeper_EvictsOnInterval(t *testing.T) {
	var offset atomic.Int64
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := New(WithClock(func() time.Time {
		return base.Add(time.Duration(offset.Load()))
	}))
	st.Create("old")
	offset.Store(int64(25 * time.Hour))

	sw := NewSweeper(st, 5*time.Millisecond, nil)
	sw.Start()
	defer sw.Stop()

	require.Eventually(t, func() bool {
		_, ok := st.Get("old")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestSweeper_StopWaitsForExit(t *testing.T) {
	sw := NewSweeper(New(), 5*time.Millisecond, nil)
	sw.Start()

	done := make(chan struct{})
	go func() {
		sw.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestNewSweeper_DefaultsInterval(t *testing.T) {
	sw := NewSweeper(New(), 0, nil)
	require.Equal(t, defaultSweepInterval, sw.interval)
}
