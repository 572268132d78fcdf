package syncclient

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPollerInvokesRefetchRepeatedly(t *testing.T) {
	var calls atomic.Int64
	p := NewPoller(3*time.Millisecond, func(context.Context) {
		calls.Add(1)
	})
	p.Start()
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && calls.Load() < 3 {
		time.Sleep(2 * time.Millisecond)
	}
	if got := calls.Load(); got < 3 {
		t.Fatalf("refetch invoked %d times, want at least 3", got)
	}
}

func TestPollerStopHaltsRefetch(t *testing.T) {
	var calls atomic.Int64
	p := NewPoller(2*time.Millisecond, func(context.Context) {
		calls.Add(1)
	})
	p.Start()
	time.Sleep(10 * time.Millisecond)
	p.Stop()

	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if got := calls.Load(); got != after {
		t.Errorf("refetch ran %d more times after Stop", got-after)
	}
}

func TestPollerStopIsIdempotentAndSafeBeforeStart(t *testing.T) {
	p := NewPoller(time.Second, func(context.Context) {})
	p.Stop()
	p.Stop()

	p = NewPoller(time.Second, func(context.Context) {})
	p.Start()
	p.Stop()
	p.Stop()
}

func TestPollerStartAfterStopStaysStopped(t *testing.T) {
	var calls atomic.Int64
	p := NewPoller(time.Millisecond, func(context.Context) {
		calls.Add(1)
	})
	p.Stop()
	p.Start()

	time.Sleep(20 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("refetch ran %d times after Stop-then-Start, want 0", got)
	}
}

func TestPollerStartTwiceRunsOneLoop(t *testing.T) {
	p := NewPoller(time.Hour, func(context.Context) {})
	p.Start()
	p.Start()
	p.Stop()
}
