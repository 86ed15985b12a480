package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/offline-pay/offline_pay/internal/logging"
)

func TestNew_InvalidArgs(t *testing.T) {
	t.Parallel()

	if s, err := New("t", 0, func(context.Context) {}, nil); err == nil || s != nil {
		t.Fatalf("expected interval error, got %v %#v", err, s)
	}
	if s, err := New("t", 10*time.Millisecond, nil, nil); err == nil || s != nil {
		t.Fatalf("expected tickFn error, got %v %#v", err, s)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	var calls atomic.Int64

	s, err := New("test", 10*time.Millisecond, func(context.Context) {
		calls.Add(1)
	}, logging.Discard())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if s.IsRunning() {
		t.Fatalf("expected scheduler not running initially")
	}
	if ok := s.Start(context.Background()); !ok {
		t.Fatalf("expected Start() true on first call")
	}
	if ok := s.Start(context.Background()); ok {
		t.Fatalf("expected Start() false when already running")
	}

	waitForAtLeast(t, &calls, 3, time.Second)

	if ok := s.Stop(); !ok {
		t.Fatalf("expected Stop() true on first call")
	}
	if s.IsRunning() {
		t.Fatalf("expected scheduler not running after Stop()")
	}
	if ok := s.Stop(); ok {
		t.Fatalf("expected Stop() false when already stopped")
	}

	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != after {
		t.Fatalf("expected no ticks after Stop()")
	}
}

func TestScheduler_ParentCancelStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int64

	s, err := New("test", 5*time.Millisecond, func(context.Context) { calls.Add(1) }, logging.Discard())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	s.Start(ctx)
	waitForAtLeast(t, &calls, 1, time.Second)
	cancel()

	deadline := time.Now().Add(time.Second)
	for s.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatalf("scheduler still running after parent cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScheduler_RecoversFromPanic(t *testing.T) {
	var calls atomic.Int64

	s, err := New("test", 5*time.Millisecond, func(context.Context) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	}, logging.Discard())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	s.Start(context.Background())
	defer s.Stop()

	waitForAtLeast(t, &calls, 3, time.Second)
}

func waitForAtLeast(t *testing.T, counter *atomic.Int64, n int64, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for counter.Load() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d ticks, got %d", n, counter.Load())
		}
		time.Sleep(2 * time.Millisecond)
	}
}
