package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerFiresImmediatelyAndKeepsFiringAfterErrors(t *testing.T) {
	var calls atomic.Int32
	fired := make(chan struct{}, 8)
	tick := func(ctx context.Context) error {
		calls.Add(1)
		fired <- struct{}{}
		return errors.New("boom")
	}

	s, err := New(context.Background(), time.Second, tick, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("first tick should fire immediately")
	}
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatalf("scheduler stopped firing after a failed tick")
	}
	if calls.Load() < 2 {
		t.Fatalf("expected at least 2 calls, got %d", calls.Load())
	}
}

func TestSchedulerStopWaitsForInFlightTick(t *testing.T) {
	started := make(chan struct{}, 1)
	var finished atomic.Bool
	tick := func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(200 * time.Millisecond)
		finished.Store(true)
		return nil
	}

	s, err := New(context.Background(), time.Hour, tick, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-started
	s.Stop()
	if !finished.Load() {
		t.Fatalf("stop returned before the in-flight tick finished")
	}
}

func TestSchedulerRejectsBadConfig(t *testing.T) {
	noop := func(ctx context.Context) error { return nil }
	if _, err := New(context.Background(), 500*time.Millisecond, noop, nil); err == nil {
		t.Fatalf("expected error for sub-second interval")
	}
	if _, err := New(context.Background(), time.Second, nil, nil); err == nil {
		t.Fatalf("expected error for nil tick")
	}
}

func TestSchedulerSkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	s, err := New(ctx, time.Second, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()
	if calls.Load() != 0 {
		t.Fatalf("tick ran on a canceled context")
	}
}

func TestSchedulerSurvivesPanickingTick(t *testing.T) {
	var calls atomic.Int32
	fired := make(chan struct{}, 8)
	tick := func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		fired <- struct{}{}
		return nil
	}

	s, err := New(context.Background(), time.Second, tick, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatalf("scheduler stopped firing after the first tick panicked")
	}
}
