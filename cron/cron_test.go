package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/flow"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/session"
)

func TestScheduleAfterCompletesAndReportsStatus(t *testing.T) {
	scheduler := NewScheduler()
	var count atomic.Int32

	h, err := scheduler.ScheduleAfter(20*time.Millisecond, JobConfig{Name: "once"}, func(context.Context) error {
		count.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("schedule after: %v", err)
	}

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("expected handle completion")
	}

	if got := count.Load(); got != 1 {
		t.Fatalf("expected one execution, got %d", got)
	}
	if status := h.Status(); status != StatusCompleted {
		t.Fatalf("expected completed status, got %s", status)
	}
}

func TestScheduleAfterCancelPreventsExecution(t *testing.T) {
	scheduler := NewScheduler()
	var count atomic.Int32

	h, err := scheduler.ScheduleAfter(200*time.Millisecond, JobConfig{Name: "cancel"}, func(context.Context) error {
		count.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("schedule after: %v", err)
	}
	h.Cancel()

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("expected canceled handle to close done channel")
	}
	time.Sleep(250 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Fatalf("expected zero executions after cancel, got %d", got)
	}
	if status := h.Status(); status != StatusCanceled {
		t.Fatalf("expected canceled status, got %s", status)
	}
}

func TestScheduleAfterFailureRetriesAndReports(t *testing.T) {
	var reported atomic.Int32
	scheduler := NewScheduler(WithErrorHandler(func(error) { reported.Add(1) }))
	var attempts atomic.Int32
	boom := errors.New("boom")

	h, err := scheduler.ScheduleAfter(0, JobConfig{Name: "flaky", MaxRetries: 2}, func(context.Context) error {
		attempts.Add(1)
		return boom
	})
	if err != nil {
		t.Fatalf("schedule after: %v", err)
	}

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("expected handle completion")
	}

	if got := attempts.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if h.Status() != StatusFailed || !errors.Is(h.Err(), boom) {
		t.Fatalf("expected failed status with boom, got %s %v", h.Status(), h.Err())
	}
	if reported.Load() != 1 {
		t.Fatalf("expected error handler to be called once, got %d", reported.Load())
	}
}

func TestScheduleAfterRecoversPanic(t *testing.T) {
	scheduler := NewScheduler(WithErrorHandler(func(error) {}))
	h, err := scheduler.ScheduleAfter(0, JobConfig{Name: "panics"}, func(context.Context) error {
		panic("kaboom")
	})
	if err != nil {
		t.Fatalf("schedule after: %v", err)
	}
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("expected handle completion")
	}
	if h.Status() != StatusFailed {
		t.Fatalf("expected failed status, got %s", h.Status())
	}
}

func TestScheduleCronValidation(t *testing.T) {
	scheduler := NewScheduler()
	if _, err := scheduler.ScheduleCron(JobConfig{}, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected empty expression error")
	}
	if _, err := scheduler.ScheduleCron(JobConfig{Expression: "not a cron"}, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := scheduler.ScheduleCron(JobConfig{Expression: "@hourly"}, nil); err == nil {
		t.Fatal("expected nil job error")
	}
}

func TestScheduleCronRunsAndStops(t *testing.T) {
	scheduler := NewScheduler(WithParser(SecondsParser))
	var count atomic.Int32

	h, err := scheduler.ScheduleCron(JobConfig{Name: "tick", Expression: "@every 1s"}, func(context.Context) error {
		count.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("schedule cron: %v", err)
	}
	if _, ok := scheduler.Next(h); !ok {
		t.Fatal("expected a next run time")
	}
	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for count.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected the job to run")
		case <-time.After(50 * time.Millisecond):
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := scheduler.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if h.Status() != StatusStopped {
		t.Fatalf("expected stopped status, got %s", h.Status())
	}
}

type record struct{ Note string }

func TestPurgeJobRemovesIdleSessions(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	clock := now.Add(-2 * time.Hour)
	store := session.New[record](flow.NewInMemoryStateStore(),
		session.WithTTL(time.Hour),
		session.WithClock(func() time.Time { return clock }),
	)
	ctx := context.Background()
	if _, err := store.Create(ctx, session.Record[record]{ID: "old", Role: "doctor", Step: "registering"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	clock = now
	if _, err := store.Create(ctx, session.Record[record]{ID: "fresh", Role: "doctor", Step: "registering"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := PurgeJob(store, nil)(ctx); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := store.Get(ctx, "old"); err == nil {
		t.Fatal("expected idle session to be purged")
	}
	if _, err := store.Get(ctx, "fresh"); err != nil {
		t.Fatalf("expected fresh session to survive: %v", err)
	}
}

func TestSchedulePurgeDisabled(t *testing.T) {
	h, err := SchedulePurge(NewScheduler(), "", nil, nil)
	if err != nil || h != nil {
		t.Fatalf("expected disabled purge, got %v %v", h, err)
	}
}
