package runner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type countingFunc struct {
	calls     int
	failUntil int
}

func (c *countingFunc) fn(context.Context) error {
	c.calls++
	if c.calls <= c.failUntil {
		return errors.New("fail")
	}
	return nil
}

func TestHandler_DefaultRunsOnce(t *testing.T) {
	h := NewHandler()

	cf := countingFunc{failUntil: 5}
	if err := h.Run(context.Background(), cf.fn); err == nil {
		t.Fatal("expected error")
	}
	if cf.calls != 1 {
		t.Errorf("expected calls=1, got %d", cf.calls)
	}
	if got := h.Stats(); got != (Stats{Runs: 1, Attempts: 1}) {
		t.Errorf("unexpected stats %+v", got)
	}
}

func TestHandler_SuccessOnSecondAttempt(t *testing.T) {
	h := NewHandler(WithMaxRetries(3))

	cf := countingFunc{failUntil: 1}
	if err := h.Run(context.Background(), cf.fn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cf.calls != 2 {
		t.Errorf("expected calls=2, got %d", cf.calls)
	}
	if got := h.Stats(); got.Succeeded != 1 || got.Attempts != 2 {
		t.Errorf("unexpected stats %+v", got)
	}
}

func TestHandler_AllAttemptsFail(t *testing.T) {
	var reported error
	h := NewHandler(WithMaxRetries(2), WithName("lookup"), WithErrorHandler(func(err error) { reported = err }))

	cf := countingFunc{failUntil: 5}
	err := h.Run(context.Background(), cf.fn)
	if err == nil {
		t.Fatal("expected error")
	}
	if cf.calls != 3 {
		t.Errorf("expected calls=3 (1 initial + 2 retries), got %d", cf.calls)
	}
	if reported == nil || !strings.HasPrefix(reported.Error(), "lookup: 3 attempt(s)") {
		t.Fatalf("expected error handler to see the failure, got %v", reported)
	}
}

func TestHandler_DeciderVetoStopsRetries(t *testing.T) {
	permanent := errors.New("permanent")
	h := NewHandler(
		WithMaxRetries(5),
		WithRetryStrategy(RetryIf{
			Strategy:  NoDelayStrategy{},
			Retryable: func(err error) bool { return !errors.Is(err, permanent) },
		}),
	)

	calls := 0
	err := h.Run(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestHandler_TimeoutAppliesToContext(t *testing.T) {
	h := NewHandler(WithTimeout(20 * time.Millisecond))

	err := h.Run(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestHandler_CancelledContextStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHandler(WithMaxRetries(3), WithRetryStrategy(ExponentialBackoffStrategy{Base: time.Hour, Factor: 2}))

	calls := 0
	start := time.Now()
	_ = h.Run(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if time.Since(start) > time.Second {
		t.Fatal("backoff did not honour cancellation")
	}
}

func TestRunQuery(t *testing.T) {
	h := NewHandler(WithMaxRetries(1))
	attempt := 0
	got, err := RunQuery(context.Background(), h, func(context.Context) (string, error) {
		attempt++
		if attempt == 1 {
			return "", errors.New("transient")
		}
		return "schema", nil
	})
	if err != nil || got != "schema" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
}
