package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/logging"
)

// Stats counts what a Handler has done since it was built.
type Stats struct {
	Runs      int
	Succeeded int
	Attempts  int
}

// Handler runs a function under a timeout and a retry budget. With no
// options it calls the function exactly once and never times out.
type Handler struct {
	name       string
	logger     logging.Logger
	onFailure  func(error)
	strategy   RetryStrategy
	maxRetries int
	timeout    time.Duration

	mu    sync.Mutex
	stats Stats
}

func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		logger:    logging.Nop{},
		onFailure: func(error) {},
		strategy:  NoDelayStrategy{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Run calls fn until it returns nil, the retry budget runs out, the
// strategy refuses another attempt or ctx ends. The last error is returned.
func (h *Handler) Run(ctx context.Context, fn func(context.Context) error) error {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	logger := logging.WithFields(h.logger.WithContext(ctx), map[string]any{"runner": h.name})

	attempts, err := 0, error(nil)
	for {
		attempts++
		if err = fn(ctx); err == nil || attempts > h.maxRetries {
			break
		}
		d := DecideRetry(h.strategy, attempts-1, err)
		if !d.Retry {
			logger.Debug("attempt %d failed, giving up (%s): %v", attempts, d.Reason, err)
			break
		}
		logger.Warn("attempt %d of %d failed: %v", attempts, h.maxRetries+1, err)
		if wait(ctx, d.Delay) != nil {
			break
		}
	}

	h.mu.Lock()
	h.stats.Runs++
	h.stats.Attempts += attempts
	if err == nil {
		h.stats.Succeeded++
	}
	h.mu.Unlock()

	if err != nil {
		h.onFailure(fmt.Errorf("%s: %d attempt(s): %w", h.name, attempts, err))
	}
	return err
}

func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RunQuery is Run for functions that produce a value.
func RunQuery[R any](ctx context.Context, h *Handler, q func(context.Context) (R, error)) (R, error) {
	var out R
	err := h.Run(ctx, func(ctx context.Context) (err error) {
		out, err = q(ctx)
		return err
	})
	return out, err
}
