package runner

import (
	"time"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/logging"
)

type Option func(*Handler)

// WithTimeout bounds one Run, retries and backoff included. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// WithMaxRetries allows n extra attempts after the first failure.
func WithMaxRetries(n int) Option {
	return func(h *Handler) { h.maxRetries = max(n, 0) }
}

// WithErrorHandler is told about every Run that ends in failure.
func WithErrorHandler(fn func(error)) Option {
	return func(h *Handler) {
		if fn != nil {
			h.onFailure = fn
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithRetryStrategy(s RetryStrategy) Option {
	return func(h *Handler) {
		if s != nil {
			h.strategy = s
		}
	}
}

func WithName(name string) Option {
	return func(h *Handler) { h.name = name }
}
