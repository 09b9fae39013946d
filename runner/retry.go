package runner

import (
	"math"
	"time"
)

// RetryStrategy returns how long to wait before retrying after the given
// zero-based failed attempt.
type RetryStrategy interface {
	SleepDuration(attempt int, err error) time.Duration
}

// Decision says whether a failed attempt is worth repeating.
type Decision struct {
	Retry  bool
	Delay  time.Duration
	Reason string
}

// RetryDecider is a RetryStrategy that may refuse to retry some errors.
type RetryDecider interface {
	RetryStrategy
	DecideRetry(attempt int, err error) Decision
}

// DecideRetry consults strategy. Plain strategies always retry.
func DecideRetry(strategy RetryStrategy, attempt int, err error) Decision {
	switch s := strategy.(type) {
	case nil:
		return Decision{Retry: true}
	case RetryDecider:
		return s.DecideRetry(attempt, err)
	default:
		return Decision{Retry: true, Delay: s.SleepDuration(attempt, err)}
	}
}

// NoDelayStrategy retries immediately.
type NoDelayStrategy struct{}

func (NoDelayStrategy) SleepDuration(int, error) time.Duration { return 0 }

// ExponentialBackoffStrategy waits Base * Factor^attempt, capped at Max when
// Max is set:
//
//	ExponentialBackoffStrategy{Base: 200 * time.Millisecond, Factor: 2, Max: 2 * time.Second}
type ExponentialBackoffStrategy struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
}

func (e ExponentialBackoffStrategy) SleepDuration(attempt int, _ error) time.Duration {
	factor := e.Factor
	if factor <= 0 {
		factor = 1
	}
	d := time.Duration(float64(e.Base) * math.Pow(factor, float64(max(attempt, 0))))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// RetryIf retries with Strategy only the errors Retryable accepts.
type RetryIf struct {
	Strategy  RetryStrategy
	Retryable func(error) bool
}

func (r RetryIf) SleepDuration(attempt int, err error) time.Duration {
	if r.Strategy == nil {
		return 0
	}
	return r.Strategy.SleepDuration(attempt, err)
}

func (r RetryIf) DecideRetry(attempt int, err error) Decision {
	if r.Retryable != nil && !r.Retryable(err) {
		return Decision{Reason: "not retryable"}
	}
	return Decision{Retry: true, Delay: r.SleepDuration(attempt, err)}
}
