package cron

import (
	"context"
	"time"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/logging"
)

// PurgeJobName labels the idle session purge.
const PurgeJobName = "session-purge"

// Purger removes expired sessions and reports how many went.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}

// PurgeJob wraps p as a scheduled job that logs what it removed.
func PurgeJob(p Purger, logger logging.Logger) Job {
	logger = logging.Normalize(logger)
	return func(ctx context.Context) error {
		started := time.Now()
		n, err := p.Purge(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("purged %d idle sessions in %s", n, time.Since(started).Round(time.Millisecond))
		}
		return nil
	}
}

// SchedulePurge registers the purge on expr. An empty expression disables it.
func SchedulePurge(s *Scheduler, expr string, p Purger, logger logging.Logger) (Handle, error) {
	if expr == "" {
		return nil, nil
	}
	return s.ScheduleCron(JobConfig{
		Name:       PurgeJobName,
		Expression: expr,
		Timeout:    time.Minute,
		MaxRetries: 1,
	}, PurgeJob(p, logger))
}
