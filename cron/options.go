package cron

import (
	"time"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/logging"
)

// Parser selects the cron expression dialect.
type Parser int

const (
	DefaultParser Parser = iota
	StandardParser
	SecondsParser
)

type Option func(*Scheduler)

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.location = loc
	}
}

func WithLogger(l logging.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logging.Normalize(l)
	}
}

// WithErrorHandler receives every failed run.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) {
		s.errorHandler = fn
	}
}

func WithParser(p Parser) Option {
	return func(s *Scheduler) {
		s.parser = p
	}
}

// loggerAdapter adapts logging.Logger to robfig/cron's logger.
type loggerAdapter struct {
	logger logging.Logger
}

func (l loggerAdapter) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: %s %v", msg, keysAndValues)
}

func (l loggerAdapter) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: %s %v: %v", msg, keysAndValues, err)
}
