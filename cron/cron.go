// Package cron runs maintenance jobs, such as the idle session purge, on
// cron expressions.
package cron

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/logging"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/runner"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// JobConfig describes how a job is scheduled and run.
type JobConfig struct {
	Name       string
	Expression string
	Timeout    time.Duration
	MaxRetries int
}

// Scheduler wraps robfig/cron with status tracked handles.
type Scheduler struct {
	mu           sync.Mutex
	cron         *rcron.Cron
	location     *time.Location
	parser       Parser
	logger       logging.Logger
	errorHandler func(error)

	nextHandleID int64
	handles      map[int64]*handle
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		location: time.Local,
		parser:   DefaultParser,
		logger:   logging.Nop{},
		handles:  make(map[int64]*handle),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.errorHandler == nil {
		s.errorHandler = func(err error) {
			s.logger.Error("scheduled job failed: %v", err)
		}
	}
	s.cron = rcron.New(s.build()...)
	return s
}

// ScheduleCron runs job every time expr fires.
func (s *Scheduler) ScheduleCron(cfg JobConfig, job Job) (Handle, error) {
	if strings.TrimSpace(cfg.Expression) == "" {
		return nil, fmt.Errorf("cron expression cannot be empty")
	}
	if job == nil {
		return nil, fmt.Errorf("job %q is nil", cfg.Name)
	}
	run := s.runnable(cfg, job)

	h := s.newHandle(cfg.Name)
	entryID, err := s.cron.AddJob(cfg.Expression, rcron.FuncJob(func() {
		if h.closed() {
			return
		}
		h.setStatus(StatusRunning, nil)
		if err := run(); err != nil {
			h.setStatus(StatusFailed, err)
			s.errorHandler(err)
			return
		}
		h.setStatus(StatusIdle, nil)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to add job %s: %w", cfg.Name, err)
	}
	h.entryID = entryID
	s.store(h)
	return h, nil
}

// ScheduleAfter runs job once after delay.
func (s *Scheduler) ScheduleAfter(delay time.Duration, cfg JobConfig, job Job) (Handle, error) {
	if job == nil {
		return nil, fmt.Errorf("job %q is nil", cfg.Name)
	}
	if delay < 0 {
		delay = 0
	}
	run := s.runnable(cfg, job)
	h := s.newHandle(cfg.Name)
	s.store(h)

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-h.Done():
			return
		}
		if h.closed() {
			return
		}
		h.setStatus(StatusRunning, nil)
		err := run()
		s.forget(h.id)
		if err != nil {
			h.setTerminal(StatusFailed, err)
			s.errorHandler(err)
			return
		}
		h.setTerminal(StatusCompleted, nil)
	}()
	return h, nil
}

// Next reports when the handle's cron entry fires next.
func (s *Scheduler) Next(h Handle) (time.Time, bool) {
	ch, ok := h.(*handle)
	if !ok || ch.entryID == 0 {
		return time.Time{}, false
	}
	entry := s.cron.Entry(ch.entryID)
	if !entry.Valid() {
		return time.Time{}, false
	}
	return entry.Next, true
}

func (s *Scheduler) Start(_ context.Context) error {
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waits for running jobs or ctx and marks every
// remaining handle stopped.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()

	s.mu.Lock()
	handles := make([]*handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.handles = make(map[int64]*handle)
	s.mu.Unlock()

	for _, h := range handles {
		if h.entryID != 0 {
			s.cron.Remove(h.entryID)
		}
		h.setTerminal(StatusStopped, nil)
	}

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runnable wraps job with the runner's timeout and retry budget and turns a
// panic into an error.
func (s *Scheduler) runnable(cfg JobConfig, job Job) func() error {
	h := runner.NewHandler(
		runner.WithName(cfg.Name),
		runner.WithTimeout(cfg.Timeout),
		runner.WithMaxRetries(cfg.MaxRetries),
		runner.WithLogger(s.logger),
	)
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error(monitoring.FormatPanic(cfg.Name, r, debug.Stack()))
				err = fmt.Errorf("job %s panicked: %v", cfg.Name, r)
			}
		}()
		return h.Run(context.Background(), func(ctx context.Context) error {
			return job(ctx)
		})
	}
}

func (s *Scheduler) remove(id int64) {
	h := s.forget(id)
	if h != nil && h.entryID != 0 {
		s.cron.Remove(h.entryID)
	}
}

func (s *Scheduler) forget(id int64) *handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.handles[id]
	delete(s.handles, id)
	return h
}

func (s *Scheduler) store(h *handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[h.id] = h
}

func (s *Scheduler) newHandle(name string) *handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHandleID++
	return &handle{
		scheduler: s,
		id:        s.nextHandleID,
		name:      name,
		status:    StatusScheduled,
		done:      make(chan struct{}),
	}
}

func (s *Scheduler) build() []rcron.Option {
	opts := []rcron.Option{}
	if s.location != nil {
		opts = append(opts, rcron.WithLocation(s.location))
	}
	switch s.parser {
	case StandardParser:
		opts = append(opts, rcron.WithParser(rcron.NewParser(
			rcron.Minute|rcron.Hour|rcron.Dom|rcron.Month|rcron.Dow|rcron.Descriptor,
		)))
	case SecondsParser:
		opts = append(opts, rcron.WithParser(rcron.NewParser(
			rcron.Second|rcron.Minute|rcron.Hour|rcron.Dom|rcron.Month|rcron.Dow|rcron.Descriptor,
		)))
	}

	cronLogger := loggerAdapter{logger: s.logger}
	opts = append(opts,
		rcron.WithLogger(cronLogger),
		rcron.WithChain(rcron.Recover(cronLogger)),
	)
	return opts
}
