package cron

import (
	"sync"

	rcron "github.com/robfig/cron/v3"
)

// Status reports a scheduled job's state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusIdle      Status = "idle"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// Handle controls one scheduled job.
type Handle interface {
	Cancel()
	Status() Status
	Err() error
	Done() <-chan struct{}
	ID() int64
	Name() string
}

type handle struct {
	scheduler *Scheduler
	id        int64
	name      string
	entryID   rcron.EntryID
	done      chan struct{}

	mu     sync.RWMutex
	status Status
	err    error
	once   sync.Once
}

func (h *handle) Cancel() {
	h.once.Do(func() {
		h.scheduler.remove(h.id)
		h.setTerminal(StatusCanceled, nil)
	})
}

func (h *handle) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Err is the error of the last failed run.
func (h *handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

func (h *handle) Done() <-chan struct{} { return h.done }
func (h *handle) ID() int64             { return h.id }
func (h *handle) Name() string          { return h.name }

func (h *handle) setStatus(status Status, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed() {
		return
	}
	h.status = status
	h.err = err
}

// setTerminal records the final status once; later calls are ignored.
func (h *handle) setTerminal(status Status, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return
	default:
	}
	h.status = status
	h.err = err
	close(h.done)
}

func (h *handle) closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
