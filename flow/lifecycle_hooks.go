package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/logging"
)

type TransitionPhase string

const (
	TransitionPhaseAttempted TransitionPhase = "attempted"
	TransitionPhaseCommitted TransitionPhase = "committed"
	TransitionPhaseRejected  TransitionPhase = "rejected"
)

// HookFailureMode decides whether a failing hook aborts the transition
// (fail_closed) or is only logged (fail_open, the default).
type HookFailureMode string

const (
	HookFailureModeFailOpen   HookFailureMode = "fail_open"
	HookFailureModeFailClosed HookFailureMode = "fail_closed"
)

// parseHookFailureMode maps "" to fail_open and rejects unknown modes.
func parseHookFailureMode(mode HookFailureMode) (HookFailureMode, error) {
	switch m := HookFailureMode(strings.ToLower(strings.TrimSpace(string(mode)))); m {
	case "", HookFailureModeFailOpen:
		return HookFailureModeFailOpen, nil
	case HookFailureModeFailClosed:
		return m, nil
	default:
		return HookFailureModeFailOpen, fmt.Errorf("invalid hook_failure_mode %q", mode)
	}
}

// TransitionLifecycleEvent is what hooks see for every attempted,
// committed or rejected transition.
type TransitionLifecycleEvent struct {
	Phase         TransitionPhase `json:"phase"`
	MachineID     string          `json:"machine_id"`
	EntityID      string          `json:"entity_id"`
	Event         string          `json:"event"`
	TransitionID  string          `json:"transition_id,omitempty"`
	PreviousState string          `json:"previous_state"`
	CurrentState  string          `json:"current_state"`
	Version       int             `json:"version,omitempty"`
	ErrorCode     string          `json:"error_code,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

type TransitionLifecycleHook interface {
	Notify(ctx context.Context, evt TransitionLifecycleEvent) error
}

type TransitionLifecycleHookFunc func(ctx context.Context, evt TransitionLifecycleEvent) error

func (f TransitionLifecycleHookFunc) Notify(ctx context.Context, evt TransitionLifecycleEvent) error {
	return f(ctx, evt)
}

type TransitionLifecycleHooks []TransitionLifecycleHook

// notify calls every hook in order. In fail_closed mode the first error
// stops the fan-out and is returned as a precondition failure.
func (hs TransitionLifecycleHooks) notify(ctx context.Context, evt TransitionLifecycleEvent, mode HookFailureMode, logger logging.Logger) error {
	for i, hook := range hs {
		if hook == nil {
			continue
		}
		err := hook.Notify(ctx, evt)
		if err == nil {
			continue
		}
		fields := map[string]any{
			"machine_id": evt.MachineID,
			"entity_id":  evt.EntityID,
			"event":      evt.Event,
			"phase":      string(evt.Phase),
			"hook":       i,
		}
		if mode == HookFailureModeFailClosed {
			return cloneRuntimeError(ErrPreconditionFailed, "lifecycle hook failed", err, fields)
		}
		logging.WithFields(logger.WithContext(ctx), fields).Warn("lifecycle hook failed: %v", err)
	}
	return nil
}

// LoggingHook logs rejections at warn, commits at info and attempts at debug.
type LoggingHook struct {
	Logger logging.Logger
}

func (h LoggingHook) Notify(ctx context.Context, evt TransitionLifecycleEvent) error {
	logger := logging.WithFields(logging.Normalize(h.Logger).WithContext(ctx), map[string]any{
		"machine_id": evt.MachineID,
		"entity_id":  evt.EntityID,
		"event":      evt.Event,
		"phase":      string(evt.Phase),
	})
	switch evt.Phase {
	case TransitionPhaseRejected:
		logger.Warn("%s rejected in %s: %s (%s)", evt.Event, evt.PreviousState, evt.ErrorMessage, evt.ErrorCode)
	case TransitionPhaseCommitted:
		logger.Info("%s committed %s -> %s (v%d)", evt.Event, evt.PreviousState, evt.CurrentState, evt.Version)
	default:
		logger.Debug("%s attempted from %s", evt.Event, evt.PreviousState)
	}
	return nil
}
