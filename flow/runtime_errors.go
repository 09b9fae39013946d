package flow

import (
	"fmt"
	"maps"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	apperrors "github.com/goliatone/go-errors"
)

const ErrCodePreconditionFailed = "FSM_PRECONDITION_FAILED"

var (
	ErrPreconditionFailed = apperrors.New("precondition failed", apperrors.CategoryBadInput).
		WithTextCode(ErrCodePreconditionFailed)
)

func cloneRuntimeError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	if base == nil {
		base = ErrPreconditionFailed
	}
	return monitoring.CloneError(base, message, source, metadata)
}

func invalidTransition(machineID, from, event string) error {
	return cloneRuntimeError(
		monitoring.ErrInvalidTransition,
		fmt.Sprintf("no transition for state=%s event=%s", from, event),
		nil,
		map[string]any{
			"machine_id":         machineID,
			monitoring.MetaFrom:  from,
			monitoring.MetaEvent: event,
		},
	)
}

func guardRejected(ref string, source error, metadata map[string]any) error {
	meta := maps.Clone(metadata)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["guard"] = ref
	message := fmt.Sprintf("guard %s rejected transition", ref)
	if source != nil {
		message += ": " + source.Error()
	}
	return cloneRuntimeError(monitoring.ErrGuardRejected, message, source, meta)
}
