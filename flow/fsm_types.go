package flow

import "context"

// Guard is a runtime guard predicate. A nil error allows the transition.
type Guard[T any] func(ctx context.Context, subject T) error

// DynamicTargetResolver resolves transition targets at runtime.
type DynamicTargetResolver[T any] func(ctx context.Context, subject T) (string, error)

// ResolverRegistry resolves guard and dynamic target references.
type ResolverRegistry[T any] interface {
	Guard(ref string) (Guard[T], bool)
	DynamicTarget(ref string) (DynamicTargetResolver[T], bool)
}

// Plan is a transition selected for a state and event whose guards passed.
// To is empty when the target is resolved after the external call.
type Plan struct {
	MachineID    string
	TransitionID string
	Event        string
	From         string
	To           string
	Resolver     string
	Call         string
}

// Dynamic reports whether the target still needs resolving.
func (p Plan) Dynamic() bool {
	return p.To == ""
}

// TransitionInfo describes one transition leaving a state.
type TransitionInfo struct {
	ID          string
	Event       string
	Target      TargetInfo
	Call        string
	Description string
	Allowed     bool
	Reason      string
}

// TargetInfo captures static/dynamic target metadata.
type TargetInfo struct {
	Kind       string
	To         string
	Resolver   string
	Candidates []string
}

type compiledTransition[T any] struct {
	ID              string
	Event           string
	From            string
	To              string
	DynamicResolver string
	DynamicTo       DynamicTargetResolver[T]
	Call            string
	Description     string
	GuardRefs       []string
	Guards          []Guard[T]
}
