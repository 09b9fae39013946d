package flow

import (
	"context"
	"errors"
	"strings"
)

// ResolverMap holds the named guards and dynamic targets a machine
// definition refers to. Names are matched after trimming spaces.
type ResolverMap[T any] struct {
	guards  map[string]Guard[T]
	targets map[string]DynamicTargetResolver[T]
}

func NewResolverMap[T any]() *ResolverMap[T] {
	return &ResolverMap[T]{
		guards:  map[string]Guard[T]{},
		targets: map[string]DynamicTargetResolver[T]{},
	}
}

// RegisterGuard binds ref to guard, replacing any earlier binding.
func (r *ResolverMap[T]) RegisterGuard(ref string, guard Guard[T]) {
	if ref = strings.TrimSpace(ref); ref != "" && guard != nil {
		r.guards[ref] = guard
	}
}

// RegisterPredicate binds ref to a guard that fails with reason whenever
// pred returns false.
func (r *ResolverMap[T]) RegisterPredicate(ref, reason string, pred func(T) bool) {
	if pred == nil {
		return
	}
	rejection := errors.New(reason)
	r.RegisterGuard(ref, func(_ context.Context, subject T) error {
		if !pred(subject) {
			return rejection
		}
		return nil
	})
}

func (r *ResolverMap[T]) RegisterDynamicTarget(ref string, resolver DynamicTargetResolver[T]) {
	if ref = strings.TrimSpace(ref); ref != "" && resolver != nil {
		r.targets[ref] = resolver
	}
}

func (r *ResolverMap[T]) Guard(ref string) (Guard[T], bool) {
	g, ok := r.guards[strings.TrimSpace(ref)]
	return g, ok
}

func (r *ResolverMap[T]) DynamicTarget(ref string) (DynamicTargetResolver[T], bool) {
	fn, ok := r.targets[strings.TrimSpace(ref)]
	return fn, ok
}
