package flow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/logging"
)

// Machine is a compiled transition table for one entity. It holds no
// per-entity state: callers pass the current state in and persist the
// resolved target themselves.
type Machine[T any] struct {
	id          string
	version     string
	initial     string
	states      []string
	transitions map[string]compiledTransition[T]
	order       []string
	hooks       TransitionLifecycleHooks
	hookMode    HookFailureMode
	logger      logging.Logger
	now         func() time.Time
}

// MachineOption configures optional machine behavior.
type MachineOption[T any] func(*Machine[T])

// WithLogger sets the machine logger.
func WithLogger[T any](logger logging.Logger) MachineOption[T] {
	return func(m *Machine[T]) {
		m.logger = logging.Normalize(logger)
	}
}

// WithLifecycleHooks appends lifecycle hooks.
func WithLifecycleHooks[T any](hooks ...TransitionLifecycleHook) MachineOption[T] {
	return func(m *Machine[T]) {
		m.hooks = append(m.hooks, hooks...)
	}
}

// WithHookFailureMode overrides the configured hook failure mode.
func WithHookFailureMode[T any](mode HookFailureMode) MachineOption[T] {
	return func(m *Machine[T]) {
		m.hookMode, _ = parseHookFailureMode(mode)
	}
}

// WithClock overrides the lifecycle event timestamp source.
func WithClock[T any](now func() time.Time) MachineOption[T] {
	return func(m *Machine[T]) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMachine compiles cfg, resolving every guard and dynamic target
// reference up front.
func NewMachine[T any](cfg StateMachineConfig, resolvers ResolverRegistry[T], opts ...MachineOption[T]) (*Machine[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hookMode, _ := parseHookFailureMode(cfg.HookFailureMode)
	m := &Machine[T]{
		id:          normalizeState(cfg.Entity),
		version:     strings.TrimSpace(cfg.Version),
		initial:     cfg.InitialState(),
		transitions: make(map[string]compiledTransition[T], len(cfg.Transitions)),
		hookMode:    hookMode,
		logger:      logging.Nop{},
		now:         time.Now,
	}
	if m.version == "" {
		m.version = "v1"
	}
	for _, st := range cfg.States {
		m.states = append(m.states, normalizeState(st.Name))
	}
	for _, tr := range cfg.Transitions {
		ct := compiledTransition[T]{
			ID:          transitionKey(normalizeState(tr.From), normalizeEvent(tr.Name)),
			Event:       normalizeEvent(tr.Name),
			From:        normalizeState(tr.From),
			To:          normalizeState(tr.To),
			Call:        strings.TrimSpace(tr.Call),
			Description: strings.TrimSpace(tr.Description),
		}
		for _, ref := range tr.Guards {
			ref = strings.TrimSpace(ref)
			if resolvers == nil {
				return nil, fmt.Errorf("state machine %s transition %s: guard %s requires a resolver registry", m.id, ct.ID, ref)
			}
			guard, ok := resolvers.Guard(ref)
			if !ok {
				return nil, fmt.Errorf("state machine %s transition %s: unknown guard %s", m.id, ct.ID, ref)
			}
			ct.GuardRefs = append(ct.GuardRefs, ref)
			ct.Guards = append(ct.Guards, guard)
		}
		if ref := strings.TrimSpace(tr.DynamicTo); ref != "" {
			if resolvers == nil {
				return nil, fmt.Errorf("state machine %s transition %s: dynamic target %s requires a resolver registry", m.id, ct.ID, ref)
			}
			resolver, ok := resolvers.DynamicTarget(ref)
			if !ok {
				return nil, fmt.Errorf("state machine %s transition %s: unknown dynamic target %s", m.id, ct.ID, ref)
			}
			ct.DynamicResolver = ref
			ct.DynamicTo = resolver
		}
		m.transitions[ct.ID] = ct
		m.order = append(m.order, ct.ID)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

func (m *Machine[T]) ID() string      { return m.id }
func (m *Machine[T]) Version() string { return m.version }
func (m *Machine[T]) Initial() string { return m.initial }

// States returns state names in declaration order.
func (m *Machine[T]) States() []string {
	return append([]string(nil), m.states...)
}

// HasState reports whether state is declared.
func (m *Machine[T]) HasState(state string) bool {
	state = normalizeState(state)
	for _, st := range m.states {
		if st == state {
			return true
		}
	}
	return false
}

// Can reports whether a transition exists for state and event, ignoring guards.
func (m *Machine[T]) Can(state, event string) bool {
	_, ok := m.transitions[transitionKey(normalizeState(state), normalizeEvent(event))]
	return ok
}

// Plan selects the transition for current and event and evaluates its
// guards in order. The first rejecting guard wins.
func (m *Machine[T]) Plan(ctx context.Context, current, event string, subject T) (Plan, error) {
	current = normalizeState(current)
	event = normalizeEvent(event)
	tr, ok := m.transitions[transitionKey(current, event)]
	if !ok {
		return Plan{}, invalidTransition(m.id, current, event)
	}
	fields := map[string]any{
		"machine_id":         m.id,
		"transition_id":      tr.ID,
		monitoring.MetaFrom:  current,
		monitoring.MetaEvent: event,
	}
	for idx, guard := range tr.Guards {
		if err := guard(ctx, subject); err != nil {
			return Plan{}, guardRejected(tr.GuardRefs[idx], err, fields)
		}
	}
	return Plan{
		MachineID:    m.id,
		TransitionID: tr.ID,
		Event:        tr.Event,
		From:         tr.From,
		To:           tr.To,
		Resolver:     tr.DynamicResolver,
		Call:         tr.Call,
	}, nil
}

// Resolve returns the target state of plan, running its dynamic resolver
// against subject when the target is not static.
func (m *Machine[T]) Resolve(ctx context.Context, plan Plan, subject T) (string, error) {
	if to := normalizeState(plan.To); to != "" {
		return to, nil
	}
	tr, ok := m.transitions[plan.TransitionID]
	if !ok {
		return "", invalidTransition(m.id, plan.From, plan.Event)
	}
	fields := map[string]any{
		"machine_id":    m.id,
		"transition_id": tr.ID,
		"resolver":      tr.DynamicResolver,
	}
	if tr.DynamicTo == nil {
		return "", cloneRuntimeError(monitoring.ErrInvalidTransition, "dynamic target resolver not configured", nil, fields)
	}
	to, err := tr.DynamicTo(ctx, subject)
	if err != nil {
		return "", cloneRuntimeError(monitoring.ErrInvalidTransition, "dynamic target resolution failed", err, fields)
	}
	to = normalizeState(to)
	if !m.HasState(to) {
		return "", cloneRuntimeError(monitoring.ErrInvalidTransition, fmt.Sprintf("dynamic target resolved to unknown state %q", to), nil, fields)
	}
	return to, nil
}

// Available lists the transitions leaving current in declaration order,
// flagging the ones whose guards currently reject subject.
func (m *Machine[T]) Available(ctx context.Context, current string, subject T) []TransitionInfo {
	current = normalizeState(current)
	var out []TransitionInfo
	for _, id := range m.order {
		tr := m.transitions[id]
		if tr.From != current {
			continue
		}
		info := TransitionInfo{
			ID:          tr.ID,
			Event:       tr.Event,
			Call:        tr.Call,
			Description: tr.Description,
			Allowed:     true,
			Target:      m.targetInfo(tr),
		}
		for idx, guard := range tr.Guards {
			if err := guard(ctx, subject); err != nil {
				info.Allowed = false
				info.Reason = fmt.Sprintf("%s: %v", tr.GuardRefs[idx], err)
				break
			}
		}
		out = append(out, info)
	}
	return out
}

func (m *Machine[T]) targetInfo(tr compiledTransition[T]) TargetInfo {
	if tr.To != "" {
		return TargetInfo{Kind: "static", To: tr.To}
	}
	candidates := append([]string(nil), m.states...)
	sort.Strings(candidates)
	return TargetInfo{Kind: "dynamic", Resolver: tr.DynamicResolver, Candidates: candidates}
}

// Emit fans evt out to the lifecycle hooks. Only fail_closed machines
// return hook errors.
func (m *Machine[T]) Emit(ctx context.Context, evt TransitionLifecycleEvent) error {
	if evt.MachineID == "" {
		evt.MachineID = m.id
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = m.now().UTC()
	}
	return m.hooks.notify(ctx, evt, m.hookMode, m.logger)
}

// LifecycleEvent builds an event for plan. err, when set, fills the
// error code and message.
func (m *Machine[T]) LifecycleEvent(phase TransitionPhase, entityID string, plan Plan, current string, err error) TransitionLifecycleEvent {
	evt := TransitionLifecycleEvent{
		Phase:         phase,
		MachineID:     m.id,
		EntityID:      entityID,
		Event:         plan.Event,
		TransitionID:  plan.TransitionID,
		PreviousState: plan.From,
		CurrentState:  normalizeState(current),
		OccurredAt:    m.now().UTC(),
	}
	if err != nil {
		evt.ErrorCode = monitoring.Code(err)
		evt.ErrorMessage = err.Error()
	}
	return evt
}

func transitionKey(state, event string) string {
	return state + "::" + event
}

func normalizeState(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeEvent(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
