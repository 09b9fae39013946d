package flow

import (
	"fmt"
	"strings"
)

// MachineSet is the top level of a machines file: one definition per entity.
type MachineSet struct {
	Version  int                  `json:"version" yaml:"version"`
	Machines []StateMachineConfig `json:"machines" yaml:"machines"`
}

func (c MachineSet) Validate() error {
	seen := map[string]bool{}
	for i, def := range c.Machines {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("machine[%d]: %w", i, err)
		}
		entity := normalizeState(def.Entity)
		if seen[entity] {
			return fmt.Errorf("machine[%d]: duplicate entity %s", i, def.Entity)
		}
		seen[entity] = true
	}
	return nil
}

// Machine looks a definition up by entity, ignoring case.
func (c MachineSet) Machine(entity string) (StateMachineConfig, bool) {
	for _, def := range c.Machines {
		if normalizeState(def.Entity) == normalizeState(entity) {
			return def, true
		}
	}
	return StateMachineConfig{}, false
}

type StateConfig struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Initial     bool   `json:"initial,omitempty" yaml:"initial,omitempty"`
}

// TransitionConfig is one edge, keyed by (From, Name). Exactly one of To
// and DynamicTo is set. Call names the endpoint the transition talks to.
type TransitionConfig struct {
	Name        string   `json:"name" yaml:"name"`
	From        string   `json:"from" yaml:"from"`
	To          string   `json:"to,omitempty" yaml:"to,omitempty"`
	DynamicTo   string   `json:"dynamic_to,omitempty" yaml:"dynamic_to,omitempty"`
	Guards      []string `json:"guards,omitempty" yaml:"guards,omitempty"`
	Call        string   `json:"call,omitempty" yaml:"call,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

type StateMachineConfig struct {
	Entity          string             `json:"entity" yaml:"entity"`
	Version         string             `json:"version,omitempty" yaml:"version,omitempty"`
	HookFailureMode HookFailureMode    `json:"hook_failure_mode,omitempty" yaml:"hook_failure_mode,omitempty"`
	States          []StateConfig      `json:"states" yaml:"states"`
	Transitions     []TransitionConfig `json:"transitions" yaml:"transitions"`
}

// Validate checks names are present and unique, every edge starts and
// ends in a declared state and at most one state is initial.
func (s StateMachineConfig) Validate() error {
	if strings.TrimSpace(s.Entity) == "" {
		return fmt.Errorf("state machine entity required")
	}
	fail := func(format string, args ...any) error {
		return fmt.Errorf("state machine %s: "+format, append([]any{s.Entity}, args...)...)
	}
	if _, err := parseHookFailureMode(s.HookFailureMode); err != nil {
		return fail("%v", err)
	}
	if len(s.States) == 0 {
		return fail("no states")
	}

	states := map[string]bool{}
	initial := 0
	for _, st := range s.States {
		name := normalizeState(st.Name)
		switch {
		case name == "":
			return fail("empty state name")
		case states[name]:
			return fail("duplicate state %s", st.Name)
		}
		states[name] = true
		if st.Initial {
			initial++
		}
	}
	if initial > 1 {
		return fail("%d initial states", initial)
	}

	edges := map[string]bool{}
	for _, tr := range s.Transitions {
		event, from, to := normalizeEvent(tr.Name), normalizeState(tr.From), normalizeState(tr.To)
		dynamic := strings.TrimSpace(tr.DynamicTo) != ""
		switch {
		case event == "":
			return fail("transition without a name")
		case from == "":
			return fail("transition %s has no from state", tr.Name)
		case !states[from]:
			return fail("transition %s starts in unknown state %s", tr.Name, tr.From)
		case (to == "") != dynamic:
			return fail("transition %s needs exactly one of to and dynamic_to", tr.Name)
		case to != "" && !states[to]:
			return fail("transition %s ends in unknown state %s", tr.Name, tr.To)
		case edges[transitionKey(from, event)]:
			return fail("duplicate transition from=%s event=%s", tr.From, tr.Name)
		}
		edges[transitionKey(from, event)] = true
		for _, g := range tr.Guards {
			if strings.TrimSpace(g) == "" {
				return fail("transition %s has an empty guard", tr.Name)
			}
		}
	}
	return nil
}

// InitialState is the state flagged initial, else the first declared one.
func (s StateMachineConfig) InitialState() string {
	for _, st := range s.States {
		if st.Initial {
			return normalizeState(st.Name)
		}
	}
	if len(s.States) == 0 {
		return ""
	}
	return normalizeState(s.States[0].Name)
}
