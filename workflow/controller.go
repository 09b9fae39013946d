// Package workflow drives the doctor and patient sessions. Each user
// action is one handling pass: load the session, check the transition,
// perform at most one external call, reduce, save.
package workflow

import (
	"context"
	"strings"
	"time"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/client"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/flow"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/form"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/identity"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/logging"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/schema"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/session"
)

// Snapshot is a session with the transitions it currently offers.
type Snapshot struct {
	SessionID string                `json:"sessionId"`
	Role      monitoring.Role       `json:"role"`
	Step      Step                  `json:"step"`
	Version   int                   `json:"version"`
	State     State                 `json:"state"`
	Available []flow.TransitionInfo `json:"available"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// Result describes one committed handling pass.
type Result struct {
	Snapshot
	Event    string           `json:"event"`
	Previous Step             `json:"previous"`
	Response *client.Response `json:"-"`
}

type Controller struct {
	machines   map[monitoring.Role]*flow.Machine[Subject]
	sessions   *session.Store[State]
	sender     client.Sender
	normalizer *schema.Normalizer
	ids        *identity.Generator
	logger     logging.Logger
	hooks      []flow.TransitionLifecycleHook
}

type Option func(*Controller)

func WithLogger(l logging.Logger) Option {
	return func(c *Controller) {
		c.logger = logging.Normalize(l)
	}
}

func WithIdentityGenerator(g *identity.Generator) Option {
	return func(c *Controller) {
		if g != nil {
			c.ids = g
		}
	}
}

// WithLifecycleHooks adds hooks notified on every attempted, committed and
// rejected transition.
func WithLifecycleHooks(hooks ...flow.TransitionLifecycleHook) Option {
	return func(c *Controller) {
		c.hooks = append(c.hooks, hooks...)
	}
}

func NewController(sessions *session.Store[State], sender client.Sender, opts ...Option) (*Controller, error) {
	c := &Controller{
		sessions: sessions,
		sender:   sender,
		ids:      identity.NewGenerator(),
		logger:   logging.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.normalizer = schema.NewNormalizer(c.logger)
	hooks := append([]flow.TransitionLifecycleHook{flow.LoggingHook{Logger: c.logger}}, c.hooks...)
	machines, err := LoadMachines(
		flow.WithLogger[Subject](c.logger),
		flow.WithLifecycleHooks[Subject](hooks...),
	)
	if err != nil {
		return nil, err
	}
	c.machines = machines
	return c, nil
}

// Start opens a new session for role in its initial step.
func (c *Controller) Start(ctx context.Context, role monitoring.Role) (Snapshot, error) {
	if !role.Valid() {
		return Snapshot{}, monitoring.InvalidValue("role", "unknown role "+string(role))
	}
	id := c.sessions.NewID()
	rec, err := c.sessions.Create(ctx, session.Record[State]{
		ID:    id,
		Role:  role,
		Step:  string(InitialStep(role)),
		State: NewState(id, role),
	})
	if err != nil {
		return Snapshot{}, err
	}
	c.logger.Info("session %s started as %s", rec.ID, role)
	return c.snapshot(ctx, rec), nil
}

// Snapshot loads a session.
func (c *Controller) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	rec, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	return c.snapshot(ctx, rec), nil
}

// End deletes a session.
func (c *Controller) End(ctx context.Context, sessionID string) error {
	return c.sessions.Delete(ctx, sessionID)
}

// Handle runs one handling pass for evt. A failed pass leaves the stored
// session untouched.
func (c *Controller) Handle(ctx context.Context, sessionID string, evt Event) (Result, error) {
	if err := monitoring.ValidateMessage(evt); err != nil {
		return Result{}, err
	}
	rec, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	machine, ok := c.machines[rec.Role]
	if !ok {
		return Result{}, monitoring.InvalidValue("role", "no workflow for role "+string(rec.Role))
	}
	current := rec.State.Step
	logger := logging.WithFields(c.logger.WithContext(ctx), map[string]any{
		"session_id": rec.ID,
		"role":       string(rec.Role),
		"event":      evt.Type(),
		"step":       string(current),
	})

	subject := Subject{State: rec.State, Event: evt}
	plan, err := machine.Plan(ctx, string(current), evt.Type(), subject)
	if err != nil {
		logger.Warn("event refused: %v", err)
		c.emit(ctx, machine, flow.TransitionPhaseRejected, rec.ID, flow.Plan{Event: evt.Type(), From: string(current)}, string(current), err)
		return Result{}, err
	}
	if err := machine.Emit(ctx, machine.LifecycleEvent(flow.TransitionPhaseAttempted, rec.ID, plan, string(current), nil)); err != nil {
		return Result{}, err
	}

	outcome, resp, err := c.execute(ctx, rec.State, evt)
	if err != nil {
		logger.Warn("event failed: %s", monitoring.UserMessage(err))
		c.emit(ctx, machine, flow.TransitionPhaseRejected, rec.ID, plan, string(current), err)
		return Result{}, err
	}

	subject.Outcome = outcome
	to, err := machine.Resolve(ctx, plan, subject)
	if err != nil {
		c.emit(ctx, machine, flow.TransitionPhaseRejected, rec.ID, plan, string(current), err)
		return Result{}, err
	}

	rec.State = Reduce(rec.State, Transition{Event: evt, To: Step(to), Outcome: outcome})
	rec.Step = to
	saved, err := c.sessions.Set(ctx, rec)
	if err != nil {
		logger.Error("saving session failed: %v", err)
		c.emit(ctx, machine, flow.TransitionPhaseRejected, rec.ID, plan, string(current), err)
		return Result{}, err
	}

	committed := machine.LifecycleEvent(flow.TransitionPhaseCommitted, rec.ID, plan, to, nil)
	committed.Version = saved.Version
	if err := machine.Emit(ctx, committed); err != nil {
		logger.Warn("committed lifecycle dispatch failed post-commit: %v", err)
	}

	return Result{
		Snapshot: c.snapshot(ctx, saved),
		Event:    evt.Type(),
		Previous: current,
		Response: resp,
	}, nil
}

func (c *Controller) emit(ctx context.Context, m *flow.Machine[Subject], phase flow.TransitionPhase, id string, plan flow.Plan, current string, cause error) {
	if err := m.Emit(ctx, m.LifecycleEvent(phase, id, plan, current, cause)); err != nil {
		c.logger.Warn("lifecycle dispatch failed: %v", err)
	}
}

// execute performs the event's single external call, if it has one.
func (c *Controller) execute(ctx context.Context, st State, evt Event) (Outcome, *client.Response, error) {
	switch e := evt.(type) {
	case Register:
		id := form.PatientIdentity{
			PatientID:   c.ids.Generate(e.PatientName),
			DoctorName:  strings.TrimSpace(e.DoctorName),
			PatientName: strings.TrimSpace(e.PatientName),
			Age:         e.Age,
			SurgeryType: strings.TrimSpace(e.SurgeryType),
		}
		resp, err := c.send(ctx, monitoring.RoleDoctor, form.ActionRegister, form.Request{Identity: &id})
		return Outcome{Identity: &id}, resp, err

	case SubmitManual:
		resp, err := c.send(ctx, monitoring.RoleDoctor, form.ActionManualSetup, form.Request{
			Identity:   st.Doctor.Identity,
			Parameters: e.Parameters,
		})
		return Outcome{}, resp, err

	case TriggerAI:
		resp, err := c.send(ctx, monitoring.RoleDoctor, form.ActionAISetup, form.Request{Identity: st.Doctor.Identity})
		return Outcome{}, resp, err

	case Login:
		ident := e.Identification()
		resp, err := c.send(ctx, monitoring.RolePatient, form.ActionLookup, form.Request{Identification: &ident})
		if err != nil {
			return Outcome{}, nil, err
		}
		out := Outcome{Identification: &ident}
		fetched, warnings, schemaErr := c.normalizer.NormalizeJSON(resp.Body)
		if schemaErr != nil {
			out.SchemaErr = schemaErr
		} else {
			out.Schema, out.Warnings = fetched, warnings
		}
		return out, resp, nil

	case FetchSchema:
		payload, err := form.Build(monitoring.RolePatient, form.ActionFetchSchema, form.Request{Identification: st.Patient.Identification})
		if err != nil {
			return Outcome{}, nil, err
		}
		fetched, err := client.NewSchemaFetcher(c.sender, c.normalizer).Fetch(ctx, client.WorkflowSchema, payload)
		if err != nil {
			return Outcome{}, nil, err
		}
		return Outcome{Schema: fetched.Schema, Warnings: fetched.Warnings}, &fetched.Response, nil

	case Capture:
		captured, err := capture(st.Patient, map[string]Input{e.FieldID: e.Input})
		return Outcome{Captured: captured}, nil, err

	case SubmitField:
		inputs := map[string]Input{}
		if e.Input != nil {
			inputs[e.FieldID] = *e.Input
		}
		captured, err := capture(st.Patient, inputs)
		if err != nil {
			return Outcome{}, nil, err
		}
		resp, err := c.send(ctx, monitoring.RolePatient, form.ActionSubmitField, form.Request{
			Identification: st.Patient.Identification,
			Specs:          st.Patient.Widgets,
			Captured:       captured,
			FieldID:        e.FieldID,
		})
		return Outcome{Captured: captured}, resp, err

	case SubmitAll:
		captured, err := capture(st.Patient, e.Inputs)
		if err != nil {
			return Outcome{}, nil, err
		}
		resp, err := c.send(ctx, monitoring.RolePatient, form.ActionSubmitAll, form.Request{
			Identification: st.Patient.Identification,
			Specs:          st.Patient.Widgets,
			Captured:       captured,
		})
		return Outcome{Captured: captured}, resp, err
	}
	return Outcome{}, nil, nil
}

func (c *Controller) send(ctx context.Context, role monitoring.Role, action form.Action, req form.Request) (*client.Response, error) {
	payload, err := form.Build(role, action, req)
	if err != nil {
		return nil, err
	}
	endpoint, ok := client.EndpointFor(action)
	if !ok {
		return nil, monitoring.InvalidValue("action", "no endpoint for "+string(action))
	}
	resp, err := c.sender.Send(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// capture resolves inputs against the rendered widgets on top of the
// values already captured.
func capture(p PatientState, inputs map[string]Input) (map[string]form.CapturedValue, error) {
	out := form.CloneValues(p.Captured)
	if out == nil {
		out = map[string]form.CapturedValue{}
	}
	for fieldID, in := range inputs {
		spec, ok := form.Find(p.Widgets, fieldID)
		if !ok {
			return nil, monitoring.InvalidValue(fieldID, "unknown field")
		}
		value, err := in.Resolve(spec)
		if err != nil {
			return nil, err
		}
		out[fieldID] = value
	}
	return out, nil
}

func (c *Controller) snapshot(ctx context.Context, rec session.Record[State]) Snapshot {
	snap := Snapshot{
		SessionID: rec.ID,
		Role:      rec.Role,
		Step:      Step(rec.Step),
		Version:   rec.Version,
		State:     rec.State,
		UpdatedAt: rec.UpdatedAt,
	}
	if m, ok := c.machines[rec.Role]; ok {
		snap.Available = m.Available(ctx, rec.Step, Subject{State: rec.State})
	}
	return snap
}
