package workflow

import (
	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/form"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/schema"
)

// Step is the named state of a role's machine.
type Step string

const (
	StepRegistering Step = "registering"
	StepBranching   Step = "branching"

	StepLoggedOut     Step = "logged_out"
	StepSchemaPending Step = "schema_pending"
	StepFormReady     Step = "form_ready"
)

// InitialStep returns the step a new session of role starts in.
func InitialStep(role monitoring.Role) Step {
	if role == monitoring.RolePatient {
		return StepLoggedOut
	}
	return StepRegistering
}

// Setup is the monitoring plan source a doctor picked.
type Setup string

const (
	SetupNone   Setup = ""
	SetupManual Setup = "manual"
	SetupAI     Setup = "ai"
)

type DoctorState struct {
	Identity *form.PatientIdentity `json:"identity,omitempty"`
	Setup    Setup                 `json:"setup,omitempty"`
	// Completed lists patient ids whose monitoring setup was accepted.
	Completed []string `json:"completed,omitempty"`
}

type PatientState struct {
	Identification *form.Identification          `json:"identification,omitempty"`
	Schema         schema.FormSchema             `json:"schema,omitempty"`
	Warnings       []schema.Warning              `json:"warnings,omitempty"`
	Widgets        []form.WidgetSpec             `json:"widgets,omitempty"`
	Captured       map[string]form.CapturedValue `json:"captured,omitempty"`
	Submissions    int                           `json:"submissions,omitempty"`
}

// State is everything one session has accumulated. It is only changed by
// Reduce.
type State struct {
	SessionID string          `json:"sessionId"`
	Role      monitoring.Role `json:"role"`
	Step      Step            `json:"step"`
	Doctor    DoctorState     `json:"doctor"`
	Patient   PatientState    `json:"patient"`
	// Notice is the status line shown after the last committed event.
	Notice string `json:"notice,omitempty"`
}

// NewState returns a fresh state for role in its initial step.
func NewState(sessionID string, role monitoring.Role) State {
	return State{SessionID: sessionID, Role: role, Step: InitialStep(role)}
}

// Clone deep-copies the slices and maps a reducer may touch.
func (s State) Clone() State {
	out := s
	if s.Doctor.Identity != nil {
		id := *s.Doctor.Identity
		if id.Age != nil {
			age := *id.Age
			id.Age = &age
		}
		out.Doctor.Identity = &id
	}
	out.Doctor.Completed = append([]string(nil), s.Doctor.Completed...)
	if s.Patient.Identification != nil {
		ident := *s.Patient.Identification
		out.Patient.Identification = &ident
	}
	out.Patient.Schema = append(schema.FormSchema(nil), s.Patient.Schema...)
	out.Patient.Warnings = append([]schema.Warning(nil), s.Patient.Warnings...)
	out.Patient.Widgets = append([]form.WidgetSpec(nil), s.Patient.Widgets...)
	out.Patient.Captured = form.CloneValues(s.Patient.Captured)
	return out
}
