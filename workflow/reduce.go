package workflow

import (
	"fmt"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/form"
)

// Transition is a committed step change: the event, the resolved target
// and whatever the handling pass produced.
type Transition struct {
	Event   Event
	To      Step
	Outcome Outcome
}

// Reduce applies t to s and returns the next state. s is not modified.
func Reduce(s State, t Transition) State {
	next := s.Clone()
	next.Step = t.To
	out := t.Outcome

	switch e := t.Event.(type) {
	case Register:
		next.Doctor.Identity = out.Identity
		next.Doctor.Setup = SetupNone
		if out.Identity != nil {
			next.Notice = fmt.Sprintf("Patient registered: %s", out.Identity.PatientID)
		}

	case ChooseManual:
		next.Doctor.Setup = SetupManual
		next.Notice = ""

	case SubmitManual:
		next.Notice = fmt.Sprintf("Manual monitoring set up with %d parameters", len(e.Parameters))
		next.Doctor = finishDoctor(next.Doctor)

	case TriggerAI:
		next.Doctor.Setup = SetupAI
		if id := next.Doctor.Identity; id != nil {
			next.Doctor.Completed = appendUnique(next.Doctor.Completed, id.PatientID)
		}
		next.Notice = "AI-generated monitoring requested"

	case Cancel:
		next.Doctor = DoctorState{Completed: next.Doctor.Completed}
		next.Notice = ""

	case Login:
		next.Patient = PatientState{Identification: out.Identification}
		if len(out.Schema) > 0 {
			setSchema(&next.Patient, out)
		}
		next.Notice = "Logged in"
		if out.SchemaErr != nil {
			next.Notice = "Logged in, monitoring parameters not loaded yet"
		}

	case FetchSchema:
		setSchema(&next.Patient, out)
		next.Notice = fmt.Sprintf("Loaded %d monitoring parameters", len(out.Schema))

	case Capture:
		next.Patient.Captured = form.CloneValues(out.Captured)
		next.Notice = ""

	case SubmitField:
		next.Patient.Captured = form.CloneValues(out.Captured)
		next.Patient.Submissions++
		next.Notice = "Data submitted successfully"

	case SubmitAll:
		next.Patient.Captured = form.CloneValues(out.Captured)
		next.Patient.Submissions++
		next.Notice = "Data submitted successfully"

	case Logout:
		return NewState(s.SessionID, s.Role)
	}
	return next
}

func setSchema(p *PatientState, out Outcome) {
	p.Schema = append(p.Schema[:0:0], out.Schema...)
	p.Warnings = append(p.Warnings[:0:0], out.Warnings...)
	p.Widgets = form.Render(out.Schema)
	p.Captured = map[string]form.CapturedValue{}
}

// finishDoctor records the current patient as set up and clears the
// registration so the next patient starts clean.
func finishDoctor(d DoctorState) DoctorState {
	completed := d.Completed
	if d.Identity != nil {
		completed = appendUnique(completed, d.Identity.PatientID)
	}
	return DoctorState{Completed: completed}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
