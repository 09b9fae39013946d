package workflow_test

import (
	"testing"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/form"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/schema"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populatedPatient() workflow.State {
	st := workflow.NewState("s-1", monitoring.RolePatient)
	st = workflow.Reduce(st, workflow.Transition{
		Event: workflow.Login{PatientName: "P1", DoctorName: "Dr. A", SurgeryType: "Knee"},
		To:    workflow.StepFormReady,
		Outcome: workflow.Outcome{
			Identification: &form.Identification{PatientName: "P1", DoctorName: "Dr. A", SurgeryType: "Knee"},
			Schema:         schema.FormSchema{{Name: "Pain Level", DataType: schema.Number}},
		},
	})
	return workflow.Reduce(st, workflow.Transition{
		Event:   workflow.Capture{FieldID: "pain_level_0"},
		To:      workflow.StepFormReady,
		Outcome: workflow.Outcome{Captured: map[string]form.CapturedValue{"pain_level_0": form.NumberValue(4)}},
	})
}

func TestReduceLogoutClearsEverything(t *testing.T) {
	st := populatedPatient()
	require.NotNil(t, st.Patient.Identification)
	require.Len(t, st.Patient.Schema, 1)
	require.Len(t, st.Patient.Captured, 1)

	out := workflow.Reduce(st, workflow.Transition{Event: workflow.Logout{}, To: workflow.StepLoggedOut})

	assert.Equal(t, workflow.NewState("s-1", monitoring.RolePatient), out)
	assert.Nil(t, out.Patient.Identification)
	assert.Empty(t, out.Patient.Schema)
	assert.Empty(t, out.Patient.Captured)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	st := populatedPatient()
	before := st.Clone()

	_ = workflow.Reduce(st, workflow.Transition{
		Event:   workflow.Capture{FieldID: "pain_level_0"},
		To:      workflow.StepFormReady,
		Outcome: workflow.Outcome{Captured: map[string]form.CapturedValue{"pain_level_0": form.NumberValue(9)}},
	})
	_ = workflow.Reduce(st, workflow.Transition{Event: workflow.Logout{}, To: workflow.StepLoggedOut})

	assert.Equal(t, before, st)
}

func TestReduceLoginWithoutSchemaStaysPending(t *testing.T) {
	st := workflow.NewState("s-2", monitoring.RolePatient)
	out := workflow.Reduce(st, workflow.Transition{
		Event: workflow.Login{},
		To:    workflow.StepSchemaPending,
		Outcome: workflow.Outcome{
			Identification: &form.Identification{PatientName: "P1", DoctorName: "Dr. A", SurgeryType: "Knee"},
			SchemaErr:      monitoring.SchemaEmpty(),
		},
	})
	assert.Equal(t, workflow.StepSchemaPending, out.Step)
	assert.NotNil(t, out.Patient.Identification)
	assert.Empty(t, out.Patient.Widgets)

	out = workflow.Reduce(out, workflow.Transition{
		Event:   workflow.FetchSchema{},
		To:      workflow.StepFormReady,
		Outcome: workflow.Outcome{Schema: schema.FormSchema{{Name: "Photo", DataType: schema.Image}}},
	})
	require.Len(t, out.Patient.Widgets, 1)
	assert.Equal(t, form.ControlFile, out.Patient.Widgets[0].Control)
	assert.NotNil(t, out.Patient.Captured)
}

func TestReduceDoctorFlow(t *testing.T) {
	st := workflow.NewState("d-1", monitoring.RoleDoctor)
	assert.Equal(t, workflow.StepRegistering, st.Step)

	identity := &form.PatientIdentity{PatientID: "PAT-0000000A", DoctorName: "Dr. A", PatientName: "P1", SurgeryType: "Knee"}
	st = workflow.Reduce(st, workflow.Transition{Event: workflow.Register{}, To: workflow.StepBranching, Outcome: workflow.Outcome{Identity: identity}})
	assert.Equal(t, "Patient registered: PAT-0000000A", st.Notice)

	st = workflow.Reduce(st, workflow.Transition{Event: workflow.ChooseManual{}, To: workflow.StepBranching})
	assert.Equal(t, workflow.SetupManual, st.Doctor.Setup)

	st = workflow.Reduce(st, workflow.Transition{Event: workflow.SubmitManual{}, To: workflow.StepRegistering})
	assert.Equal(t, workflow.StepRegistering, st.Step)
	assert.Nil(t, st.Doctor.Identity)
	assert.Equal(t, []string{"PAT-0000000A"}, st.Doctor.Completed)

	st = workflow.Reduce(st, workflow.Transition{Event: workflow.Register{}, To: workflow.StepBranching, Outcome: workflow.Outcome{Identity: identity}})
	st = workflow.Reduce(st, workflow.Transition{Event: workflow.TriggerAI{}, To: workflow.StepBranching})
	assert.Equal(t, workflow.SetupAI, st.Doctor.Setup)
	assert.Equal(t, []string{"PAT-0000000A"}, st.Doctor.Completed)

	st = workflow.Reduce(st, workflow.Transition{Event: workflow.Cancel{}, To: workflow.StepRegistering})
	assert.Nil(t, st.Doctor.Identity)
	assert.Equal(t, workflow.SetupNone, st.Doctor.Setup)
	assert.Equal(t, []string{"PAT-0000000A"}, st.Doctor.Completed)
}
