package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/form"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/schema"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/workflow"
)

func specs() []form.WidgetSpec {
	return form.Render(schema.FormSchema{
		{Name: "Pain Level", DataType: schema.Number},
		{Name: "Fever", DataType: schema.Boolean},
		{Name: "Notes", DataType: schema.Text},
		{Name: "Wound Photo", DataType: schema.Image},
	})
}

func TestWidgetFormAnswersBecomeInputs(t *testing.T) {
	f, answers := WidgetForm(specs(), map[string]form.CapturedValue{
		"pain_level_0": form.NumberValue(3),
	})
	require.NotNil(t, f)

	answers.readFile = func(path string) ([]byte, error) {
		assert.Equal(t, "/tmp/wound.png", path)
		return []byte("png-bytes"), nil
	}
	answers.Set("fever_1", "yes")
	answers.Set("notes_2", "feeling better")
	answers.Set("wound_photo_3", " /tmp/wound.png ")

	inputs, err := answers.Inputs()
	require.NoError(t, err)
	assert.Equal(t, workflow.Input{Value: "3"}, inputs["pain_level_0"])
	assert.Equal(t, workflow.Input{Value: "true"}, inputs["fever_1"])
	assert.Equal(t, workflow.Input{Value: "feeling better"}, inputs["notes_2"])
	assert.Equal(t, workflow.Input{Filename: "wound.png", Data: []byte("png-bytes")}, inputs["wound_photo_3"])
}

func TestWidgetFormSkipsEmptyFileAndReportsReadErrors(t *testing.T) {
	_, answers := WidgetForm(specs(), nil)
	inputs, err := answers.Inputs()
	require.NoError(t, err)
	_, ok := inputs["wound_photo_3"]
	assert.False(t, ok)
	assert.Equal(t, workflow.Input{Value: "false"}, inputs["fever_1"])

	answers.readFile = func(string) ([]byte, error) { return nil, errors.New("gone") }
	answers.Set("wound_photo_3", "/tmp/missing.png")
	_, err = answers.Inputs()
	require.Error(t, err)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateAge(""))
	assert.NoError(t, validateAge("40"))
	assert.Error(t, validateAge("forty"))
	assert.Error(t, validateAge("121"))
	assert.Error(t, required("name")("  "))

	check := fileValidator(form.Render(schema.FormSchema{{Name: "Photo", DataType: schema.Image}})[0])
	assert.Error(t, check(""))
	assert.Error(t, check("/tmp/voice.mp3"))
}

func TestRegistrationEvent(t *testing.T) {
	evt := Registration{DoctorName: " Dr. A ", PatientName: "P1", Age: "40", SurgeryType: "Knee"}.Event()
	assert.Equal(t, "Dr. A", evt.DoctorName)
	require.NotNil(t, evt.Age)
	assert.Equal(t, 40, *evt.Age)

	evt = Registration{DoctorName: "Dr. A", PatientName: "P1", SurgeryType: "Knee"}.Event()
	assert.Nil(t, evt.Age)

	p := Parameter{Name: " Swelling ", Threshold: "none", DataType: "text"}.Manual()
	assert.Equal(t, form.ManualParameter{Name: "Swelling", Threshold: "none", DataType: schema.Text}, p)
}

func TestSummary(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	widgets := form.Render(schema.FormSchema{
		{Name: "Pain Level", DataType: schema.Number},
		{Name: "Wound Photo", DataType: schema.Image},
	})
	snap := workflow.Snapshot{
		SessionID: "s-1",
		Role:      monitoring.RolePatient,
		Step:      workflow.StepFormReady,
		Version:   3,
		UpdatedAt: now.Add(-2 * time.Minute),
		State: workflow.State{
			Notice: "Data submitted successfully",
			Patient: workflow.PatientState{
				Widgets: widgets,
				Captured: map[string]form.CapturedValue{
					"pain_level_0":  form.NumberValue(5),
					"wound_photo_1": form.BinaryValue("wound.png", make([]byte, 2048)),
				},
				Submissions: 2,
			},
		},
	}

	out := Summary(snap, now)
	assert.Contains(t, out, "Session s-1 (patient) at form_ready, version 3, updated 2 minutes ago")
	assert.Contains(t, out, "Data submitted successfully")
	assert.Contains(t, out, "wound.png (2.0 kB)")
	assert.Contains(t, out, "2 reading batches submitted")
	assert.True(t, strings.Contains(out, "Pain Level") && strings.Contains(out, " 5\n"))
}
