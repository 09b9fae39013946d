package form

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"testing"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func intPtr(v int) *int { return &v }

func identity() *PatientIdentity {
	return &PatientIdentity{
		PatientID:   "PAT-0A1B2C3D",
		DoctorName:  "Dr. A",
		PatientName: "P1",
		Age:         intPtr(40),
		SurgeryType: "Knee",
	}
}

func ident() *Identification {
	return &Identification{PatientName: "P1", DoctorName: "Dr. A", SurgeryType: "Knee"}
}

func toJSONMap(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestBuildRegistrationShape(t *testing.T) {
	p, err := Build(monitoring.RoleDoctor, ActionRegister, Request{Identity: identity()})
	require.NoError(t, err)

	body := toJSONMap(t, p.Body)
	assert.Equal(t, map[string]any{
		"Patient ID":   "PAT-0A1B2C3D",
		"Doc Name":     "Dr. A",
		"Patient Name": "P1",
		"Patient Age":  float64(40),
		"Surgery Type": "Knee",
	}, body)
}

func TestBuildAISetupReusesRegistration(t *testing.T) {
	reg, err := Build(monitoring.RoleDoctor, ActionRegister, Request{Identity: identity()})
	require.NoError(t, err)
	ai, err := Build(monitoring.RoleDoctor, ActionAISetup, Request{Identity: identity()})
	require.NoError(t, err)
	assert.Equal(t, toJSONMap(t, reg.Body), toJSONMap(t, ai.Body))
}

func TestBuildRegistrationValidation(t *testing.T) {
	id := identity()
	id.DoctorName = "  "
	_, err := Build(monitoring.RoleDoctor, ActionRegister, Request{Identity: id})
	assert.Equal(t, monitoring.ErrCodeMissingField, monitoring.Code(err))
	assert.Equal(t, "doctor_name", monitoring.FieldID(err))

	id = identity()
	id.Age = intPtr(121)
	_, err = Build(monitoring.RoleDoctor, ActionRegister, Request{Identity: id})
	assert.Equal(t, monitoring.ErrCodeInvalidValue, monitoring.Code(err))

	id = identity()
	id.Age = nil
	p, err := Build(monitoring.RoleDoctor, ActionRegister, Request{Identity: id})
	require.NoError(t, err)
	assert.Nil(t, toJSONMap(t, p.Body)["Patient Age"])
}

func TestBuildManualSetup(t *testing.T) {
	p, err := Build(monitoring.RoleDoctor, ActionManualSetup, Request{
		Identity:   identity(),
		Parameters: []ManualParameter{{Name: "Swelling", Threshold: "none", DataType: schema.Text}},
	})
	require.NoError(t, err)

	body := toJSONMap(t, p.Body)
	assert.Equal(t, "P1", body["patient_info"].(map[string]any)["Patient Name"])
	assert.Equal(t, []any{map[string]any{"name": "Swelling", "threshold": "none", "data_type": "text"}}, body["parameters"])

	_, err = Build(monitoring.RoleDoctor, ActionManualSetup, Request{Identity: identity()})
	assert.Equal(t, "parameters", monitoring.FieldID(err))

	_, err = Build(monitoring.RoleDoctor, ActionManualSetup, Request{
		Identity:   identity(),
		Parameters: []ManualParameter{{Name: "Swelling", DataType: "video"}},
	})
	assert.Equal(t, monitoring.ErrCodeInvalidValue, monitoring.Code(err))

	for _, dt := range []schema.DataType{schema.Number, schema.Boolean} {
		_, err = Build(monitoring.RoleDoctor, ActionManualSetup, Request{
			Identity:   identity(),
			Parameters: []ManualParameter{{Name: "Swelling", DataType: schema.Text}, {Name: "Pain", DataType: dt}},
		})
		assert.Equal(t, monitoring.ErrCodeInvalidValue, monitoring.Code(err), dt)
		assert.Equal(t, "parameters[1].data_type", monitoring.FieldID(err), dt)
	}
}

func TestBuildLookupShape(t *testing.T) {
	for _, action := range []Action{ActionLookup, ActionFetchSchema} {
		p, err := Build(monitoring.RolePatient, action, Request{Identification: ident()})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"Patient Name": "P1",
			"Doc Name":     "Dr. A",
			"Surgery Type": "Knee",
		}, toJSONMap(t, p.Body))
	}
}

func TestBuildRejectsActionForWrongRole(t *testing.T) {
	_, err := Build(monitoring.RoleDoctor, ActionSubmitAll, Request{})
	assert.Equal(t, monitoring.ErrCodeInvalidTransition, monitoring.Code(err))
	_, err = Build(monitoring.RolePatient, ActionRegister, Request{Identity: identity()})
	assert.Equal(t, monitoring.ErrCodeInvalidTransition, monitoring.Code(err))
}

func mixedSpecs() []WidgetSpec {
	return Render(schema.FormSchema{
		{Name: "Pain Level", DataType: schema.Number},
		{Name: "Wound Status", DataType: schema.Text},
		{Name: "Wound Status", DataType: schema.Text},
		{Name: "Fever", DataType: schema.Boolean},
		{Name: "Wound Photo", DataType: schema.Image},
	})
}

func TestBuildBatch(t *testing.T) {
	captured := map[string]CapturedValue{
		"pain_level_0":   NumberValue(5),
		"wound_status_1": TextValue(" dry "),
		"wound_status_2": TextValue("clean"),
		"wound_photo_4":  BinaryValue("wound.png", pngHeader),
	}
	p, err := Build(monitoring.RolePatient, ActionSubmitAll, Request{
		Identification: ident(),
		Specs:          mixedSpecs(),
		Captured:       captured,
	})
	require.NoError(t, err)

	body := toJSONMap(t, p.Body)
	readings := body["readings"].(map[string]any)
	assert.Equal(t, float64(5), readings["Pain Level"])
	assert.Equal(t, "dry", readings["Wound Status [2]"])
	assert.Equal(t, "clean", readings["Wound Status [3]"])
	assert.Equal(t, false, readings["Fever"])
	photo := readings["Wound Photo"].(map[string]any)
	assert.Equal(t, "wound.png", photo["filename"])
	assert.Equal(t, "P1", body["identification"].(map[string]any)["Patient Name"])

	require.Len(t, p.Files, 1)
	assert.Equal(t, "Wound Photo", p.Files[0].Field)
	assert.Equal(t, "image/png", p.Files[0].MediaType)
}

func TestBuildBatchIsAllOrNothing(t *testing.T) {
	captured := map[string]CapturedValue{
		"pain_level_0":   NumberValue(5),
		"wound_status_1": TextValue("dry"),
	}
	p, err := Build(monitoring.RolePatient, ActionSubmitAll, Request{
		Identification: ident(),
		Specs:          mixedSpecs(),
		Captured:       captured,
	})
	require.Error(t, err)
	assert.Equal(t, Payload{}, p)
	assert.Equal(t, monitoring.ErrCodeMissingField, monitoring.Code(err))
	assert.Equal(t, "wound_status_2", monitoring.FieldID(err))

	violations, ok := monitoring.Meta(err, monitoring.MetaViolations)
	require.True(t, ok)
	assert.Equal(t, []string{"wound_status_2", "wound_photo_4"}, violations)
}

func TestBuildBatchEmptyBinary(t *testing.T) {
	specs := Render(schema.FormSchema{{Name: "Cough", DataType: schema.Audio}})
	_, err := Build(monitoring.RolePatient, ActionSubmitAll, Request{
		Identification: ident(),
		Specs:          specs,
		Captured:       map[string]CapturedValue{"cough_0": BinaryValue("cough.wav", nil)},
	})
	assert.Equal(t, monitoring.ErrCodeEmptyBinary, monitoring.Code(err))
	assert.Equal(t, "cough_0", monitoring.FieldID(err))
}

func TestBuildRejectsWrongMedia(t *testing.T) {
	specs := Render(schema.FormSchema{{Name: "Cough", DataType: schema.Audio}})
	_, err := Build(monitoring.RolePatient, ActionSubmitAll, Request{
		Identification: ident(),
		Specs:          specs,
		Captured:       map[string]CapturedValue{"cough_0": BinaryValue("photo.png", pngHeader)},
	})
	assert.Equal(t, monitoring.ErrCodeInvalidValue, monitoring.Code(err))
}

func TestBuildFieldShapes(t *testing.T) {
	specs := mixedSpecs()
	captured := map[string]CapturedValue{
		"pain_level_0":  TextValue(" 5 "),
		"wound_photo_4": BinaryValue("wound.png", pngHeader),
	}

	p, err := Build(monitoring.RolePatient, ActionSubmitField, Request{
		Identification: ident(), Specs: specs, Captured: captured, FieldID: "pain_level_0",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"patient":   "P1",
		"parameter": "Pain Level",
		"type":      "number",
		"data":      "5",
	}, toJSONMap(t, p.Body))

	p, err = Build(monitoring.RolePatient, ActionSubmitField, Request{
		Identification: ident(), Specs: specs, Captured: captured, FieldID: "fever_3",
	})
	require.NoError(t, err)
	assert.Equal(t, "false", toJSONMap(t, p.Body)["data"])

	p, err = Build(monitoring.RolePatient, ActionSubmitField, Request{
		Identification: ident(), Specs: specs, Captured: captured, FieldID: "wound_photo_4",
	})
	require.NoError(t, err)
	data := toJSONMap(t, p.Body)["data"].(map[string]any)
	assert.Equal(t, "wound.png", data["filename"])

	_, err = Build(monitoring.RolePatient, ActionSubmitField, Request{
		Identification: ident(), Specs: specs, Captured: captured, FieldID: "wound_status_1",
	})
	assert.Equal(t, monitoring.ErrCodeMissingField, monitoring.Code(err))

	_, err = Build(monitoring.RolePatient, ActionSubmitField, Request{
		Identification: ident(), Specs: specs, Captured: captured, FieldID: "nope_9",
	})
	assert.Equal(t, monitoring.ErrCodeInvalidValue, monitoring.Code(err))
}

func TestBinaryRoundTrip(t *testing.T) {
	content := []byte("RIFF\x24\x00\x00\x00WAVEfmt some audio bytes \x00\x01\x02\xff")
	specs := Render(schema.FormSchema{{Name: "Cough", DataType: schema.Audio}})
	p, err := Build(monitoring.RolePatient, ActionSubmitField, Request{
		Identification: ident(),
		Specs:          specs,
		Captured:       map[string]CapturedValue{"cough_0": BinaryValue("/tmp/cough.wav", content)},
		FieldID:        "cough_0",
	})
	require.NoError(t, err)

	env := p.Body.(FieldBody).Data.(BinaryEnvelope)
	assert.Equal(t, "cough.wav", env.Filename)
	decoded, err := base64.StdEncoding.DecodeString(env.Base64)
	require.NoError(t, err)
	assert.Equal(t, content, decoded)
}

func TestNumberRejectsGarbage(t *testing.T) {
	specs := Render(schema.FormSchema{{Name: "Pain", DataType: schema.Number}})
	_, err := Build(monitoring.RolePatient, ActionSubmitAll, Request{
		Identification: ident(),
		Specs:          specs,
		Captured:       map[string]CapturedValue{"pain_0": TextValue("five")},
	})
	assert.Equal(t, monitoring.ErrCodeInvalidValue, monitoring.Code(err))

	_, err = Build(monitoring.RolePatient, ActionSubmitAll, Request{
		Identification: ident(),
		Specs:          specs,
		Captured:       map[string]CapturedValue{"pain_0": TextValue("  ")},
	})
	assert.Equal(t, monitoring.ErrCodeMissingField, monitoring.Code(err))

	for _, raw := range []string{"NaN", "Inf", "+Inf", "-inf", "1e400"} {
		_, err = Build(monitoring.RolePatient, ActionSubmitAll, Request{
			Identification: ident(),
			Specs:          specs,
			Captured:       map[string]CapturedValue{"pain_0": TextValue(raw)},
		})
		assert.Equal(t, monitoring.ErrCodeInvalidValue, monitoring.Code(err), raw)
		assert.Equal(t, "pain_0", monitoring.FieldID(err), raw)
	}

	_, err = Build(monitoring.RolePatient, ActionSubmitField, Request{
		Identification: ident(),
		Specs:          specs,
		FieldID:        "pain_0",
		Captured:       map[string]CapturedValue{"pain_0": NumberValue(math.NaN())},
	})
	assert.Equal(t, monitoring.ErrCodeInvalidValue, monitoring.Code(err))
}

func TestReadingKeys(t *testing.T) {
	keys := ReadingKeys(mixedSpecs())
	assert.Equal(t, []string{"Pain Level", "Wound Status [2]", "Wound Status [3]", "Fever", "Wound Photo"}, keys)
}
