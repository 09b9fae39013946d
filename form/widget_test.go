package form

import (
	"testing"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Pain Level":          "pain_level",
		"  Wound Status  ":    "wound_status",
		"Temp (°C) / morning": "temp_c_morning",
		"!!!":                 "field",
		"":                    "field",
		"BP-Systolic":         "bp_systolic",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slug(in), "slug(%q)", in)
	}
}

func TestRenderDuplicateNamesGetDistinctIDs(t *testing.T) {
	s, _, err := schema.NormalizeJSON([]byte(`[
		{"parameter":"Pain Level","datatype":"number"},
		{"parameter":"Wound Status","datatype":"text"},
		{"parameter":"Wound Status","datatype":"text"}
	]`))
	require.NoError(t, err)

	specs := Render(s)
	require.Len(t, specs, 3)
	assert.Equal(t, "pain_level_0", specs[0].FieldID)
	assert.Equal(t, "wound_status_1", specs[1].FieldID)
	assert.Equal(t, "wound_status_2", specs[2].FieldID)

	seen := map[string]bool{}
	for i, spec := range specs {
		assert.False(t, seen[spec.FieldID])
		seen[spec.FieldID] = true
		assert.Equal(t, i, spec.Position)
		assert.True(t, spec.Required)
	}
	assert.Equal(t, "Wound Status", specs[2].Label)
}

func TestRenderControls(t *testing.T) {
	specs := Render(schema.FormSchema{
		{Name: "Notes", DataType: schema.Text},
		{Name: "Pain", DataType: schema.Number},
		{Name: "Fever", DataType: schema.Boolean},
		{Name: "Cough", DataType: schema.Audio},
		{Name: "Wound", DataType: schema.Image, Description: "close-up"},
	})
	require.Len(t, specs, 5)
	assert.Equal(t, ControlTextArea, specs[0].Control)
	assert.Equal(t, ControlNumber, specs[1].Control)
	assert.Equal(t, ControlToggle, specs[2].Control)
	assert.Equal(t, ControlFile, specs[3].Control)
	assert.Equal(t, []string{"audio/*"}, specs[3].Accept)
	assert.Equal(t, []string{"image/*"}, specs[4].Accept)
	assert.Contains(t, specs[4].Extensions, ".png")
	assert.Equal(t, "close-up", specs[4].Description)
}

func TestFind(t *testing.T) {
	specs := Render(schema.FormSchema{{Name: "Pain", DataType: schema.Number}})
	spec, ok := Find(specs, "pain_0")
	assert.True(t, ok)
	assert.Equal(t, "Pain", spec.Label)

	_, ok = Find(specs, "pain_1")
	assert.False(t, ok)
}
