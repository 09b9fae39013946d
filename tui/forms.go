// Package tui renders the doctor and patient screens as terminal forms.
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/form"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/schema"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/workflow"
)

// Registration holds the doctor's patient registration answers.
type Registration struct {
	DoctorName  string
	PatientName string
	Age         string
	SurgeryType string
}

func RegistrationForm(r *Registration) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("doctor_name").
				Title("Doctor Name").
				Value(&r.DoctorName).
				Validate(required("doctor name")),
			huh.NewInput().
				Key("patient_name").
				Title("Patient Name").
				Value(&r.PatientName).
				Validate(required("patient name")),
			huh.NewInput().
				Key("patient_age").
				Title("Patient Age").
				Description(fmt.Sprintf("Optional, %d to %d", form.MinAge, form.MaxAge)).
				Value(&r.Age).
				Validate(validateAge),
			huh.NewInput().
				Key("surgery_type").
				Title("Surgery Type").
				Value(&r.SurgeryType).
				Validate(required("surgery type")),
		),
	).WithShowHelp(false).WithShowErrors(true)
}

// Event turns the answers into a register event.
func (r Registration) Event() workflow.Register {
	evt := workflow.Register{
		DoctorName:  strings.TrimSpace(r.DoctorName),
		PatientName: strings.TrimSpace(r.PatientName),
		SurgeryType: strings.TrimSpace(r.SurgeryType),
	}
	if age, err := strconv.Atoi(strings.TrimSpace(r.Age)); err == nil {
		evt.Age = &age
	}
	return evt
}

// Setup choices offered once a patient is registered.
const (
	ChoiceManual = "manual"
	ChoiceAI     = "ai"
	ChoiceCancel = "cancel"
)

func SetupChoiceForm(choice *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("setup").
				Title("Monitoring Setup").
				Options(
					huh.NewOption("Define parameters manually", ChoiceManual),
					huh.NewOption("Generate parameters with AI", ChoiceAI),
					huh.NewOption("Register another patient", ChoiceCancel),
				).
				Value(choice),
		),
	).WithShowHelp(false)
}

// Parameter is one manual monitoring parameter being entered.
type Parameter struct {
	Name      string
	Threshold string
	DataType  string
	More      bool
}

func ParameterForm(p *Parameter) *huh.Form {
	if p.DataType == "" {
		p.DataType = string(schema.Text)
	}
	options := make([]huh.Option[string], 0, len(form.ManualDataTypes()))
	for _, dt := range form.ManualDataTypes() {
		options = append(options, huh.NewOption(strings.ToUpper(dt.String()[:1])+dt.String()[1:], dt.String()))
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("name").
				Title("Parameter Name").
				Value(&p.Name).
				Validate(required("parameter name")),
			huh.NewInput().
				Key("threshold").
				Title("Threshold").
				Description("e.g. above 7, none").
				Value(&p.Threshold),
			huh.NewSelect[string]().
				Key("data_type").
				Title("Data Type").
				Options(options...).
				Value(&p.DataType),
			huh.NewConfirm().
				Key("more").
				Title("Add another parameter?").
				Value(&p.More),
		),
	).WithShowHelp(false).WithShowErrors(true)
}

func (p Parameter) Manual() form.ManualParameter {
	return form.ManualParameter{
		Name:      strings.TrimSpace(p.Name),
		Threshold: strings.TrimSpace(p.Threshold),
		DataType:  schema.DataType(p.DataType),
	}
}

// Login holds the patient's identification answers.
type Login struct {
	PatientName string
	DoctorName  string
	SurgeryType string
}

func LoginForm(l *Login) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Key("patient_name").Title("Your Name").Value(&l.PatientName).Validate(required("your name")),
			huh.NewInput().Key("doctor_name").Title("Doctor Name").Value(&l.DoctorName).Validate(required("doctor name")),
			huh.NewInput().Key("surgery_type").Title("Surgery Type").Value(&l.SurgeryType).Validate(required("surgery type")),
		),
	).WithShowHelp(false).WithShowErrors(true)
}

func (l Login) Event() workflow.Login {
	return workflow.Login{PatientName: l.PatientName, DoctorName: l.DoctorName, SurgeryType: l.SurgeryType}
}

// Answers collects what the patient typed for each rendered widget. Binary
// widgets hold a file path.
type Answers struct {
	specs    []form.WidgetSpec
	text     map[string]*string
	toggles  map[string]*bool
	readFile func(string) ([]byte, error)
}

func newAnswers(specs []form.WidgetSpec) *Answers {
	return &Answers{
		specs:    specs,
		text:     make(map[string]*string, len(specs)),
		toggles:  make(map[string]*bool),
		readFile: os.ReadFile,
	}
}

// WidgetForm builds one field per widget, prefilled from captured values.
func WidgetForm(specs []form.WidgetSpec, captured map[string]form.CapturedValue) (*huh.Form, *Answers) {
	answers := newAnswers(specs)
	fields := make([]huh.Field, 0, len(specs))
	for _, spec := range specs {
		fields = append(fields, answers.field(spec, captured[spec.FieldID]))
	}
	if len(fields) == 0 {
		fields = append(fields, huh.NewNote().Title("No monitoring parameters yet"))
	}
	f := huh.NewForm(huh.NewGroup(fields...)).WithShowHelp(false).WithShowErrors(true)
	return f, answers
}

func (a *Answers) field(spec form.WidgetSpec, current form.CapturedValue) huh.Field {
	title := spec.Label
	switch spec.Control {
	case form.ControlToggle:
		v := current.Kind == form.KindBoolean && current.Boolean
		a.toggles[spec.FieldID] = &v
		return huh.NewConfirm().Key(spec.FieldID).Title(title).Affirmative("Yes").Negative("No").Value(&v)
	case form.ControlNumber:
		v := ""
		if current.Kind == form.KindNumber {
			v = current.String()
		}
		a.text[spec.FieldID] = &v
		return huh.NewInput().Key(spec.FieldID).Title(title).Description(spec.Description).Value(&v).
			Validate(func(s string) error {
				if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
					return fmt.Errorf("%s must be a number", spec.Label)
				}
				return nil
			})
	case form.ControlFile:
		v := ""
		a.text[spec.FieldID] = &v
		return huh.NewInput().Key(spec.FieldID).Title(title).
			Description("Path to a file ("+strings.Join(spec.Extensions, ", ")+")").
			Value(&v).
			Validate(fileValidator(spec))
	default:
		v := ""
		if current.Kind == form.KindText {
			v = current.Text
		}
		a.text[spec.FieldID] = &v
		return huh.NewText().Key(spec.FieldID).Title(title).Description(spec.Description).Value(&v)
	}
}

// Set records an answer without running the form.
func (a *Answers) Set(fieldID, value string) {
	if b, ok := a.toggles[fieldID]; ok {
		*b = value == "yes" || value == "true"
		return
	}
	if s, ok := a.text[fieldID]; ok {
		*s = value
	}
}

// Inputs converts the answers into workflow inputs, reading binary files.
func (a *Answers) Inputs() (map[string]workflow.Input, error) {
	out := make(map[string]workflow.Input, len(a.specs))
	for _, spec := range a.specs {
		if b, ok := a.toggles[spec.FieldID]; ok {
			out[spec.FieldID] = workflow.Input{Value: strconv.FormatBool(*b)}
			continue
		}
		s, ok := a.text[spec.FieldID]
		if !ok {
			continue
		}
		if !spec.DataType.IsBinary() {
			out[spec.FieldID] = workflow.Input{Value: *s}
			continue
		}
		path := strings.TrimSpace(*s)
		if path == "" {
			continue
		}
		data, err := a.readFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", spec.Label, err)
		}
		out[spec.FieldID] = workflow.Input{Filename: filepath.Base(path), Data: data}
	}
	return out, nil
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

func validateAge(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	age, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("age must be a whole number")
	}
	if age < form.MinAge || age > form.MaxAge {
		return fmt.Errorf("age must be between %d and %d", form.MinAge, form.MaxAge)
	}
	return nil
}

func fileValidator(spec form.WidgetSpec) func(string) error {
	return func(s string) error {
		path := strings.TrimSpace(s)
		if path == "" {
			return fmt.Errorf("%s needs a file", spec.Label)
		}
		if ext := strings.ToLower(filepath.Ext(path)); len(spec.Extensions) > 0 && !slices.Contains(spec.Extensions, ext) {
			return fmt.Errorf("%s expects %s", spec.Label, strings.Join(spec.Extensions, ", "))
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() == 0 {
			return fmt.Errorf("%s is empty", filepath.Base(path))
		}
		return nil
	}
}
