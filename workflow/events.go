package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/form"
)

// Event names, also used as transition names in machines.yaml.
const (
	EventRegister     = "register"
	EventChooseManual = "choose_manual"
	EventSubmitManual = "submit_manual"
	EventTriggerAI    = "trigger_ai"
	EventCancel       = "cancel"

	EventLogin       = "login"
	EventFetchSchema = "fetch_schema"
	EventCapture     = "capture"
	EventSubmitField = "submit_field"
	EventSubmitAll   = "submit_all"
	EventLogout      = "logout"
)

// Event is one explicit user action.
type Event interface {
	monitoring.Message
}

// Register asks to register a patient and move to branching.
type Register struct {
	DoctorName  string `json:"doctorName"`
	PatientName string `json:"patientName"`
	Age         *int   `json:"age,omitempty"`
	SurgeryType string `json:"surgeryType"`
}

func (Register) Type() string    { return EventRegister }
func (Register) Validate() error { return nil }

type ChooseManual struct{}

func (ChooseManual) Type() string    { return EventChooseManual }
func (ChooseManual) Validate() error { return nil }

// SubmitManual sends doctor-authored parameters.
type SubmitManual struct {
	Parameters []form.ManualParameter `json:"parameters"`
}

func (SubmitManual) Type() string { return EventSubmitManual }

func (e SubmitManual) Validate() error {
	return form.ValidateParameters(e.Parameters)
}

type TriggerAI struct{}

func (TriggerAI) Type() string    { return EventTriggerAI }
func (TriggerAI) Validate() error { return nil }

type Cancel struct{}

func (Cancel) Type() string    { return EventCancel }
func (Cancel) Validate() error { return nil }

// Login identifies a patient and looks up their parameters.
type Login struct {
	PatientName string `json:"patientName"`
	DoctorName  string `json:"doctorName"`
	SurgeryType string `json:"surgeryType"`
}

func (Login) Type() string { return EventLogin }

func (e Login) Validate() error {
	return form.ValidateIdentification(e.Identification())
}

func (e Login) Identification() form.Identification {
	return form.Identification{
		PatientName: strings.TrimSpace(e.PatientName),
		DoctorName:  strings.TrimSpace(e.DoctorName),
		SurgeryType: strings.TrimSpace(e.SurgeryType),
	}
}

type FetchSchema struct{}

func (FetchSchema) Type() string    { return EventFetchSchema }
func (FetchSchema) Validate() error { return nil }

// Input is a raw value for one widget: Value for typed fields, Filename
// and Data for audio and image fields.
type Input struct {
	Value    string `json:"value,omitempty"`
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// Resolve turns in into the captured value spec expects.
func (in Input) Resolve(spec form.WidgetSpec) (form.CapturedValue, error) {
	if spec.DataType.IsBinary() {
		if len(in.Data) == 0 {
			return form.CapturedValue{}, monitoring.EmptyBinary(spec.FieldID)
		}
		filename := in.Filename
		if strings.TrimSpace(filename) == "" {
			filename = spec.FieldID
		}
		value := form.BinaryValue(filename, in.Data)
		if !form.MatchesDataType(spec.DataType, value.Binary.MediaType) {
			return form.CapturedValue{}, monitoring.InvalidValue(spec.FieldID, fmt.Sprintf("%s is not %s", value.Binary.MediaType, spec.DataType))
		}
		return value, nil
	}
	return form.ParseValue(spec.FieldID, spec.DataType, in.Value)
}

// Capture stores a value for one rendered field without any external call.
type Capture struct {
	FieldID string `json:"fieldId"`
	Input
}

func (Capture) Type() string { return EventCapture }

func (e Capture) Validate() error {
	if strings.TrimSpace(e.FieldID) == "" {
		return monitoring.MissingField("fieldId")
	}
	return nil
}

// SubmitField sends one field. Input, when set, is captured first.
type SubmitField struct {
	FieldID string `json:"fieldId"`
	Input   *Input `json:"input,omitempty"`
}

func (SubmitField) Type() string { return EventSubmitField }

func (e SubmitField) Validate() error {
	if strings.TrimSpace(e.FieldID) == "" {
		return monitoring.MissingField("fieldId")
	}
	return nil
}

// SubmitAll sends every field in one batch. Inputs are captured first.
type SubmitAll struct {
	Inputs map[string]Input `json:"inputs,omitempty"`
}

func (SubmitAll) Type() string    { return EventSubmitAll }
func (SubmitAll) Validate() error { return nil }

type Logout struct{}

func (Logout) Type() string    { return EventLogout }
func (Logout) Validate() error { return nil }

var eventFactories = map[string]func() Event{
	EventRegister:     func() Event { return &Register{} },
	EventChooseManual: func() Event { return &ChooseManual{} },
	EventSubmitManual: func() Event { return &SubmitManual{} },
	EventTriggerAI:    func() Event { return &TriggerAI{} },
	EventCancel:       func() Event { return &Cancel{} },
	EventLogin:        func() Event { return &Login{} },
	EventFetchSchema:  func() Event { return &FetchSchema{} },
	EventCapture:      func() Event { return &Capture{} },
	EventSubmitField:  func() Event { return &SubmitField{} },
	EventSubmitAll:    func() Event { return &SubmitAll{} },
	EventLogout:       func() Event { return &Logout{} },
}

// EventNames lists every known event name.
func EventNames() []string {
	return []string{
		EventRegister, EventChooseManual, EventSubmitManual, EventTriggerAI, EventCancel,
		EventLogin, EventFetchSchema, EventCapture, EventSubmitField, EventSubmitAll, EventLogout,
	}
}

// DecodeEvent builds the named event from a JSON body. An empty body is
// the zero event.
func DecodeEvent(name string, body []byte) (Event, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	factory, ok := eventFactories[name]
	if !ok {
		return nil, monitoring.InvalidValue("event", fmt.Sprintf("unknown event %q", name))
	}
	evt := factory()
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, evt); err != nil {
			return nil, monitoring.InvalidValue("event", err.Error())
		}
	}
	return deref(evt), nil
}

// deref returns the value form so callers can type-switch on plain structs.
func deref(evt Event) Event {
	switch e := evt.(type) {
	case *Register:
		return *e
	case *ChooseManual:
		return *e
	case *SubmitManual:
		return *e
	case *TriggerAI:
		return *e
	case *Cancel:
		return *e
	case *Login:
		return *e
	case *FetchSchema:
		return *e
	case *Capture:
		return *e
	case *SubmitField:
		return *e
	case *SubmitAll:
		return *e
	case *Logout:
		return *e
	}
	return evt
}
