package form

import (
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/goliatone/go-errors"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/schema"
)

// Action names one outbound request a role can make.
type Action string

const (
	ActionRegister    Action = "register"
	ActionManualSetup Action = "manual_setup"
	ActionAISetup     Action = "ai_setup"
	ActionLookup      Action = "lookup"
	ActionFetchSchema Action = "fetch_schema"
	ActionSubmitAll   Action = "submit_all"
	ActionSubmitField Action = "submit_field"
)

var roleActions = map[monitoring.Role][]Action{
	monitoring.RoleDoctor:  {ActionRegister, ActionManualSetup, ActionAISetup},
	monitoring.RolePatient: {ActionLookup, ActionFetchSchema, ActionSubmitAll, ActionSubmitField},
}

// AllowedFor reports whether role may issue action.
func (a Action) AllowedFor(role monitoring.Role) bool {
	for _, allowed := range roleActions[role] {
		if allowed == a {
			return true
		}
	}
	return false
}

const (
	MinAge = 0
	MaxAge = 120
)

// PatientIdentity is what a doctor registers.
type PatientIdentity struct {
	PatientID   string `json:"patientId"`
	DoctorName  string `json:"doctorName"`
	PatientName string `json:"patientName"`
	Age         *int   `json:"age,omitempty"`
	SurgeryType string `json:"surgeryType"`
}

// Identification is what a patient logs in with.
type Identification struct {
	PatientName string `json:"patientName"`
	DoctorName  string `json:"doctorName"`
	SurgeryType string `json:"surgeryType"`
}

// ManualParameter is one doctor-defined monitoring parameter.
type ManualParameter struct {
	Name      string          `json:"name"`
	Threshold string          `json:"threshold"`
	DataType  schema.DataType `json:"dataType"`
}

// Request carries every input a build may need; each action reads only its
// own fields.
type Request struct {
	Identity       *PatientIdentity
	Identification *Identification
	Parameters     []ManualParameter
	Specs          []WidgetSpec
	Captured       map[string]CapturedValue
	FieldID        string
}

// File is a binary value that may travel as a multipart part.
type File struct {
	Field     string
	Filename  string
	MediaType string
	Data      []byte
}

// Payload is a fully validated request body.
type Payload struct {
	Action Action
	Body   any
	Files  []File
}

// Wire shapes. Keys match what the automation backend reads.
type (
	RegistrationBody struct {
		PatientID   string `json:"Patient ID"`
		DoctorName  string `json:"Doc Name"`
		PatientName string `json:"Patient Name"`
		PatientAge  *int   `json:"Patient Age"`
		SurgeryType string `json:"Surgery Type"`
	}

	ManualSetupBody struct {
		PatientInfo RegistrationBody      `json:"patient_info"`
		Parameters  []ManualParameterBody `json:"parameters"`
	}

	ManualParameterBody struct {
		Name      string          `json:"name"`
		Threshold string          `json:"threshold"`
		DataType  schema.DataType `json:"data_type"`
	}

	LookupBody struct {
		PatientName string `json:"Patient Name"`
		DoctorName  string `json:"Doc Name"`
		SurgeryType string `json:"Surgery Type"`
	}

	BatchBody struct {
		Identification LookupBody     `json:"identification"`
		Readings       map[string]any `json:"readings"`
	}

	FieldBody struct {
		Patient   string          `json:"patient"`
		Parameter string          `json:"parameter"`
		Type      schema.DataType `json:"type"`
		Data      any             `json:"data"`
	}

	BinaryEnvelope struct {
		Filename string `json:"filename"`
		Base64   string `json:"base64"`
	}
)

// Build validates req for action and produces its payload. It is
// all-or-nothing: any violation returns an error and no payload.
func Build(role monitoring.Role, action Action, req Request) (Payload, error) {
	if !action.AllowedFor(role) {
		return Payload{}, monitoring.InvalidTransition(string(role), string(action))
	}
	switch action {
	case ActionRegister, ActionAISetup:
		body, err := registrationBody(req.Identity)
		if err != nil {
			return Payload{}, err
		}
		return Payload{Action: action, Body: body}, nil
	case ActionManualSetup:
		return buildManualSetup(req)
	case ActionLookup, ActionFetchSchema:
		body, err := lookupBody(req.Identification)
		if err != nil {
			return Payload{}, err
		}
		return Payload{Action: action, Body: body}, nil
	case ActionSubmitAll:
		return buildBatch(req)
	case ActionSubmitField:
		return buildField(req)
	}
	return Payload{}, monitoring.InvalidTransition(string(role), string(action))
}

// ValidateIdentity checks the registration fields of id, PatientID excluded.
func ValidateIdentity(id PatientIdentity) error {
	switch {
	case blank(id.DoctorName):
		return monitoring.MissingField("doctor_name")
	case blank(id.PatientName):
		return monitoring.MissingField("patient_name")
	case blank(id.SurgeryType):
		return monitoring.MissingField("surgery_type")
	}
	if id.Age != nil && (*id.Age < MinAge || *id.Age > MaxAge) {
		return monitoring.InvalidValue("patient_age", fmt.Sprintf("must be between %d and %d", MinAge, MaxAge))
	}
	return nil
}

func ValidateIdentification(id Identification) error {
	switch {
	case blank(id.PatientName):
		return monitoring.MissingField("patient_name")
	case blank(id.DoctorName):
		return monitoring.MissingField("doctor_name")
	case blank(id.SurgeryType):
		return monitoring.MissingField("surgery_type")
	}
	return nil
}

// ManualDataTypes are the types a doctor can pick for a manual parameter.
func ManualDataTypes() []schema.DataType {
	return []schema.DataType{schema.Text, schema.Audio, schema.Image}
}

// ValidateParameters requires at least one named parameter of a manual type.
func ValidateParameters(params []ManualParameter) error {
	if len(params) == 0 {
		return monitoring.MissingField("parameters")
	}
	for i, p := range params {
		if blank(p.Name) {
			return monitoring.MissingField(fmt.Sprintf("parameters[%d].name", i))
		}
		if !slices.Contains(ManualDataTypes(), p.DataType) {
			return monitoring.InvalidValue(fmt.Sprintf("parameters[%d].data_type", i), fmt.Sprintf("data type %q is not text, audio or image", p.DataType))
		}
	}
	return nil
}

func registrationBody(id *PatientIdentity) (RegistrationBody, error) {
	if id == nil {
		return RegistrationBody{}, monitoring.MissingField("patient_identity")
	}
	if blank(id.PatientID) {
		return RegistrationBody{}, monitoring.MissingField("patient_id")
	}
	if err := ValidateIdentity(*id); err != nil {
		return RegistrationBody{}, err
	}
	return RegistrationBody{
		PatientID:   id.PatientID,
		DoctorName:  strings.TrimSpace(id.DoctorName),
		PatientName: strings.TrimSpace(id.PatientName),
		PatientAge:  id.Age,
		SurgeryType: strings.TrimSpace(id.SurgeryType),
	}, nil
}

func lookupBody(id *Identification) (LookupBody, error) {
	if id == nil {
		return LookupBody{}, monitoring.MissingField("identification")
	}
	if err := ValidateIdentification(*id); err != nil {
		return LookupBody{}, err
	}
	return LookupBody{
		PatientName: strings.TrimSpace(id.PatientName),
		DoctorName:  strings.TrimSpace(id.DoctorName),
		SurgeryType: strings.TrimSpace(id.SurgeryType),
	}, nil
}

func buildManualSetup(req Request) (Payload, error) {
	info, err := registrationBody(req.Identity)
	if err != nil {
		return Payload{}, err
	}
	if err := ValidateParameters(req.Parameters); err != nil {
		return Payload{}, err
	}
	params := make([]ManualParameterBody, 0, len(req.Parameters))
	for _, p := range req.Parameters {
		params = append(params, ManualParameterBody{
			Name:      strings.TrimSpace(p.Name),
			Threshold: strings.TrimSpace(p.Threshold),
			DataType:  p.DataType,
		})
	}
	return Payload{
		Action: ActionManualSetup,
		Body:   ManualSetupBody{PatientInfo: info, Parameters: params},
	}, nil
}

func buildBatch(req Request) (Payload, error) {
	ident, err := lookupBody(req.Identification)
	if err != nil {
		return Payload{}, err
	}
	if len(req.Specs) == 0 {
		return Payload{}, monitoring.SchemaEmpty()
	}
	resolved, err := resolveAll(req.Specs, req.Captured)
	if err != nil {
		return Payload{}, err
	}
	keys := ReadingKeys(req.Specs)
	readings := make(map[string]any, len(req.Specs))
	var files []File
	for i, value := range resolved {
		key := keys[i]
		readings[key] = readingValue(value)
		if value.Kind == KindBinary {
			files = append(files, File{Field: key, Filename: value.Binary.Filename, MediaType: value.Binary.MediaType, Data: value.Binary.Data})
		}
	}
	return Payload{
		Action: ActionSubmitAll,
		Body:   BatchBody{Identification: ident, Readings: readings},
		Files:  files,
	}, nil
}

func buildField(req Request) (Payload, error) {
	ident, err := lookupBody(req.Identification)
	if err != nil {
		return Payload{}, err
	}
	spec, ok := Find(req.Specs, req.FieldID)
	if !ok {
		return Payload{}, monitoring.InvalidValue(req.FieldID, "unknown field")
	}
	value, err := resolve(spec, req.Captured)
	if err != nil {
		return Payload{}, err
	}
	body := FieldBody{
		Patient:   ident.PatientName,
		Parameter: spec.Label,
		Type:      spec.DataType,
	}
	switch value.Kind {
	case KindBinary:
		body.Data = envelope(value.Binary)
	default:
		body.Data = value.String()
	}
	return Payload{Action: ActionSubmitField, Body: body}, nil
}

// resolveAll checks every spec before failing so the error can list all
// offending fields; the first one is the primary field id.
func resolveAll(specs []WidgetSpec, captured map[string]CapturedValue) ([]CapturedValue, error) {
	out := make([]CapturedValue, len(specs))
	var first error
	var violations []string
	for i, spec := range specs {
		v, err := resolve(spec, captured)
		if err != nil {
			if first == nil {
				first = err
			}
			violations = append(violations, spec.FieldID)
			continue
		}
		out[i] = v
	}
	if first != nil {
		return nil, withViolations(first, violations)
	}
	return out, nil
}

// resolve returns the normalized value for spec: trimmed text, parsed
// numbers, false for an absent boolean and a non-empty binary.
func resolve(spec WidgetSpec, captured map[string]CapturedValue) (CapturedValue, error) {
	value, present := captured[spec.FieldID]
	switch spec.DataType {
	case schema.Boolean:
		if !present {
			return BoolValue(false), nil
		}
		switch value.Kind {
		case KindBoolean:
			return value, nil
		case KindText:
			return ParseValue(spec.FieldID, spec.DataType, value.Text)
		}
	case schema.Number:
		if !present {
			return CapturedValue{}, monitoring.MissingField(spec.FieldID)
		}
		switch value.Kind {
		case KindNumber:
			if !finite(value.Number) {
				return CapturedValue{}, monitoring.InvalidValue(spec.FieldID, "not a finite number")
			}
			return value, nil
		case KindText:
			if blank(value.Text) {
				return CapturedValue{}, monitoring.MissingField(spec.FieldID)
			}
			return ParseValue(spec.FieldID, spec.DataType, value.Text)
		}
	case schema.Audio, schema.Image:
		if !present || value.Kind != KindBinary || value.Binary == nil {
			if present && value.Kind != KindBinary {
				return CapturedValue{}, monitoring.InvalidValue(spec.FieldID, "expected a file upload")
			}
			return CapturedValue{}, monitoring.MissingField(spec.FieldID)
		}
		if len(value.Binary.Data) == 0 {
			return CapturedValue{}, monitoring.EmptyBinary(spec.FieldID)
		}
		if !MatchesDataType(spec.DataType, value.Binary.MediaType) {
			return CapturedValue{}, monitoring.InvalidValue(spec.FieldID, fmt.Sprintf("%s is not an %s file", value.Binary.MediaType, spec.DataType))
		}
		bin := *value.Binary
		if blank(bin.Filename) {
			bin.Filename = spec.FieldID
		}
		return CapturedValue{Kind: KindBinary, Binary: &bin}, nil
	default:
		if !present {
			return CapturedValue{}, monitoring.MissingField(spec.FieldID)
		}
		text := strings.TrimSpace(value.String())
		if text == "" {
			return CapturedValue{}, monitoring.MissingField(spec.FieldID)
		}
		return TextValue(text), nil
	}
	return CapturedValue{}, monitoring.InvalidValue(spec.FieldID, fmt.Sprintf("%s value for a %s field", value.Kind, spec.DataType))
}

func readingValue(v CapturedValue) any {
	switch v.Kind {
	case KindNumber:
		return v.Number
	case KindBoolean:
		return v.Boolean
	case KindBinary:
		return envelope(v.Binary)
	}
	return v.Text
}

func envelope(b *Binary) BinaryEnvelope {
	return BinaryEnvelope{
		Filename: b.Filename,
		Base64:   base64.StdEncoding.EncodeToString(b.Data),
	}
}

// ReadingKeys names each spec in a batched submission: the label when it is
// unique, "label [n]" with the 1-based position when it repeats.
func ReadingKeys(specs []WidgetSpec) []string {
	counts := make(map[string]int, len(specs))
	for _, spec := range specs {
		counts[spec.Label]++
	}
	keys := make([]string, len(specs))
	for i, spec := range specs {
		if counts[spec.Label] > 1 {
			keys[i] = fmt.Sprintf("%s [%d]", spec.Label, spec.Position+1)
			continue
		}
		keys[i] = spec.Label
	}
	return keys
}

func withViolations(err error, violations []string) error {
	var ge *apperrors.Error
	if len(violations) < 2 || !stderrors.As(err, &ge) {
		return err
	}
	return ge.WithMetadata(map[string]any{
		monitoring.MetaFieldID:    violations[0],
		monitoring.MetaViolations: violations,
	})
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
