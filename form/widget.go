package form

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/schema"
)

// Control is the input control a widget renders as.
type Control string

const (
	ControlTextArea Control = "textarea"
	ControlNumber   Control = "number"
	ControlToggle   Control = "toggle"
	ControlFile     Control = "file"
)

// WidgetSpec describes one input derived from a schema item. FieldID is
// unique within a rendered form even when labels repeat.
type WidgetSpec struct {
	FieldID     string          `json:"fieldId"`
	Label       string          `json:"label"`
	DataType    schema.DataType `json:"dataType"`
	Control     Control         `json:"control"`
	Accept      []string        `json:"accept,omitempty"`
	Extensions  []string        `json:"extensions,omitempty"`
	Description string          `json:"description,omitempty"`
	Required    bool            `json:"required"`
	Position    int             `json:"position"`
}

var (
	audioExtensions = []string{".wav", ".mp3", ".m4a", ".ogg", ".webm"}
	imageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".bmp", ".tiff"}
)

// Render maps every schema item to a widget, keeping order.
func Render(s schema.FormSchema) []WidgetSpec {
	specs := make([]WidgetSpec, 0, len(s))
	for idx, item := range s {
		specs = append(specs, renderItem(idx, item))
	}
	return specs
}

func renderItem(idx int, item schema.Item) WidgetSpec {
	spec := WidgetSpec{
		FieldID:     FieldID(item.Name, idx),
		Label:       item.Name,
		DataType:    item.DataType,
		Description: item.Description,
		Required:    true,
		Position:    idx,
	}
	switch item.DataType {
	case schema.Number:
		spec.Control = ControlNumber
	case schema.Boolean:
		spec.Control = ControlToggle
	case schema.Audio:
		spec.Control = ControlFile
		spec.Accept = []string{"audio/*"}
		spec.Extensions = append([]string(nil), audioExtensions...)
	case schema.Image:
		spec.Control = ControlFile
		spec.Accept = []string{"image/*"}
		spec.Extensions = append([]string(nil), imageExtensions...)
	default:
		spec.DataType = schema.Text
		spec.Control = ControlTextArea
	}
	return spec
}

// FieldID qualifies the slug of name with its schema position.
func FieldID(name string, position int) string {
	return Slug(name) + "_" + strconv.Itoa(position)
}

// Slug lowercases name and collapses every non alphanumeric run into "_".
func Slug(name string) string {
	var sb strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pendingSep = false
			sb.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if sb.Len() == 0 {
		return "field"
	}
	return sb.String()
}

// Find returns the spec with fieldID.
func Find(specs []WidgetSpec, fieldID string) (WidgetSpec, bool) {
	for _, spec := range specs {
		if spec.FieldID == fieldID {
			return spec, true
		}
	}
	return WidgetSpec{}, false
}
