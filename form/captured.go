package form

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/schema"
)

// Kind tags the variant held by a CapturedValue.
type Kind string

const (
	KindText    Kind = "text"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindBinary  Kind = "binary"
)

// Binary is an uploaded file kept fully in memory.
type Binary struct {
	Filename  string `json:"filename"`
	MediaType string `json:"mediaType,omitempty"`
	Data      []byte `json:"data"`
}

// CapturedValue is what the user entered for one widget. Exactly one of the
// payload fields is meaningful, selected by Kind.
type CapturedValue struct {
	Kind    Kind    `json:"kind"`
	Text    string  `json:"text,omitempty"`
	Number  float64 `json:"number,omitempty"`
	Boolean bool    `json:"boolean,omitempty"`
	Binary  *Binary `json:"binary,omitempty"`
}

func TextValue(s string) CapturedValue {
	return CapturedValue{Kind: KindText, Text: s}
}

func NumberValue(n float64) CapturedValue {
	return CapturedValue{Kind: KindNumber, Number: n}
}

func BoolValue(b bool) CapturedValue {
	return CapturedValue{Kind: KindBoolean, Boolean: b}
}

func BinaryValue(filename string, data []byte) CapturedValue {
	return CapturedValue{Kind: KindBinary, Binary: &Binary{
		Filename:  filepath.Base(filename),
		MediaType: DetectMediaType(filename, data),
		Data:      data,
	}}
}

// ReadBinary drains r into memory.
func ReadBinary(filename string, r io.Reader) (CapturedValue, error) {
	if r == nil {
		return BinaryValue(filename, nil), nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return CapturedValue{}, fmt.Errorf("read %s: %w", filename, err)
	}
	return BinaryValue(filename, data), nil
}

// ParseValue converts raw text typed by a user into the value expected by dt.
// Binary types cannot be parsed from text.
func ParseValue(fieldID string, dt schema.DataType, raw string) (CapturedValue, error) {
	switch dt {
	case schema.Number:
		n, err := parseNumber(raw)
		if err != nil {
			return CapturedValue{}, monitoring.InvalidValue(fieldID, err.Error())
		}
		return NumberValue(n), nil
	case schema.Boolean:
		b, err := parseBool(raw)
		if err != nil {
			return CapturedValue{}, monitoring.InvalidValue(fieldID, "expected yes or no")
		}
		return BoolValue(b), nil
	case schema.Audio, schema.Image:
		return CapturedValue{}, monitoring.InvalidValue(fieldID, "expected a file upload")
	default:
		return TextValue(raw), nil
	}
}

func (v CapturedValue) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return formatNumber(v.Number)
	case KindBoolean:
		return strconv.FormatBool(v.Boolean)
	case KindBinary:
		if v.Binary == nil {
			return ""
		}
		return v.Binary.Filename
	}
	return ""
}

// parseNumber accepts finite decimal numbers only. NaN and infinities
// cannot be encoded as JSON.
func parseNumber(raw string) (float64, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || !finite(n) {
		return 0, errors.New("not a finite number")
	}
	return n, nil
}

func finite(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off", "":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(raw))
}

// CloneValues copies the map; binary payloads are shared.
func CloneValues(in map[string]CapturedValue) map[string]CapturedValue {
	if in == nil {
		return nil
	}
	out := make(map[string]CapturedValue, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
