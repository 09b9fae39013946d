package schema

import "strings"

// DataType is the kind of value a monitoring parameter captures.
type DataType string

const (
	Text    DataType = "text"
	Number  DataType = "number"
	Boolean DataType = "boolean"
	Audio   DataType = "audio"
	Image   DataType = "image"
)

var dataTypes = []DataType{Text, Number, Boolean, Audio, Image}

// DataTypes lists every supported type in display order.
func DataTypes() []DataType {
	out := make([]DataType, len(dataTypes))
	copy(out, dataTypes)
	return out
}

func (d DataType) Valid() bool {
	for _, dt := range dataTypes {
		if d == dt {
			return true
		}
	}
	return false
}

// IsBinary reports whether values of this type are uploaded files.
func (d DataType) IsBinary() bool {
	return d == Audio || d == Image
}

func (d DataType) String() string {
	return string(d)
}

// ParseDataType trims and lowercases value before matching.
func ParseDataType(value string) (DataType, bool) {
	dt := DataType(strings.ToLower(strings.TrimSpace(value)))
	if !dt.Valid() {
		return Text, false
	}
	return dt, true
}

// Item is one canonical monitoring parameter.
type Item struct {
	Name        string   `json:"name" yaml:"name"`
	DataType    DataType `json:"dataType" yaml:"dataType"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// FormSchema is the ordered parameter list for one patient. Names may repeat.
type FormSchema []Item

func (s FormSchema) Empty() bool {
	return len(s) == 0
}

// Names returns the item names in order, duplicates included.
func (s FormSchema) Names() []string {
	names := make([]string, len(s))
	for i, item := range s {
		names[i] = item.Name
	}
	return names
}

// Warning describes a lossy normalization decision.
type Warning struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}
