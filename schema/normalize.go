package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/logging"
)

// Aliases tried in order when reading a raw item.
var (
	NameKeys        = []string{"name", "parameter", "Parameter Name"}
	TypeKeys        = []string{"dataType", "data_type", "type"}
	DescriptionKeys = []string{"description"}
)

const fieldsKey = "fields"

const (
	ReasonUnknownType = "unknown data type, using text"
	ReasonMissingType = "missing data type, using text"
	ReasonMissingName = "missing name, using placeholder"
)

// Normalize converts a raw decoded schema, either a bare list or an object
// with a "fields" list, into a FormSchema. Order and duplicates are kept.
func Normalize(raw any) (FormSchema, []Warning, error) {
	items, err := rawItems(raw)
	if err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		return nil, nil, monitoring.SchemaEmpty()
	}

	out := make(FormSchema, 0, len(items))
	var warnings []Warning
	for idx, entry := range items {
		obj, ok := asObject(entry)
		if !ok {
			return nil, nil, monitoring.SchemaMalformed(fmt.Sprintf("item %d is %T, expected an object", idx, entry), nil)
		}
		item, itemWarnings := normalizeItem(idx, obj)
		out = append(out, item)
		warnings = append(warnings, itemWarnings...)
	}
	return out, warnings, nil
}

// NormalizeJSON decodes data and normalizes it.
func NormalizeJSON(data []byte) (FormSchema, []Warning, error) {
	raw, err := Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return Normalize(raw)
}

// Decode parses a JSON document keeping numbers as json.Number.
func Decode(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, monitoring.SchemaMalformed("empty document", nil)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, monitoring.SchemaMalformed("invalid JSON", err)
	}
	return raw, nil
}

func rawItems(raw any) ([]any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, monitoring.SchemaMalformed("no schema", nil)
	case []any:
		return v, nil
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	case map[string]any:
		fields, ok := v[fieldsKey]
		if !ok {
			return nil, monitoring.SchemaMalformed(`object without "fields" list`, nil)
		}
		list, ok := fields.([]any)
		switch {
		case fields == nil:
			return nil, monitoring.SchemaMalformed(`"fields" is null, expected a list`, nil)
		case !ok:
			return nil, monitoring.SchemaMalformed(fmt.Sprintf(`"fields" is %T, expected a list`, fields), nil)
		}
		return list, nil
	default:
		return nil, monitoring.SchemaMalformed(fmt.Sprintf("schema is %T, expected a list", raw), nil)
	}
}

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, true
	case map[string]string:
		out := make(map[string]any, len(obj))
		for k, val := range obj {
			out[k] = val
		}
		return out, true
	}
	return nil, false
}

func normalizeItem(idx int, obj map[string]any) (Item, []Warning) {
	var warnings []Warning

	name, ok := lookupString(obj, NameKeys)
	if !ok {
		name = fmt.Sprintf("Parameter %d", idx+1)
		warnings = append(warnings, Warning{Index: idx, Name: name, Reason: ReasonMissingName})
	}

	dt := Text
	rawType, present := lookup(obj, TypeKeys)
	switch {
	case !present || rawType == nil:
		warnings = append(warnings, Warning{Index: idx, Name: name, Reason: ReasonMissingType})
	default:
		text, isString := rawType.(string)
		parsed, valid := ParseDataType(text)
		if isString && valid {
			dt = parsed
		} else {
			warnings = append(warnings, Warning{Index: idx, Name: name, Value: fmt.Sprint(rawType), Reason: ReasonUnknownType})
		}
	}

	description, _ := lookupString(obj, DescriptionKeys)
	return Item{Name: name, DataType: dt, Description: description}, warnings
}

// lookup tries exact keys in alias order, then a case-insensitive pass in
// the same order.
func lookup(obj map[string]any, aliases []string) (any, bool) {
	for _, key := range aliases {
		if v, ok := obj[key]; ok {
			return v, true
		}
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, alias := range aliases {
		for _, k := range keys {
			if strings.EqualFold(strings.TrimSpace(k), alias) {
				return obj[k], true
			}
		}
	}
	return nil, false
}

// lookupString is lookup restricted to non-blank scalar values. A blank
// value under an earlier alias does not hide a later one.
func lookupString(obj map[string]any, aliases []string) (string, bool) {
	for _, alias := range aliases {
		v, ok := lookup(obj, []string{alias})
		if !ok {
			continue
		}
		if s := scalarString(v); s != "" {
			return s, true
		}
	}
	return "", false
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	}
	return ""
}

// Normalizer logs warnings produced by Normalize.
type Normalizer struct {
	logger logging.Logger
}

func NewNormalizer(logger logging.Logger) *Normalizer {
	return &Normalizer{logger: logging.Normalize(logger)}
}

func (n *Normalizer) Normalize(raw any) (FormSchema, []Warning, error) {
	out, warnings, err := Normalize(raw)
	n.report(warnings, err)
	return out, warnings, err
}

func (n *Normalizer) NormalizeJSON(data []byte) (FormSchema, []Warning, error) {
	out, warnings, err := NormalizeJSON(data)
	n.report(warnings, err)
	return out, warnings, err
}

func (n *Normalizer) report(warnings []Warning, err error) {
	var logger logging.Logger = logging.Nop{}
	if n != nil && n.logger != nil {
		logger = n.logger
	}
	if err != nil {
		logger.Debug("schema normalization failed: %v", err)
		return
	}
	for _, w := range warnings {
		logging.WithFields(logger, map[string]any{
			"item_index": w.Index,
			"item_name":  w.Name,
			"raw_value":  w.Value,
		}).Warn("schema item normalized: %s", w.Reason)
	}
}
