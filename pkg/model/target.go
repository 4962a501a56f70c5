package model

import (
	"strconv"
	"strings"
)

// Reserved attribute names resolved from Target fields rather than the
// attribute map.
const (
	AttrIdentifier = "identifier"
	AttrName       = "name"
)

// Target is the principal a flag is evaluated for. Attribute values are
// primitive: string, bool, number, or a list of strings. Anonymous targets
// are excluded from the attribute-carrying side of telemetry.
type Target struct {
	Identifier string                 `json:"identifier"`
	Name       string                 `json:"name,omitempty"`
	Anonymous  bool                   `json:"anonymous,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Attribute resolves an attribute by name to its string form. Reserved names
// read the identifier and name fields; everything else consults the attribute
// map. The second return is false when the attribute is absent.
func (t *Target) Attribute(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	switch name {
	case AttrIdentifier:
		return t.Identifier, true
	case AttrName:
		return t.Name, true
	}
	v, ok := t.Attributes[name]
	if !ok || v == nil {
		return "", false
	}
	return AttributeToString(v), true
}

// AttributeToString renders a primitive attribute value the way the wire
// format does: numbers without exponent noise, lists comma-joined.
func AttributeToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []string:
		return strings.Join(val, ",")
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, e := range val {
			parts = append(parts, AttributeToString(e))
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}
