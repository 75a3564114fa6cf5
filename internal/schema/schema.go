// Package schema implements the structural slot-schema documents embedded in
// archetype definitions. Schemas are data, loaded at runtime with the
// catalog; the validator walks a loosely-typed slot tree against them and
// collects every violation instead of stopping at the first. The special
// "condition" field type delegates its subtree to the condition grammar.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stratdeck/stratdeck/internal/condition"
	"github.com/stratdeck/stratdeck/internal/diag"
)

// Field types understood by the validator.
const (
	TypeObject    = "object"
	TypeString    = "string"
	TypeNumber    = "number"
	TypeInteger   = "integer"
	TypeBoolean   = "boolean"
	TypeArray     = "array"
	TypeCondition = "condition"
)

// Issue codes emitted by structural validation.
const (
	CodeSlotMissing = "SLOT_MISSING"
	CodeSlotType    = "SLOT_TYPE"
	CodeSlotEnum    = "SLOT_ENUM"
	CodeSlotRange   = "SLOT_RANGE"
	CodeSlotUnknown = "SLOT_UNKNOWN"
)

// Doc is one node of a structural schema. Objects close over their declared
// properties unless AllowExtra is set, so typos in slot names surface as
// diagnostics instead of being silently ignored.
type Doc struct {
	Type        string          `yaml:"type" json:"type"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	Required    []string        `yaml:"required,omitempty" json:"required,omitempty"`
	Properties  map[string]*Doc `yaml:"properties,omitempty" json:"properties,omitempty"`
	Items       *Doc            `yaml:"items,omitempty" json:"items,omitempty"`
	Enum        []interface{}   `yaml:"enum,omitempty" json:"enum,omitempty"`
	Minimum     *float64        `yaml:"minimum,omitempty" json:"minimum,omitempty"`
	Maximum     *float64        `yaml:"maximum,omitempty" json:"maximum,omitempty"`
	MinItems    *int            `yaml:"min_items,omitempty" json:"min_items,omitempty"`
	AllowExtra  bool            `yaml:"allow_extra,omitempty" json:"allow_extra,omitempty"`
}

// Check verifies the schema document itself is well-formed. The registry
// calls this at load time and refuses to start on failure.
func (d *Doc) Check(path string) error {
	if d == nil {
		return fmt.Errorf("schema node at '%s' is nil", path)
	}
	switch d.Type {
	case TypeObject:
		for _, req := range d.Required {
			if _, ok := d.Properties[req]; !ok {
				return fmt.Errorf("schema at '%s': required field '%s' has no property declaration", path, req)
			}
		}
		names := make([]string, 0, len(d.Properties))
		for name := range d.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := d.Properties[name].Check(path + "." + name); err != nil {
				return err
			}
		}
	case TypeArray:
		if d.Items == nil {
			return fmt.Errorf("schema at '%s': array without 'items'", path)
		}
		if err := d.Items.Check(path + "[]"); err != nil {
			return err
		}
	case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeCondition:
		// Leaf types carry no nested structure to check.
	case "":
		return fmt.Errorf("schema at '%s': missing 'type'", path)
	default:
		return fmt.Errorf("schema at '%s': unknown type '%s'", path, d.Type)
	}
	if d.Minimum != nil && d.Maximum != nil && *d.Minimum > *d.Maximum {
		return fmt.Errorf("schema at '%s': minimum %v exceeds maximum %v", path, *d.Minimum, *d.Maximum)
	}
	return nil
}

// Validate walks a raw value against the schema rooted at path, collecting
// every violation.
func (d *Doc) Validate(v interface{}, path string) diag.List {
	var issues diag.List
	d.validate(v, path, &issues)
	return issues
}

func (d *Doc) validate(v interface{}, path string, issues *diag.List) {
	switch d.Type {
	case TypeObject:
		m, ok := normalizeMap(v)
		if !ok {
			*issues = append(*issues, diag.Errorf(CodeSlotType, path, "expected an object, got %s", typeName(v)))
			return
		}
		for _, req := range d.Required {
			if _, present := m[req]; !present {
				*issues = append(*issues, diag.Errorf(CodeSlotMissing, joinPath(path, req), "required field is missing"))
			}
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child, declared := d.Properties[k]
			if !declared {
				if !d.AllowExtra {
					*issues = append(*issues, diag.Errorf(CodeSlotUnknown, joinPath(path, k), "unknown field"))
				}
				continue
			}
			child.validate(m[k], joinPath(path, k), issues)
		}

	case TypeArray:
		s, ok := v.([]interface{})
		if !ok {
			*issues = append(*issues, diag.Errorf(CodeSlotType, path, "expected an array, got %s", typeName(v)))
			return
		}
		if d.MinItems != nil && len(s) < *d.MinItems {
			*issues = append(*issues, diag.Errorf(CodeSlotRange, path, "requires at least %d items, got %d", *d.MinItems, len(s)))
		}
		for i, item := range s {
			d.Items.validate(item, fmt.Sprintf("%s[%d]", path, i), issues)
		}

	case TypeString:
		s, ok := v.(string)
		if !ok {
			*issues = append(*issues, diag.Errorf(CodeSlotType, path, "expected a string, got %s", typeName(v)))
			return
		}
		d.checkEnum(s, path, issues)

	case TypeNumber:
		f, ok := asFloat(v)
		if !ok {
			*issues = append(*issues, diag.Errorf(CodeSlotType, path, "expected a number, got %s", typeName(v)))
			return
		}
		d.checkRange(f, path, issues)
		d.checkEnum(v, path, issues)

	case TypeInteger:
		f, ok := asFloat(v)
		if !ok || f != float64(int64(f)) {
			*issues = append(*issues, diag.Errorf(CodeSlotType, path, "expected an integer, got %s", typeName(v)))
			return
		}
		d.checkRange(f, path, issues)
		d.checkEnum(v, path, issues)

	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			*issues = append(*issues, diag.Errorf(CodeSlotType, path, "expected a boolean, got %s", typeName(v)))
		}

	case TypeCondition:
		*issues = append(*issues, condition.Validate(v, path)...)
	}
}

func (d *Doc) checkEnum(v interface{}, path string, issues *diag.List) {
	if len(d.Enum) == 0 {
		return
	}
	for _, allowed := range d.Enum {
		if looseEqual(v, allowed) {
			return
		}
	}
	*issues = append(*issues, diag.Errorf(CodeSlotEnum, path, "value %v must be one of %s", v, formatEnum(d.Enum)))
}

func (d *Doc) checkRange(f float64, path string, issues *diag.List) {
	if d.Minimum != nil && f < *d.Minimum {
		*issues = append(*issues, diag.Errorf(CodeSlotRange, path, "value %v is below minimum %v", f, *d.Minimum))
	}
	if d.Maximum != nil && f > *d.Maximum {
		*issues = append(*issues, diag.Errorf(CodeSlotRange, path, "value %v is above maximum %v", f, *d.Maximum))
	}
}

// normalizeMap accepts both map shapes YAML and JSON decoders produce.
func normalizeMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	}
	return 0, false
}

func looseEqual(a, b interface{}) bool {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
		return false
	}
	return a == b
}

func formatEnum(enum []interface{}) string {
	parts := make([]string, len(enum))
	for i, e := range enum {
		parts[i] = fmt.Sprintf("%v", e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int64, float64, float32:
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}, map[interface{}]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func joinPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}
