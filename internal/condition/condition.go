// Package condition defines the recursive boolean grammar used by trigger and
// gate archetypes: a regime leaf comparing a market metric against a value,
// plus allOf / anyOf / sequence combinators. Condition documents arrive as
// loosely-typed slot subtrees; this package validates them structurally and
// semantically and parses them into a closed sum type for the compiled plan.
package condition

import (
	"fmt"
)

// Type tags the condition variant.
type Type string

const (
	TypeRegime   Type = "regime"
	TypeAllOf    Type = "allOf"
	TypeAnyOf    Type = "anyOf"
	TypeSequence Type = "sequence"
)

// Op is a comparison operator for regime leaves.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpGt Op = ">"
	OpGe Op = ">="
	OpLt Op = "<"
	OpLe Op = "<="
)

// equalityOnly reports whether the operator is one of ==/!=.
func (o Op) equalityOnly() bool { return o == OpEq || o == OpNe }

func validOp(o Op) bool {
	switch o {
	case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe:
		return true
	}
	return false
}

// MaxDepth bounds condition nesting. Documents deeper than this fail with a
// structural error rather than costing unbounded compile time.
const MaxDepth = 16

// Spec is the condition tree as a closed sum: exactly one of the per-variant
// payloads is set, selected by Type. Adding a variant requires touching every
// switch over Type, which is the point.
type Spec struct {
	Type Type `json:"type" yaml:"type"`

	// TypeRegime
	Regime *RegimeLeaf `json:"regime,omitempty" yaml:"regime,omitempty"`

	// TypeAllOf / TypeAnyOf
	Conditions []Spec `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	// TypeSequence
	Steps []SequenceStep `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// RegimeLeaf is an atomic comparison of a named market metric.
type RegimeLeaf struct {
	Metric string      `json:"metric" yaml:"metric"`
	TF     string      `json:"tf,omitempty" yaml:"tf,omitempty"`
	Op     Op          `json:"op" yaml:"op"`
	Value  interface{} `json:"value" yaml:"value"`

	// Metric-specific auxiliary fields. Which of these are required is
	// declared per metric in the metric table.
	MAFast       *int   `json:"ma_fast,omitempty" yaml:"ma_fast,omitempty"`
	MASlow       *int   `json:"ma_slow,omitempty" yaml:"ma_slow,omitempty"`
	Session      string `json:"session,omitempty" yaml:"session,omitempty"`
	LookbackBars *int   `json:"lookback_bars,omitempty" yaml:"lookback_bars,omitempty"`
}

// SequenceStep is one step of an ordered sequence: the step's condition must
// occur within WithinBars bars after the previous step fired.
type SequenceStep struct {
	Cond       Spec `json:"cond" yaml:"cond"`
	WithinBars int  `json:"within_bars" yaml:"within_bars"`
}

// Parse decodes a raw condition subtree (as produced by JSON or YAML
// decoding of a slot payload) into a typed Spec. A bare regime leaf — a map
// with a "metric" key and no "type" tag — is accepted and wrapped, matching
// the legacy RegimeSpec form. Parse reports only structural problems; run
// Validate for the full diagnostic pass.
func Parse(v interface{}) (*Spec, error) {
	return parseNode(v, 0)
}

func parseNode(v interface{}, depth int) (*Spec, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("condition nesting exceeds %d levels", MaxDepth)
	}
	m, ok := asMap(v)
	if !ok {
		return nil, fmt.Errorf("condition must be an object, got %T", v)
	}

	rawType, hasType := m["type"]
	if !hasType {
		if _, hasMetric := m["metric"]; hasMetric {
			leaf, err := parseLeaf(m)
			if err != nil {
				return nil, err
			}
			return &Spec{Type: TypeRegime, Regime: leaf}, nil
		}
		return nil, fmt.Errorf("condition object missing 'type' tag")
	}

	typeStr, ok := rawType.(string)
	if !ok {
		return nil, fmt.Errorf("condition 'type' must be a string, got %T", rawType)
	}

	switch Type(typeStr) {
	case TypeRegime:
		leafRaw, ok := m["regime"]
		if !ok {
			// Leaf fields inlined next to the tag are also accepted.
			leafRaw = m
		}
		lm, ok := asMap(leafRaw)
		if !ok {
			return nil, fmt.Errorf("'regime' payload must be an object, got %T", leafRaw)
		}
		leaf, err := parseLeaf(lm)
		if err != nil {
			return nil, err
		}
		return &Spec{Type: TypeRegime, Regime: leaf}, nil

	case TypeAllOf, TypeAnyOf:
		children, ok := asSlice(m["conditions"])
		if !ok {
			return nil, fmt.Errorf("'%s' requires a 'conditions' array", typeStr)
		}
		specs := make([]Spec, 0, len(children))
		for _, c := range children {
			child, err := parseNode(c, depth+1)
			if err != nil {
				return nil, err
			}
			specs = append(specs, *child)
		}
		return &Spec{Type: Type(typeStr), Conditions: specs}, nil

	case TypeSequence:
		rawSteps, ok := asSlice(m["steps"])
		if !ok {
			return nil, fmt.Errorf("'sequence' requires a 'steps' array")
		}
		steps := make([]SequenceStep, 0, len(rawSteps))
		for _, rs := range rawSteps {
			sm, ok := asMap(rs)
			if !ok {
				return nil, fmt.Errorf("sequence step must be an object, got %T", rs)
			}
			cond, err := parseNode(sm["cond"], depth+1)
			if err != nil {
				return nil, err
			}
			within, _ := asInt(sm["within_bars"])
			steps = append(steps, SequenceStep{Cond: *cond, WithinBars: within})
		}
		return &Spec{Type: TypeSequence, Steps: steps}, nil

	default:
		return nil, fmt.Errorf("unknown condition type: %s", typeStr)
	}
}

func parseLeaf(m map[string]interface{}) (*RegimeLeaf, error) {
	metric, _ := m["metric"].(string)
	if metric == "" {
		return nil, fmt.Errorf("regime leaf missing 'metric'")
	}
	opStr, _ := m["op"].(string)
	leaf := &RegimeLeaf{
		Metric: metric,
		Op:     Op(opStr),
		Value:  m["value"],
	}
	if tf, ok := m["tf"].(string); ok {
		leaf.TF = tf
	}
	if session, ok := m["session"].(string); ok {
		leaf.Session = session
	}
	if n, ok := asInt(m["ma_fast"]); ok {
		leaf.MAFast = &n
	}
	if n, ok := asInt(m["ma_slow"]); ok {
		leaf.MASlow = &n
	}
	if n, ok := asInt(m["lookback_bars"]); ok {
		leaf.LookbackBars = &n
	}
	return leaf, nil
}

// asMap normalizes the two map shapes YAML and JSON decoding produce.
func asMap(v interface{}) (map[string]interface{}, bool) {
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

func asSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

// asInt accepts the integer representations JSON and YAML decoders emit.
func asInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t == float64(int(t)) {
			return int(t), true
		}
	}
	return 0, false
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}
