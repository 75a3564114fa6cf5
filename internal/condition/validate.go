package condition

import (
	"fmt"
	"strings"

	"github.com/stratdeck/stratdeck/internal/diag"
)

// Issue codes emitted by condition validation.
const (
	CodeConditionStructure = "CONDITION_STRUCTURE"
	CodeConditionTooDeep   = "CONDITION_TOO_DEEP"
	CodeUnknownMetric      = "UNKNOWN_METRIC"
	CodeOperatorMismatch   = "METRIC_OPERATOR_MISMATCH"
	CodeValueMismatch      = "METRIC_VALUE_MISMATCH"
	CodeMissingMetricField = "MISSING_METRIC_FIELD"
	CodeEmptyCombinator    = "EMPTY_COMBINATOR"
	CodeInvalidWithinBars  = "INVALID_WITHIN_BARS"
)

// Validate runs the full recursive-descent validation of a raw condition
// subtree rooted at path. Every discoverable violation is collected; children
// of combinators are all visited even when siblings fail, so the caller sees
// the complete picture in one pass.
func Validate(v interface{}, path string) diag.List {
	var issues diag.List
	validateNode(v, path, 0, &issues)
	return issues
}

func validateNode(v interface{}, path string, depth int, issues *diag.List) {
	if depth > MaxDepth {
		*issues = append(*issues, diag.Errorf(CodeConditionTooDeep, path,
			"condition nesting exceeds the maximum of %d levels", MaxDepth))
		return
	}

	m, ok := asMap(v)
	if !ok {
		*issues = append(*issues, diag.Errorf(CodeConditionStructure, path,
			"condition must be an object, got %T", v))
		return
	}

	rawType, hasType := m["type"]
	if !hasType {
		// Bare regime leaf (legacy RegimeSpec form).
		if _, hasMetric := m["metric"]; hasMetric {
			validateLeafMap(m, path, issues)
			return
		}
		*issues = append(*issues, diag.Errorf(CodeConditionStructure, path,
			"condition object missing 'type' tag"))
		return
	}

	typeStr, ok := rawType.(string)
	if !ok {
		*issues = append(*issues, diag.Errorf(CodeConditionStructure, path+".type",
			"'type' must be a string, got %T", rawType))
		return
	}

	switch Type(typeStr) {
	case TypeRegime:
		leafRaw, ok := m["regime"]
		if !ok {
			leafRaw = m
		}
		lm, ok := asMap(leafRaw)
		if !ok {
			*issues = append(*issues, diag.Errorf(CodeConditionStructure, path+".regime",
				"'regime' payload must be an object, got %T", leafRaw))
			return
		}
		validateLeafMap(lm, path+".regime", issues)

	case TypeAllOf, TypeAnyOf:
		children, ok := asSlice(m["conditions"])
		if !ok {
			*issues = append(*issues, diag.Errorf(CodeConditionStructure, path+".conditions",
				"'%s' requires a 'conditions' array", typeStr))
			return
		}
		if len(children) == 0 {
			*issues = append(*issues, diag.Errorf(CodeEmptyCombinator, path+".conditions",
				"'%s' requires at least one child condition", typeStr))
			return
		}
		for i, child := range children {
			validateNode(child, fmt.Sprintf("%s.conditions[%d]", path, i), depth+1, issues)
		}

	case TypeSequence:
		rawSteps, ok := asSlice(m["steps"])
		if !ok {
			*issues = append(*issues, diag.Errorf(CodeConditionStructure, path+".steps",
				"'sequence' requires a 'steps' array"))
			return
		}
		if len(rawSteps) == 0 {
			*issues = append(*issues, diag.Errorf(CodeEmptyCombinator, path+".steps",
				"'sequence' requires at least one step"))
			return
		}
		for i, rs := range rawSteps {
			stepPath := fmt.Sprintf("%s.steps[%d]", path, i)
			sm, ok := asMap(rs)
			if !ok {
				*issues = append(*issues, diag.Errorf(CodeConditionStructure, stepPath,
					"sequence step must be an object, got %T", rs))
				continue
			}
			cond, hasCond := sm["cond"]
			if !hasCond {
				*issues = append(*issues, diag.Errorf(CodeConditionStructure, stepPath+".cond",
					"sequence step missing 'cond'"))
			} else {
				validateNode(cond, stepPath+".cond", depth+1, issues)
			}
			within, ok := asInt(sm["within_bars"])
			if !ok {
				*issues = append(*issues, diag.Errorf(CodeInvalidWithinBars, stepPath+".within_bars",
					"sequence step requires an integer 'within_bars'"))
			} else if within <= 0 {
				*issues = append(*issues, diag.Errorf(CodeInvalidWithinBars, stepPath+".within_bars",
					"'within_bars' must be a positive integer, got %d", within))
			}
		}

	default:
		*issues = append(*issues, diag.Errorf(CodeConditionStructure, path+".type",
			"unknown condition type '%s' (expected regime, allOf, anyOf or sequence)", typeStr))
	}
}

func validateLeafMap(m map[string]interface{}, path string, issues *diag.List) {
	leaf, err := parseLeaf(m)
	if err != nil {
		*issues = append(*issues, diag.Errorf(CodeConditionStructure, path, "%v", err))
		return
	}
	validateLeaf(leaf, path, issues)
}

// validateLeaf applies the metric table to a decoded regime leaf: aux-field
// presence is a structural check; op/value agreement with the metric's value
// kind is a semantic one.
func validateLeaf(leaf *RegimeLeaf, path string, issues *diag.List) {
	metric, known := LookupMetric(leaf.Metric)
	if !known {
		*issues = append(*issues, diag.Errorf(CodeUnknownMetric, path+".metric",
			"unknown metric '%s'", leaf.Metric))
		return
	}

	for _, aux := range metric.Aux {
		if !auxPresent(leaf, aux) {
			*issues = append(*issues, diag.Errorf(CodeMissingMetricField, path+"."+aux,
				"metric '%s' requires field '%s'", metric.Name, aux))
		}
	}

	if !validOp(leaf.Op) {
		*issues = append(*issues, diag.Errorf(CodeOperatorMismatch, path+".op",
			"invalid operator '%s'", leaf.Op))
		return
	}

	switch metric.Kind {
	case KindNumeric:
		if !isNumber(leaf.Value) {
			*issues = append(*issues, diag.Errorf(CodeValueMismatch, path+".value",
				"metric '%s' requires a numeric value, got %T", metric.Name, leaf.Value))
		}

	case KindStringEnum:
		if !leaf.Op.equalityOnly() {
			*issues = append(*issues, diag.Errorf(CodeOperatorMismatch, path+".op",
				"classification metric '%s' permits only == and !=, got '%s'", metric.Name, leaf.Op))
		}
		s, ok := leaf.Value.(string)
		if !ok {
			*issues = append(*issues, diag.Errorf(CodeValueMismatch, path+".value",
				"classification metric '%s' requires a string value, got %T", metric.Name, leaf.Value))
			return
		}
		if !containsString(metric.Values, s) {
			*issues = append(*issues, diag.Errorf(CodeValueMismatch, path+".value",
				"metric '%s' value must be one of [%s], got '%s'",
				metric.Name, strings.Join(metric.Values, ", "), s))
		}

	case KindBoolean:
		if !leaf.Op.equalityOnly() {
			*issues = append(*issues, diag.Errorf(CodeOperatorMismatch, path+".op",
				"boolean metric '%s' permits only == and !=, got '%s'", metric.Name, leaf.Op))
		}
		if _, ok := leaf.Value.(bool); !ok {
			*issues = append(*issues, diag.Errorf(CodeValueMismatch, path+".value",
				"boolean metric '%s' requires a boolean value, got %T", metric.Name, leaf.Value))
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
