package card

import (
	"strconv"

	"github.com/stratdeck/stratdeck/internal/archetype"
	"github.com/stratdeck/stratdeck/internal/diag"
)

// Issue codes emitted by the cross-field pass.
const (
	CodeMissingRiskBlock   = "MISSING_RISK_BLOCK"
	CodeInvalidContext     = "INVALID_CONTEXT"
	CodeInvalidTargetRoles = "INVALID_TARGET_ROLES"
	CodeTrailingLimit      = "TRAILING_LIMIT_REQUIRES_LIMIT_ORDER"
	CodeSymbolMismatch     = "SYMBOL_MISMATCH"
)

// Validator checks slot payloads against their archetype: a structural pass
// over the declared schema, then kind-specific cross-field rules. Both passes
// report every violation they find; a caller gets the complete fix list in
// one round trip.
type Validator struct {
	reg *archetype.Registry
}

// NewValidator creates a slot validator over the archetype registry.
func NewValidator(reg *archetype.Registry) *Validator {
	return &Validator{reg: reg}
}

// Registry exposes the backing registry for callers that need catalog
// lookups alongside validation.
func (v *Validator) Registry() *archetype.Registry { return v.reg }

// Validate runs both passes for a slot payload against the named archetype.
func (v *Validator) Validate(arch *archetype.Archetype, slots map[string]interface{}) diag.List {
	issues := arch.Schema.Validate(slots, "slots")
	issues = append(issues, v.CrossField(arch, slots)...)
	return issues
}

// crossRule is one cross-field check. Rules are selected by archetype kind
// (plus a few archetype-specific ones keyed by type_id), per the
// schema-as-data / rules-as-logic split.
type crossRule func(arch *archetype.Archetype, slots map[string]interface{}) diag.List

var kindRules = map[archetype.Kind][]crossRule{
	archetype.KindEntry:   {ruleContextShape, ruleTrailingLimit},
	archetype.KindExit:    {ruleContextShape, ruleTrailingLimit, ruleRiskRequired},
	archetype.KindGate:    {ruleContextShape, ruleTargetRoles},
	archetype.KindOverlay: {ruleContextShape, ruleTargetRoles},
}

var typeRules = map[string][]crossRule{
	"entry.intermarket_trigger": {ruleIntermarketSymbol},
}

// CrossField applies the kind- and type-specific rule tables. The compiler
// re-runs this pass at compile time against current slot content.
func (v *Validator) CrossField(arch *archetype.Archetype, slots map[string]interface{}) diag.List {
	var issues diag.List
	for _, rule := range kindRules[arch.Kind] {
		issues = append(issues, rule(arch, slots)...)
	}
	for _, rule := range typeRules[arch.TypeID] {
		issues = append(issues, rule(arch, slots)...)
	}
	return issues
}

// ruleRiskRequired enforces the non-empty risk block on threshold-bearing
// archetypes.
func ruleRiskRequired(arch *archetype.Archetype, slots map[string]interface{}) diag.List {
	if !arch.RiskRequired {
		return nil
	}
	risk, ok := getMap(slots, "risk")
	if !ok || len(risk) == 0 {
		return diag.List{diag.Errorf(CodeMissingRiskBlock, "slots.risk",
			"archetype '%s' requires a non-empty risk block", arch.TypeID)}
	}
	return nil
}

// ruleContextShape matches the context slot against the archetype's declared
// context pattern.
func ruleContextShape(arch *archetype.Archetype, slots map[string]interface{}) diag.List {
	var issues diag.List
	ctx, hasCtx := getMap(slots, "context")

	switch arch.Context {
	case archetype.ContextPerSymbol:
		if !hasCtx {
			return diag.List{diag.Errorf(CodeInvalidContext, "slots.context",
				"per-symbol archetype requires context {symbol, tf}")}
		}
		if getString(ctx, "symbol") == "" {
			issues = append(issues, diag.Errorf(CodeInvalidContext, "slots.context.symbol",
				"per-symbol archetype requires a symbol"))
		}
		if getString(ctx, "tf") == "" {
			issues = append(issues, diag.Errorf(CodeInvalidContext, "slots.context.tf",
				"per-symbol archetype requires a timeframe"))
		}

	case archetype.ContextPortfolio:
		if hasCtx && len(ctx) > 0 {
			issues = append(issues, diag.Errorf(CodeInvalidContext, "slots.context",
				"portfolio archetype requires an empty context, got %d fields", len(ctx)))
		}

	case archetype.ContextEventDriven:
		if !hasCtx || getString(ctx, "symbol") == "" {
			issues = append(issues, diag.Errorf(CodeInvalidContext, "slots.context.symbol",
				"event-driven archetype requires context {symbol}"))
		}
		if hasCtx {
			if _, hasTF := ctx["tf"]; hasTF {
				issues = append(issues, diag.Errorf(CodeInvalidContext, "slots.context.tf",
					"event-driven archetype does not take a timeframe"))
			}
		}
	}
	return issues
}

// ruleTargetRoles enforces that gates and overlays name a non-empty subset of
// the four roles in action.target_roles.
func ruleTargetRoles(arch *archetype.Archetype, slots map[string]interface{}) diag.List {
	action, ok := getMap(slots, "action")
	if !ok {
		return diag.List{diag.Errorf(CodeInvalidTargetRoles, "slots.action",
			"%s archetype requires action.target_roles", arch.Kind)}
	}
	raw, ok := action["target_roles"].([]interface{})
	if !ok || len(raw) == 0 {
		return diag.List{diag.Errorf(CodeInvalidTargetRoles, "slots.action.target_roles",
			"%s archetype requires a non-empty target_roles list", arch.Kind)}
	}
	var issues diag.List
	for i, r := range raw {
		s, ok := r.(string)
		if !ok {
			issues = append(issues, diag.Errorf(CodeInvalidTargetRoles,
				pathIndex("slots.action.target_roles", i), "target role must be a string, got %T", r))
			continue
		}
		if _, err := archetype.ParseKind(s); err != nil {
			issues = append(issues, diag.Errorf(CodeInvalidTargetRoles,
				pathIndex("slots.action.target_roles", i),
				"unknown target role '%s' (expected entry, exit, gate or overlay)", s))
		}
	}
	return issues
}

// ruleTrailingLimit: trailing_limit is only meaningful on limit orders.
func ruleTrailingLimit(arch *archetype.Archetype, slots map[string]interface{}) diag.List {
	action, ok := getMap(slots, "action")
	if !ok {
		return nil
	}
	if _, present := action["trailing_limit"]; !present {
		return nil
	}
	if getString(action, "order_type") != "limit" {
		return diag.List{diag.Errorf(CodeTrailingLimit, "slots.action.trailing_limit",
			"trailing_limit requires order_type \"limit\"")}
	}
	return nil
}

// ruleIntermarketSymbol: the traded symbol must be the follower; leader
// symbols are observation-only.
func ruleIntermarketSymbol(arch *archetype.Archetype, slots map[string]interface{}) diag.List {
	ctx, _ := getMap(slots, "context")
	event, _ := getMap(slots, "event")
	leadFollow, _ := getMap(event, "lead_follow")
	symbol := getString(ctx, "symbol")
	follower := getString(leadFollow, "follower_symbol")
	if symbol != "" && follower != "" && symbol != follower {
		return diag.List{diag.Errorf(CodeSymbolMismatch, "slots.event.lead_follow.follower_symbol",
			"context.symbol (%s) must equal follower_symbol (%s); leader symbols are observation-only",
			symbol, follower)}
	}
	return nil
}

func getMap(m map[string]interface{}, key string) (map[string]interface{}, bool) {
	if m == nil {
		return nil, false
	}
	child, ok := m[key].(map[string]interface{})
	return child, ok
}

func getString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func pathIndex(base string, i int) string {
	return base + "[" + strconv.Itoa(i) + "]"
}
