package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/stratdeck/stratdeck/internal/archetype"
	"github.com/stratdeck/stratdeck/internal/card"
	"github.com/stratdeck/stratdeck/internal/condition"
	"github.com/stratdeck/stratdeck/internal/diag"
)

// Issue codes emitted by compilation, on top of the slot-validation codes.
const (
	CodeCardNotFound      = "CARD_NOT_FOUND"
	CodeArchetypeNotFound = "ARCHETYPE_NOT_FOUND"
	CodeRoleMismatch      = "ROLE_MISMATCH"
	CodeRevisionStale     = "CARD_REVISION_STALE"
	CodeConditionInvalid  = "CONDITION_UNPARSEABLE"
	CodeTargetRoleEmpty   = "TARGET_ROLE_EMPTY"
	CodeNoEntries         = "NO_ENTRIES"
	CodeNoExits           = "NO_EXITS"
	CodeMultipleExits     = "MULTIPLE_EXITS"
	CodeEmptyUniverse     = "EMPTY_UNIVERSE"
)

// Status hints attached to a compile result.
const (
	StatusHintReady    = "ready"
	StatusHintNeedsFix = "needs_fix"
)

// ErrCardNotFound is the sentinel a CardResolver returns for a missing card.
// The compiler turns it into a CARD_NOT_FOUND issue and excludes the
// attachment instead of failing the whole compile.
var ErrCardNotFound = errors.New("card not found")

// CardResolver loads cards referenced by attachments.
type CardResolver interface {
	ResolveCard(ctx context.Context, id string) (*card.Card, error)
}

// PlannedCard is one executable unit of the compiled plan: the card's
// effective slot content after override merge, its extracted trigger
// conditions, and its rank in evaluation order.
type PlannedCard struct {
	CardID      string                 `json:"card_id"`
	TypeID      string                 `json:"type_id"`
	Role        Role                   `json:"role"`
	Rank        int                    `json:"rank"`
	Slots       map[string]interface{} `json:"slots"`
	Conditions  []condition.Spec       `json:"conditions,omitempty"`
	TargetRoles []Role                 `json:"target_roles,omitempty"`
}

// DataRequirement states how much market history one (symbol, timeframe)
// pair needs before the plan can evaluate.
type DataRequirement struct {
	Symbol         string `json:"symbol"`
	TF             string `json:"tf"`
	MinHistoryBars int    `json:"min_history_bars"`
	LookbackHours  int    `json:"lookback_hours"`
}

// PlanSummary gives per-role counts for the compiled plan.
type PlanSummary struct {
	Gates    int `json:"gates"`
	Entries  int `json:"entries"`
	Exits    int `json:"exits"`
	Overlays int `json:"overlays"`
	Excluded int `json:"excluded"`
}

// Result is the full output of one compile: the ordered plan, its data
// requirements, every diagnostic found, and a status hint. Compilation never
// mutates the strategy; a failed compile is a result with error issues, not
// an error return.
type Result struct {
	StrategyID       string            `json:"strategy_id"`
	StrategyVersion  int               `json:"strategy_version"`
	Plan             []PlannedCard     `json:"plan"`
	DataRequirements []DataRequirement `json:"data_requirements"`
	Issues           diag.List         `json:"issues"`
	StatusHint       string            `json:"status_hint"`
	Summary          PlanSummary       `json:"summary"`
	CompiledAt       time.Time         `json:"compiled_at"`
}

// tfMinutes maps the supported timeframes to bar length in minutes, used to
// convert history bars into wall-clock lookback.
var tfMinutes = map[string]int{
	"1m": 1, "5m": 5, "15m": 15, "30m": 30,
	"1h": 60, "4h": 240, "1d": 1440,
}

// Compiler turns strategies into execution plans. It holds only immutable
// collaborators and is safe for concurrent use.
type Compiler struct {
	reg       *archetype.Registry
	validator *card.Validator
	cards     CardResolver
	now       func() time.Time
}

// NewCompiler wires a compiler over the archetype registry, the slot
// validator, and a card resolver.
func NewCompiler(reg *archetype.Registry, validator *card.Validator, cards CardResolver) *Compiler {
	return &Compiler{reg: reg, validator: validator, cards: cards, now: time.Now}
}

// Compile resolves the strategy's enabled attachments, re-validates their
// effective slot content, and produces the ordered plan with diagnostics.
// Only infrastructure failures (a resolver error other than a missing card)
// return a non-nil error; everything else lands in Result.Issues.
func (c *Compiler) Compile(ctx context.Context, s *Strategy) (*Result, error) {
	res := &Result{
		StrategyID:      s.ID,
		StrategyVersion: s.Version,
		CompiledAt:      c.now().UTC(),
	}

	if len(s.Universe) == 0 {
		res.Issues = append(res.Issues, diag.Errorf(CodeEmptyUniverse, "universe",
			"strategy has no symbols to trade"))
	}

	for i, att := range s.Attachments {
		if !att.Enabled {
			continue
		}
		attPath := fmt.Sprintf("attachments[%d]", i)

		cd, err := c.cards.ResolveCard(ctx, att.CardID)
		if err != nil {
			if errors.Is(err, ErrCardNotFound) {
				res.Issues = append(res.Issues, diag.Errorf(CodeCardNotFound, attPath,
					"attached card %s does not exist", att.CardID))
				res.Summary.Excluded++
				continue
			}
			return nil, err
		}

		arch, ok := c.reg.Get(cd.TypeID)
		if !ok {
			res.Issues = append(res.Issues, diag.Errorf(CodeArchetypeNotFound, attPath,
				"card %s references unknown archetype '%s'", cd.ID, cd.TypeID))
			res.Summary.Excluded++
			continue
		}

		if att.Role != KindFor(arch.Kind) {
			res.Issues = append(res.Issues, diag.Errorf(CodeRoleMismatch, attPath+".role",
				"card %s is a %s archetype but is attached as %s", cd.ID, arch.Kind, att.Role))
			res.Summary.Excluded++
			continue
		}

		if !att.FollowLatest && att.RevisionID != "" && att.RevisionID != cd.Revision() {
			res.Issues = append(res.Issues, diag.Warnf(CodeRevisionStale, attPath,
				"card %s changed since it was attached (pinned %s, current %s)",
				cd.ID, att.RevisionID, cd.Revision()))
		}

		slots := DeepMerge(cd.Slots, att.Overrides)
		slotIssues := rebase(c.validator.Validate(arch, slots), attPath+".")
		res.Issues = append(res.Issues, slotIssues...)
		if slotIssues.HasErrors() {
			res.Summary.Excluded++
			continue
		}

		planned := PlannedCard{
			CardID: cd.ID,
			TypeID: cd.TypeID,
			Role:   att.Role,
			Rank:   att.Role.Rank(),
			Slots:  slots,
		}
		planned.Conditions = extractConditions(slots, attPath, &res.Issues)
		planned.TargetRoles = extractTargetRoles(slots)
		res.Plan = append(res.Plan, planned)
	}

	// Stable sort keeps insertion order within a role.
	sort.SliceStable(res.Plan, func(i, j int) bool { return res.Plan[i].Rank < res.Plan[j].Rank })

	c.crossReference(res)
	res.DataRequirements = dataRequirements(c.reg, res.Plan)

	for _, pc := range res.Plan {
		switch pc.Role {
		case RoleGate:
			res.Summary.Gates++
		case RoleEntry:
			res.Summary.Entries++
		case RoleExit:
			res.Summary.Exits++
		case RoleOverlay:
			res.Summary.Overlays++
		}
	}

	if res.Summary.Entries == 0 {
		res.Issues = append(res.Issues, diag.Errorf(CodeNoEntries, "attachments",
			"plan has no enabled entry card"))
	}
	switch {
	case res.Summary.Exits == 0:
		res.Issues = append(res.Issues, diag.Warnf(CodeNoExits, "attachments",
			"plan has no exit card; positions would never close on signal"))
	case res.Summary.Exits > 1:
		res.Issues = append(res.Issues, diag.Warnf(CodeMultipleExits, "attachments",
			"plan has %d exit cards; first signal wins", res.Summary.Exits))
	}

	res.StatusHint = StatusHintReady
	if res.Issues.HasErrors() {
		res.StatusHint = StatusHintNeedsFix
	}
	return res, nil
}

// crossReference warns on gates and overlays whose target roles match no
// planned card. A dangling target is inert, not broken, so this never raises
// an error.
func (c *Compiler) crossReference(res *Result) {
	present := map[Role]bool{}
	for _, pc := range res.Plan {
		present[pc.Role] = true
	}
	for _, pc := range res.Plan {
		for _, target := range pc.TargetRoles {
			if !present[target] {
				res.Issues = append(res.Issues, diag.Warnf(CodeTargetRoleEmpty, "attachments",
					"%s card %s targets role '%s' but the plan contains no %s card",
					pc.Role, pc.CardID, target, target))
			}
		}
	}
}

// extractConditions pulls trigger conditions out of the effective slots:
// event.condition holds the full grammar, event.regime the legacy bare leaf.
// Slots already passed validation, so a parse failure here is a warning, not
// a plan error.
func extractConditions(slots map[string]interface{}, attPath string, issues *diag.List) []condition.Spec {
	event, ok := slots["event"].(map[string]interface{})
	if !ok {
		return nil
	}
	var specs []condition.Spec
	for _, key := range []string{"condition", "regime"} {
		raw, present := event[key]
		if !present {
			continue
		}
		spec, err := condition.Parse(raw)
		if err != nil {
			*issues = append(*issues, diag.Warnf(CodeConditionInvalid,
				attPath+".slots.event."+key, "condition could not be compiled: %v", err))
			continue
		}
		specs = append(specs, *spec)
	}
	return specs
}

func extractTargetRoles(slots map[string]interface{}) []Role {
	action, ok := slots["action"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := action["target_roles"].([]interface{})
	if !ok {
		return nil
	}
	var roles []Role
	for _, r := range raw {
		s, ok := r.(string)
		if !ok {
			continue
		}
		if role, err := ParseRole(s); err == nil {
			roles = append(roles, role)
		}
	}
	return roles
}

// dataRequirements folds the plan into per-(symbol, timeframe) history
// requirements: the max of the archetype's floor and any lookback the card's
// conditions imply.
func dataRequirements(reg *archetype.Registry, plan []PlannedCard) []DataRequirement {
	type key struct{ symbol, tf string }
	bars := map[key]int{}

	for _, pc := range plan {
		ctx, ok := pc.Slots["context"].(map[string]interface{})
		if !ok {
			continue
		}
		symbol, _ := ctx["symbol"].(string)
		tf, _ := ctx["tf"].(string)
		if symbol == "" || tf == "" {
			continue
		}

		need := 0
		if arch, ok := reg.Get(pc.TypeID); ok {
			need = arch.MinHistoryBars
		}
		for _, spec := range pc.Conditions {
			need = maxInt(need, conditionLookback(&spec))
		}

		k := key{symbol, tf}
		bars[k] = maxInt(bars[k], need)
	}

	out := make([]DataRequirement, 0, len(bars))
	for k, n := range bars {
		out = append(out, DataRequirement{
			Symbol:         k.symbol,
			TF:             k.tf,
			MinHistoryBars: n,
			LookbackHours:  lookbackHours(k.tf, n),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].TF < out[j].TF
	})
	return out
}

// conditionLookback reports the deepest history a condition tree reaches
// back: lookback windows and slow moving-average lengths.
func conditionLookback(spec *condition.Spec) int {
	switch spec.Type {
	case condition.TypeRegime:
		n := 0
		if spec.Regime.LookbackBars != nil {
			n = maxInt(n, *spec.Regime.LookbackBars)
		}
		if spec.Regime.MASlow != nil {
			n = maxInt(n, *spec.Regime.MASlow)
		}
		return n
	case condition.TypeAllOf, condition.TypeAnyOf:
		n := 0
		for i := range spec.Conditions {
			n = maxInt(n, conditionLookback(&spec.Conditions[i]))
		}
		return n
	case condition.TypeSequence:
		n := 0
		for i := range spec.Steps {
			n = maxInt(n, conditionLookback(&spec.Steps[i].Cond)+spec.Steps[i].WithinBars)
		}
		return n
	}
	return 0
}

func lookbackHours(tf string, bars int) int {
	minutes, ok := tfMinutes[tf]
	if !ok || bars <= 0 {
		return 0
	}
	total := bars * minutes
	return (total + 59) / 60
}

// rebase prefixes issue paths so attachment-level diagnostics point at the
// strategy document rather than a bare slot tree.
func rebase(issues diag.List, prefix string) diag.List {
	out := make(diag.List, len(issues))
	for i, is := range issues {
		is.Path = prefix + is.Path
		out[i] = is
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
