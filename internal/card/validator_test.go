package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratdeck/stratdeck/internal/archetype"
	"github.com/stratdeck/stratdeck/internal/diag"
	"github.com/stratdeck/stratdeck/internal/schema"
)

func openSchema() *schema.Doc {
	return &schema.Doc{Type: schema.TypeObject, AllowExtra: true}
}

func testArchetype(typeID string, kind archetype.Kind, ctx archetype.ContextPattern) *archetype.Archetype {
	return &archetype.Archetype{
		TypeID:  typeID,
		Kind:    kind,
		Version: 1,
		Context: ctx,
		Schema:  openSchema(),
	}
}

func codesOf(issues diag.List) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Code
	}
	return out
}

func TestCrossFieldContextShapes(t *testing.T) {
	v := NewValidator(nil)

	t.Run("per_symbol requires symbol and tf", func(t *testing.T) {
		arch := testArchetype("entry.a", archetype.KindEntry, archetype.ContextPerSymbol)
		issues := v.CrossField(arch, map[string]interface{}{
			"context": map[string]interface{}{"symbol": "BTC-USD"},
		})
		assert.Equal(t, []string{CodeInvalidContext}, codesOf(issues))

		issues = v.CrossField(arch, map[string]interface{}{
			"context": map[string]interface{}{"symbol": "BTC-USD", "tf": "1h"},
		})
		assert.Empty(t, issues)
	})

	t.Run("per_symbol without context", func(t *testing.T) {
		arch := testArchetype("entry.a", archetype.KindEntry, archetype.ContextPerSymbol)
		issues := v.CrossField(arch, map[string]interface{}{})
		assert.Equal(t, []string{CodeInvalidContext}, codesOf(issues))
	})

	t.Run("portfolio requires empty context", func(t *testing.T) {
		arch := testArchetype("gate.a", archetype.KindGate, archetype.ContextPortfolio)
		slots := map[string]interface{}{
			"context": map[string]interface{}{"symbol": "BTC-USD"},
			"action":  map[string]interface{}{"target_roles": []interface{}{"entry"}},
		}
		issues := v.CrossField(arch, slots)
		assert.Equal(t, []string{CodeInvalidContext}, codesOf(issues))
	})

	t.Run("event_driven takes symbol without tf", func(t *testing.T) {
		arch := testArchetype("entry.a", archetype.KindEntry, archetype.ContextEventDriven)
		issues := v.CrossField(arch, map[string]interface{}{
			"context": map[string]interface{}{"symbol": "ETH-USD", "tf": "5m"},
		})
		assert.Equal(t, []string{CodeInvalidContext}, codesOf(issues))

		issues = v.CrossField(arch, map[string]interface{}{
			"context": map[string]interface{}{"symbol": "ETH-USD"},
		})
		assert.Empty(t, issues)
	})
}

func TestCrossFieldRiskRequired(t *testing.T) {
	v := NewValidator(nil)
	arch := testArchetype("exit.a", archetype.KindExit, archetype.ContextPerSymbol)
	arch.RiskRequired = true

	base := map[string]interface{}{
		"context": map[string]interface{}{"symbol": "BTC-USD", "tf": "1h"},
	}
	issues := v.CrossField(arch, base)
	assert.Contains(t, codesOf(issues), CodeMissingRiskBlock)

	base["risk"] = map[string]interface{}{}
	issues = v.CrossField(arch, base)
	assert.Contains(t, codesOf(issues), CodeMissingRiskBlock, "empty risk block is not enough")

	base["risk"] = map[string]interface{}{"stop_loss_pct": 2.0}
	assert.Empty(t, v.CrossField(arch, base))
}

func TestCrossFieldTargetRoles(t *testing.T) {
	v := NewValidator(nil)
	arch := testArchetype("overlay.a", archetype.KindOverlay, archetype.ContextPortfolio)

	t.Run("missing action", func(t *testing.T) {
		issues := v.CrossField(arch, map[string]interface{}{})
		assert.Equal(t, []string{CodeInvalidTargetRoles}, codesOf(issues))
	})

	t.Run("empty list", func(t *testing.T) {
		issues := v.CrossField(arch, map[string]interface{}{
			"action": map[string]interface{}{"target_roles": []interface{}{}},
		})
		assert.Equal(t, []string{CodeInvalidTargetRoles}, codesOf(issues))
	})

	t.Run("unknown role", func(t *testing.T) {
		issues := v.CrossField(arch, map[string]interface{}{
			"action": map[string]interface{}{"target_roles": []interface{}{"entry", "hedge"}},
		})
		require.Len(t, issues, 1)
		assert.Equal(t, CodeInvalidTargetRoles, issues[0].Code)
		assert.Equal(t, "slots.action.target_roles[1]", issues[0].Path)
	})

	t.Run("valid subset", func(t *testing.T) {
		issues := v.CrossField(arch, map[string]interface{}{
			"action": map[string]interface{}{"target_roles": []interface{}{"entry", "exit"}},
		})
		assert.Empty(t, issues)
	})
}

func TestCrossFieldTrailingLimit(t *testing.T) {
	v := NewValidator(nil)
	arch := testArchetype("exit.a", archetype.KindExit, archetype.ContextPerSymbol)

	slots := map[string]interface{}{
		"context": map[string]interface{}{"symbol": "BTC-USD", "tf": "1h"},
		"action":  map[string]interface{}{"order_type": "market", "trailing_limit": true},
	}
	issues := v.CrossField(arch, slots)
	assert.Equal(t, []string{CodeTrailingLimit}, codesOf(issues))

	slots["action"].(map[string]interface{})["order_type"] = "limit"
	assert.Empty(t, v.CrossField(arch, slots))
}

func TestCrossFieldIntermarketSymbol(t *testing.T) {
	v := NewValidator(nil)
	arch := testArchetype("entry.intermarket_trigger", archetype.KindEntry, archetype.ContextEventDriven)

	slots := map[string]interface{}{
		"context": map[string]interface{}{"symbol": "BTC-USD"},
		"event": map[string]interface{}{
			"lead_follow": map[string]interface{}{
				"leader_symbol":   "BTC-USD",
				"follower_symbol": "ETH-USD",
			},
		},
	}
	issues := v.CrossField(arch, slots)
	assert.Equal(t, []string{CodeSymbolMismatch}, codesOf(issues))

	slots["context"].(map[string]interface{})["symbol"] = "ETH-USD"
	assert.Empty(t, v.CrossField(arch, slots))
}

// The shipped catalog must be loadable and every worked example must pass
// its own archetype's validation.
func TestCatalogExamplesValidate(t *testing.T) {
	reg, err := archetype.LoadCatalog("../../data/archetypes.yaml")
	require.NoError(t, err)
	require.GreaterOrEqual(t, reg.Len(), 8)

	v := NewValidator(reg)
	for _, a := range reg.List("") {
		a := a
		t.Run(a.TypeID, func(t *testing.T) {
			require.NotNil(t, a.Example, "catalog archetypes ship with examples")
			issues := v.Validate(a, a.Example)
			assert.Empty(t, issues, "example for %s should validate cleanly", a.TypeID)
		})
	}
}
