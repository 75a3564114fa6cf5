package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(fields map[string]interface{}) map[string]interface{} {
	return fields
}

func TestValidateRegimeLeaf(t *testing.T) {
	tests := []struct {
		name      string
		input     map[string]interface{}
		wantCodes []string
	}{
		{
			name:  "classification metric with equality passes",
			input: leaf(map[string]interface{}{"metric": "trend_regime", "op": "==", "value": "up"}),
		},
		{
			name:      "classification metric with ordering op fails",
			input:     leaf(map[string]interface{}{"metric": "trend_regime", "op": ">", "value": "up"}),
			wantCodes: []string{CodeOperatorMismatch},
		},
		{
			name:      "classification metric rejects unknown value",
			input:     leaf(map[string]interface{}{"metric": "vol_regime", "op": "==", "value": "extreme"}),
			wantCodes: []string{CodeValueMismatch},
		},
		{
			name:  "numeric metric with ordering op passes",
			input: leaf(map[string]interface{}{"metric": "rsi", "tf": "1h", "op": "<", "value": 30}),
		},
		{
			name:      "numeric metric rejects string value",
			input:     leaf(map[string]interface{}{"metric": "rsi", "op": "<", "value": "low"}),
			wantCodes: []string{CodeValueMismatch},
		},
		{
			name:      "unknown metric",
			input:     leaf(map[string]interface{}{"metric": "sentiment", "op": "==", "value": "bullish"}),
			wantCodes: []string{CodeUnknownMetric},
		},
		{
			name:      "unknown operator",
			input:     leaf(map[string]interface{}{"metric": "rsi", "op": "~=", "value": 30}),
			wantCodes: []string{CodeOperatorMismatch},
		},
		{
			name: "ma relation requires both ma fields",
			input: leaf(map[string]interface{}{
				"metric": "trend_ma_relation", "op": "==", "value": "above", "ma_fast": 20,
			}),
			wantCodes: []string{CodeMissingMetricField},
		},
		{
			name:      "ret_pct requires lookback_bars",
			input:     leaf(map[string]interface{}{"metric": "ret_pct", "op": ">", "value": 1.5}),
			wantCodes: []string{CodeMissingMetricField},
		},
		{
			name:  "boolean metric with equality passes",
			input: leaf(map[string]interface{}{"metric": "new_high", "op": "==", "value": true, "lookback_bars": 20}),
		},
		{
			name:      "boolean metric rejects ordering op and non-bool value",
			input:     leaf(map[string]interface{}{"metric": "new_high", "op": ">", "value": 1, "lookback_bars": 20}),
			wantCodes: []string{CodeOperatorMismatch, CodeValueMismatch},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Validate(tt.input, "cond")
			if len(tt.wantCodes) == 0 {
				assert.Empty(t, issues)
				return
			}
			require.Len(t, issues, len(tt.wantCodes))
			for i, code := range tt.wantCodes {
				assert.Equal(t, code, issues[i].Code)
			}
		})
	}
}

func TestValidateCombinators(t *testing.T) {
	t.Run("allOf with valid children passes", func(t *testing.T) {
		input := map[string]interface{}{
			"type": "allOf",
			"conditions": []interface{}{
				leaf(map[string]interface{}{"metric": "trend_regime", "op": "==", "value": "up"}),
				leaf(map[string]interface{}{"metric": "rsi", "op": "<", "value": 35}),
			},
		}
		assert.Empty(t, Validate(input, "cond"))
	})

	t.Run("empty combinator fails", func(t *testing.T) {
		input := map[string]interface{}{"type": "anyOf", "conditions": []interface{}{}}
		issues := Validate(input, "cond")
		require.Len(t, issues, 1)
		assert.Equal(t, CodeEmptyCombinator, issues[0].Code)
	})

	t.Run("all invalid children reported", func(t *testing.T) {
		input := map[string]interface{}{
			"type": "allOf",
			"conditions": []interface{}{
				leaf(map[string]interface{}{"metric": "bogus_one", "op": "==", "value": "x"}),
				leaf(map[string]interface{}{"metric": "bogus_two", "op": "==", "value": "y"}),
			},
		}
		issues := Validate(input, "cond")
		require.Len(t, issues, 2)
		assert.Equal(t, "cond.conditions[0].metric", issues[0].Path)
		assert.Equal(t, "cond.conditions[1].metric", issues[1].Path)
	})

	t.Run("unknown type tag", func(t *testing.T) {
		input := map[string]interface{}{"type": "noneOf", "conditions": []interface{}{}}
		issues := Validate(input, "cond")
		require.Len(t, issues, 1)
		assert.Equal(t, CodeConditionStructure, issues[0].Code)
	})
}

func TestValidateSequence(t *testing.T) {
	step := func(within interface{}) map[string]interface{} {
		return map[string]interface{}{
			"cond":        leaf(map[string]interface{}{"metric": "volume_z", "op": ">", "value": 2.0}),
			"within_bars": within,
		}
	}

	t.Run("positive within_bars passes", func(t *testing.T) {
		input := map[string]interface{}{"type": "sequence", "steps": []interface{}{step(5), step(10)}}
		assert.Empty(t, Validate(input, "cond"))
	})

	t.Run("every step needs positive within_bars", func(t *testing.T) {
		input := map[string]interface{}{"type": "sequence", "steps": []interface{}{step(5), step(-1), step(0)}}
		issues := Validate(input, "cond")
		require.Len(t, issues, 2)
		assert.Equal(t, CodeInvalidWithinBars, issues[0].Code)
		assert.Equal(t, "cond.steps[1].within_bars", issues[0].Path)
		assert.Equal(t, "cond.steps[2].within_bars", issues[1].Path)
	})

	t.Run("missing within_bars", func(t *testing.T) {
		input := map[string]interface{}{
			"type": "sequence",
			"steps": []interface{}{
				map[string]interface{}{"cond": leaf(map[string]interface{}{"metric": "rsi", "op": ">", "value": 70})},
			},
		}
		issues := Validate(input, "cond")
		require.Len(t, issues, 1)
		assert.Equal(t, CodeInvalidWithinBars, issues[0].Code)
	})
}

func TestValidateDepthCap(t *testing.T) {
	nested := leaf(map[string]interface{}{"metric": "rsi", "op": ">", "value": 50})
	var tree interface{} = nested
	for i := 0; i < MaxDepth+2; i++ {
		tree = map[string]interface{}{"type": "allOf", "conditions": []interface{}{tree}}
	}
	issues := Validate(tree, "cond")
	require.NotEmpty(t, issues)
	assert.Equal(t, CodeConditionTooDeep, issues[0].Code)
}

func TestValidateStructure(t *testing.T) {
	t.Run("non-object", func(t *testing.T) {
		issues := Validate("not a condition", "cond")
		require.Len(t, issues, 1)
		assert.Equal(t, CodeConditionStructure, issues[0].Code)
	})

	t.Run("missing type and metric", func(t *testing.T) {
		issues := Validate(map[string]interface{}{"op": "=="}, "cond")
		require.Len(t, issues, 1)
		assert.Equal(t, CodeConditionStructure, issues[0].Code)
	})
}

func TestParse(t *testing.T) {
	t.Run("bare leaf wrapped as regime", func(t *testing.T) {
		spec, err := Parse(map[string]interface{}{"metric": "trend_regime", "op": "==", "value": "up"})
		require.NoError(t, err)
		assert.Equal(t, TypeRegime, spec.Type)
		require.NotNil(t, spec.Regime)
		assert.Equal(t, "trend_regime", spec.Regime.Metric)
		assert.Equal(t, OpEq, spec.Regime.Op)
	})

	t.Run("tagged tree", func(t *testing.T) {
		spec, err := Parse(map[string]interface{}{
			"type": "sequence",
			"steps": []interface{}{
				map[string]interface{}{
					"cond":        map[string]interface{}{"metric": "volume_z", "op": ">", "value": 2},
					"within_bars": 10,
				},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, TypeSequence, spec.Type)
		require.Len(t, spec.Steps, 1)
		assert.Equal(t, 10, spec.Steps[0].WithinBars)
	})

	t.Run("yaml map shape accepted", func(t *testing.T) {
		spec, err := Parse(map[interface{}]interface{}{
			"metric": "rsi", "tf": "1h", "op": "<", "value": 30,
		})
		require.NoError(t, err)
		assert.Equal(t, "1h", spec.Regime.TF)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		_, err := Parse(map[string]interface{}{"type": "xor"})
		assert.Error(t, err)
	})
}
