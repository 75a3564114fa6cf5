package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepMerge(t *testing.T) {
	base := map[string]interface{}{
		"context": map[string]interface{}{"symbol": "BTC-USD", "tf": "1h"},
		"action": map[string]interface{}{
			"direction": "long",
			"levels":    []interface{}{1, 2},
		},
	}

	t.Run("nested maps merge key by key", func(t *testing.T) {
		out := DeepMerge(base, map[string]interface{}{
			"context": map[string]interface{}{"tf": "4h"},
		})
		ctx := out["context"].(map[string]interface{})
		assert.Equal(t, "BTC-USD", ctx["symbol"])
		assert.Equal(t, "4h", ctx["tf"])
	})

	t.Run("arrays replace wholesale", func(t *testing.T) {
		out := DeepMerge(base, map[string]interface{}{
			"action": map[string]interface{}{"levels": []interface{}{9}},
		})
		action := out["action"].(map[string]interface{})
		assert.Equal(t, []interface{}{9}, action["levels"])
		assert.Equal(t, "long", action["direction"])
	})

	t.Run("scalar replaces map", func(t *testing.T) {
		out := DeepMerge(base, map[string]interface{}{"context": "gone"})
		assert.Equal(t, "gone", out["context"])
	})

	t.Run("inputs are not mutated", func(t *testing.T) {
		override := map[string]interface{}{
			"context": map[string]interface{}{"tf": "1d"},
		}
		out := DeepMerge(base, override)
		out["context"].(map[string]interface{})["tf"] = "5m"

		assert.Equal(t, "1h", base["context"].(map[string]interface{})["tf"])
		assert.Equal(t, "1d", override["context"].(map[string]interface{})["tf"])
	})

	t.Run("nil base", func(t *testing.T) {
		out := DeepMerge(nil, map[string]interface{}{"a": 1})
		assert.Equal(t, 1, out["a"])
	})

	t.Run("empty override clones base", func(t *testing.T) {
		out := DeepMerge(base, nil)
		assert.Equal(t, base, out)
		out["new"] = true
		_, present := base["new"]
		assert.False(t, present)
	})
}
