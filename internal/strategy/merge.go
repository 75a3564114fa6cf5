package strategy

import "github.com/stratdeck/stratdeck/internal/card"

// DeepMerge overlays override values onto a base slot tree without mutating
// either input. Nested maps merge key by key; any other override value
// (including arrays) replaces the base value wholesale.
func DeepMerge(base, override map[string]interface{}) map[string]interface{} {
	if len(override) == 0 {
		return card.CloneSlots(base)
	}
	out := card.CloneSlots(base)
	if out == nil {
		out = make(map[string]interface{}, len(override))
	}
	for k, ov := range override {
		bm, baseIsMap := out[k].(map[string]interface{})
		om, overrideIsMap := ov.(map[string]interface{})
		if baseIsMap && overrideIsMap {
			out[k] = DeepMerge(bm, om)
			continue
		}
		out[k] = card.CloneValue(ov)
	}
	return out
}
