package condition

// ValueKind classifies what a metric's comparison value must be.
type ValueKind int

const (
	KindNumeric ValueKind = iota
	KindStringEnum
	KindBoolean
)

func (k ValueKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindStringEnum:
		return "string"
	case KindBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Metric declares the value kind, required auxiliary fields and (for
// classification metrics) the permitted values of a named market metric.
type Metric struct {
	Name   string
	Kind   ValueKind
	Aux    []string // required auxiliary leaf fields
	Values []string // permitted values for KindStringEnum
}

// metricTable is the closed catalog of regime metrics. String-classification
// and boolean metrics only permit ==/!=; numeric metrics permit the ordering
// operators.
var metricTable = map[string]Metric{
	"trend_regime": {
		Name:   "trend_regime",
		Kind:   KindStringEnum,
		Values: []string{"up", "down", "sideways"},
	},
	"vol_regime": {
		Name:   "vol_regime",
		Kind:   KindStringEnum,
		Values: []string{"low", "normal", "high"},
	},
	"session_phase": {
		Name:   "session_phase",
		Kind:   KindStringEnum,
		Aux:    []string{"session"},
		Values: []string{"pre_open", "open", "midday", "close", "post_close"},
	},
	"trend_ma_relation": {
		Name:   "trend_ma_relation",
		Kind:   KindStringEnum,
		Aux:    []string{"ma_fast", "ma_slow"},
		Values: []string{"above", "below", "cross_up", "cross_down"},
	},
	"gap_pct": {
		Name: "gap_pct",
		Kind: KindNumeric,
		Aux:  []string{"session"},
	},
	"ret_pct": {
		Name: "ret_pct",
		Kind: KindNumeric,
		Aux:  []string{"lookback_bars"},
	},
	"rsi": {
		Name: "rsi",
		Kind: KindNumeric,
	},
	"atr_pct": {
		Name: "atr_pct",
		Kind: KindNumeric,
	},
	"volume_z": {
		Name: "volume_z",
		Kind: KindNumeric,
	},
	"new_high": {
		Name: "new_high",
		Kind: KindBoolean,
		Aux:  []string{"lookback_bars"},
	},
}

// LookupMetric returns the metric declaration for a name.
func LookupMetric(name string) (Metric, bool) {
	m, ok := metricTable[name]
	return m, ok
}

// Metrics returns the names of all known metrics, unordered.
func Metrics() []string {
	out := make([]string, 0, len(metricTable))
	for name := range metricTable {
		out = append(out, name)
	}
	return out
}

// auxPresent reports whether the named auxiliary field is set on a leaf.
func auxPresent(leaf *RegimeLeaf, name string) bool {
	switch name {
	case "ma_fast":
		return leaf.MAFast != nil
	case "ma_slow":
		return leaf.MASlow != nil
	case "session":
		return leaf.Session != ""
	case "lookback_bars":
		return leaf.LookbackBars != nil
	}
	return false
}
