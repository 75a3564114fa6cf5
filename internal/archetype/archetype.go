// Package archetype defines the catalog of strategy building-block templates
// and the immutable registry that serves them. Archetypes are loaded once at
// startup; every validator and compiler call depends on their stability, so
// nothing in this package mutates after construction.
package archetype

import (
	"fmt"
	"strings"

	"github.com/stratdeck/stratdeck/internal/schema"
)

// Kind is the archetype family, which maps one-to-one onto attachment roles.
type Kind string

const (
	KindEntry   Kind = "entry"
	KindExit    Kind = "exit"
	KindGate    Kind = "gate"
	KindOverlay Kind = "overlay"
)

// Kinds lists the four archetype kinds in execution-rank order.
func Kinds() []Kind { return []Kind{KindGate, KindEntry, KindExit, KindOverlay} }

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindEntry, KindExit, KindGate, KindOverlay:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown archetype kind: %s", s)
}

// ContextPattern declares the shape of an archetype's context slot.
type ContextPattern string

const (
	// ContextPerSymbol requires {symbol, tf}.
	ContextPerSymbol ContextPattern = "per_symbol"
	// ContextPortfolio requires an empty context.
	ContextPortfolio ContextPattern = "portfolio"
	// ContextEventDriven requires {symbol} with no timeframe.
	ContextEventDriven ContextPattern = "event_driven"
)

// Archetype is one reusable, schema-typed building block template.
type Archetype struct {
	TypeID         string                 `yaml:"type_id" json:"type_id"`
	Kind           Kind                   `yaml:"kind" json:"kind"`
	Version        int                    `yaml:"version" json:"version"`
	Title          string                 `yaml:"title" json:"title"`
	Summary        string                 `yaml:"summary" json:"summary"`
	Tags           []string               `yaml:"tags,omitempty" json:"tags,omitempty"`
	Deprecated     bool                   `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`
	RiskRequired   bool                   `yaml:"risk_required,omitempty" json:"risk_required,omitempty"`
	Context        ContextPattern         `yaml:"context" json:"context"`
	MinHistoryBars int                    `yaml:"min_history_bars,omitempty" json:"min_history_bars,omitempty"`
	Schema         *schema.Doc            `yaml:"schema" json:"schema"`
	Example        map[string]interface{} `yaml:"example,omitempty" json:"example,omitempty"`
}

// ETag is the weak cache validator for the archetype's schema, derived from
// type_id and version so it changes exactly when the schema can.
func (a *Archetype) ETag() string {
	return fmt.Sprintf("W/\"v%d.%s\"", a.Version, a.TypeID)
}

// check verifies the archetype definition is internally consistent; the
// registry refuses to construct on failure.
func (a *Archetype) check() error {
	if a.TypeID == "" {
		return fmt.Errorf("archetype missing type_id")
	}
	kind, _, found := strings.Cut(a.TypeID, ".")
	if !found {
		return fmt.Errorf("archetype %s: type_id must be '<kind>.<name>'", a.TypeID)
	}
	if _, err := ParseKind(string(a.Kind)); err != nil {
		return fmt.Errorf("archetype %s: %w", a.TypeID, err)
	}
	if kind != string(a.Kind) {
		return fmt.Errorf("archetype %s: type_id prefix '%s' does not match kind '%s'", a.TypeID, kind, a.Kind)
	}
	switch a.Context {
	case ContextPerSymbol, ContextPortfolio, ContextEventDriven:
	case "":
		return fmt.Errorf("archetype %s: missing context pattern", a.TypeID)
	default:
		return fmt.Errorf("archetype %s: unknown context pattern '%s'", a.TypeID, a.Context)
	}
	if a.Schema == nil {
		return fmt.Errorf("archetype %s: missing schema", a.TypeID)
	}
	if err := a.Schema.Check(a.TypeID); err != nil {
		return err
	}
	return nil
}

// Summary projection used by catalog listings.
type Summary struct {
	TypeID        string   `json:"type_id"`
	Kind          Kind     `json:"kind"`
	Version       int      `json:"version"`
	Title         string   `json:"title"`
	SummaryText   string   `json:"summary"`
	Tags          []string `json:"tags,omitempty"`
	RequiredSlots []string `json:"required_slots"`
	SchemaETag    string   `json:"schema_etag"`
	Deprecated    bool     `json:"deprecated"`
}

// Summarize builds the listing projection of an archetype.
func (a *Archetype) Summarize() Summary {
	var required []string
	if a.Schema != nil {
		required = append(required, a.Schema.Required...)
	}
	return Summary{
		TypeID:        a.TypeID,
		Kind:          a.Kind,
		Version:       a.Version,
		Title:         a.Title,
		SummaryText:   a.Summary,
		Tags:          a.Tags,
		RequiredSlots: required,
		SchemaETag:    a.ETag(),
		Deprecated:    a.Deprecated,
	}
}
