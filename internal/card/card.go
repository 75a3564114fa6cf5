// Package card defines concrete archetype instances and the slot validator
// that admits them.
package card

import "time"

// Card is a validated instance of an archetype: bound slot values under the
// four top-level namespaces context/event/action/risk. Identity and type are
// immutable; slot content changes only through a re-validated update, which
// refreshes UpdatedAt (the revision identifier).
type Card struct {
	ID         string                 `json:"card_id" db:"id"`
	TypeID     string                 `json:"type_id" db:"type_id"`
	Slots      map[string]interface{} `json:"slots" db:"-"`
	SchemaETag string                 `json:"schema_etag" db:"schema_etag"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at" db:"updated_at"`
}

// Revision identifies the card's content revision. The update timestamp is
// the revision id: any slot write refreshes it.
func (c *Card) Revision() string {
	return c.UpdatedAt.UTC().Format(time.RFC3339Nano)
}

// Clone deep-copies the card so stores can hand out values without aliasing
// internal state.
func (c *Card) Clone() *Card {
	out := *c
	out.Slots = CloneSlots(c.Slots)
	return &out
}

// CloneSlots deep-copies a slot tree.
func CloneSlots(slots map[string]interface{}) map[string]interface{} {
	if slots == nil {
		return nil
	}
	out := make(map[string]interface{}, len(slots))
	for k, v := range slots {
		out[k] = cloneValue(v)
	}
	return out
}

// CloneValue deep-copies a single slot value.
func CloneValue(v interface{}) interface{} { return cloneValue(v) }

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return CloneSlots(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
