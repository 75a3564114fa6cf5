// Package strategy defines strategy documents, their card attachments, and
// the compiler that turns a strategy into an ordered execution plan with
// diagnostics.
package strategy

import (
	"fmt"
	"time"

	"github.com/stratdeck/stratdeck/internal/archetype"
	"github.com/stratdeck/stratdeck/internal/card"
)

// Role an attached card plays inside a strategy. Roles mirror archetype
// kinds; a card's role must match its archetype's kind.
type Role string

const (
	RoleGate    Role = "gate"
	RoleEntry   Role = "entry"
	RoleExit    Role = "exit"
	RoleOverlay Role = "overlay"
)

// roleRank orders plan output: gates first, then entries, exits, overlays.
var roleRank = map[Role]int{
	RoleGate:    0,
	RoleEntry:   1,
	RoleExit:    2,
	RoleOverlay: 3,
}

// Roles lists the attachment roles in plan order.
func Roles() []Role { return []Role{RoleGate, RoleEntry, RoleExit, RoleOverlay} }

// RoleNames lists the role strings, for error hints.
func RoleNames() []string {
	out := make([]string, 0, len(roleRank))
	for _, r := range Roles() {
		out = append(out, string(r))
	}
	return out
}

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	if _, ok := roleRank[Role(s)]; !ok {
		return "", fmt.Errorf("unknown role: %s", s)
	}
	return Role(s), nil
}

// Rank reports the role's position in plan order.
func (r Role) Rank() int { return roleRank[r] }

// KindFor maps an archetype kind onto the matching role.
func KindFor(k archetype.Kind) Role { return Role(k) }

// Status is the strategy lifecycle state.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusReady   Status = "ready"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
	StatusError   Status = "error"
)

var validStatus = map[Status]bool{
	StatusDraft: true, StatusReady: true, StatusRunning: true,
	StatusPaused: true, StatusStopped: true, StatusError: true,
}

// StatusNames lists the lifecycle states, for error hints.
func StatusNames() []string {
	return []string{
		string(StatusDraft), string(StatusReady), string(StatusRunning),
		string(StatusPaused), string(StatusStopped), string(StatusError),
	}
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	if !validStatus[Status(s)] {
		return "", fmt.Errorf("unknown status: %s", s)
	}
	return Status(s), nil
}

// Attachment binds a card into a strategy under a role. RevisionID pins the
// card content the strategy was authored against; when FollowLatest is false
// and the card has since changed, compilation flags the drift instead of
// silently picking up new content.
type Attachment struct {
	CardID       string                 `json:"card_id" yaml:"card_id"`
	Role         Role                   `json:"role" yaml:"role"`
	Enabled      bool                   `json:"enabled" yaml:"enabled"`
	FollowLatest bool                   `json:"follow_latest,omitempty" yaml:"follow_latest,omitempty"`
	RevisionID   string                 `json:"revision_id,omitempty" yaml:"revision_id,omitempty"`
	Overrides    map[string]interface{} `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// Strategy is a named composition of card attachments over a symbol universe.
type Strategy struct {
	ID          string       `json:"strategy_id" db:"id"`
	OwnerID     string       `json:"owner_id,omitempty" db:"owner_id"`
	Name        string       `json:"name" db:"name"`
	Description string       `json:"description,omitempty" db:"description"`
	Status      Status       `json:"status" db:"status"`
	Universe    []string     `json:"universe" db:"-"`
	Attachments []Attachment `json:"attachments" db:"-"`
	Version     int          `json:"version" db:"version"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

// Clone deep-copies the strategy so stores can hand out values without
// aliasing internal state.
func (s *Strategy) Clone() *Strategy {
	out := *s
	out.Universe = append([]string(nil), s.Universe...)
	out.Attachments = make([]Attachment, len(s.Attachments))
	for i, a := range s.Attachments {
		out.Attachments[i] = a
		out.Attachments[i].Overrides = card.CloneSlots(a.Overrides)
	}
	return &out
}

// FindAttachment returns the index of the attachment for cardID, or -1.
func (s *Strategy) FindAttachment(cardID string) int {
	for i, a := range s.Attachments {
		if a.CardID == cardID {
			return i
		}
	}
	return -1
}
