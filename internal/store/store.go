// Package store defines the persistence contracts for cards and strategies
// plus an in-memory implementation used by tests and catalog-only
// deployments. Postgres-backed implementations live in the postgres
// subpackage.
package store

import (
	"context"
	"errors"

	"github.com/stratdeck/stratdeck/internal/card"
	"github.com/stratdeck/stratdeck/internal/strategy"
)

// ErrNotFound is the sentinel every store returns for a missing row. Callers
// test with errors.Is and translate to the service error taxonomy.
var ErrNotFound = errors.New("store: not found")

// CardFilter narrows card listings.
type CardFilter struct {
	TypeID string
	Kind   string
	Limit  int
	Offset int
}

// StrategyFilter narrows strategy listings.
type StrategyFilter struct {
	OwnerID string
	Status  string
	Limit   int
	Offset  int
}

// CardStore persists cards. Implementations return defensive copies; a
// caller can mutate what it gets back without corrupting the store.
type CardStore interface {
	CreateCard(ctx context.Context, c *card.Card) error
	GetCard(ctx context.Context, id string) (*card.Card, error)
	ListCards(ctx context.Context, f CardFilter) ([]*card.Card, error)
	UpdateCard(ctx context.Context, c *card.Card) error
	DeleteCard(ctx context.Context, id string) error
}

// StrategyStore persists strategies with their attachments.
type StrategyStore interface {
	CreateStrategy(ctx context.Context, s *strategy.Strategy) error
	GetStrategy(ctx context.Context, id string) (*strategy.Strategy, error)
	ListStrategies(ctx context.Context, f StrategyFilter) ([]*strategy.Strategy, error)
	UpdateStrategy(ctx context.Context, s *strategy.Strategy) error
	DeleteStrategy(ctx context.Context, id string) error
}

// Store bundles both repositories behind one handle.
type Store interface {
	CardStore
	StrategyStore
}
