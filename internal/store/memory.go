package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/stratdeck/stratdeck/internal/card"
	"github.com/stratdeck/stratdeck/internal/strategy"
)

// Memory is a mutex-guarded in-memory store. It backs tests and deployments
// that run without Postgres, and implements the same copy-on-read discipline
// as the SQL stores.
type Memory struct {
	mu         sync.RWMutex
	cards      map[string]*card.Card
	strategies map[string]*strategy.Strategy
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		cards:      make(map[string]*card.Card),
		strategies: make(map[string]*strategy.Strategy),
	}
}

func (m *Memory) CreateCard(_ context.Context, c *card.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[c.ID] = c.Clone()
	return nil
}

func (m *Memory) GetCard(_ context.Context, id string) (*card.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cards[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (m *Memory) ListCards(_ context.Context, f CardFilter) ([]*card.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*card.Card
	for _, c := range m.cards {
		if f.TypeID != "" && c.TypeID != f.TypeID {
			continue
		}
		if f.Kind != "" && !strings.HasPrefix(c.TypeID, f.Kind+".") {
			continue
		}
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, f.Limit, f.Offset), nil
}

func (m *Memory) UpdateCard(_ context.Context, c *card.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[c.ID]; !ok {
		return ErrNotFound
	}
	m.cards[c.ID] = c.Clone()
	return nil
}

func (m *Memory) DeleteCard(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[id]; !ok {
		return ErrNotFound
	}
	delete(m.cards, id)
	return nil
}

func (m *Memory) CreateStrategy(_ context.Context, s *strategy.Strategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies[s.ID] = s.Clone()
	return nil
}

func (m *Memory) GetStrategy(_ context.Context, id string) (*strategy.Strategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.strategies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) ListStrategies(_ context.Context, f StrategyFilter) ([]*strategy.Strategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*strategy.Strategy
	for _, s := range m.strategies {
		if f.OwnerID != "" && s.OwnerID != f.OwnerID {
			continue
		}
		if f.Status != "" && string(s.Status) != f.Status {
			continue
		}
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, f.Limit, f.Offset), nil
}

func (m *Memory) UpdateStrategy(_ context.Context, s *strategy.Strategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.strategies[s.ID]; !ok {
		return ErrNotFound
	}
	m.strategies[s.ID] = s.Clone()
	return nil
}

func (m *Memory) DeleteStrategy(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.strategies[id]; !ok {
		return ErrNotFound
	}
	delete(m.strategies, id)
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
