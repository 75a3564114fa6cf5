package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratdeck/stratdeck/internal/card"
	"github.com/stratdeck/stratdeck/internal/strategy"
)

func testCard(id, typeID string, created time.Time) *card.Card {
	return &card.Card{
		ID:     id,
		TypeID: typeID,
		Slots: map[string]interface{}{
			"context": map[string]interface{}{"symbol": "BTC-USD", "tf": "1h"},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestMemoryCardCRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.CreateCard(ctx, testCard("c1", "entry.sig", base)))
	require.NoError(t, m.CreateCard(ctx, testCard("c2", "exit.sig", base.Add(time.Minute))))

	got, err := m.GetCard(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "entry.sig", got.TypeID)

	_, err = m.GetCard(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	got.Slots["context"].(map[string]interface{})["symbol"] = "DOGE-USD"
	again, err := m.GetCard(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", again.Slots["context"].(map[string]interface{})["symbol"],
		"reads hand out copies")

	got.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, m.UpdateCard(ctx, got))
	updated, err := m.GetCard(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour), updated.UpdatedAt)

	assert.ErrorIs(t, m.UpdateCard(ctx, testCard("nope", "entry.sig", base)), ErrNotFound)

	require.NoError(t, m.DeleteCard(ctx, "c1"))
	assert.ErrorIs(t, m.DeleteCard(ctx, "c1"), ErrNotFound)
}

func TestMemoryListCardsFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.CreateCard(ctx, testCard("c1", "entry.sig", base)))
	require.NoError(t, m.CreateCard(ctx, testCard("c2", "entry.other", base.Add(time.Minute))))
	require.NoError(t, m.CreateCard(ctx, testCard("c3", "exit.sig", base.Add(2*time.Minute))))

	all, err := m.ListCards(ctx, CardFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c1", all[0].ID, "ordered by creation time")

	entries, err := m.ListCards(ctx, CardFilter{Kind: "entry"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	byType, err := m.ListCards(ctx, CardFilter{TypeID: "exit.sig"})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "c3", byType[0].ID)

	page, err := m.ListCards(ctx, CardFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c2", page[0].ID)
}

func TestMemoryStrategyCRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	st := &strategy.Strategy{
		ID:        "s1",
		OwnerID:   "alice",
		Name:      "breakout",
		Status:    strategy.StatusDraft,
		Universe:  []string{"BTC-USD"},
		Version:   1,
		CreatedAt: base,
		UpdatedAt: base,
	}
	require.NoError(t, m.CreateStrategy(ctx, st))

	got, err := m.GetStrategy(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "breakout", got.Name)

	got.Attachments = append(got.Attachments, strategy.Attachment{CardID: "c1", Role: strategy.RoleEntry, Enabled: true})
	fresh, err := m.GetStrategy(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, fresh.Attachments, "reads hand out copies")

	got.Version = 2
	require.NoError(t, m.UpdateStrategy(ctx, got))

	byOwner, err := m.ListStrategies(ctx, StrategyFilter{OwnerID: "alice"})
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
	assert.Equal(t, 2, byOwner[0].Version)

	none, err := m.ListStrategies(ctx, StrategyFilter{Status: string(strategy.StatusRunning)})
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, m.DeleteStrategy(ctx, "s1"))
	_, err = m.GetStrategy(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}
