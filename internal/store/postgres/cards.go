package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stratdeck/stratdeck/internal/card"
	"github.com/stratdeck/stratdeck/internal/store"
)

// CardRepo persists cards in the cards table.
type CardRepo struct {
	db *sqlx.DB
}

// NewCardRepo creates a card repository over an open connection pool.
func NewCardRepo(db *sqlx.DB) *CardRepo {
	return &CardRepo{db: db}
}

// cardRow is the scan target; slots travel as a JSONB column.
type cardRow struct {
	ID         string    `db:"id"`
	TypeID     string    `db:"type_id"`
	Slots      []byte    `db:"slots"`
	SchemaETag string    `db:"schema_etag"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r cardRow) toCard() (*card.Card, error) {
	c := &card.Card{
		ID:         r.ID,
		TypeID:     r.TypeID,
		SchemaETag: r.SchemaETag,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Slots, &c.Slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots for card %s: %w", r.ID, err)
	}
	return c, nil
}

func (r *CardRepo) CreateCard(ctx context.Context, c *card.Card) error {
	slots, err := json.Marshal(c.Slots)
	if err != nil {
		return fmt.Errorf("failed to encode slots: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO cards (id, type_id, slots, schema_etag, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.TypeID, slots, c.SchemaETag, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", c.ID, err)
	}
	return nil
}

func (r *CardRepo) GetCard(ctx context.Context, id string) (*card.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var row cardRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM cards WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load card %s: %w", id, err)
	}
	return row.toCard()
}

func (r *CardRepo) ListCards(ctx context.Context, f store.CardFilter) ([]*card.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT * FROM cards`
	var conds []string
	var args []interface{}
	if f.TypeID != "" {
		args = append(args, f.TypeID)
		conds = append(conds, fmt.Sprintf("type_id = $%d", len(args)))
	}
	if f.Kind != "" {
		args = append(args, f.Kind+".%")
		conds = append(conds, fmt.Sprintf("type_id LIKE $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var rows []cardRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	out := make([]*card.Card, 0, len(rows))
	for _, row := range rows {
		c, err := row.toCard()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *CardRepo) UpdateCard(ctx context.Context, c *card.Card) error {
	slots, err := json.Marshal(c.Slots)
	if err != nil {
		return fmt.Errorf("failed to encode slots: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE cards SET slots = $2, schema_etag = $3, updated_at = $4 WHERE id = $1`,
		c.ID, slots, c.SchemaETag, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", c.ID, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *CardRepo) DeleteCard(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
