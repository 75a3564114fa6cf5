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

	"github.com/stratdeck/stratdeck/internal/store"
	"github.com/stratdeck/stratdeck/internal/strategy"
)

// StrategyRepo persists strategies in the strategies table.
type StrategyRepo struct {
	db *sqlx.DB
}

// NewStrategyRepo creates a strategy repository over an open connection pool.
func NewStrategyRepo(db *sqlx.DB) *StrategyRepo {
	return &StrategyRepo{db: db}
}

type strategyRow struct {
	ID          string    `db:"id"`
	OwnerID     string    `db:"owner_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Status      string    `db:"status"`
	Universe    []byte    `db:"universe"`
	Attachments []byte    `db:"attachments"`
	Version     int       `db:"version"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r strategyRow) toStrategy() (*strategy.Strategy, error) {
	s := &strategy.Strategy{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Name:        r.Name,
		Description: r.Description,
		Status:      strategy.Status(r.Status),
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Universe, &s.Universe); err != nil {
		return nil, fmt.Errorf("failed to decode universe for strategy %s: %w", r.ID, err)
	}
	if err := json.Unmarshal(r.Attachments, &s.Attachments); err != nil {
		return nil, fmt.Errorf("failed to decode attachments for strategy %s: %w", r.ID, err)
	}
	return s, nil
}

func encodeStrategy(s *strategy.Strategy) (universe, attachments []byte, err error) {
	universe, err = json.Marshal(s.Universe)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode universe: %w", err)
	}
	attachments, err = json.Marshal(s.Attachments)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode attachments: %w", err)
	}
	return universe, attachments, nil
}

func (r *StrategyRepo) CreateStrategy(ctx context.Context, s *strategy.Strategy) error {
	universe, attachments, err := encodeStrategy(s)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO strategies (id, owner_id, name, description, status, universe, attachments, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.OwnerID, s.Name, s.Description, string(s.Status), universe, attachments,
		s.Version, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert strategy %s: %w", s.ID, err)
	}
	return nil
}

func (r *StrategyRepo) GetStrategy(ctx context.Context, id string) (*strategy.Strategy, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var row strategyRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM strategies WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load strategy %s: %w", id, err)
	}
	return row.toStrategy()
}

func (r *StrategyRepo) ListStrategies(ctx context.Context, f store.StrategyFilter) ([]*strategy.Strategy, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT * FROM strategies`
	var conds []string
	var args []interface{}
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
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

	var rows []strategyRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	out := make([]*strategy.Strategy, 0, len(rows))
	for _, row := range rows {
		s, err := row.toStrategy()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *StrategyRepo) UpdateStrategy(ctx context.Context, s *strategy.Strategy) error {
	universe, attachments, err := encodeStrategy(s)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE strategies
		SET owner_id = $2, name = $3, description = $4, status = $5,
		    universe = $6, attachments = $7, version = $8, updated_at = $9
		WHERE id = $1`,
		s.ID, s.OwnerID, s.Name, s.Description, string(s.Status), universe, attachments,
		s.Version, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update strategy %s: %w", s.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update strategy %s: %w", s.ID, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *StrategyRepo) DeleteStrategy(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM strategies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete strategy %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete strategy %s: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
