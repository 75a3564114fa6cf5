package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/stratdeck/stratdeck/internal/store"
)

// Combined bundles both repositories over one connection pool so it
// satisfies store.Store.
type Combined struct {
	*CardRepo
	*StrategyRepo
}

var _ store.Store = (*Combined)(nil)

// NewStore builds the combined card and strategy store.
func NewStore(db *sqlx.DB) *Combined {
	return &Combined{
		CardRepo:     NewCardRepo(db),
		StrategyRepo: NewStrategyRepo(db),
	}
}
