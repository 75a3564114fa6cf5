package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/stratdeck/stratdeck/internal/card"
	"github.com/stratdeck/stratdeck/internal/errs"
	"github.com/stratdeck/stratdeck/internal/strategy"
)

// Breaker wraps a Store behind a circuit breaker so a struggling database
// sheds load fast instead of queueing every request into its timeout.
// ErrNotFound is a business outcome, not a storage failure, and never counts
// against the circuit.
type Breaker struct {
	inner Store
	cb    *gobreaker.CircuitBreaker
}

// NewBreaker wraps the store. The circuit opens after five consecutive
// storage failures and probes again after 30 seconds.
func NewBreaker(inner Store, log zerolog.Logger) *Breaker {
	settings := gobreaker.Settings{
		Name:        "store",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("store circuit state change")
		},
	}
	return &Breaker{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

// notFoundSuccess shields ErrNotFound from the failure counters by carrying
// it through the breaker as a successful result.
type notFoundSuccess struct{}

func (b *Breaker) do(op string, fn func() (interface{}, error)) (interface{}, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		v, err := fn()
		if errors.Is(err, ErrNotFound) {
			return notFoundSuccess{}, nil
		}
		return v, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errs.Database(op, err)
		}
		return nil, err
	}
	if _, miss := v.(notFoundSuccess); miss {
		return nil, ErrNotFound
	}
	return v, nil
}

func (b *Breaker) CreateCard(ctx context.Context, c *card.Card) error {
	_, err := b.do("create card", func() (interface{}, error) {
		return nil, b.inner.CreateCard(ctx, c)
	})
	return err
}

func (b *Breaker) GetCard(ctx context.Context, id string) (*card.Card, error) {
	v, err := b.do("get card", func() (interface{}, error) {
		return b.inner.GetCard(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*card.Card), nil
}

func (b *Breaker) ListCards(ctx context.Context, f CardFilter) ([]*card.Card, error) {
	v, err := b.do("list cards", func() (interface{}, error) {
		return b.inner.ListCards(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*card.Card), nil
}

func (b *Breaker) UpdateCard(ctx context.Context, c *card.Card) error {
	_, err := b.do("update card", func() (interface{}, error) {
		return nil, b.inner.UpdateCard(ctx, c)
	})
	return err
}

func (b *Breaker) DeleteCard(ctx context.Context, id string) error {
	_, err := b.do("delete card", func() (interface{}, error) {
		return nil, b.inner.DeleteCard(ctx, id)
	})
	return err
}

func (b *Breaker) CreateStrategy(ctx context.Context, s *strategy.Strategy) error {
	_, err := b.do("create strategy", func() (interface{}, error) {
		return nil, b.inner.CreateStrategy(ctx, s)
	})
	return err
}

func (b *Breaker) GetStrategy(ctx context.Context, id string) (*strategy.Strategy, error) {
	v, err := b.do("get strategy", func() (interface{}, error) {
		return b.inner.GetStrategy(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*strategy.Strategy), nil
}

func (b *Breaker) ListStrategies(ctx context.Context, f StrategyFilter) ([]*strategy.Strategy, error) {
	v, err := b.do("list strategies", func() (interface{}, error) {
		return b.inner.ListStrategies(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*strategy.Strategy), nil
}

func (b *Breaker) UpdateStrategy(ctx context.Context, s *strategy.Strategy) error {
	_, err := b.do("update strategy", func() (interface{}, error) {
		return nil, b.inner.UpdateStrategy(ctx, s)
	})
	return err
}

func (b *Breaker) DeleteStrategy(ctx context.Context, id string) error {
	_, err := b.do("delete strategy", func() (interface{}, error) {
		return nil, b.inner.DeleteStrategy(ctx, id)
	})
	return err
}
