// Package service implements the application operations over the archetype
// registry, the slot validator, the strategy compiler, and the stores. All
// error returns use the errs taxonomy; transports only translate.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stratdeck/stratdeck/internal/archetype"
	"github.com/stratdeck/stratdeck/internal/cache"
	"github.com/stratdeck/stratdeck/internal/card"
	"github.com/stratdeck/stratdeck/internal/diag"
	"github.com/stratdeck/stratdeck/internal/errs"
	"github.com/stratdeck/stratdeck/internal/metrics"
	"github.com/stratdeck/stratdeck/internal/store"
	"github.com/stratdeck/stratdeck/internal/strategy"
)

// Service exposes the catalog, card, and strategy operations.
type Service struct {
	reg       *archetype.Registry
	validator *card.Validator
	compiler  *strategy.Compiler
	store     store.Store
	cache     *cache.CompileCache
	metrics   *metrics.Registry
	log       zerolog.Logger

	now   func() time.Time
	newID func() string
}

// Option tweaks service construction; used by tests to pin clocks and ids.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs overrides id generation.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// New wires a service. cache may be nil (compiles are then never cached).
func New(reg *archetype.Registry, st store.Store, cc *cache.CompileCache, m *metrics.Registry, log zerolog.Logger, opts ...Option) *Service {
	validator := card.NewValidator(reg)
	s := &Service{
		reg:       reg,
		validator: validator,
		store:     st,
		cache:     cc,
		metrics:   m,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	s.compiler = strategy.NewCompiler(reg, validator, cardResolver{st})
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// cardResolver adapts the card store to the compiler's resolver contract.
type cardResolver struct {
	cards store.CardStore
}

func (r cardResolver) ResolveCard(ctx context.Context, id string) (*card.Card, error) {
	c, err := r.cards.GetCard(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, strategy.ErrCardNotFound
	}
	return c, err
}

// storeErr translates a storage failure into the error taxonomy.
func (s *Service) storeErr(op string, err error) error {
	var coded *errs.Error
	if errors.As(err, &coded) {
		return coded
	}
	if s.metrics != nil {
		s.metrics.StoreFailures.Inc()
	}
	s.log.Error().Err(err).Str("op", op).Msg("storage failure")
	return errs.Database(op, err)
}

// --- catalog ---

// ListArchetypes returns catalog summaries ordered by type_id, optionally
// filtered by kind.
func (s *Service) ListArchetypes(kindStr string) ([]archetype.Summary, error) {
	var kind archetype.Kind
	if kindStr != "" {
		k, err := archetype.ParseKind(kindStr)
		if err != nil {
			return nil, errs.Validation(err.Error(), "use one of: entry, exit, gate, overlay")
		}
		kind = k
	}
	archs := s.reg.List(kind)
	out := make([]archetype.Summary, 0, len(archs))
	for _, a := range archs {
		out = append(out, a.Summarize())
	}
	return out, nil
}

// GetArchetype returns the full archetype definition including its schema.
func (s *Service) GetArchetype(typeID string) (*archetype.Archetype, error) {
	a, ok := s.reg.Get(typeID)
	if !ok {
		return nil, errs.NotFound("archetype", typeID, "list /v1/archetypes for known type_ids")
	}
	return a, nil
}

// GetSchemaExample returns the archetype's worked slot example.
func (s *Service) GetSchemaExample(typeID string) (map[string]interface{}, error) {
	a, err := s.GetArchetype(typeID)
	if err != nil {
		return nil, err
	}
	if a.Example == nil {
		return map[string]interface{}{}, nil
	}
	return card.CloneSlots(a.Example), nil
}

// ValidateSlotsDraft runs full slot validation without persisting anything.
// The issue list is the result; it is never folded into an error.
func (s *Service) ValidateSlotsDraft(typeID string, slots map[string]interface{}) (diag.List, error) {
	a, err := s.GetArchetype(typeID)
	if err != nil {
		return nil, err
	}
	issues := s.validator.Validate(a, slots)
	s.countValidation(issues)
	return issues, nil
}

func (s *Service) countValidation(issues diag.List) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if issues.HasErrors() {
		outcome = "invalid"
	}
	s.metrics.Validations.WithLabelValues(outcome).Inc()
}

// --- cards ---

// CreateCard validates slots against the archetype and persists a new card.
func (s *Service) CreateCard(ctx context.Context, typeID string, slots map[string]interface{}) (*card.Card, error) {
	a, err := s.GetArchetype(typeID)
	if err != nil {
		return nil, err
	}
	issues := s.validator.Validate(a, slots)
	s.countValidation(issues)
	if issues.HasErrors() {
		return nil, errs.SchemaValidation(typeID, issues)
	}

	now := s.now().UTC()
	c := &card.Card{
		ID:         s.newID(),
		TypeID:     typeID,
		Slots:      card.CloneSlots(slots),
		SchemaETag: a.ETag(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateCard(ctx, c); err != nil {
		return nil, s.storeErr("create card", err)
	}
	s.log.Info().Str("card_id", c.ID).Str("type_id", typeID).Msg("card created")
	return c, nil
}

// GetCard loads one card.
func (s *Service) GetCard(ctx context.Context, id string) (*card.Card, error) {
	c, err := s.store.GetCard(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.NotFound("card", id, "list /v1/cards for existing cards")
	}
	if err != nil {
		return nil, s.storeErr("get card", err)
	}
	return c, nil
}

// ListCards lists cards matching the filter.
func (s *Service) ListCards(ctx context.Context, f store.CardFilter) ([]*card.Card, error) {
	cards, err := s.store.ListCards(ctx, f)
	if err != nil {
		return nil, s.storeErr("list cards", err)
	}
	return cards, nil
}

// UpdateCard replaces a card's slot content after re-validation. The type is
// immutable; UpdatedAt moves forward and becomes the new revision.
func (s *Service) UpdateCard(ctx context.Context, id string, slots map[string]interface{}) (*card.Card, error) {
	c, err := s.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	a, err := s.GetArchetype(c.TypeID)
	if err != nil {
		return nil, err
	}
	issues := s.validator.Validate(a, slots)
	s.countValidation(issues)
	if issues.HasErrors() {
		return nil, errs.SchemaValidation(c.TypeID, issues)
	}

	c.Slots = card.CloneSlots(slots)
	c.SchemaETag = a.ETag()
	c.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateCard(ctx, c); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.NotFound("card", id, "")
		}
		return nil, s.storeErr("update card", err)
	}
	s.log.Info().Str("card_id", c.ID).Msg("card updated")
	return c, nil
}

// DeleteCard removes a card. Strategies that still reference it will report
// CARD_NOT_FOUND on their next compile.
func (s *Service) DeleteCard(ctx context.Context, id string) error {
	err := s.store.DeleteCard(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return errs.NotFound("card", id, "")
	}
	if err != nil {
		return s.storeErr("delete card", err)
	}
	s.log.Info().Str("card_id", id).Msg("card deleted")
	return nil
}

// --- strategies ---

// CreateStrategyInput carries the writable strategy fields.
type CreateStrategyInput struct {
	OwnerID     string   `json:"owner_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Universe    []string `json:"universe"`
}

// CreateStrategy persists a new draft strategy with no attachments.
func (s *Service) CreateStrategy(ctx context.Context, in CreateStrategyInput) (*strategy.Strategy, error) {
	if in.Name == "" {
		return nil, errs.Validation("strategy name is required", "provide a non-empty name")
	}
	now := s.now().UTC()
	st := &strategy.Strategy{
		ID:          s.newID(),
		OwnerID:     in.OwnerID,
		Name:        in.Name,
		Description: in.Description,
		Status:      strategy.StatusDraft,
		Universe:    append([]string(nil), in.Universe...),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateStrategy(ctx, st); err != nil {
		return nil, s.storeErr("create strategy", err)
	}
	s.log.Info().Str("strategy_id", st.ID).Str("name", st.Name).Msg("strategy created")
	return st, nil
}

// GetStrategy loads one strategy.
func (s *Service) GetStrategy(ctx context.Context, id string) (*strategy.Strategy, error) {
	st, err := s.store.GetStrategy(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.NotFound("strategy", id, "list /v1/strategies for existing strategies")
	}
	if err != nil {
		return nil, s.storeErr("get strategy", err)
	}
	return st, nil
}

// ListStrategies lists strategies matching the filter.
func (s *Service) ListStrategies(ctx context.Context, f store.StrategyFilter) ([]*strategy.Strategy, error) {
	sts, err := s.store.ListStrategies(ctx, f)
	if err != nil {
		return nil, s.storeErr("list strategies", err)
	}
	return sts, nil
}

// StrategyMetaPatch carries optional meta updates; nil fields are left
// untouched.
type StrategyMetaPatch struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Universe    *[]string `json:"universe,omitempty"`
}

// UpdateStrategyMeta applies a meta patch and bumps the version.
func (s *Service) UpdateStrategyMeta(ctx context.Context, id string, patch StrategyMetaPatch) (*strategy.Strategy, error) {
	st, err := s.GetStrategy(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := st.Status
	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, errs.Validation("strategy name cannot be empty", "provide a non-empty name")
		}
		st.Name = *patch.Name
	}
	if patch.Description != nil {
		st.Description = *patch.Description
	}
	if patch.Status != nil {
		status, err := strategy.ParseStatus(*patch.Status)
		if err != nil {
			return nil, errs.InvalidStatus(*patch.Status, strategy.StatusNames())
		}
		st.Status = status
	}
	if patch.Universe != nil {
		st.Universe = append([]string(nil), (*patch.Universe)...)
	}
	st, err = s.saveStrategy(ctx, st, "strategy meta updated")
	if err != nil {
		return nil, err
	}
	s.trackActive(prev, st.Status)
	return st, nil
}

// trackActive keeps the running-strategies gauge in step with status
// transitions.
func (s *Service) trackActive(prev, next strategy.Status) {
	if s.metrics == nil || prev == next {
		return
	}
	switch {
	case next == strategy.StatusRunning:
		s.metrics.ActiveStrategies.Inc()
	case prev == strategy.StatusRunning:
		s.metrics.ActiveStrategies.Dec()
	}
}

// saveStrategy bumps version and timestamp, persists, and logs.
func (s *Service) saveStrategy(ctx context.Context, st *strategy.Strategy, msg string) (*strategy.Strategy, error) {
	st.Version++
	st.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateStrategy(ctx, st); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.NotFound("strategy", st.ID, "")
		}
		return nil, s.storeErr("update strategy", err)
	}
	s.log.Info().Str("strategy_id", st.ID).Int("version", st.Version).Msg(msg)
	return st, nil
}

// DeleteStrategy removes a strategy and drops its cached compile.
func (s *Service) DeleteStrategy(ctx context.Context, id string) error {
	st, err := s.GetStrategy(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteStrategy(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.NotFound("strategy", id, "")
		}
		return s.storeErr("delete strategy", err)
	}
	s.trackActive(st.Status, strategy.StatusStopped)
	s.cache.Invalidate(ctx, id, st.Version)
	s.log.Info().Str("strategy_id", id).Msg("strategy deleted")
	return nil
}

// AttachInput carries the writable attachment fields.
type AttachInput struct {
	CardID       string                 `json:"card_id"`
	Role         string                 `json:"role"`
	Enabled      bool                   `json:"enabled"`
	FollowLatest bool                   `json:"follow_latest"`
	Overrides    map[string]interface{} `json:"overrides,omitempty"`
}

// AttachCard binds an existing card to a strategy. The role must match the
// card's archetype kind, and a card attaches at most once per strategy.
// Unless the attachment follows latest, the card's current revision is
// pinned.
func (s *Service) AttachCard(ctx context.Context, strategyID string, in AttachInput) (*strategy.Strategy, error) {
	role, err := strategy.ParseRole(in.Role)
	if err != nil {
		return nil, errs.InvalidRole(in.Role, strategy.RoleNames())
	}

	st, err := s.GetStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if st.FindAttachment(in.CardID) >= 0 {
		return nil, &errs.Error{
			Code:         errs.CodeDuplicateAttachment,
			Message:      "card " + in.CardID + " is already attached to this strategy",
			RecoveryHint: "detach the card first, or update the existing attachment",
		}
	}

	c, err := s.GetCard(ctx, in.CardID)
	if err != nil {
		return nil, err
	}
	a, err := s.GetArchetype(c.TypeID)
	if err != nil {
		return nil, err
	}
	if role != strategy.KindFor(a.Kind) {
		return nil, errs.Validation(
			"card "+c.ID+" is a "+string(a.Kind)+" archetype and cannot attach as "+in.Role,
			"attach the card under role '"+string(a.Kind)+"'")
	}

	att := strategy.Attachment{
		CardID:       in.CardID,
		Role:         role,
		Enabled:      in.Enabled,
		FollowLatest: in.FollowLatest,
		Overrides:    card.CloneSlots(in.Overrides),
	}
	if !in.FollowLatest {
		att.RevisionID = c.Revision()
	}
	st.Attachments = append(st.Attachments, att)
	return s.saveStrategy(ctx, st, "card attached")
}

// AddCardInput creates a card and attaches it in one operation.
type AddCardInput struct {
	TypeID       string                 `json:"type_id"`
	Slots        map[string]interface{} `json:"slots"`
	Role         string                 `json:"role"`
	Enabled      bool                   `json:"enabled"`
	FollowLatest bool                   `json:"follow_latest"`
}

// AddCard is the convenience composite: create the card, then attach it.
// When the role is omitted it is inferred from the archetype's kind. If the
// attach step fails the created card is left in place for reuse.
func (s *Service) AddCard(ctx context.Context, strategyID string, in AddCardInput) (*card.Card, *strategy.Strategy, error) {
	c, err := s.CreateCard(ctx, in.TypeID, in.Slots)
	if err != nil {
		return nil, nil, err
	}
	role := in.Role
	if role == "" {
		if a, err := s.GetArchetype(c.TypeID); err == nil {
			role = string(strategy.KindFor(a.Kind))
		}
	}
	st, err := s.AttachCard(ctx, strategyID, AttachInput{
		CardID:       c.ID,
		Role:         role,
		Enabled:      in.Enabled,
		FollowLatest: in.FollowLatest,
	})
	if err != nil {
		return c, nil, err
	}
	return c, st, nil
}

// DetachCard removes a card's attachment from a strategy.
func (s *Service) DetachCard(ctx context.Context, strategyID, cardID string) (*strategy.Strategy, error) {
	st, err := s.GetStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	i := st.FindAttachment(cardID)
	if i < 0 {
		return nil, &errs.Error{
			Code:         errs.CodeAttachmentNotFound,
			Message:      "card " + cardID + " is not attached to this strategy",
			RecoveryHint: "list the strategy's attachments to see what is attached",
		}
	}
	st.Attachments = append(st.Attachments[:i], st.Attachments[i+1:]...)
	return s.saveStrategy(ctx, st, "card detached")
}

// --- compile ---

// CompileStrategy compiles a strategy into its execution plan, serving from
// the short-TTL cache when the same strategy version was compiled recently.
func (s *Service) CompileStrategy(ctx context.Context, id string) (*strategy.Result, error) {
	st, err := s.GetStrategy(ctx, id)
	if err != nil {
		return nil, err
	}

	if res, ok := s.cache.Get(ctx, st.ID, st.Version); ok {
		s.countCache("hit")
		return res, nil
	}
	s.countCache("miss")

	res, err := s.compile(ctx, st)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, res)
	return res, nil
}

// ValidateStrategy compiles without touching the cache, for callers that
// want fresh diagnostics right after editing cards.
func (s *Service) ValidateStrategy(ctx context.Context, id string) (*strategy.Result, error) {
	st, err := s.GetStrategy(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.compile(ctx, st)
}

func (s *Service) compile(ctx context.Context, st *strategy.Strategy) (*strategy.Result, error) {
	start := s.now()
	res, err := s.compiler.Compile(ctx, st)
	if err != nil {
		return nil, s.storeErr("compile strategy", err)
	}
	if s.metrics != nil {
		s.metrics.CompileDuration.WithLabelValues(res.StatusHint).Observe(time.Since(start).Seconds())
		for _, is := range res.Issues {
			s.metrics.CompileIssues.WithLabelValues(string(is.Severity)).Inc()
		}
	}
	s.log.Debug().
		Str("strategy_id", st.ID).
		Int("plan_cards", len(res.Plan)).
		Int("errors", res.Issues.Errors()).
		Int("warnings", res.Issues.Warnings()).
		Str("status_hint", res.StatusHint).
		Msg("strategy compiled")
	return res, nil
}

func (s *Service) countCache(result string) {
	if s.metrics != nil {
		s.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}
