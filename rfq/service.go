package rfq

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"procureflow/lifecycle"
)

var validate = validator.New()

// Repository abstracts storage for the lifecycle manager.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (RFQ, error)
	GetByID(ctx context.Context, id string) (RFQ, error)
	Activate(ctx context.Context, id string, actor lifecycle.Actor) (RFQ, error)
	Close(ctx context.Context, id, reason string, actor lifecycle.Actor) (RFQ, error)
	Cancel(ctx context.Context, id string, actor lifecycle.Actor) (RFQ, error)
	List(ctx context.Context, filters ListFilters) ([]RFQ, error)
}

// Service is the RFQ lifecycle manager.
type Service struct {
	repo    Repository
	emitter lifecycle.Emitter
	now     func() time.Time
}

func NewService(repo Repository, emitter lifecycle.Emitter) *Service {
	if emitter == nil {
		emitter = lifecycle.NopEmitter{}
	}
	return &Service{
		repo:    repo,
		emitter: emitter,
		now:     time.Now,
	}
}

// Create opens a new draft RFQ owned by the buyer.
func (s *Service) Create(ctx context.Context, params CreateParams) (RFQ, error) {
	if err := validate.Struct(params); err != nil {
		return RFQ{}, fmt.Errorf("rfq: invalid create params: %w", err)
	}
	if params.ExpiresAt != nil && !params.ExpiresAt.After(s.now()) {
		return RFQ{}, fmt.Errorf("rfq: expires_at already elapsed: %w", lifecycle.ErrIneligibleTarget)
	}

	rec, err := s.repo.Create(ctx, params)
	if err != nil {
		return RFQ{}, err
	}

	s.emitter.Emit(ctx, lifecycle.Event{
		Entity:     lifecycle.EntityRFQ,
		EntityID:   rec.ID,
		NewStatus:  string(StatusDraft),
		ActorID:    params.BuyerID,
		OccurredAt: s.now().UTC(),
	})
	return rec, nil
}

// Publish transitions a draft RFQ to active so vendors may quote against it.
func (s *Service) Publish(ctx context.Context, id string, actor lifecycle.Actor) (RFQ, error) {
	rec, err := s.repo.Activate(ctx, id, actor)
	if err != nil {
		return RFQ{}, err
	}
	s.emit(ctx, rec, StatusDraft, actor)
	return rec, nil
}

// Close performs an explicit manual close of an active RFQ.
func (s *Service) Close(ctx context.Context, id string, actor lifecycle.Actor) (RFQ, error) {
	rec, err := s.repo.Close(ctx, id, ReasonManuallyClosed, actor)
	if err != nil {
		return RFQ{}, err
	}
	s.emit(ctx, rec, StatusActive, actor)
	return rec, nil
}

// Cancel moves a non-terminal RFQ to cancelled.
func (s *Service) Cancel(ctx context.Context, id string, actor lifecycle.Actor) (RFQ, error) {
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return RFQ{}, err
	}

	rec, err := s.repo.Cancel(ctx, id, actor)
	if err != nil {
		return RFQ{}, err
	}
	s.emit(ctx, rec, before.Status, actor)
	return rec, nil
}

// Get returns the RFQ with lazy expiry applied: an elapsed active RFQ reads
// as closed (reason expired) before the sweep persists the transition.
func (s *Service) Get(ctx context.Context, id string) (RFQ, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return RFQ{}, err
	}
	now := s.now()
	rec.ClosedReason = rec.EffectiveClosedReason(now)
	rec.Status = rec.EffectiveStatus(now)
	return rec, nil
}

// List returns matching RFQs with lazy expiry applied to each row.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]RFQ, error) {
	recs, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range recs {
		recs[i].ClosedReason = recs[i].EffectiveClosedReason(now)
		recs[i].Status = recs[i].EffectiveStatus(now)
	}
	return recs, nil
}

func (s *Service) emit(ctx context.Context, rec RFQ, old Status, actor lifecycle.Actor) {
	s.emitter.Emit(ctx, lifecycle.Event{
		Entity:     lifecycle.EntityRFQ,
		EntityID:   rec.ID,
		OldStatus:  string(old),
		NewStatus:  string(rec.Status),
		ActorID:    actor.ID,
		OccurredAt: s.now().UTC(),
	})
}
