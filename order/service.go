package order

import (
	"context"
	"fmt"
	"time"

	"procureflow/lifecycle"
)

// Repository abstracts storage for the fulfillment state machine.
type Repository interface {
	GetByID(ctx context.Context, id string) (Order, error)
	Advance(ctx context.Context, id string, from, to Status) (Order, error)
	Decline(ctx context.Context, id, reason string) (Order, error)
	Cancel(ctx context.Context, id, reason, cancelledBy string) (Order, error)
	List(ctx context.Context, filters ListFilters) ([]Order, error)
}

// Service drives order fulfillment. Orders are created exclusively by the
// acceptance coordinator; from here on only status and delivery metadata
// move.
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

func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Order, error) {
	return s.repo.List(ctx, filters)
}

// Advance takes the next forward edge for the order. The vendor (or an
// admin) drives fulfillment; each edge is taken exactly once, in order.
func (s *Service) Advance(ctx context.Context, id string, to Status, actor lifecycle.Actor) (Order, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if current.VendorID != actor.ID && !actor.Admin {
		return Order{}, fmt.Errorf("order %s: actor %s: %w", id, actor.ID, lifecycle.ErrForbidden)
	}
	if forwardNext[current.Status] != to {
		return Order{}, fmt.Errorf("order %s: %s -> %s: %w", id, current.Status, to, lifecycle.ErrInvalidTransition)
	}

	rec, err := s.repo.Advance(ctx, id, current.Status, to)
	if err != nil {
		return Order{}, err
	}
	s.emit(ctx, rec, current.Status, actor, nil)
	return rec, nil
}

// Decline records the vendor's refusal of a pending order. A reason is
// mandatory.
func (s *Service) Decline(ctx context.Context, id, reason string, actor lifecycle.Actor) (Order, error) {
	if reason == "" {
		return Order{}, fmt.Errorf("order: vendor_declined_reason required")
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if current.VendorID != actor.ID && !actor.Admin {
		return Order{}, fmt.Errorf("order %s: actor %s: %w", id, actor.ID, lifecycle.ErrForbidden)
	}

	rec, err := s.repo.Decline(ctx, id, reason)
	if err != nil {
		return Order{}, err
	}
	s.emit(ctx, rec, current.Status, actor, map[string]any{"reason": reason})
	return rec, nil
}

// Cancel moves a non-terminal order to cancelled. Buyer, vendor, or admin
// may cancel; the actor and reason are recorded. Cancelling never reopens
// the source RFQ or resurrects declined sibling quotes.
func (s *Service) Cancel(ctx context.Context, id, reason string, actor lifecycle.Actor) (Order, error) {
	if reason == "" {
		return Order{}, fmt.Errorf("order: cancellation_reason required")
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if current.BuyerID != actor.ID && current.VendorID != actor.ID && !actor.Admin {
		return Order{}, fmt.Errorf("order %s: actor %s: %w", id, actor.ID, lifecycle.ErrForbidden)
	}

	rec, err := s.repo.Cancel(ctx, id, reason, actor.ID)
	if err != nil {
		return Order{}, err
	}
	s.emit(ctx, rec, current.Status, actor, map[string]any{"reason": reason})
	return rec, nil
}

func (s *Service) emit(ctx context.Context, rec Order, old Status, actor lifecycle.Actor, payload map[string]any) {
	s.emitter.Emit(ctx, lifecycle.Event{
		Entity:     lifecycle.EntityOrder,
		EntityID:   rec.ID,
		OldStatus:  string(old),
		NewStatus:  string(rec.Status),
		ActorID:    actor.ID,
		Payload:    payload,
		OccurredAt: s.now().UTC(),
	})
}
