package quote

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"procureflow/lifecycle"
	"procureflow/refdata"
)

var validate = validator.New()

// Repository abstracts storage for the negotiation engine.
type Repository interface {
	Submit(ctx context.Context, params SubmitParams) (Quote, error)
	GetByID(ctx context.Context, id string) (Quote, error)
	Withdraw(ctx context.Context, id string, actor lifecycle.Actor) (Quote, error)
	List(ctx context.Context, filters ListFilters) ([]Quote, error)
}

// Service is the quote negotiation engine. Acceptance is not here: the only
// path to StatusAccepted runs through the acceptance coordinator.
type Service struct {
	repo    Repository
	refdata refdata.Lookup
	emitter lifecycle.Emitter
	now     func() time.Time
}

func NewService(repo Repository, ref refdata.Lookup, emitter lifecycle.Emitter) *Service {
	if emitter == nil {
		emitter = lifecycle.NopEmitter{}
	}
	return &Service{
		repo:    repo,
		refdata: ref,
		emitter: emitter,
		now:     time.Now,
	}
}

// Submit records a vendor's offer against an active, unexpired RFQ.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (Quote, error) {
	if params.PaymentTerms == "" {
		params.PaymentTerms = TermsCOD
	}
	if err := validate.Struct(params); err != nil {
		return Quote{}, fmt.Errorf("quote: invalid submit params: %w", err)
	}
	if !params.PricePerUnit.IsPositive() {
		return Quote{}, fmt.Errorf("quote: price_per_unit must be positive")
	}
	if params.DeliveryFee != nil && params.DeliveryFee.IsNegative() {
		return Quote{}, fmt.Errorf("quote: delivery_fee must not be negative")
	}
	if params.MinOrderQuantity != nil && params.MaxOrderQuantity != nil && *params.MinOrderQuantity > *params.MaxOrderQuantity {
		return Quote{}, fmt.Errorf("quote: min_order_quantity exceeds max_order_quantity")
	}
	if !params.ValidUntil.After(s.now()) {
		return Quote{}, fmt.Errorf("quote: valid_until already elapsed: %w", lifecycle.ErrIneligibleTarget)
	}

	if s.refdata != nil {
		ok, err := s.refdata.CurrencyExists(ctx, params.Currency)
		if err != nil {
			return Quote{}, err
		}
		if !ok {
			return Quote{}, fmt.Errorf("quote: unknown currency %q", params.Currency)
		}
	}

	rec, err := s.repo.Submit(ctx, params)
	if err != nil {
		return Quote{}, err
	}

	s.emitter.Emit(ctx, lifecycle.Event{
		Entity:     lifecycle.EntityQuote,
		EntityID:   rec.ID,
		NewStatus:  string(StatusSubmitted),
		ActorID:    params.VendorID,
		Payload:    map[string]any{"rfq_id": rec.RFQID},
		OccurredAt: s.now().UTC(),
	})
	return rec, nil
}

// Withdraw is the vendor's explicit submitted -> declined transition.
func (s *Service) Withdraw(ctx context.Context, id string, actor lifecycle.Actor) (Quote, error) {
	rec, err := s.repo.Withdraw(ctx, id, actor)
	if err != nil {
		return Quote{}, err
	}

	s.emitter.Emit(ctx, lifecycle.Event{
		Entity:     lifecycle.EntityQuote,
		EntityID:   rec.ID,
		OldStatus:  string(StatusSubmitted),
		NewStatus:  string(StatusDeclined),
		ActorID:    actor.ID,
		Payload:    map[string]any{"reason": "vendor_withdrew"},
		OccurredAt: s.now().UTC(),
	})
	return rec, nil
}

// Get returns the quote with lazy expiry applied.
func (s *Service) Get(ctx context.Context, id string) (Quote, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	rec.Status = rec.EffectiveStatus(s.now())
	return rec, nil
}

// List returns matching quotes with lazy expiry applied to each row.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Quote, error) {
	recs, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range recs {
		recs[i].Status = recs[i].EffectiveStatus(now)
	}
	return recs, nil
}
