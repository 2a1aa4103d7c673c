package acceptance

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"procureflow/lifecycle"
	"procureflow/order"
	"procureflow/quote"
	"procureflow/rfq"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository defines the row operations executed inside the acceptance
// transaction. Locks are always taken RFQ first, then quote, so concurrent
// acceptors serialize on the RFQ row instead of deadlocking.
type Repository interface {
	LockRFQ(ctx context.Context, tx pgx.Tx, rfqID string) (rfq.RFQ, error)
	LockQuote(ctx context.Context, tx pgx.Tx, quoteID string) (quote.Quote, error)
	MarkQuoteAccepted(ctx context.Context, tx pgx.Tx, quoteID string, at time.Time) error
	DeclineSiblings(ctx context.Context, tx pgx.Tx, rfqID, acceptedQuoteID string) ([]string, error)
	CloseRFQ(ctx context.Context, tx pgx.Tx, rfqID string) error
}

// OrderCreator materialises the order inside the same transaction.
type OrderCreator interface {
	CreateFromAcceptedQuote(ctx context.Context, tx pgx.Tx, params order.AcceptedQuoteParams) (order.Order, error)
}

// Coordinator runs the single atomic cross-entity operation of the engine:
// promoting one quote to a binding order. All four effects (quote accepted,
// siblings declined, RFQ closed, order created) commit together or not at
// all.
type Coordinator struct {
	pool    TxBeginner
	repo    Repository
	orders  OrderCreator
	emitter lifecycle.Emitter
	now     func() time.Time
}

func NewCoordinator(pool TxBeginner, repo Repository, orders OrderCreator, emitter lifecycle.Emitter) *Coordinator {
	if emitter == nil {
		emitter = lifecycle.NopEmitter{}
	}
	return &Coordinator{
		pool:    pool,
		repo:    repo,
		orders:  orders,
		emitter: emitter,
		now:     time.Now,
	}
}

// AcceptQuote promotes the quote to a binding order on behalf of the RFQ's
// buyer. Preconditions are re-verified under row locks, so of two concurrent
// attempts on the same RFQ exactly one commits; the loser observes
// lifecycle.ErrConflict and must not be retried automatically.
func (c *Coordinator) AcceptQuote(ctx context.Context, rfqID, quoteID string, actor lifecycle.Actor) (order.Order, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return order.Order{}, fmt.Errorf("acceptance: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := c.now()

	req, err := c.repo.LockRFQ(ctx, tx, rfqID)
	if err != nil {
		return order.Order{}, err
	}
	if req.BuyerID != actor.ID && !actor.Admin {
		return order.Order{}, fmt.Errorf("acceptance: rfq %s: actor %s: %w", rfqID, actor.ID, lifecycle.ErrForbidden)
	}
	switch req.Status {
	case rfq.StatusActive:
		// eligible
	case rfq.StatusClosed:
		// A competing acceptance or manual close won.
		return order.Order{}, fmt.Errorf("acceptance: rfq %s already closed: %w", rfqID, lifecycle.ErrConflict)
	default:
		return order.Order{}, fmt.Errorf("acceptance: rfq %s is %s: %w", rfqID, req.Status, lifecycle.ErrIneligibleTarget)
	}
	if req.Expired(now) {
		return order.Order{}, fmt.Errorf("acceptance: rfq %s expired: %w", rfqID, lifecycle.ErrIneligibleTarget)
	}

	q, err := c.repo.LockQuote(ctx, tx, quoteID)
	if err != nil {
		return order.Order{}, err
	}
	if q.RFQID != rfqID {
		return order.Order{}, fmt.Errorf("acceptance: quote %s does not belong to rfq %s: %w", quoteID, rfqID, lifecycle.ErrIneligibleTarget)
	}
	switch q.Status {
	case quote.StatusSubmitted:
		// eligible
	case quote.StatusAccepted, quote.StatusDeclined:
		return order.Order{}, fmt.Errorf("acceptance: quote %s already %s: %w", quoteID, q.Status, lifecycle.ErrConflict)
	default:
		return order.Order{}, fmt.Errorf("acceptance: quote %s is %s: %w", quoteID, q.Status, lifecycle.ErrIneligibleTarget)
	}
	// Commit-time lazy-expiry check: the sweep may not have run yet.
	if q.Expired(now) {
		return order.Order{}, fmt.Errorf("acceptance: quote %s validity elapsed: %w", quoteID, lifecycle.ErrIneligibleTarget)
	}
	if q.MinOrderQuantity != nil && req.Quantity < *q.MinOrderQuantity {
		return order.Order{}, fmt.Errorf("acceptance: quantity %d below quote minimum %d: %w", req.Quantity, *q.MinOrderQuantity, lifecycle.ErrIneligibleTarget)
	}
	if q.MaxOrderQuantity != nil && req.Quantity > *q.MaxOrderQuantity {
		return order.Order{}, fmt.Errorf("acceptance: quantity %d above quote maximum %d: %w", req.Quantity, *q.MaxOrderQuantity, lifecycle.ErrIneligibleTarget)
	}
	if req.Quantity > q.QuantityAvail {
		return order.Order{}, fmt.Errorf("acceptance: quantity %d exceeds quoted availability %d: %w", req.Quantity, q.QuantityAvail, lifecycle.ErrIneligibleTarget)
	}

	if err := c.repo.MarkQuoteAccepted(ctx, tx, quoteID, now); err != nil {
		return order.Order{}, err
	}
	declined, err := c.repo.DeclineSiblings(ctx, tx, rfqID, quoteID)
	if err != nil {
		return order.Order{}, err
	}
	if err := c.repo.CloseRFQ(ctx, tx, rfqID); err != nil {
		return order.Order{}, err
	}

	created, err := c.orders.CreateFromAcceptedQuote(ctx, tx, order.AcceptedQuoteParams{
		RFQID:             rfqID,
		QuoteID:           quoteID,
		BuyerID:           req.BuyerID,
		VendorID:          q.VendorID,
		OrganizationID:    req.OrganizationID,
		ProductID:         req.ProductID,
		Quantity:          req.Quantity,
		UnitPrice:         q.PricePerUnit,
		Currency:          q.Currency,
		DeliveryFee:       q.DeliveryFee,
		DeliveryAddressID: req.DeliveryAddressID,
		LeadTimeDays:      q.LeadTimeDays,
		PaymentTerms:      q.PaymentTerms,
		AcceptedAt:        now,
	})
	if err != nil {
		return order.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return order.Order{}, fmt.Errorf("acceptance: commit: %w", err)
	}

	c.emitEvents(ctx, rfqID, quoteID, declined, created, actor, now)
	return created, nil
}

// emitEvents fans out one lifecycle event per transition the transaction
// performed. Runs after commit; delivery is fire-and-forget.
func (c *Coordinator) emitEvents(ctx context.Context, rfqID, quoteID string, declined []string, created order.Order, actor lifecycle.Actor, at time.Time) {
	ts := at.UTC()
	c.emitter.Emit(ctx, lifecycle.Event{
		Entity:     lifecycle.EntityQuote,
		EntityID:   quoteID,
		OldStatus:  string(quote.StatusSubmitted),
		NewStatus:  string(quote.StatusAccepted),
		ActorID:    actor.ID,
		Payload:    map[string]any{"rfq_id": rfqID},
		OccurredAt: ts,
	})
	for _, id := range declined {
		c.emitter.Emit(ctx, lifecycle.Event{
			Entity:     lifecycle.EntityQuote,
			EntityID:   id,
			OldStatus:  string(quote.StatusSubmitted),
			NewStatus:  string(quote.StatusDeclined),
			ActorID:    actor.ID,
			Payload:    map[string]any{"reason": reasonSiblingAccepted, "accepted_quote_id": quoteID},
			OccurredAt: ts,
		})
	}
	c.emitter.Emit(ctx, lifecycle.Event{
		Entity:     lifecycle.EntityRFQ,
		EntityID:   rfqID,
		OldStatus:  string(rfq.StatusActive),
		NewStatus:  string(rfq.StatusClosed),
		ActorID:    actor.ID,
		Payload:    map[string]any{"closed_reason": rfq.ReasonQuoteAccepted},
		OccurredAt: ts,
	})
	c.emitter.Emit(ctx, lifecycle.Event{
		Entity:     lifecycle.EntityOrder,
		EntityID:   created.ID,
		NewStatus:  string(order.StatusPendingVendorConfirmation),
		ActorID:    actor.ID,
		Payload:    map[string]any{"rfq_id": rfqID, "quote_id": quoteID},
		OccurredAt: ts,
	})
}
