package acceptance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"procureflow/lifecycle"
	"procureflow/quote"
	"procureflow/rfq"
)

// PGRepository implements the row operations of the acceptance transaction.
// Every method runs against the caller's transaction.
type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

func (r *PGRepository) LockRFQ(ctx context.Context, tx pgx.Tx, rfqID string) (rfq.RFQ, error) {
	const lockSQL = `
		SELECT id, buyer_id, organization_id, product_id, quantity, delivery_address_id,
		       status::text, expires_at
		FROM rfqs
		WHERE id = $1
		FOR UPDATE
	`

	var (
		rec       rfq.RFQ
		orgID     *string
		expiresAt *time.Time
	)
	err := tx.QueryRow(ctx, lockSQL, rfqID).Scan(
		&rec.ID,
		&rec.BuyerID,
		&orgID,
		&rec.ProductID,
		&rec.Quantity,
		&rec.DeliveryAddressID,
		&rec.Status,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rfq.RFQ{}, fmt.Errorf("acceptance: rfq %s: %w", rfqID, lifecycle.ErrNotFound)
		}
		return rfq.RFQ{}, fmt.Errorf("acceptance: lock rfq: %w", err)
	}
	rec.OrganizationID = orgID
	rec.ExpiresAt = expiresAt
	return rec, nil
}

func (r *PGRepository) LockQuote(ctx context.Context, tx pgx.Tx, quoteID string) (quote.Quote, error) {
	const lockSQL = `
		SELECT id, rfq_id, vendor_id, price_per_unit::text, currency, quantity_available,
		       min_order_quantity, max_order_quantity, delivery_fee::text, lead_time_days,
		       payment_terms::text, valid_until, status::text
		FROM quotes
		WHERE id = $1
		FOR UPDATE
	`

	var (
		rec    quote.Quote
		price  string
		minQty *int
		maxQty *int
		fee    *string
	)
	err := tx.QueryRow(ctx, lockSQL, quoteID).Scan(
		&rec.ID,
		&rec.RFQID,
		&rec.VendorID,
		&price,
		&rec.Currency,
		&rec.QuantityAvail,
		&minQty,
		&maxQty,
		&fee,
		&rec.LeadTimeDays,
		&rec.PaymentTerms,
		&rec.ValidUntil,
		&rec.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return quote.Quote{}, fmt.Errorf("acceptance: quote %s: %w", quoteID, lifecycle.ErrNotFound)
		}
		return quote.Quote{}, fmt.Errorf("acceptance: lock quote: %w", err)
	}

	if rec.PricePerUnit, err = decimal.NewFromString(price); err != nil {
		return quote.Quote{}, fmt.Errorf("acceptance: parse quote price: %w", err)
	}
	if fee != nil {
		d, err := decimal.NewFromString(*fee)
		if err != nil {
			return quote.Quote{}, fmt.Errorf("acceptance: parse quote fee: %w", err)
		}
		rec.DeliveryFee = &d
	}
	rec.MinOrderQuantity = minQty
	rec.MaxOrderQuantity = maxQty
	rec.Currency = strings.TrimSpace(rec.Currency)
	return rec, nil
}

// MarkQuoteAccepted flips the locked quote to accepted. The status condition
// is a backstop: under the row lock it can only miss if a previous statement
// in this transaction already moved the quote.
func (r *PGRepository) MarkQuoteAccepted(ctx context.Context, tx pgx.Tx, quoteID string, at time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE quotes
		SET status = 'accepted', accepted_at = $2, updated_at = now()
		WHERE id = $1 AND status = 'submitted'
	`, quoteID, at.UTC())
	if err != nil {
		return fmt.Errorf("acceptance: accept quote: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("acceptance: quote %s no longer submitted: %w", quoteID, lifecycle.ErrConflict)
	}
	return nil
}

// DeclineSiblings declines every other still-submitted quote of the RFQ and
// returns their ids for event emission.
func (r *PGRepository) DeclineSiblings(ctx context.Context, tx pgx.Tx, rfqID, acceptedQuoteID string) ([]string, error) {
	rows, err := tx.Query(ctx, `
		UPDATE quotes
		SET status = 'declined', updated_at = now()
		WHERE rfq_id = $1 AND id <> $2 AND status = 'submitted'
		RETURNING id
	`, rfqID, acceptedQuoteID)
	if err != nil {
		return nil, fmt.Errorf("acceptance: decline siblings: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 4)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("acceptance: scan declined sibling: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("acceptance: iterate declined siblings: %w", err)
	}
	return ids, nil
}

func (r *PGRepository) CloseRFQ(ctx context.Context, tx pgx.Tx, rfqID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE rfqs
		SET status = 'closed', closed_reason = $2, closed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'active'
	`, rfqID, rfq.ReasonQuoteAccepted)
	if err != nil {
		return fmt.Errorf("acceptance: close rfq: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("acceptance: rfq %s no longer active: %w", rfqID, lifecycle.ErrConflict)
	}
	return nil
}
