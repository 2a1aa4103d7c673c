package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"procureflow/db"
	"procureflow/lifecycle"
)

const columns = `id, order_number, rfq_id, quote_id, buyer_id, vendor_id, organization_id, product_id,
       quantity, unit_price::text, currency, subtotal::text, delivery_fee::text, total_amount::text,
       delivery_address_id, expected_delivery_date, status::text, payment_method::text,
       vendor_declined_reason, cancelled_by, cancellation_reason, cancelled_at, created_at, updated_at`

// PGRepository persists orders in PostgreSQL. Every transition is a
// compare-and-set keyed on the current status, so two writers racing on the
// same order resolve to one winner and one zero-row update.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Order, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, columns)

	rec, err := scanOrder(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, fmt.Errorf("order %s: %w", id, lifecycle.ErrNotFound)
		}
		return Order{}, fmt.Errorf("order: get by id: %w", err)
	}
	return rec, nil
}

// Advance takes one forward edge: transition to next only if currently at
// its predecessor.
func (r *PGRepository) Advance(ctx context.Context, id string, from, to Status) (Order, error) {
	updateSQL := fmt.Sprintf(`
		UPDATE orders
		SET status = $3::order_status, updated_at = now()
		WHERE id = $1 AND status = $2::order_status
		RETURNING %s`, columns)

	rec, err := scanOrder(r.pool.QueryRow(ctx, updateSQL, id, from, to))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order: advance: %w", err)
	}

	// The conditional update missed: the row is gone or its status moved.
	rec, err = r.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	return Order{}, diagnoseAdvanceMiss(rec, to)
}

// diagnoseAdvanceMiss explains why a conditional advance matched no row. A
// record already at the target lost the race to a writer taking the same
// edge; one that can still reach the target lost to some other concurrent
// move. Anything else is an illegal transition.
func diagnoseAdvanceMiss(rec Order, to Status) error {
	if rec.Status == to || CanTransition(rec.Status, to) {
		return fmt.Errorf("order %s moved to %s concurrently: %w", rec.ID, rec.Status, lifecycle.ErrConflict)
	}
	return fmt.Errorf("order %s is %s, cannot reach %s: %w", rec.ID, rec.Status, to, lifecycle.ErrInvalidTransition)
}

// Decline records the vendor's refusal. Only reachable from
// pending_vendor_confirmation.
func (r *PGRepository) Decline(ctx context.Context, id, reason string) (Order, error) {
	updateSQL := fmt.Sprintf(`
		UPDATE orders
		SET status = 'vendor_declined', vendor_declined_reason = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending_vendor_confirmation'
		RETURNING %s`, columns)

	rec, err := scanOrder(r.pool.QueryRow(ctx, updateSQL, id, reason))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order: decline: %w", err)
	}

	rec, err = r.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	return Order{}, fmt.Errorf("order %s is %s: %w", id, rec.Status, lifecycle.ErrInvalidTransition)
}

// Cancel is reachable from any non-terminal state and records who cancelled
// and why.
func (r *PGRepository) Cancel(ctx context.Context, id, reason, cancelledBy string) (Order, error) {
	updateSQL := fmt.Sprintf(`
		UPDATE orders
		SET status = 'cancelled', cancellation_reason = $2, cancelled_by = $3,
		    cancelled_at = now(), updated_at = now()
		WHERE id = $1 AND status NOT IN ('delivered', 'cancelled', 'vendor_declined')
		RETURNING %s`, columns)

	rec, err := scanOrder(r.pool.QueryRow(ctx, updateSQL, id, reason, cancelledBy))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order: cancel: %w", err)
	}

	rec, err = r.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	return Order{}, fmt.Errorf("order %s is %s: %w", id, rec.Status, lifecycle.ErrInvalidTransition)
}

func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Order, error) {
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}

	q := db.Builder.
		Select(strings.Split(columns, ",")...).
		From("orders").
		OrderBy("created_at DESC").
		Limit(uint64(filters.Limit)).
		Offset(uint64(filters.Offset))

	if filters.BuyerID != "" {
		q = q.Where(squirrel.Eq{"buyer_id": filters.BuyerID})
	}
	if filters.VendorID != "" {
		q = q.Where(squirrel.Eq{"vendor_id": filters.VendorID})
	}
	if filters.Status != "" {
		q = q.Where(squirrel.Eq{"status": string(filters.Status)})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("order: build list query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("order: list: %w", err)
	}
	defer rows.Close()

	out := make([]Order, 0, filters.Limit)
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("order: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order: iterate: %w", err)
	}
	return out, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		rec            Order
		orgID          *string
		unitPrice      string
		subtotal       string
		fee            *string
		total          string
		expectedDate   *time.Time
		declinedReason *string
		cancelledBy    *string
		cancelReason   *string
		cancelledAt    *time.Time
	)
	err := row.Scan(
		&rec.ID,
		&rec.Number,
		&rec.RFQID,
		&rec.QuoteID,
		&rec.BuyerID,
		&rec.VendorID,
		&orgID,
		&rec.ProductID,
		&rec.Quantity,
		&unitPrice,
		&rec.Currency,
		&subtotal,
		&fee,
		&total,
		&rec.DeliveryAddressID,
		&expectedDate,
		&rec.Status,
		&rec.PaymentMethod,
		&declinedReason,
		&cancelledBy,
		&cancelReason,
		&cancelledAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}

	if rec.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return Order{}, fmt.Errorf("order: parse unit price: %w", err)
	}
	if rec.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return Order{}, fmt.Errorf("order: parse subtotal: %w", err)
	}
	if rec.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return Order{}, fmt.Errorf("order: parse total: %w", err)
	}
	if fee != nil {
		d, err := decimal.NewFromString(*fee)
		if err != nil {
			return Order{}, fmt.Errorf("order: parse delivery fee: %w", err)
		}
		rec.DeliveryFee = &d
	}
	rec.OrganizationID = orgID
	rec.ExpectedDeliveryDate = expectedDate
	rec.VendorDeclinedReason = declinedReason
	rec.CancelledBy = cancelledBy
	rec.CancellationReason = cancelReason
	rec.CancelledAt = cancelledAt
	rec.Currency = strings.TrimSpace(rec.Currency)
	return rec, nil
}
