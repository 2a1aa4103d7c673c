package quote

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

const columns = `id, rfq_id, vendor_id, price_per_unit::text, currency, quantity_available,
       min_order_quantity, max_order_quantity, delivery_fee::text, lead_time_days,
       payment_terms::text, valid_until, notes, status::text, accepted_at, created_at, updated_at`

// PGRepository persists quotes in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Submit inserts a quote against its parent RFQ in one statement. The INSERT
// only matches when the RFQ is active and unexpired; FOR SHARE on the RFQ
// row blocks behind a concurrent acceptance holding FOR UPDATE, so the gate
// is re-evaluated after the acceptance commits and no submitted quote can
// land on a just-closed RFQ.
func (r *PGRepository) Submit(ctx context.Context, params SubmitParams) (Quote, error) {
	insertSQL := fmt.Sprintf(`
		INSERT INTO quotes (rfq_id, vendor_id, price_per_unit, currency, quantity_available,
		                    min_order_quantity, max_order_quantity, delivery_fee, lead_time_days,
		                    payment_terms, valid_until, notes, status)
		SELECT r.id, $2, $3::numeric, $4, $5, $6, $7, $8::numeric, $9, $10::quote_payment_terms, $11, $12, 'submitted'
		FROM rfqs r
		WHERE r.id = $1
		  AND r.status = 'active'
		  AND (r.expires_at IS NULL OR r.expires_at > now())
		FOR SHARE OF r
		RETURNING %s`, columns)

	var fee any
	if params.DeliveryFee != nil {
		fee = params.DeliveryFee.String()
	}

	rec, err := scanQuote(r.pool.QueryRow(ctx, insertSQL,
		params.RFQID,
		params.VendorID,
		params.PricePerUnit.String(),
		params.Currency,
		params.QuantityAvail,
		params.MinOrderQuantity,
		params.MaxOrderQuantity,
		fee,
		params.LeadTimeDays,
		params.PaymentTerms,
		params.ValidUntil,
		params.Notes,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, r.diagnoseSubmit(ctx, params.RFQID)
		}
		return Quote{}, fmt.Errorf("quote: submit: %w", err)
	}
	return rec, nil
}

func (r *PGRepository) diagnoseSubmit(ctx context.Context, rfqID string) error {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status::text FROM rfqs WHERE id = $1`, rfqID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("quote: rfq %s: %w", rfqID, lifecycle.ErrNotFound)
		}
		return fmt.Errorf("quote: diagnose submit: %w", err)
	}
	return fmt.Errorf("quote: rfq %s is %s or expired: %w", rfqID, status, lifecycle.ErrIneligibleTarget)
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Quote, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM quotes WHERE id = $1`, columns)

	rec, err := scanQuote(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, fmt.Errorf("quote %s: %w", id, lifecycle.ErrNotFound)
		}
		return Quote{}, fmt.Errorf("quote: get by id: %w", err)
	}
	return rec, nil
}

// Withdraw moves a vendor's own submitted quote to declined.
func (r *PGRepository) Withdraw(ctx context.Context, id string, actor lifecycle.Actor) (Quote, error) {
	updateSQL := fmt.Sprintf(`
		UPDATE quotes
		SET status = 'declined', updated_at = now()
		WHERE id = $1
		  AND status = 'submitted'
		  AND (vendor_id = $2 OR $3)
		RETURNING %s`, columns)

	rec, err := scanQuote(r.pool.QueryRow(ctx, updateSQL, id, actor.ID, actor.Admin))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, fmt.Errorf("quote: withdraw: %w", err)
	}

	rec, err = r.GetByID(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	if rec.VendorID != actor.ID && !actor.Admin {
		return Quote{}, fmt.Errorf("quote %s: actor %s: %w", id, actor.ID, lifecycle.ErrForbidden)
	}
	return Quote{}, fmt.Errorf("quote %s is %s: %w", id, rec.Status, lifecycle.ErrInvalidTransition)
}

// MarkExpired persists lazy expiry for one quote. The status condition means
// it can never overwrite a concurrently accepted quote.
func (r *PGRepository) MarkExpired(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE quotes
		SET status = 'expired', updated_at = now()
		WHERE id = $1
		  AND status = 'submitted'
		  AND valid_until <= now()
	`, id)
	if err != nil {
		return false, fmt.Errorf("quote: mark expired: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListExpiredSubmitted returns ids of submitted quotes past their deadline.
func (r *PGRepository) ListExpiredSubmitted(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM quotes
		WHERE status = 'submitted' AND valid_until <= now()
		ORDER BY valid_until
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("quote: list expired: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("quote: scan expired id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quote: iterate expired: %w", err)
	}
	return ids, nil
}

func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Quote, error) {
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}

	q := db.Builder.
		Select(strings.Split(columns, ",")...).
		From("quotes").
		OrderBy("created_at DESC").
		Limit(uint64(filters.Limit)).
		Offset(uint64(filters.Offset))

	if filters.RFQID != "" {
		q = q.Where(squirrel.Eq{"rfq_id": filters.RFQID})
	}
	if filters.VendorID != "" {
		q = q.Where(squirrel.Eq{"vendor_id": filters.VendorID})
	}
	if filters.Status != "" {
		q = q.Where(squirrel.Eq{"status": string(filters.Status)})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("quote: build list query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("quote: list: %w", err)
	}
	defer rows.Close()

	out := make([]Quote, 0, filters.Limit)
	for rows.Next() {
		rec, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("quote: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quote: iterate: %w", err)
	}
	return out, nil
}

func scanQuote(row pgx.Row) (Quote, error) {
	var (
		rec        Quote
		price      string
		minQty     *int
		maxQty     *int
		fee        *string
		notes      *string
		acceptedAt *time.Time
	)
	err := row.Scan(
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
		&notes,
		&rec.Status,
		&acceptedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Quote{}, err
	}

	rec.PricePerUnit, err = decimal.NewFromString(price)
	if err != nil {
		return Quote{}, fmt.Errorf("quote: parse price: %w", err)
	}
	if fee != nil {
		d, err := decimal.NewFromString(*fee)
		if err != nil {
			return Quote{}, fmt.Errorf("quote: parse delivery fee: %w", err)
		}
		rec.DeliveryFee = &d
	}
	rec.MinOrderQuantity = minQty
	rec.MaxOrderQuantity = maxQty
	rec.Notes = notes
	rec.AcceptedAt = acceptedAt
	rec.Currency = strings.TrimSpace(rec.Currency)
	return rec, nil
}
