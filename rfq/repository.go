package rfq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"procureflow/db"
	"procureflow/lifecycle"
)

const columns = `id, rfq_number, buyer_id, organization_id, product_id, quantity, delivery_address_id,
       preferred_delivery_date, notes, status::text, expires_at, closed_reason, closed_at, created_at, updated_at`

// PGRepository persists RFQs in PostgreSQL. Status changes are conditional
// updates keyed on the current status so concurrent writers cannot clobber a
// transition that already happened.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Create(ctx context.Context, params CreateParams) (RFQ, error) {
	number := fmt.Sprintf("RFQ-%s", strings.ToUpper(uuid.NewString()[:8]))

	insertSQL := fmt.Sprintf(`
		INSERT INTO rfqs (rfq_number, buyer_id, organization_id, product_id, quantity,
		                  delivery_address_id, preferred_delivery_date, notes, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'draft')
		RETURNING %s`, columns)

	rec, err := scanRFQ(r.pool.QueryRow(ctx, insertSQL,
		number,
		params.BuyerID,
		params.OrganizationID,
		params.ProductID,
		params.Quantity,
		params.DeliveryAddressID,
		params.PreferredDeliveryDate,
		params.Notes,
		params.ExpiresAt,
	))
	if err != nil {
		return RFQ{}, fmt.Errorf("rfq: insert: %w", err)
	}
	return rec, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (RFQ, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM rfqs WHERE id = $1`, columns)

	rec, err := scanRFQ(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RFQ{}, fmt.Errorf("rfq %s: %w", id, lifecycle.ErrNotFound)
		}
		return RFQ{}, fmt.Errorf("rfq: get by id: %w", err)
	}
	return rec, nil
}

// Activate moves a draft RFQ to active. The expiry condition lives in the
// UPDATE itself so an already-expired draft can never go live.
func (r *PGRepository) Activate(ctx context.Context, id string, actor lifecycle.Actor) (RFQ, error) {
	updateSQL := fmt.Sprintf(`
		UPDATE rfqs
		SET status = 'active', updated_at = now()
		WHERE id = $1
		  AND status = 'draft'
		  AND (buyer_id = $2 OR $3)
		  AND (expires_at IS NULL OR expires_at > now())
		RETURNING %s`, columns)

	rec, err := scanRFQ(r.pool.QueryRow(ctx, updateSQL, id, actor.ID, actor.Admin))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return RFQ{}, fmt.Errorf("rfq: activate: %w", err)
	}
	return RFQ{}, r.diagnose(ctx, id, actor, StatusDraft)
}

// Close performs the explicit buyer/admin close of an active RFQ. Closing as
// a side effect of quote acceptance happens inside the acceptance
// coordinator's transaction, not here.
func (r *PGRepository) Close(ctx context.Context, id, reason string, actor lifecycle.Actor) (RFQ, error) {
	updateSQL := fmt.Sprintf(`
		UPDATE rfqs
		SET status = 'closed', closed_reason = $4, closed_at = now(), updated_at = now()
		WHERE id = $1
		  AND status = 'active'
		  AND (buyer_id = $2 OR $3)
		RETURNING %s`, columns)

	rec, err := scanRFQ(r.pool.QueryRow(ctx, updateSQL, id, actor.ID, actor.Admin, reason))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return RFQ{}, fmt.Errorf("rfq: close: %w", err)
	}
	return RFQ{}, r.diagnose(ctx, id, actor)
}

// Cancel is permitted from any non-terminal state.
func (r *PGRepository) Cancel(ctx context.Context, id string, actor lifecycle.Actor) (RFQ, error) {
	updateSQL := fmt.Sprintf(`
		UPDATE rfqs
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1
		  AND status IN ('draft', 'active')
		  AND (buyer_id = $2 OR $3)
		RETURNING %s`, columns)

	rec, err := scanRFQ(r.pool.QueryRow(ctx, updateSQL, id, actor.ID, actor.Admin))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return RFQ{}, fmt.Errorf("rfq: cancel: %w", err)
	}
	return RFQ{}, r.diagnose(ctx, id, actor)
}

// MarkExpired persists the lazy-expiry transition for one RFQ. The
// conditional WHERE makes it idempotent and safe against a concurrent
// acceptance that already closed the row.
func (r *PGRepository) MarkExpired(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE rfqs
		SET status = 'closed', closed_reason = $2, closed_at = now(), updated_at = now()
		WHERE id = $1
		  AND status = 'active'
		  AND expires_at IS NOT NULL
		  AND expires_at <= now()
	`, id, ReasonExpired)
	if err != nil {
		return false, fmt.Errorf("rfq: mark expired: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListExpiredActive returns ids of active RFQs whose expiry has elapsed.
func (r *PGRepository) ListExpiredActive(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM rfqs
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= now()
		ORDER BY expires_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("rfq: list expired: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("rfq: scan expired id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rfq: iterate expired: %w", err)
	}
	return ids, nil
}

func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]RFQ, error) {
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}

	q := db.Builder.
		Select(strings.Split(columns, ",")...).
		From("rfqs").
		OrderBy("created_at DESC").
		Limit(uint64(filters.Limit)).
		Offset(uint64(filters.Offset))

	if filters.BuyerID != "" {
		q = q.Where(squirrel.Eq{"buyer_id": filters.BuyerID})
	}
	if filters.ProductID != "" {
		q = q.Where(squirrel.Eq{"product_id": filters.ProductID})
	}
	if filters.Status != "" {
		q = q.Where(squirrel.Eq{"status": string(filters.Status)})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("rfq: build list query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("rfq: list: %w", err)
	}
	defer rows.Close()

	out := make([]RFQ, 0, filters.Limit)
	for rows.Next() {
		rec, err := scanRFQ(rows)
		if err != nil {
			return nil, fmt.Errorf("rfq: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rfq: iterate: %w", err)
	}
	return out, nil
}

// diagnose turns a zero-row conditional update into the precise domain error.
func (r *PGRepository) diagnose(ctx context.Context, id string, actor lifecycle.Actor, expected ...Status) error {
	rec, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec.BuyerID != actor.ID && !actor.Admin {
		return fmt.Errorf("rfq %s: actor %s: %w", id, actor.ID, lifecycle.ErrForbidden)
	}
	for _, s := range expected {
		if rec.Status == s {
			// Status matched but the expiry condition didn't.
			return fmt.Errorf("rfq %s expired: %w", id, lifecycle.ErrIneligibleTarget)
		}
	}
	return fmt.Errorf("rfq %s is %s: %w", id, rec.Status, lifecycle.ErrInvalidTransition)
}

func scanRFQ(row pgx.Row) (RFQ, error) {
	var (
		rec          RFQ
		orgID        *string
		prefDate     *time.Time
		notes        *string
		expiresAt    *time.Time
		closedReason *string
		closedAt     *time.Time
	)
	err := row.Scan(
		&rec.ID,
		&rec.Number,
		&rec.BuyerID,
		&orgID,
		&rec.ProductID,
		&rec.Quantity,
		&rec.DeliveryAddressID,
		&prefDate,
		&notes,
		&rec.Status,
		&expiresAt,
		&closedReason,
		&closedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return RFQ{}, err
	}
	rec.OrganizationID = orgID
	rec.PreferredDeliveryDate = prefDate
	rec.Notes = notes
	rec.ExpiresAt = expiresAt
	rec.ClosedReason = closedReason
	rec.ClosedAt = closedAt
	return rec, nil
}
