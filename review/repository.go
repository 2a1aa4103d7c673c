package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"procureflow/db"
	"procureflow/lifecycle"
)

const columns = `id, order_id, buyer_id, vendor_id, overall_rating,
       product_quality_rating, delivery_rating, communication_rating, pricing_rating,
       review_text, is_anonymous, helpful_count, is_verified_purchase,
       vendor_response, vendor_response_at, status::text,
       hidden_reason, hidden_by, hidden_at, created_at, updated_at`

// PGRepository persists reviews in PostgreSQL. The UNIQUE constraint on
// order_id enforces one review per order under concurrent submits.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts a review for a delivered order owned by the buyer. The
// INSERT..SELECT guarantees the delivery gate and the authorship check hold
// at insert time; the unique constraint rejects a second review.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Review, error) {
	insertSQL := fmt.Sprintf(`
		INSERT INTO reviews (order_id, buyer_id, vendor_id, overall_rating,
			product_quality_rating, delivery_rating, communication_rating, pricing_rating,
			review_text, is_anonymous)
		SELECT o.id, o.buyer_id, o.vendor_id, $3, $4, $5, $6, $7, $8, $9
		FROM orders o
		WHERE o.id = $1 AND o.buyer_id = $2 AND o.status = 'delivered'
		RETURNING %s`, columns)

	rev, err := scanReview(r.pool.QueryRow(ctx, insertSQL,
		params.OrderID,
		params.BuyerID,
		params.OverallRating,
		params.ProductQualityRating,
		params.DeliveryRating,
		params.CommunicationRating,
		params.PricingRating,
		params.ReviewText,
		params.IsAnonymous,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Review{}, r.diagnoseCreate(ctx, params)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Review{}, fmt.Errorf("review: order %s already reviewed: %w", params.OrderID, lifecycle.ErrUniqueViolation)
		}
		return Review{}, fmt.Errorf("review: create: %w", err)
	}
	return rev, nil
}

// diagnoseCreate distinguishes why the gated INSERT matched no order.
func (r *PGRepository) diagnoseCreate(ctx context.Context, params CreateParams) error {
	var buyerID, status string
	err := r.pool.QueryRow(ctx,
		`SELECT buyer_id, status::text FROM orders WHERE id = $1`,
		params.OrderID,
	).Scan(&buyerID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("review: order %s: %w", params.OrderID, lifecycle.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("review: diagnose create: %w", err)
	}
	if buyerID != params.BuyerID {
		return fmt.Errorf("review: order %s belongs to another buyer: %w", params.OrderID, lifecycle.ErrForbidden)
	}
	return fmt.Errorf("review: order %s is %s, not delivered: %w", params.OrderID, status, lifecycle.ErrIneligibleTarget)
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Review, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1`, columns)

	rev, err := scanReview(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Review{}, fmt.Errorf("review %s: %w", id, lifecycle.ErrNotFound)
		}
		return Review{}, fmt.Errorf("review: get by id: %w", err)
	}
	return rev, nil
}

// VendorRespond attaches the vendor's single public response. Only the
// reviewed vendor may respond, and only once.
func (r *PGRepository) VendorRespond(ctx context.Context, id, vendorID, response string) (Review, error) {
	updateSQL := fmt.Sprintf(`
		UPDATE reviews
		SET vendor_response = $3, vendor_response_at = now(), updated_at = now()
		WHERE id = $1 AND vendor_id = $2 AND vendor_response IS NULL
		RETURNING %s`, columns)

	rev, err := scanReview(r.pool.QueryRow(ctx, updateSQL, id, vendorID, response))
	if err == nil {
		return rev, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Review{}, fmt.Errorf("review: vendor respond: %w", err)
	}

	existing, gerr := r.GetByID(ctx, id)
	if gerr != nil {
		return Review{}, gerr
	}
	if existing.VendorID != vendorID {
		return Review{}, fmt.Errorf("review %s belongs to another vendor: %w", id, lifecycle.ErrForbidden)
	}
	return Review{}, fmt.Errorf("review %s already has a vendor response: %w", id, lifecycle.ErrConflict)
}

// SetStatus is the moderation hook. Hiding records who hid the review and
// why; republishing clears the moderation trail.
func (r *PGRepository) SetStatus(ctx context.Context, id string, status Status, reason *string, moderatorID string) (Review, error) {
	var updateSQL string
	var args []any
	if status == StatusPublished {
		updateSQL = fmt.Sprintf(`
			UPDATE reviews
			SET status = 'published', hidden_reason = NULL, hidden_by = NULL, hidden_at = NULL, updated_at = now()
			WHERE id = $1
			RETURNING %s`, columns)
		args = []any{id}
	} else {
		updateSQL = fmt.Sprintf(`
			UPDATE reviews
			SET status = $2::review_status, hidden_reason = $3, hidden_by = $4, hidden_at = now(), updated_at = now()
			WHERE id = $1
			RETURNING %s`, columns)
		args = []any{id, string(status), reason, moderatorID}
	}

	rev, err := scanReview(r.pool.QueryRow(ctx, updateSQL, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Review{}, fmt.Errorf("review %s: %w", id, lifecycle.ErrNotFound)
		}
		return Review{}, fmt.Errorf("review: set status: %w", err)
	}
	return rev, nil
}

// MarkHelpful bumps the helpful counter.
func (r *PGRepository) MarkHelpful(ctx context.Context, id string) (Review, error) {
	updateSQL := fmt.Sprintf(`
		UPDATE reviews
		SET helpful_count = helpful_count + 1, updated_at = now()
		WHERE id = $1
		RETURNING %s`, columns)

	rev, err := scanReview(r.pool.QueryRow(ctx, updateSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Review{}, fmt.Errorf("review %s: %w", id, lifecycle.ErrNotFound)
		}
		return Review{}, fmt.Errorf("review: mark helpful: %w", err)
	}
	return rev, nil
}

func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Review, error) {
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}

	q := db.Builder.
		Select(strings.Split(columns, ",")...).
		From("reviews").
		OrderBy("created_at DESC").
		Limit(uint64(filters.Limit)).
		Offset(uint64(filters.Offset))

	if filters.VendorID != "" {
		q = q.Where(squirrel.Eq{"vendor_id": filters.VendorID})
	}
	if filters.BuyerID != "" {
		q = q.Where(squirrel.Eq{"buyer_id": filters.BuyerID})
	}
	if filters.OrderID != "" {
		q = q.Where(squirrel.Eq{"order_id": filters.OrderID})
	}
	if filters.VisibleOnly {
		q = q.Where(squirrel.Eq{"status": string(StatusPublished)})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("review: build list query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("review: list: %w", err)
	}
	defer rows.Close()

	out := make([]Review, 0, filters.Limit)
	for rows.Next() {
		rev, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("review: scan: %w", err)
		}
		out = append(out, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("review: iterate: %w", err)
	}
	return out, nil
}

// VendorAverage returns the mean overall rating across a vendor's published
// reviews, with the sample size.
func (r *PGRepository) VendorAverage(ctx context.Context, vendorID string) (float64, int, error) {
	var avg *float64
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT avg(overall_rating), count(*)
		FROM reviews
		WHERE vendor_id = $1 AND status = 'published'`,
		vendorID,
	).Scan(&avg, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("review: vendor average: %w", err)
	}
	if avg == nil {
		return 0, 0, nil
	}
	return *avg, count, nil
}

func scanReview(row pgx.Row) (Review, error) {
	var rev Review
	err := row.Scan(
		&rev.ID,
		&rev.OrderID,
		&rev.BuyerID,
		&rev.VendorID,
		&rev.OverallRating,
		&rev.ProductQualityRating,
		&rev.DeliveryRating,
		&rev.CommunicationRating,
		&rev.PricingRating,
		&rev.ReviewText,
		&rev.IsAnonymous,
		&rev.HelpfulCount,
		&rev.IsVerifiedPurchase,
		&rev.VendorResponse,
		&rev.VendorResponseAt,
		&rev.Status,
		&rev.HiddenReason,
		&rev.HiddenBy,
		&rev.HiddenAt,
		&rev.CreatedAt,
		&rev.UpdatedAt,
	)
	if err != nil {
		return Review{}, err
	}
	return rev, nil
}
