package dispute

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"procureflow/db"
	"procureflow/lifecycle"
)

const columns = `id, order_id, raised_by, issue_type::text, description, preferred_resolution,
       status::text, assigned_to, resolution_decision, resolution_notes, resolution_action,
       resolved_by, resolved_at, closed_at, created_at, updated_at`

// PGRepository persists disputes in PostgreSQL. The partial unique index on
// (order_id, issue_type) over active rows enforces the duplicate rule even
// under concurrent opens.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Open raises a dispute against an existing order. The INSERT..SELECT only
// matches when the order exists; the unique index rejects a second
// simultaneously active dispute for the same order and issue type.
func (r *PGRepository) Open(ctx context.Context, params OpenParams) (Record, error) {
	insertSQL := fmt.Sprintf(`
		INSERT INTO disputes (order_id, raised_by, issue_type, description, preferred_resolution, status)
		SELECT o.id, $2, $3::dispute_issue_type, $4, $5, 'open'
		FROM orders o
		WHERE o.id = $1
		RETURNING %s`, columns)

	rec, err := scanDispute(r.pool.QueryRow(ctx, insertSQL,
		params.OrderID,
		params.RaisedBy,
		params.IssueType,
		params.Description,
		params.PreferredResolution,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("dispute: order %s: %w", params.OrderID, lifecycle.ErrNotFound)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, fmt.Errorf("dispute: order %s already has an active %s dispute: %w",
				params.OrderID, params.IssueType, lifecycle.ErrDuplicateDispute)
		}
		return Record{}, fmt.Errorf("dispute: open: %w", err)
	}
	return rec, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Record, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM disputes WHERE id = $1`, columns)

	rec, err := scanDispute(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("dispute %s: %w", id, lifecycle.ErrNotFound)
		}
		return Record{}, fmt.Errorf("dispute: get by id: %w", err)
	}
	return rec, nil
}

// Assign moves open -> investigating and records the handler.
func (r *PGRepository) Assign(ctx context.Context, id, assignee string) (Record, error) {
	updateSQL := fmt.Sprintf(`
		UPDATE disputes
		SET status = 'investigating', assigned_to = $2, updated_at = now()
		WHERE id = $1 AND status = 'open'
		RETURNING %s`, columns)

	rec, err := scanDispute(r.pool.QueryRow(ctx, updateSQL, id, assignee))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("dispute: assign: %w", err)
	}
	return Record{}, r.transitionError(ctx, id, StatusInvestigating)
}

// Resolve moves investigating -> resolved with the decision attached.
func (r *PGRepository) Resolve(ctx context.Context, params ResolveParams) (Record, error) {
	updateSQL := fmt.Sprintf(`
		UPDATE disputes
		SET status = 'resolved', resolution_decision = $2, resolution_notes = $3,
		    resolution_action = $4, resolved_by = $5, resolved_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'investigating'
		RETURNING %s`, columns)

	rec, err := scanDispute(r.pool.QueryRow(ctx, updateSQL,
		params.DisputeID,
		params.Decision,
		params.Notes,
		params.Action,
		params.ResolvedBy,
	))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("dispute: resolve: %w", err)
	}
	return Record{}, r.transitionError(ctx, params.DisputeID, StatusResolved)
}

// Close is the terminal administrative close of a resolved dispute.
func (r *PGRepository) Close(ctx context.Context, id string) (Record, error) {
	updateSQL := fmt.Sprintf(`
		UPDATE disputes
		SET status = 'closed', closed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'resolved'
		RETURNING %s`, columns)

	rec, err := scanDispute(r.pool.QueryRow(ctx, updateSQL, id))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("dispute: close: %w", err)
	}
	return Record{}, r.transitionError(ctx, id, StatusClosed)
}

func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Record, error) {
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}

	q := db.Builder.
		Select(strings.Split(columns, ",")...).
		From("disputes").
		OrderBy("created_at DESC").
		Limit(uint64(filters.Limit)).
		Offset(uint64(filters.Offset))

	if filters.OrderID != "" {
		q = q.Where(squirrel.Eq{"order_id": filters.OrderID})
	}
	if filters.RaisedBy != "" {
		q = q.Where(squirrel.Eq{"raised_by": filters.RaisedBy})
	}
	if filters.Status != "" {
		q = q.Where(squirrel.Eq{"status": string(filters.Status)})
	}
	if filters.IssueType != "" {
		q = q.Where(squirrel.Eq{"issue_type": string(filters.IssueType)})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("dispute: build list query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("dispute: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, filters.Limit)
	for rows.Next() {
		rec, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("dispute: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}
	return out, nil
}

func (r *PGRepository) transitionError(ctx context.Context, id string, target Status) error {
	rec, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("dispute %s is %s, cannot reach %s: %w", id, rec.Status, target, lifecycle.ErrInvalidTransition)
}

func scanDispute(row pgx.Row) (Record, error) {
	var (
		rec        Record
		preferred  *string
		assignedTo *string
		decision   *string
		notes      *string
		action     *string
		resolvedBy *string
		resolvedAt *time.Time
		closedAt   *time.Time
	)
	err := row.Scan(
		&rec.ID,
		&rec.OrderID,
		&rec.RaisedBy,
		&rec.IssueType,
		&rec.Description,
		&preferred,
		&rec.Status,
		&assignedTo,
		&decision,
		&notes,
		&action,
		&resolvedBy,
		&resolvedAt,
		&closedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	rec.PreferredResolution = preferred
	rec.AssignedTo = assignedTo
	rec.ResolutionDecision = decision
	rec.ResolutionNotes = notes
	rec.ResolutionAction = action
	rec.ResolvedBy = resolvedBy
	rec.ResolvedAt = resolvedAt
	rec.ClosedAt = closedAt
	return rec, nil
}
