package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the cross-entity invariants checked during a stress run. Each
// query selects violating rows; an empty result means the invariant holds.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_one_accepted_quote_per_rfq",
			SQL: `SELECT rfq_id, COUNT(*) FROM quotes
                  WHERE status = 'accepted'
                  GROUP BY rfq_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_accepted_quote_has_exactly_one_order",
			SQL: `SELECT q.id FROM quotes q
                  LEFT JOIN orders o ON o.quote_id = q.id
                  WHERE q.status = 'accepted'
                  GROUP BY q.id HAVING COUNT(o.id) <> 1`,
		},
		{
			Name: "O3_order_terms_match_quote",
			SQL: `SELECT o.id FROM orders o
                  JOIN quotes q ON q.id = o.quote_id
                  WHERE o.unit_price <> q.price_per_unit
                     OR o.currency <> q.currency
                     OR o.rfq_id <> q.rfq_id
                     OR o.subtotal <> o.unit_price * o.quantity
                     OR o.total_amount <> o.subtotal + COALESCE(o.delivery_fee, 0)`,
		},
		{
			Name: "O4_accepted_quote_closes_rfq",
			SQL: `SELECT q.rfq_id FROM quotes q
                  JOIN rfqs r ON r.id = q.rfq_id
                  WHERE q.status = 'accepted'
                    AND (r.status <> 'closed' OR r.closed_reason <> 'quote_accepted')`,
		},
		{
			Name: "O5_no_submitted_siblings_after_acceptance",
			SQL: `SELECT s.id FROM quotes s
                  WHERE s.status = 'submitted'
                    AND EXISTS (SELECT 1 FROM quotes a
                                WHERE a.rfq_id = s.rfq_id AND a.status = 'accepted')`,
		},
		{
			Name: "O6_order_belongs_to_closed_rfq",
			SQL: `SELECT o.id FROM orders o
                  JOIN rfqs r ON r.id = o.rfq_id
                  WHERE r.status <> 'closed'`,
		},
		{
			Name: "O7_one_active_dispute_per_order_issue",
			SQL: `SELECT order_id, issue_type, COUNT(*) FROM disputes
                  WHERE status IN ('open', 'investigating')
                  GROUP BY order_id, issue_type HAVING COUNT(*) > 1`,
		},
		{
			Name: "O8_review_gate",
			SQL: `SELECT rv.id FROM reviews rv
                  JOIN orders o ON o.id = rv.order_id
                  WHERE o.status <> 'delivered' OR rv.buyer_id <> o.buyer_id`,
		},
		{
			Name: "O9_acceptance_within_validity",
			SQL: `SELECT id FROM quotes
                  WHERE status = 'accepted' AND accepted_at > valid_until`,
		},
		{
			Name: "O10_cancellation_recorded",
			SQL: `SELECT id FROM orders
                  WHERE status = 'cancelled'
                    AND (cancelled_by IS NULL OR cancellation_reason IS NULL OR cancelled_at IS NULL)`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and a sample
// violating row) or an empty name when all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
