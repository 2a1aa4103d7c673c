// Package actors holds the concurrent workload for the stress harness. Each
// actor loops until stop, driving one slice of the negotiation workflow
// through the real engine services. Domain rejections (conflicts, ineligible
// targets, duplicates) are expected under contention; correctness is judged
// by the oracles, not by the actors.
package actors

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"procureflow/acceptance"
	"procureflow/dispute"
	"procureflow/lifecycle"
	"procureflow/order"
	"procureflow/review"
	"procureflow/sweep"
)

func pause() {
	time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
}

func stopped(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

// RFQCreator keeps a supply of active RFQs flowing. Short expiries are mixed
// in so the sweeper and the acceptance expiry check race real deadlines.
func RFQCreator(ctx context.Context, pool *pgxpool.Pool, buyerID, productID, addressID string, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		expiry := time.Duration(2+rand.Intn(20)) * time.Second
		_, _ = pool.Exec(ctx, `
			INSERT INTO rfqs (rfq_number, buyer_id, product_id, quantity, delivery_address_id, status, expires_at)
			VALUES ($1, $2, $3, $4, $5, 'active', now() + $6::interval)`,
			fmt.Sprintf("RFQ-%08X", rand.Int63()), buyerID, productID, 10+rand.Intn(200), addressID,
			fmt.Sprintf("%d milliseconds", expiry.Milliseconds()))
		pause()
	}
	return nil
}

// QuoteSubmitter offers quotes against random active RFQs. The gated
// INSERT..SELECT silently misses when the RFQ closed or expired underneath.
func QuoteSubmitter(ctx context.Context, pool *pgxpool.Pool, vendorID string, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		validity := time.Duration(2+rand.Intn(20)) * time.Second
		price := decimal.NewFromInt(int64(1 + rand.Intn(100))).Add(decimal.NewFromInt(int64(rand.Intn(100))).Div(decimal.NewFromInt(100)))
		_, _ = pool.Exec(ctx, `
			INSERT INTO quotes (rfq_id, vendor_id, price_per_unit, currency, quantity_available, lead_time_days, payment_terms, valid_until)
			SELECT r.id, $1, $2, 'USD', $3, $4, 'net_30', now() + $5::interval
			FROM rfqs r
			WHERE r.status = 'active' AND (r.expires_at IS NULL OR r.expires_at > now())
			ORDER BY random() LIMIT 1`,
			vendorID, price.String(), 100+rand.Intn(400), rand.Intn(14),
			fmt.Sprintf("%d milliseconds", validity.Milliseconds()))
		pause()
	}
	return nil
}

// Acceptor races to accept submitted quotes through the real coordinator.
// Conflicts and ineligible targets are the point of the exercise.
func Acceptor(ctx context.Context, pool *pgxpool.Pool, coord *acceptance.Coordinator, buyerID string, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		var rfqID, quoteID string
		err := pool.QueryRow(ctx, `
			SELECT q.rfq_id, q.id FROM quotes q
			JOIN rfqs r ON r.id = q.rfq_id
			WHERE q.status = 'submitted' AND r.status = 'active'
			ORDER BY random() LIMIT 1`).Scan(&rfqID, &quoteID)
		if err == nil {
			_, _ = coord.AcceptQuote(ctx, rfqID, quoteID, lifecycle.Actor{ID: buyerID})
		}
		pause()
	}
	return nil
}

// Fulfiller walks orders along the forward chain one legal step at a time.
func Fulfiller(ctx context.Context, pool *pgxpool.Pool, orders *order.Service, vendorID string, stop <-chan struct{}) error {
	next := map[string]order.Status{
		"pending_vendor_confirmation": order.StatusConfirmed,
		"confirmed":                   order.StatusPreparing,
		"preparing":                   order.StatusDispatched,
		"dispatched":                  order.StatusInTransit,
		"in_transit":                  order.StatusDelivered,
	}
	for !stopped(ctx, stop) {
		var id, status string
		err := pool.QueryRow(ctx, `
			SELECT id, status::text FROM orders
			WHERE status NOT IN ('delivered', 'cancelled', 'vendor_declined')
			ORDER BY random() LIMIT 1`).Scan(&id, &status)
		if err == nil {
			if to, ok := next[status]; ok {
				_, _ = orders.Advance(ctx, id, to, lifecycle.Actor{ID: vendorID})
			}
		}
		pause()
	}
	return nil
}

// Canceller occasionally cancels a random live order, racing the fulfiller.
func Canceller(ctx context.Context, pool *pgxpool.Pool, orders *order.Service, buyerID string, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		if rand.Intn(4) == 0 {
			var id string
			err := pool.QueryRow(ctx, `
				SELECT id FROM orders
				WHERE status NOT IN ('delivered', 'cancelled', 'vendor_declined')
				ORDER BY random() LIMIT 1`).Scan(&id)
			if err == nil {
				_, _ = orders.Cancel(ctx, id, "stress cancellation", lifecycle.Actor{ID: buyerID})
			}
		}
		pause()
	}
	return nil
}

// Disputer raises disputes against random orders, repeatedly hitting the
// one-active-dispute-per-issue rule.
func Disputer(ctx context.Context, pool *pgxpool.Pool, disputes *dispute.Service, buyerID string, stop <-chan struct{}) error {
	issues := []dispute.IssueType{dispute.IssueQuality, dispute.IssueDelivery, dispute.IssuePricing, dispute.IssueOther}
	for !stopped(ctx, stop) {
		var id string
		err := pool.QueryRow(ctx, `SELECT id FROM orders ORDER BY random() LIMIT 1`).Scan(&id)
		if err == nil {
			_, _ = disputes.Open(ctx, dispute.OpenParams{
				OrderID:     id,
				RaisedBy:    buyerID,
				IssueType:   issues[rand.Intn(len(issues))],
				Description: "stress-raised dispute over a randomly selected order",
			})
		}
		pause()
	}
	return nil
}

// Reviewer reviews delivered orders, repeatedly hitting the one-review-per-
// order rule and the delivery gate.
func Reviewer(ctx context.Context, pool *pgxpool.Pool, reviews *review.Service, buyerID string, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		var id string
		err := pool.QueryRow(ctx, `SELECT id FROM orders ORDER BY random() LIMIT 1`).Scan(&id)
		if err == nil {
			_, _ = reviews.Create(ctx, review.CreateParams{
				OrderID:       id,
				BuyerID:       buyerID,
				OverallRating: 1 + rand.Intn(5),
			})
		}
		pause()
	}
	return nil
}

// ExpirySweeper persists lazy expirations on a tight loop, racing acceptors
// on the same deadline-passed rows.
func ExpirySweeper(ctx context.Context, sweeper *sweep.Sweeper, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		sweeper.Sweep(ctx)
		time.Sleep(500 * time.Millisecond)
	}
	return nil
}
