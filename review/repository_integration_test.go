package review

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"procureflow/lifecycle"
)

// TestCreate_SecondReviewRejected_Integration connects to a real PostgreSQL
// via DATABASE_URL and verifies the unique index on order_id surfaces as
// ErrUniqueViolation when the buyer reviews the same order twice.
func TestCreate_SecondReviewRejected_Integration(t *testing.T) {
	pool := integrationPool(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	f := seedOrderInStatus(ctx, t, pool, "delivered")
	repo := NewRepository(pool)

	first, err := repo.Create(ctx, CreateParams{
		OrderID:       f.orderID,
		BuyerID:       f.buyerID,
		OverallRating: 4,
	})
	if err != nil {
		t.Fatalf("create first review: %v", err)
	}
	if !first.IsVerifiedPurchase {
		t.Error("review through the gate should be a verified purchase")
	}

	_, err = repo.Create(ctx, CreateParams{
		OrderID:       f.orderID,
		BuyerID:       f.buyerID,
		OverallRating: 1,
	})
	if !errors.Is(err, lifecycle.ErrUniqueViolation) {
		t.Fatalf("expected ErrUniqueViolation for a second review, got %v", err)
	}
}

// TestCreate_GateDiagnosis_Integration verifies the miss diagnosis for the
// gated insert: undelivered orders are ineligible and another buyer is
// forbidden.
func TestCreate_GateDiagnosis_Integration(t *testing.T) {
	pool := integrationPool(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	f := seedOrderInStatus(ctx, t, pool, "confirmed")
	repo := NewRepository(pool)

	_, err := repo.Create(ctx, CreateParams{
		OrderID:       f.orderID,
		BuyerID:       f.buyerID,
		OverallRating: 5,
	})
	if !errors.Is(err, lifecycle.ErrIneligibleTarget) {
		t.Fatalf("expected ErrIneligibleTarget for an undelivered order, got %v", err)
	}

	_, err = repo.Create(ctx, CreateParams{
		OrderID:       f.orderID,
		BuyerID:       f.vendorID,
		OverallRating: 5,
	})
	if !errors.Is(err, lifecycle.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a non-buyer, got %v", err)
	}
}

type orderFixture struct {
	buyerID  string
	vendorID string
	orderID  string
}

func integrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	t.Cleanup(pool.Close)

	for _, table := range []string{"users", "orders", "reviews"} {
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists); err != nil || !exists {
			t.Skipf("table %s missing; apply migrations first", table)
		}
	}
	return pool
}

func seedOrderInStatus(ctx context.Context, t *testing.T, pool *pgxpool.Pool, orderStatus string) orderFixture {
	t.Helper()

	var f orderFixture
	suffix := time.Now().UnixNano()

	if err := pool.QueryRow(ctx,
		`INSERT INTO users (email, full_name, role) VALUES ($1, $2, 'buyer') RETURNING id`,
		fmt.Sprintf("buyer+%d@example.com", suffix), "Ada Buyer").Scan(&f.buyerID); err != nil {
		t.Fatalf("seed buyer: %v", err)
	}
	if err := pool.QueryRow(ctx,
		`INSERT INTO users (email, full_name, role) VALUES ($1, $2, 'vendor') RETURNING id`,
		fmt.Sprintf("vendor+%d@example.com", suffix), "Vic Vendor").Scan(&f.vendorID); err != nil {
		t.Fatalf("seed vendor: %v", err)
	}

	var productID, addressID string
	if err := pool.QueryRow(ctx,
		`INSERT INTO products (vendor_id, name) VALUES ($1, $2) RETURNING id`,
		f.vendorID, fmt.Sprintf("Widget %d", suffix)).Scan(&productID); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := pool.QueryRow(ctx,
		`INSERT INTO addresses (user_id, line1, city, country) VALUES ($1, '1 Dock Rd', 'Rotterdam', 'NL') RETURNING id`,
		f.buyerID).Scan(&addressID); err != nil {
		t.Fatalf("seed address: %v", err)
	}

	var rfqID string
	if err := pool.QueryRow(ctx, `
		INSERT INTO rfqs (rfq_number, buyer_id, product_id, quantity, delivery_address_id, status, closed_reason, closed_at)
		VALUES ($1, $2, $3, 100, $4, 'closed', 'quote_accepted', now())
		RETURNING id`,
		fmt.Sprintf("RFQ-%d", suffix), f.buyerID, productID, addressID).Scan(&rfqID); err != nil {
		t.Fatalf("seed rfq: %v", err)
	}

	var quoteID string
	if err := pool.QueryRow(ctx, `
		INSERT INTO quotes (rfq_id, vendor_id, price_per_unit, currency, quantity_available, lead_time_days, payment_terms, valid_until, status, accepted_at)
		VALUES ($1, $2, 12.50, 'USD', 500, 7, 'net_30', now() + interval '2 days', 'accepted', now())
		RETURNING id`,
		rfqID, f.vendorID).Scan(&quoteID); err != nil {
		t.Fatalf("seed quote: %v", err)
	}

	if err := pool.QueryRow(ctx, `
		INSERT INTO orders (order_number, rfq_id, quote_id, buyer_id, vendor_id, product_id, quantity,
		                    unit_price, currency, subtotal, total_amount, delivery_address_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, 100, 12.50, 'USD', 1250.00, 1250.00, $7, $8::order_status)
		RETURNING id`,
		fmt.Sprintf("PO-%d", suffix), rfqID, quoteID, f.buyerID, f.vendorID, productID, addressID, orderStatus).Scan(&f.orderID); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return f
}
