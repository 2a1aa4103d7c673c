package dispute

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"procureflow/lifecycle"
)

// TestOpen_DuplicateActiveIssue_Integration connects to a real PostgreSQL via
// DATABASE_URL and verifies the partial unique index surfaces as
// ErrDuplicateDispute while the first dispute is still active, and that a
// different issue type on the same order is unaffected.
func TestOpen_DuplicateActiveIssue_Integration(t *testing.T) {
	pool := integrationPool(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	f := seedOrderFixture(ctx, t, pool)
	repo := NewRepository(pool)

	first, err := repo.Open(ctx, OpenParams{
		OrderID:     f.orderID,
		RaisedBy:    f.buyerID,
		IssueType:   IssueQuality,
		Description: "half the units arrived with cracked housings",
	})
	if err != nil {
		t.Fatalf("open first dispute: %v", err)
	}
	if first.Status != StatusOpen {
		t.Errorf("first dispute status = %s, want open", first.Status)
	}

	_, err = repo.Open(ctx, OpenParams{
		OrderID:     f.orderID,
		RaisedBy:    f.buyerID,
		IssueType:   IssueQuality,
		Description: "another complaint about the same cracked housings",
	})
	if !errors.Is(err, lifecycle.ErrDuplicateDispute) {
		t.Fatalf("expected ErrDuplicateDispute for a second active %s dispute, got %v", IssueQuality, err)
	}

	// A different issue type on the same order is a separate dispute.
	if _, err := repo.Open(ctx, OpenParams{
		OrderID:     f.orderID,
		RaisedBy:    f.buyerID,
		IssueType:   IssueDelivery,
		Description: "the shipment also arrived nine days late",
	}); err != nil {
		t.Fatalf("open dispute with different issue type: %v", err)
	}
}

// TestOpen_ReopenAfterResolution_Integration verifies the duplicate rule only
// covers active disputes: once the first is resolved, the same issue type may
// be raised again.
func TestOpen_ReopenAfterResolution_Integration(t *testing.T) {
	pool := integrationPool(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	f := seedOrderFixture(ctx, t, pool)
	repo := NewRepository(pool)

	first, err := repo.Open(ctx, OpenParams{
		OrderID:     f.orderID,
		RaisedBy:    f.buyerID,
		IssueType:   IssuePricing,
		Description: "invoiced total does not match the accepted quote",
	})
	if err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if _, err := repo.Assign(ctx, first.ID, f.buyerID); err != nil {
		t.Fatalf("assign dispute: %v", err)
	}
	if _, err := repo.Resolve(ctx, ResolveParams{
		DisputeID:  first.ID,
		Decision:   "buyer_favor",
		ResolvedBy: f.buyerID,
	}); err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}

	if _, err := repo.Open(ctx, OpenParams{
		OrderID:     f.orderID,
		RaisedBy:    f.buyerID,
		IssueType:   IssuePricing,
		Description: "the corrected invoice is still off by the delivery fee",
	}); err != nil {
		t.Fatalf("reopen after resolution should succeed, got %v", err)
	}
}

func TestOpen_MissingOrder_Integration(t *testing.T) {
	pool := integrationPool(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo := NewRepository(pool)

	_, err := repo.Open(ctx, OpenParams{
		OrderID:     uuid.NewString(),
		RaisedBy:    uuid.NewString(),
		IssueType:   IssueOther,
		Description: "dispute against an order that does not exist",
	})
	if !errors.Is(err, lifecycle.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
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

	for _, table := range []string{"users", "orders", "disputes"} {
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists); err != nil || !exists {
			t.Skipf("table %s missing; apply migrations first", table)
		}
	}
	return pool
}

// seedOrderFixture creates the chain a dispute hangs off: users, product,
// address, a closed RFQ with its accepted quote, and a confirmed order.
func seedOrderFixture(ctx context.Context, t *testing.T, pool *pgxpool.Pool) orderFixture {
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
		VALUES ($1, $2, $3, $4, $5, $6, 100, 12.50, 'USD', 1250.00, 1250.00, $7, 'confirmed')
		RETURNING id`,
		fmt.Sprintf("PO-%d", suffix), rfqID, quoteID, f.buyerID, f.vendorID, productID, addressID).Scan(&f.orderID); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return f
}
