package acceptance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"procureflow/lifecycle"
	"procureflow/order"
	"procureflow/rfq"
)

// TestAcceptQuote_Integration connects to a real PostgreSQL via DATABASE_URL
// and verifies the full acceptance transaction: quote accepted, siblings
// declined, RFQ closed, order created, terms copied.
func TestAcceptQuote_Integration(t *testing.T) {
	pool := integrationPool(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	f := seedFixture(ctx, t, pool)

	coord := NewCoordinator(pool, NewRepository(), order.NewRepository(pool), lifecycle.NopEmitter{})

	created, err := coord.AcceptQuote(ctx, f.rfqID, f.quote1, lifecycle.Actor{ID: f.buyerID})
	if err != nil {
		t.Fatalf("accept quote: %v", err)
	}

	var quoteStatus, siblingStatus, rfqStatus string
	var closedReason *string
	if err := pool.QueryRow(ctx, `SELECT status::text FROM quotes WHERE id = $1`, f.quote1).Scan(&quoteStatus); err != nil {
		t.Fatalf("read accepted quote: %v", err)
	}
	if quoteStatus != "accepted" {
		t.Errorf("accepted quote status = %s", quoteStatus)
	}
	if err := pool.QueryRow(ctx, `SELECT status::text FROM quotes WHERE id = $1`, f.quote2).Scan(&siblingStatus); err != nil {
		t.Fatalf("read sibling quote: %v", err)
	}
	if siblingStatus != "declined" {
		t.Errorf("sibling quote status = %s, want declined", siblingStatus)
	}
	if err := pool.QueryRow(ctx, `SELECT status::text, closed_reason FROM rfqs WHERE id = $1`, f.rfqID).Scan(&rfqStatus, &closedReason); err != nil {
		t.Fatalf("read rfq: %v", err)
	}
	if rfqStatus != "closed" || closedReason == nil || *closedReason != rfq.ReasonQuoteAccepted {
		t.Errorf("rfq state = %s / %v, want closed / quote_accepted", rfqStatus, closedReason)
	}

	var subtotal, total string
	if err := pool.QueryRow(ctx,
		`SELECT subtotal::text, total_amount::text FROM orders WHERE id = $1`, created.ID,
	).Scan(&subtotal, &total); err != nil {
		t.Fatalf("read order: %v", err)
	}
	// 100 units at 12.50 plus 25.00 delivery fee
	if subtotal != "1250.00" {
		t.Errorf("subtotal = %s", subtotal)
	}
	if total != "1275.00" {
		t.Errorf("total = %s", total)
	}

	// A second acceptance attempt on the closed RFQ loses.
	_, err = coord.AcceptQuote(ctx, f.rfqID, f.quote2, lifecycle.Actor{ID: f.buyerID})
	if !errors.Is(err, lifecycle.ErrConflict) {
		t.Fatalf("expected ErrConflict on re-acceptance, got %v", err)
	}
}

// TestAcceptQuote_ConcurrentExactlyOneWins races two acceptances of
// different quotes on the same RFQ. The row locks must serialize them so
// exactly one commits.
func TestAcceptQuote_ConcurrentExactlyOneWins(t *testing.T) {
	pool := integrationPool(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	f := seedFixture(ctx, t, pool)

	coord := NewCoordinator(pool, NewRepository(), order.NewRepository(pool), lifecycle.NopEmitter{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	quoteIDs := []string{f.quote1, f.quote2}
	for i := range quoteIDs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = coord.AcceptQuote(ctx, f.rfqID, quoteIDs[i], lifecycle.Actor{ID: f.buyerID})
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		if err == nil {
			wins++
			continue
		}
		if !errors.Is(err, lifecycle.ErrConflict) {
			t.Errorf("loser %d: expected ErrConflict, got %v", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}

	var accepted, orders int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM quotes WHERE rfq_id = $1 AND status = 'accepted'`, f.rfqID).Scan(&accepted); err != nil {
		t.Fatalf("count accepted: %v", err)
	}
	if accepted != 1 {
		t.Errorf("accepted quotes = %d", accepted)
	}
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE rfq_id = $1`, f.rfqID).Scan(&orders); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != 1 {
		t.Errorf("orders for rfq = %d", orders)
	}
}

type fixture struct {
	buyerID  string
	vendorID string
	rfqID    string
	quote1   string
	quote2   string
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

	for _, table := range []string{"users", "rfqs", "quotes", "orders"} {
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists); err != nil || !exists {
			t.Skipf("table %s missing; apply migrations first", table)
		}
	}
	return pool
}

func seedFixture(ctx context.Context, t *testing.T, pool *pgxpool.Pool) fixture {
	t.Helper()

	var f fixture
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

	if err := pool.QueryRow(ctx, `
		INSERT INTO rfqs (rfq_number, buyer_id, product_id, quantity, delivery_address_id, status, expires_at)
		VALUES ($1, $2, $3, 100, $4, 'active', now() + interval '1 day')
		RETURNING id`,
		fmt.Sprintf("RFQ-%d", suffix), f.buyerID, productID, addressID).Scan(&f.rfqID); err != nil {
		t.Fatalf("seed rfq: %v", err)
	}

	submitQuote := func(price string) string {
		var id string
		if err := pool.QueryRow(ctx, `
			INSERT INTO quotes (rfq_id, vendor_id, price_per_unit, currency, quantity_available, delivery_fee, lead_time_days, payment_terms, valid_until)
			VALUES ($1, $2, $3, 'USD', 500, 25.00, 7, 'net_30', now() + interval '2 days')
			RETURNING id`,
			f.rfqID, f.vendorID, price).Scan(&id); err != nil {
			t.Fatalf("seed quote: %v", err)
		}
		return id
	}
	f.quote1 = submitQuote("12.50")
	f.quote2 = submitQuote("11.80")
	return f
}
